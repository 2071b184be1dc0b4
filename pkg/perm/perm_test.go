package perm

import (
	"testing"

	"dialogd/pkg/dmerr"
	"dialogd/pkg/store"

	"github.com/stretchr/testify/require"
)

func TestAuthorizeThreadAccess(t *testing.T) {
	require.NoError(t, store.Open(t.TempDir()))
	t.Cleanup(func() { _ = store.Close() })

	th, _, err := store.CreateThreadForPair("alice", "bob")
	require.NoError(t, err)

	got, err := AuthorizeThreadAccess("alice", th.ID)
	require.NoError(t, err)
	require.Equal(t, th.ID, got.ID)

	_, err = AuthorizeThreadAccess("carol", th.ID)
	require.True(t, dmerr.IsForbidden(err))

	// a missing thread is NotFound, distinguishable from Forbidden
	_, err = AuthorizeThreadAccess("alice", th.ID+1)
	require.True(t, dmerr.IsNotFound(err))
}

func TestAuthorizeMessageAccess(t *testing.T) {
	require.NoError(t, store.Open(t.TempDir()))
	t.Cleanup(func() { _ = store.Close() })

	th, _, err := store.CreateThreadForPair("alice", "bob")
	require.NoError(t, err)
	m, err := store.AppendMessage(th.ID, "alice", "hello")
	require.NoError(t, err)

	got, err := AuthorizeMessageAccess("alice", m.ID)
	require.NoError(t, err)
	require.Equal(t, m.ID, got.ID)

	// thread membership is not enough; message access is sender-only
	_, err = AuthorizeMessageAccess("bob", m.ID)
	require.True(t, dmerr.IsForbidden(err))

	_, err = AuthorizeMessageAccess("alice", m.ID+1)
	require.True(t, dmerr.IsNotFound(err))
}
