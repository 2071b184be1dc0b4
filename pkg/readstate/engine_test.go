package readstate

import (
	"testing"

	"dialogd/pkg/dmerr"
	"dialogd/pkg/store"

	"github.com/stretchr/testify/require"
)

func TestReadUntilRejectsBadWatermarkBeforeStorage(t *testing.T) {
	// the store is deliberately not opened: watermark validation must fire
	// before any storage access
	for _, wm := range []int64{0, -1, -42} {
		_, err := ReadUntil("alice", 1, wm)
		require.True(t, dmerr.IsValidation(err), "watermark %d: %v", wm, err)
	}
}

func TestReadAllAndReadUntil(t *testing.T) {
	require.NoError(t, store.Open(t.TempDir()))
	t.Cleanup(func() { _ = store.Close() })

	th, _, err := store.CreateThreadForPair("alice", "bob")
	require.NoError(t, err)
	m1, err := store.AppendMessage(th.ID, "alice", "one")
	require.NoError(t, err)
	m2, err := store.AppendMessage(th.ID, "alice", "two")
	require.NoError(t, err)
	mine, err := store.AppendMessage(th.ID, "bob", "mine")
	require.NoError(t, err)

	n, err := ReadUntil("bob", th.ID, int64(m1.ID))
	require.NoError(t, err)
	require.Equal(t, 1, n)

	n, err = ReadAll("bob", th.ID)
	require.NoError(t, err)
	require.Equal(t, 1, n, "only the remaining interlocutor message flips")

	got, err := store.GetMessage(m2.ID)
	require.NoError(t, err)
	require.True(t, got.IsRead)

	// bob's own message never flips through bob's transitions
	got, err = store.GetMessage(mine.ID)
	require.NoError(t, err)
	require.False(t, got.IsRead)

	// idempotent
	n, err = ReadAll("bob", th.ID)
	require.NoError(t, err)
	require.Zero(t, n)
}
