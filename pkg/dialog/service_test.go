package dialog

import (
	"testing"

	"dialogd/pkg/dmerr"
	"dialogd/pkg/store"

	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) {
	t.Helper()
	require.NoError(t, store.Open(t.TempDir()))
	t.Cleanup(func() { _ = store.Close() })
}

func TestCreateThreadValidation(t *testing.T) {
	setup(t)

	cases := []struct {
		name         string
		participants []string
		wantMsg      string
	}{
		{"empty", nil, "participants required"},
		{"blank entry", []string{"alice", "  "}, "participants required"},
		{"self only", []string{"alice", "alice"}, "thread must contain 2 different participants"},
		{"too many", []string{"alice", "bob", "carol"}, "thread must contain 2 different participants"},
		{"without self", []string{"bob", "carol"}, "cannot create thread without self as participant"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := CreateThread("alice", tc.participants)
			require.Error(t, err)
			require.True(t, dmerr.IsValidation(err), "expected validation error, got %v", err)
			require.Contains(t, err.Error(), tc.wantMsg)
		})
	}
}

func TestCreateThreadPairUnique(t *testing.T) {
	setup(t)

	t1, err := CreateThread("alice", []string{"alice", "bob"})
	require.NoError(t, err)

	// bob opening the same pair gets the same thread back
	t2, err := CreateThread("bob", []string{"bob", "alice"})
	require.NoError(t, err)
	require.Equal(t, t1.ID, t2.ID)
}

func TestConversationFlow(t *testing.T) {
	setup(t)

	th, err := CreateThread("alice", []string{"alice", "bob"})
	require.NoError(t, err)

	_, err = CreateMessage("alice", th.ID, "hello")
	require.NoError(t, err)

	// bob sees one unread and the preview text
	threads, err := ListThreads("bob")
	require.NoError(t, err)
	require.Len(t, threads, 1)
	require.Equal(t, 1, threads[0].NumUnread)
	require.Equal(t, "hello", threads[0].LastMessage)

	// posting a reply acknowledges the backlog
	reply, err := CreateMessage("bob", th.ID, "hi alice")
	require.NoError(t, err)
	require.False(t, reply.IsRead)

	msgs, err := ListMessages("alice", th.ID, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.Equal(t, "hi alice", msgs[0].Text) // newest first
	require.True(t, msgs[1].IsRead, "alice's hello must be read after bob replied")

	// only the reply remains unread
	threads, err = ListThreads("alice")
	require.NoError(t, err)
	require.Equal(t, 1, threads[0].NumUnread)
}

func TestListThreadsEmptyPreview(t *testing.T) {
	setup(t)

	_, err := CreateThread("alice", []string{"alice", "bob"})
	require.NoError(t, err)

	threads, err := ListThreads("alice")
	require.NoError(t, err)
	require.Len(t, threads, 1)
	require.Equal(t, 0, threads[0].NumUnread)
	require.Equal(t, "No messages yet", threads[0].LastMessage)
}

func TestCreateMessageAcknowledgesBeforeTextCheck(t *testing.T) {
	setup(t)

	th, err := CreateThread("alice", []string{"alice", "bob"})
	require.NoError(t, err)
	sent, err := CreateMessage("alice", th.ID, "unread until bob acts")
	require.NoError(t, err)

	// bob posts an empty text: rejected, but the backlog is still marked
	// read because acknowledgement runs before text validation
	_, err = CreateMessage("bob", th.ID, "")
	require.True(t, dmerr.IsValidation(err))

	got, err := store.GetMessage(sent.ID)
	require.NoError(t, err)
	require.True(t, got.IsRead)
}

func TestCreateMessageGuards(t *testing.T) {
	setup(t)

	th, err := CreateThread("alice", []string{"alice", "bob"})
	require.NoError(t, err)

	_, err = CreateMessage("carol", th.ID, "hi")
	require.True(t, dmerr.IsForbidden(err), "outsider must not post: %v", err)

	_, err = CreateMessage("alice", th.ID+100, "hi")
	require.True(t, dmerr.IsNotFound(err), "unknown thread: %v", err)
}

func TestDeleteThreadAsymmetry(t *testing.T) {
	setup(t)

	th, err := CreateThread("alice", []string{"alice", "bob"})
	require.NoError(t, err)
	_, err = CreateMessage("alice", th.ID, "hello")
	require.NoError(t, err)

	// first leave detaches the caller but keeps the thread and messages
	require.NoError(t, DeleteThread("alice", th.ID))

	got, err := store.GetThread(th.ID)
	require.NoError(t, err)
	require.Equal(t, []string{"bob"}, got.Participants)
	msgs, err := ListMessages("bob", th.ID, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	// alice is no longer a participant
	_, err = GetThread("alice", th.ID)
	require.True(t, dmerr.IsForbidden(err))

	// the pair can open a brand-new thread while the old one lingers
	fresh, err := CreateThread("alice", []string{"alice", "bob"})
	require.NoError(t, err)
	require.NotEqual(t, th.ID, fresh.ID)

	// the last participant leaving destroys the thread and its messages
	require.NoError(t, DeleteThread("bob", th.ID))
	_, err = store.GetThread(th.ID)
	require.True(t, dmerr.IsNotFound(err))
}

func TestMessageSenderOnlyAccess(t *testing.T) {
	setup(t)

	th, err := CreateThread("alice", []string{"alice", "bob"})
	require.NoError(t, err)
	m, err := CreateMessage("alice", th.ID, "mine")
	require.NoError(t, err)

	_, err = GetMessage("bob", m.ID)
	require.True(t, dmerr.IsForbidden(err), "participant but not sender: %v", err)

	_, err = GetMessage("alice", m.ID+100)
	require.True(t, dmerr.IsNotFound(err))

	got, err := GetMessage("alice", m.ID)
	require.NoError(t, err)
	require.Equal(t, "mine", got.Text)
}

func TestUpdateMessage(t *testing.T) {
	setup(t)

	th, err := CreateThread("alice", []string{"alice", "bob"})
	require.NoError(t, err)
	m, err := CreateMessage("alice", th.ID, "draft")
	require.NoError(t, err)

	// nil text leaves the message unchanged
	got, err := UpdateMessage("alice", m.ID, nil)
	require.NoError(t, err)
	require.Equal(t, "draft", got.Text)

	empty := ""
	_, err = UpdateMessage("alice", m.ID, &empty)
	require.True(t, dmerr.IsValidation(err))

	final := "final"
	got, err = UpdateMessage("alice", m.ID, &final)
	require.NoError(t, err)
	require.Equal(t, "final", got.Text)
	require.Greater(t, got.UpdatedTS, m.UpdatedTS)

	_, err = UpdateMessage("bob", m.ID, &final)
	require.True(t, dmerr.IsForbidden(err))
}

func TestDeleteMessage(t *testing.T) {
	setup(t)

	th, err := CreateThread("alice", []string{"alice", "bob"})
	require.NoError(t, err)
	m, err := CreateMessage("alice", th.ID, "going away")
	require.NoError(t, err)

	require.True(t, dmerr.IsForbidden(DeleteMessage("bob", m.ID)))
	require.NoError(t, DeleteMessage("alice", m.ID))
	_, err = GetMessage("alice", m.ID)
	require.True(t, dmerr.IsNotFound(err))
}

func TestReadUntil(t *testing.T) {
	setup(t)

	th, err := CreateThread("alice", []string{"alice", "bob"})
	require.NoError(t, err)
	m1, err := CreateMessage("alice", th.ID, "one")
	require.NoError(t, err)
	m2, err := CreateMessage("alice", th.ID, "two")
	require.NoError(t, err)

	_, err = ReadUntil("bob", th.ID, 0)
	require.True(t, dmerr.IsValidation(err), "watermark below 1: %v", err)

	_, err = ReadUntil("carol", th.ID, int64(m1.ID))
	require.True(t, dmerr.IsForbidden(err))

	n, err := ReadUntil("bob", th.ID, int64(m1.ID))
	require.NoError(t, err)
	require.Equal(t, 1, n)

	got1, _ := store.GetMessage(m1.ID)
	got2, _ := store.GetMessage(m2.ID)
	require.True(t, got1.IsRead)
	require.False(t, got2.IsRead)

	// a watermark above the newest id is fine and catches everything left
	n, err = ReadUntil("bob", th.ID, int64(m2.ID)+50)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}
