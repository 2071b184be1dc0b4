package store

import (
	"testing"
)

func openTestStore(t *testing.T) {
	t.Helper()
	if err := Open(t.TempDir()); err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = Close() })
}

func TestCreateThreadForPairIsIdempotent(t *testing.T) {
	openTestStore(t)

	t1, created, err := CreateThreadForPair("alice", "bob")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !created {
		t.Fatalf("expected a new thread")
	}
	if len(t1.Participants) != 2 {
		t.Fatalf("expected 2 participants, got %v", t1.Participants)
	}

	// same pair in reverse order resolves to the same thread
	t2, created, err := CreateThreadForPair("bob", "alice")
	if err != nil {
		t.Fatalf("create again: %v", err)
	}
	if created {
		t.Fatalf("expected the existing thread, got a new one")
	}
	if t2.ID != t1.ID {
		t.Fatalf("expected thread %d, got %d", t1.ID, t2.ID)
	}
}

func TestPutThreadStripsComputedFields(t *testing.T) {
	openTestStore(t)

	th, _, err := CreateThreadForPair("alice", "bob")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	th.NumUnread = 7
	th.LastMessage = "should not persist"
	if err := PutThread(th); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := GetThread(th.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.NumUnread != 0 || got.LastMessage != "" {
		t.Fatalf("computed fields leaked into storage: %+v", got)
	}
}

func TestListThreadsForFiltersAndOrders(t *testing.T) {
	openTestStore(t)

	a, _, _ := CreateThreadForPair("alice", "bob")
	b, _, _ := CreateThreadForPair("alice", "carol")
	if _, _, err := CreateThreadForPair("dave", "erin"); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := ListThreadsFor("alice")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 threads for alice, got %d", len(got))
	}
	// newest first
	if got[0].ID != b.ID || got[1].ID != a.ID {
		t.Fatalf("wrong order: %d, %d", got[0].ID, got[1].ID)
	}
}

func TestAppendAndListMessages(t *testing.T) {
	openTestStore(t)

	th, _, _ := CreateThreadForPair("alice", "bob")
	m1, err := AppendMessage(th.ID, "alice", "first")
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	m2, _ := AppendMessage(th.ID, "bob", "second")
	m3, _ := AppendMessage(th.ID, "alice", "third")

	if !(m1.ID < m2.ID && m2.ID < m3.ID) {
		t.Fatalf("message ids not monotonic: %d %d %d", m1.ID, m2.ID, m3.ID)
	}

	msgs, err := ListMessages(th.ID, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	if msgs[0].Text != "third" || msgs[2].Text != "first" {
		t.Fatalf("expected newest first, got %q .. %q", msgs[0].Text, msgs[2].Text)
	}

	// a limit keeps the most recent messages
	msgs, err = ListMessages(th.ID, 2)
	if err != nil {
		t.Fatalf("list limited: %v", err)
	}
	if len(msgs) != 2 || msgs[0].Text != "third" || msgs[1].Text != "second" {
		t.Fatalf("unexpected limited result: %+v", msgs)
	}

	if m, err := GetMessage(m2.ID); err != nil || m.Text != "second" {
		t.Fatalf("get by id: %v %+v", err, m)
	}
}

func TestMarkReadRespectsWatermarkAndSender(t *testing.T) {
	openTestStore(t)

	th, _, _ := CreateThreadForPair("alice", "bob")
	b1, _ := AppendMessage(th.ID, "bob", "one")
	a1, _ := AppendMessage(th.ID, "alice", "mine")
	b2, _ := AppendMessage(th.ID, "bob", "two")
	b3, _ := AppendMessage(th.ID, "bob", "three")

	n, err := MarkRead(th.ID, "alice", b2.ID)
	if err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 flipped, got %d", n)
	}

	for _, tc := range []struct {
		id   uint64
		want bool
	}{
		{b1.ID, true}, {b2.ID, true}, {b3.ID, false}, {a1.ID, false},
	} {
		m, err := GetMessage(tc.id)
		if err != nil {
			t.Fatalf("get %d: %v", tc.id, err)
		}
		if m.IsRead != tc.want {
			t.Fatalf("message %d: is_read=%v, want %v", tc.id, m.IsRead, tc.want)
		}
	}

	// idempotent: re-running flips nothing
	n, err = MarkRead(th.ID, "alice", b2.ID)
	if err != nil {
		t.Fatalf("mark read again: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected 0 on re-run, got %d", n)
	}

	// watermark 0 means everything not sent by alice
	n, err = MarkRead(th.ID, "alice", 0)
	if err != nil {
		t.Fatalf("mark all read: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 remaining flip, got %d", n)
	}
}

func TestUnreadCountAndLastMessage(t *testing.T) {
	openTestStore(t)

	th, _, _ := CreateThreadForPair("alice", "bob")
	if _, ok, err := LastMessageText(th.ID); err != nil || ok {
		t.Fatalf("expected no last message, ok=%v err=%v", ok, err)
	}

	_, _ = AppendMessage(th.ID, "bob", "hi")
	_, _ = AppendMessage(th.ID, "bob", "there")
	n, err := UnreadCount(th.ID)
	if err != nil || n != 2 {
		t.Fatalf("unread count: %d %v", n, err)
	}
	text, ok, err := LastMessageText(th.ID)
	if err != nil || !ok || text != "there" {
		t.Fatalf("last message: %q %v %v", text, ok, err)
	}
}

func TestDeleteMessageRemovesIndex(t *testing.T) {
	openTestStore(t)

	th, _, _ := CreateThreadForPair("alice", "bob")
	m, _ := AppendMessage(th.ID, "alice", "hello")
	if err := DeleteMessage(m); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := GetMessage(m.ID); err == nil {
		t.Fatalf("expected not found after delete")
	}
	n, _ := CountMessages()
	if n != 0 {
		t.Fatalf("expected 0 messages, got %d", n)
	}
}

func TestDeleteThreadCascade(t *testing.T) {
	openTestStore(t)

	th, _, _ := CreateThreadForPair("alice", "bob")
	m1, _ := AppendMessage(th.ID, "alice", "hello")
	_, _ = AppendMessage(th.ID, "bob", "hi")

	if err := DeleteThreadCascade(th); err != nil {
		t.Fatalf("cascade: %v", err)
	}
	if _, err := GetThread(th.ID); err == nil {
		t.Fatalf("thread should be gone")
	}
	if _, err := GetMessage(m1.ID); err == nil {
		t.Fatalf("messages should be gone")
	}
	if n, _ := CountThreads(); n != 0 {
		t.Fatalf("expected 0 threads, got %d", n)
	}
	if n, _ := CountMessages(); n != 0 {
		t.Fatalf("expected 0 messages, got %d", n)
	}

	// the pair is free to form a fresh thread with a new id
	t2, created, err := CreateThreadForPair("alice", "bob")
	if err != nil || !created {
		t.Fatalf("recreate: created=%v err=%v", created, err)
	}
	if t2.ID == th.ID {
		t.Fatalf("expected a fresh thread id")
	}
}

func TestCountersRecoverAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	if err := Open(dir); err != nil {
		t.Fatalf("open: %v", err)
	}
	th, _, _ := CreateThreadForPair("alice", "bob")
	m, _ := AppendMessage(th.ID, "alice", "hello")
	if err := Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if err := Open(dir); err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = Close() }()
	t2, _, _ := CreateThreadForPair("alice", "carol")
	if t2.ID <= th.ID {
		t.Fatalf("thread counter regressed: %d after %d", t2.ID, th.ID)
	}
	m2, _ := AppendMessage(t2.ID, "alice", "hey")
	if m2.ID <= m.ID {
		t.Fatalf("message counter regressed: %d after %d", m2.ID, m.ID)
	}
}

func TestSweepOrphans(t *testing.T) {
	openTestStore(t)

	th, _, _ := CreateThreadForPair("alice", "bob")
	keep, _, _ := CreateThreadForPair("alice", "carol")
	_, _ = AppendMessage(th.ID, "alice", "soon orphaned")
	keptMsg, _ := AppendMessage(keep.ID, "carol", "kept")

	// simulate interrupted surgery: drop the thread meta row only
	if err := db.Delete(threadMetaKey(th.ID), nil); err != nil {
		t.Fatalf("delete meta: %v", err)
	}

	// dry run reports but removes nothing
	n, err := SweepOrphans(true)
	if err != nil {
		t.Fatalf("dry sweep: %v", err)
	}
	if n != 2 { // one msgidx entry + one pair entry
		t.Fatalf("dry sweep expected 2, got %d", n)
	}
	if c, _ := CountMessages(); c != 2 {
		t.Fatalf("dry run must not delete, have %d messages", c)
	}

	n, err = SweepOrphans(false)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 2 {
		t.Fatalf("sweep expected 2, got %d", n)
	}
	if c, _ := CountMessages(); c != 1 {
		t.Fatalf("expected 1 surviving message, got %d", c)
	}
	if _, err := GetMessage(keptMsg.ID); err != nil {
		t.Fatalf("kept message must survive: %v", err)
	}

	// second sweep finds nothing
	if n, _ = SweepOrphans(false); n != 0 {
		t.Fatalf("expected clean store, sweep found %d", n)
	}
}
