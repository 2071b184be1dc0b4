// Package dialog is the thread/message domain service. It composes the
// permission guard, the read-state engine and the store into the
// user-facing operations; every entry point takes the resolved acting user
// as its first argument.
package dialog

import (
	"strings"
	"time"

	"dialogd/pkg/dmerr"
	"dialogd/pkg/logger"
	"dialogd/pkg/models"
	"dialogd/pkg/perm"
	"dialogd/pkg/readstate"
	"dialogd/pkg/store"

	"github.com/samber/lo"
)

// ListThreads returns the threads user participates in, newest first, each
// enriched with its unread count and the text of its latest message.
func ListThreads(user string) ([]models.Thread, error) {
	threads, err := store.ListThreadsFor(user)
	if err != nil {
		return nil, err
	}
	for i := range threads {
		n, err := store.UnreadCount(threads[i].ID)
		if err != nil {
			return nil, err
		}
		threads[i].NumUnread = n
		last, ok, err := store.LastMessageText(threads[i].ID)
		if err != nil {
			return nil, err
		}
		if !ok {
			last = "No messages yet"
		}
		threads[i].LastMessage = last
	}
	return threads, nil
}

// CreateThread returns the thread for the given participant pair, creating
// it when none exists. Callers cannot distinguish found from created; the
// pair matches by set equality, not argument order.
func CreateThread(user string, participants []string) (models.Thread, error) {
	if len(participants) == 0 {
		return models.Thread{}, dmerr.Validationf("participants required")
	}
	if lo.SomeBy(participants, func(p string) bool { return strings.TrimSpace(p) == "" }) {
		return models.Thread{}, dmerr.Validationf("participants required")
	}
	uniq := lo.Uniq(participants)
	if len(uniq) == 1 || len(participants) > 2 {
		return models.Thread{}, dmerr.Validationf("thread must contain 2 different participants")
	}
	if !lo.Contains(participants, user) {
		return models.Thread{}, dmerr.Validationf("cannot create thread without self as participant")
	}
	t, created, err := store.CreateThreadForPair(uniq[0], uniq[1])
	if err != nil {
		return models.Thread{}, err
	}
	if !created {
		logger.Debug("thread_reused", "thread", t.ID, "user", user)
	}
	return t, nil
}

// GetThread returns a thread the user participates in.
func GetThread(user string, threadID uint64) (models.Thread, error) {
	return perm.AuthorizeThreadAccess(user, threadID)
}

// DeleteThread removes the acting user from the thread. A thread already
// down to at most one participant is destroyed entirely, messages included;
// otherwise the user is detached (soft leave) and the thread survives with
// the remaining participant and all messages. The pair index entry is
// dropped in both cases so the same pair can form a fresh thread later.
func DeleteThread(user string, threadID uint64) error {
	t, err := perm.AuthorizeThreadAccess(user, threadID)
	if err != nil {
		return err
	}
	if len(t.Participants) <= 1 {
		return store.DeleteThreadCascade(t)
	}
	if err := store.DropPair(t.Participants[0], t.Participants[1]); err != nil {
		return err
	}
	t.Participants = lo.Without(t.Participants, user)
	t.UpdatedTS = nowNanos()
	if err := store.PutThread(t); err != nil {
		return err
	}
	logger.Info("thread_left", "thread", t.ID, "user", user)
	return nil
}

// ListMessages returns a thread's messages, newest first. Listing never
// mutates read-state; only posting a reply or an explicit read-until does.
func ListMessages(user string, threadID uint64, limit int) ([]models.Message, error) {
	if _, err := perm.AuthorizeThreadAccess(user, threadID); err != nil {
		return nil, err
	}
	return store.ListMessages(threadID, limit)
}

// CreateMessage posts a new message to a thread the user participates in.
// Before the insert the interlocutor's whole unread backlog is marked read:
// composing a reply is deemed to acknowledge everything received so far.
func CreateMessage(user string, threadID uint64, text string) (models.Message, error) {
	if _, err := perm.AuthorizeThreadAccess(user, threadID); err != nil {
		return models.Message{}, err
	}
	if _, err := readstate.ReadAll(user, threadID); err != nil {
		return models.Message{}, err
	}
	if text == "" {
		return models.Message{}, dmerr.Validationf("text required")
	}
	return store.AppendMessage(threadID, user, text)
}

// GetMessage returns a message; sender-only.
func GetMessage(user string, messageID uint64) (models.Message, error) {
	return perm.AuthorizeMessageAccess(user, messageID)
}

// UpdateMessage mutates a message's text; sender-only, partial semantics: a
// nil text leaves the message unchanged. is_read is never settable here.
func UpdateMessage(user string, messageID uint64, text *string) (models.Message, error) {
	m, err := perm.AuthorizeMessageAccess(user, messageID)
	if err != nil {
		return models.Message{}, err
	}
	if text == nil {
		return m, nil
	}
	if *text == "" {
		return models.Message{}, dmerr.Validationf("text required")
	}
	m.Text = *text
	m.UpdatedTS = nowNanos()
	if err := store.PutMessage(m); err != nil {
		return models.Message{}, err
	}
	return m, nil
}

// DeleteMessage removes a message permanently; sender-only.
func DeleteMessage(user string, messageID uint64) error {
	m, err := perm.AuthorizeMessageAccess(user, messageID)
	if err != nil {
		return err
	}
	return store.DeleteMessage(m)
}

// ReadUntil marks the interlocutor's unread messages with id <= messageID
// as read in the given thread.
func ReadUntil(user string, threadID uint64, messageID int64) (int, error) {
	if _, err := perm.AuthorizeThreadAccess(user, threadID); err != nil {
		return 0, err
	}
	return readstate.ReadUntil(user, threadID, messageID)
}

func nowNanos() int64 { return time.Now().UTC().UnixNano() }
