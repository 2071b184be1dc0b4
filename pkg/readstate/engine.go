// Package readstate applies bulk read-state transitions to a thread's
// messages. Both transitions only ever flip is_read false->true, skip the
// acting user's own messages, and are idempotent: re-running never changes
// already-read messages or touches the complement set.
package readstate

import (
	"dialogd/pkg/dmerr"
	"dialogd/pkg/store"
	"dialogd/pkg/telemetry"
)

// ReadAll marks every unread interlocutor message in the thread as read.
// Used as the pre-step to message creation: composing a reply acknowledges
// the counterpart's whole unread backlog.
func ReadAll(user string, threadID uint64) (int, error) {
	n, err := store.MarkRead(threadID, user, 0)
	if err != nil {
		return 0, err
	}
	telemetry.MessagesMarkedRead.Add(float64(n))
	return n, nil
}

// ReadUntil marks unread interlocutor messages with id <= watermark as
// read. Messages above the watermark are left untouched. A watermark below
// 1 is rejected before any storage access.
func ReadUntil(user string, threadID uint64, watermark int64) (int, error) {
	if watermark < 1 {
		return 0, dmerr.Validationf("invalid message id %d", watermark)
	}
	n, err := store.MarkRead(threadID, user, uint64(watermark))
	if err != nil {
		return 0, err
	}
	telemetry.MessagesMarkedRead.Add(float64(n))
	return n, nil
}
