// Package perm holds the authorization checks run before any domain
// operation. The checks are pure reads: they load the referenced entity,
// decide, and hand the entity back so callers do not fetch twice.
package perm

import (
	"dialogd/pkg/dmerr"
	"dialogd/pkg/models"
	"dialogd/pkg/store"
)

// AuthorizeThreadAccess verifies that user currently participates in the
// thread. A missing thread surfaces as NotFound rather than Forbidden:
// thread ids carry no sensitive information here, and the two outcomes stay
// distinguishable for callers. Non-participants get Forbidden.
func AuthorizeThreadAccess(user string, threadID uint64) (models.Thread, error) {
	t, err := store.GetThread(threadID)
	if err != nil {
		return models.Thread{}, err
	}
	if !t.HasParticipant(user) {
		return models.Thread{}, dmerr.Forbiddenf("user %s is not a participant of thread %d", user, threadID)
	}
	return t, nil
}

// AuthorizeMessageAccess verifies that user is the sender of the message.
// Thread membership alone is not enough: retrieve, update and delete of a
// single message are sender-only operations.
func AuthorizeMessageAccess(user string, messageID uint64) (models.Message, error) {
	m, err := store.GetMessage(messageID)
	if err != nil {
		return models.Message{}, err
	}
	if m.Sender != user {
		return models.Message{}, dmerr.Forbiddenf("user %s is not the sender of message %d", user, messageID)
	}
	return m, nil
}
