package models

// Thread is a two-party conversation container. It is created with exactly
// two distinct participants and may shrink to one when a participant leaves.
type Thread struct {
	ID uint64 `json:"id"`
	// Participants holds opaque user ids (clients manage meaning).
	Participants []string `json:"participants"`
	// Created timestamp (ns)
	CreatedTS int64 `json:"created_ts"`
	// Updated timestamp (ns) - last time membership changed
	UpdatedTS int64 `json:"updated_ts"`

	// NumUnread and LastMessage are computed for list responses and are
	// never written back to storage.
	NumUnread   int    `json:"num_unread,omitempty"`
	LastMessage string `json:"last_message,omitempty"`
}

// HasParticipant reports whether user is currently a member of the thread.
func (t Thread) HasParticipant(user string) bool {
	for _, p := range t.Participants {
		if p == user {
			return true
		}
	}
	return false
}
