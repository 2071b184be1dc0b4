package models

// Message is a single text message inside a thread. IDs are allocated from a
// monotonic counter, so id order matches creation order and the id doubles as
// the watermark for bulk read-state transitions.
type Message struct {
	ID     uint64 `json:"id"`
	Thread uint64 `json:"thread"`
	Sender string `json:"sender"`
	Text   string `json:"text"`
	// IsRead is only ever flipped false->true by the read-state engine.
	IsRead bool `json:"is_read"`
	// Created/Updated timestamps (ns)
	CreatedTS int64 `json:"created_ts"`
	UpdatedTS int64 `json:"updated_ts"`
}
