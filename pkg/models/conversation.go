package models

type Conversation struct {
	ID      string   `json:"id"`
	Members []string `json:"members"`
	// Created timestamp (ns)
	CreatedTS int64 `json:"created_ts,omitempty"`
	// Updated timestamp (ns) - last time a message arrived
	UpdatedTS int64 `json:"updated_ts,omitempty"`
}

// Message ordering inside a conversation is the strict total order
// (TS asc, ID asc); IDs are monotonic and never reused.
type Message struct {
	ID   string `json:"id"`
	Conv string `json:"conv"`
	// Author is an opaque identity id (clients manage meaning)
	Author string `json:"author,omitempty"`
	TS     int64  `json:"ts"`
	Body   string `json:"body,omitempty"`
	// Deleted flag; soft-delete keeps the entry as a tombstone
	Deleted bool `json:"deleted,omitempty"`
}
