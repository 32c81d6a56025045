package audit

import "time"

// Event is one append-only audit record.
type Event struct {
	ID        int64       `json:"id"`
	Action    string      `json:"action"`
	Details   interface{} `json:"details"`
	CreatedAt time.Time   `json:"created_at"`
}
