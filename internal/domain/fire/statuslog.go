package fire

import "time"

// StatusLogEntry records a change of the latch.
type StatusLogEntry struct {
	ID        uint64    `json:"id"`
	Status    Status    `json:"status"`
	Source    Source    `json:"source"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
