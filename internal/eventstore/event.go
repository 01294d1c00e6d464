package eventstore

import "time"

// Event is one stored pipeline event.
type Event struct {
	ID         int64
	RunID      string
	Type       string
	RecordedAt time.Time
	// Payload is the JSON-encoded event record.
	Payload  []byte
	Metadata map[string]string
}
