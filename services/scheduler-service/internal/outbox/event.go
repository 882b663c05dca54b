package outbox

import "time"

// Event is a domain fact waiting to be written to the outbox table in the
// same transaction as the state change it describes.
type Event struct {
	EventID       string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// Record is a stored outbox row.
type Record struct {
	ID            int64
	EventID       string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
	Traceparent   string
	Tracestate    string
	Processed     bool
	CreatedAt     time.Time
}
