package outbox

import "time"

const (
	StatusPending   = "pending"
	StatusPublished = "published"
	// StatusFailed parks a row the relay can never deliver.
	StatusFailed = "failed"
)

// Message is an outbox row persisted alongside the state change it
// describes. The relay reads pending rows and publishes them to the bus.
type Message struct {
	OutboxID     string
	EventType    string
	PartitionKey string
	Payload      []byte
	CreatedAt    time.Time
}
