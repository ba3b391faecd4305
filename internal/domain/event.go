package domain

import "time"

// Event is a single ingested occurrence from a source, persisted exactly
// once per (SourceName, IdempotencyKey).
type Event struct {
	ID             string    `json:"id"`
	SourceName     string    `json:"source_name"`
	EventType      string    `json:"event_type"`
	IdempotencyKey string    `json:"idempotency_key"`
	PayloadJSON    string    `json:"payload_json"`
	ReceivedAt     time.Time `json:"received_at"`
}
