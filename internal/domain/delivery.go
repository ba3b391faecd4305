package domain

import "time"

// DeliveryStatus is the lifecycle state of a single (event, destination) pair.
type DeliveryStatus string

const (
	DeliveryPending   DeliveryStatus = "PENDING"
	DeliveryRetrying  DeliveryStatus = "RETRYING"
	DeliveryDelivered DeliveryStatus = "DELIVERED"
	DeliveryDead      DeliveryStatus = "DEAD"
)

// Terminal reports whether no further attempt can move the delivery out of
// this status.
func (s DeliveryStatus) Terminal() bool {
	return s == DeliveryDelivered || s == DeliveryDead
}

// Delivery is one mutable row per (EventID, DestinationID). It is created
// once in PENDING and mutated in place through RETRYING to either terminal
// status — there is no append-only attempt log.
type Delivery struct {
	ID            string         `json:"id"`
	EventID       string         `json:"event_id"`
	DestinationID string         `json:"destination_id"`
	Status        DeliveryStatus `json:"status"`
	Attempts      int            `json:"attempts"`
	MaxAttempts   int            `json:"max_attempts"`
	LastError     string         `json:"last_error,omitempty"`
	LastAttemptAt *time.Time     `json:"last_attempt_at,omitempty"`
	DeliveredAt   *time.Time     `json:"delivered_at,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

// DeliveryJob is the wire message published to the broker. It is never
// persisted — the Delivery row is the durable record of progress.
//
// PayloadJSON is carried as a raw string, not a nested JSON value: the
// exact bytes the source sent must reach the destination unchanged, and
// round-tripping through a json.RawMessage field risks re-encoding (key
// order, whitespace) across decode/encode boundaries.
type DeliveryJob struct {
	DeliveryID         string `json:"deliveryId"`
	EventID            string `json:"eventId"`
	DestinationID      string `json:"destinationId"`
	TargetURL          string `json:"targetUrl"`
	PayloadJSON        string `json:"payloadJson"`
	Attempt            int    `json:"attempt"`
	RateLimitPerSecond int    `json:"rateLimitPerSecond"`
	FailureThreshold   int    `json:"failureThreshold"`
	CooldownSeconds    int    `json:"cooldownSeconds"`
}
