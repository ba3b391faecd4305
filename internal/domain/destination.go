package domain

import "time"

// Destination is an outbound webhook target. Like Source, it is read-only
// to the core — provisioned by cmd/seed or direct SQL.
//
// FailureThreshold and CooldownSeconds override the circuit breaker's
// defaults for this destination; zero means "use the breaker's default"
// (5 failures, 30s cooldown) rather than zero failures or no cooldown.
type Destination struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	TargetURL          string    `json:"target_url"`
	Active             bool      `json:"active"`
	RateLimitPerSecond int       `json:"rate_limit_per_second"`
	FailureThreshold   int       `json:"failure_threshold"`
	CooldownSeconds    int       `json:"cooldown_seconds"`
	CreatedAt          time.Time `json:"created_at"`
}

// DestinationRule routes events from a source name + event type to a
// destination. A destination may carry several rules.
type DestinationRule struct {
	ID            string `json:"id"`
	DestinationID string `json:"destination_id"`
	SourceName    string `json:"source_name"`
	EventType     string `json:"event_type"`
}
