// Package ingest implements the inbound webhook pipeline: validate the
// source and its signature, persist the event exactly once, fan out a
// PENDING delivery row and broker message per matching destination.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/webhookhub/webhookhub/internal/broker"
	"github.com/webhookhub/webhookhub/internal/domain"
	"github.com/webhookhub/webhookhub/internal/signing"
)

// SourceStore is the capability the pipeline needs to look up the caller.
type SourceStore interface {
	GetSourceByName(ctx context.Context, name string) (*domain.Source, error)
}

// EventStore is the capability the pipeline needs to persist events
// idempotently.
type EventStore interface {
	InsertEventIfAbsent(ctx context.Context, event *domain.Event) (inserted bool, err error)
}

// DestinationStore is the capability the pipeline needs to resolve fan-out.
type DestinationStore interface {
	ListActiveDestinationsForEvent(ctx context.Context, sourceName, eventType string) ([]domain.Destination, error)
}

// DeliveryStore is the capability the pipeline needs to create delivery rows.
type DeliveryStore interface {
	InsertDelivery(ctx context.Context, id, eventID, destinationID string, maxAttempts int) (*domain.Delivery, error)
}

// Pipeline implements the ordered ingest validation and fan-out described
// by the inbound webhook contract: it never returns a delivery for a
// duplicate event, and it never creates a delivery for an inactive or
// unmatched destination.
type Pipeline struct {
	sources      SourceStore
	events       EventStore
	destinations DestinationStore
	deliveries   DeliveryStore
	publisher    broker.Publisher
	maxAttempts  int
	logger       *slog.Logger
}

func NewPipeline(sources SourceStore, events EventStore, destinations DestinationStore, deliveries DeliveryStore, publisher broker.Publisher, maxAttempts int, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		sources:      sources,
		events:       events,
		destinations: destinations,
		deliveries:   deliveries,
		publisher:    publisher,
		maxAttempts:  maxAttempts,
		logger:       logger,
	}
}

// Ingest runs the full validation and fan-out sequence for one inbound
// webhook request. A nil, nil return means the event was a duplicate — the
// caller should respond 202 with no deliveries, not an error.
func (p *Pipeline) Ingest(ctx context.Context, sourceName, eventType, signature string, rawBody []byte) ([]domain.Delivery, error) {
	if eventType == "" {
		return nil, &ValidationError{Reason: "event_type is required"}
	}

	source, err := p.sources.GetSourceByName(ctx, sourceName)
	if err != nil {
		return nil, err
	}
	if source == nil {
		return nil, &SourceNotFoundError{SourceName: sourceName}
	}
	if !source.Active {
		return nil, &SourceInactiveError{SourceName: sourceName}
	}

	if signature == "" {
		return nil, &MissingSignatureError{}
	}
	if !signing.Verify(source.HMACSecret, rawBody, signature) {
		return nil, &InvalidSignatureError{}
	}

	event := &domain.Event{
		ID:             uuid.NewString(),
		SourceName:     sourceName,
		EventType:      eventType,
		IdempotencyKey: idempotencyKey(sourceName, eventType, rawBody),
		PayloadJSON:    string(rawBody),
		ReceivedAt:     time.Now(),
	}

	inserted, err := p.events.InsertEventIfAbsent(ctx, event)
	if err != nil {
		return nil, err
	}
	if !inserted {
		p.logger.Info("duplicate event discarded", "source", sourceName, "event_type", eventType)
		return nil, nil
	}

	destinations, err := p.destinations.ListActiveDestinationsForEvent(ctx, sourceName, eventType)
	if err != nil {
		return nil, err
	}

	deliveries := make([]domain.Delivery, 0, len(destinations))
	for _, dest := range destinations {
		delivery, err := p.deliveries.InsertDelivery(ctx, uuid.NewString(), event.ID, dest.ID, p.maxAttempts)
		if err != nil {
			return nil, err
		}

		job := domain.DeliveryJob{
			DeliveryID:         delivery.ID,
			EventID:            event.ID,
			DestinationID:      dest.ID,
			TargetURL:          dest.TargetURL,
			PayloadJSON:        event.PayloadJSON,
			Attempt:            1,
			RateLimitPerSecond: dest.RateLimitPerSecond,
			FailureThreshold:   dest.FailureThreshold,
			CooldownSeconds:    dest.CooldownSeconds,
		}
		if err := p.publisher.PublishDelivery(ctx, job); err != nil {
			return nil, err
		}

		deliveries = append(deliveries, *delivery)
	}

	return deliveries, nil
}

// idempotencyKey hashes the fields that define event identity. Two requests
// from the same source with the same event type and exact body collide on
// purpose — that's the definition of a duplicate delivery attempt from the
// source's own retry logic.
func idempotencyKey(sourceName, eventType string, rawBody []byte) string {
	h := sha256.New()
	h.Write([]byte(sourceName))
	h.Write([]byte(eventType))
	h.Write(rawBody)
	return hex.EncodeToString(h.Sum(nil))
}
