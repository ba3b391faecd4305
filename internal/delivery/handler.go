package delivery

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/webhookhub/webhookhub/internal/broker"
	"github.com/webhookhub/webhookhub/internal/domain"
)

// Store is the capability the message handler needs from persistence.
type Store interface {
	GetDelivery(ctx context.Context, id string) (*domain.Delivery, error)
	UpdateStatus(ctx context.Context, id string, status domain.DeliveryStatus, attempts int, lastErr string, deliveredAt *time.Time) error
}

// Breaker is the capability the handler needs from a per-destination
// circuit breaker. Satisfied structurally by *engine.CircuitBreaker.
type Breaker interface {
	AllowRequest(ctx context.Context, destinationID string, cooldownPeriod time.Duration) (string, bool)
	RecordSuccess(ctx context.Context, destinationID string)
	RecordFailure(ctx context.Context, destinationID string, failureThreshold int)
}

// Feed receives delivery lifecycle events for the operator dashboard.
// Satisfied structurally by *wsfeed.Hub.
type Feed interface {
	BroadcastDelivery(eventType string, job domain.DeliveryJob, attempt int, statusCode int, errMsg string)
}

// Limiter is the capability the handler needs from a per-destination rate
// limiter. Satisfied structurally by *engine.RateLimiter.
type Limiter interface {
	Allow(ctx context.Context, destinationID string, limit int) bool
}

// MessageHandler implements broker.Handler: it decodes a DeliveryJob,
// attempts the HTTP delivery (unless the circuit breaker for the
// destination is open), durably records the resulting state transition,
// and — only once that write has succeeded — republishes for retry or to
// the dead-letter exchange as needed.
type MessageHandler struct {
	store     Store
	publisher broker.Publisher
	client    *Client
	breaker   Breaker
	limiter   Limiter
	feed      Feed
	baseDelay time.Duration
	maxDelay  time.Duration
	logger    *slog.Logger
}

func NewMessageHandler(store Store, publisher broker.Publisher, client *Client, breaker Breaker, limiter Limiter, feed Feed, baseDelay, maxDelay time.Duration, logger *slog.Logger) *MessageHandler {
	return &MessageHandler{
		store:     store,
		publisher: publisher,
		client:    client,
		breaker:   breaker,
		limiter:   limiter,
		feed:      feed,
		baseDelay: baseDelay,
		maxDelay:  maxDelay,
		logger:    logger,
	}
}

func (h *MessageHandler) Handle(ctx context.Context, body []byte) broker.Outcome {
	var job domain.DeliveryJob
	if err := json.Unmarshal(body, &job); err != nil {
		h.logger.Error("discarding undecodable delivery message", "error", err)
		return broker.Reject
	}

	del, err := h.store.GetDelivery(ctx, job.DeliveryID)
	if err != nil {
		h.logger.Error("failed to load delivery", "error", err, "delivery_id", job.DeliveryID)
		return broker.Reject
	}
	if del == nil {
		h.logger.Error("delivery row missing, discarding message", "delivery_id", job.DeliveryID)
		return broker.Reject
	}
	if del.Status.Terminal() {
		// Redelivery of an already-settled message (e.g. after a consumer
		// crash between the terminal status write and the ack). No re-attempt.
		return broker.Ack
	}

	attempt := job.Attempt

	result := h.attempt(ctx, job, attempt)

	switch {
	case result.Outcome == Success:
		now := time.Now()
		if err := h.store.UpdateStatus(ctx, job.DeliveryID, domain.DeliveryDelivered, attempt, "", &now); err != nil {
			h.logger.Error("failed to record delivered status", "error", err, "delivery_id", job.DeliveryID)
			return broker.Reject
		}
		h.logger.Info("delivery delivered", "event_id", job.EventID, "destination_id", job.DestinationID, "delivery_id", job.DeliveryID, "attempt", attempt)
		h.feedBroadcast("DELIVERED", job, attempt, result)
		return broker.Ack

	case result.Outcome == RetryableFailure && attempt < del.MaxAttempts:
		next := job
		next.Attempt = attempt + 1
		if err := h.store.UpdateStatus(ctx, job.DeliveryID, domain.DeliveryRetrying, next.Attempt, result.Detail, nil); err != nil {
			h.logger.Error("failed to record retrying status", "error", err, "delivery_id", job.DeliveryID)
			return broker.Reject
		}

		delayMs := Backoff(attempt, h.baseDelay, h.maxDelay).Milliseconds()
		if err := h.publisher.PublishRetry(ctx, next, delayMs); err != nil {
			h.logger.Error("failed to publish retry", "error", err, "delivery_id", job.DeliveryID)
			return broker.Reject
		}
		h.logger.Warn("delivery retrying", "event_id", job.EventID, "destination_id", job.DestinationID, "delivery_id", job.DeliveryID, "attempt", attempt, "delay_ms", delayMs, "error", result.Detail)
		h.feedBroadcast("RETRYING", job, attempt, result)
		return broker.Ack

	default: // NonRetryableFailure, or RetryableFailure with attempts exhausted
		if err := h.store.UpdateStatus(ctx, job.DeliveryID, domain.DeliveryDead, attempt, result.Detail, nil); err != nil {
			h.logger.Error("failed to record dead status", "error", err, "delivery_id", job.DeliveryID)
			return broker.Reject
		}
		if err := h.publisher.PublishDead(ctx, job); err != nil {
			h.logger.Error("failed to publish dead-letter", "error", err, "delivery_id", job.DeliveryID)
			return broker.Reject
		}
		h.logger.Error("delivery dead", "event_id", job.EventID, "destination_id", job.DestinationID, "delivery_id", job.DeliveryID, "attempt", attempt, "error", result.Detail)
		h.feedBroadcast("DEAD", job, attempt, result)
		return broker.Ack
	}
}

// attempt asks the circuit breaker whether this destination is eligible,
// and if so, performs the HTTP delivery. A skipped attempt (breaker open)
// costs an attempt like any other retryable failure — it keeps the
// attempts counter monotone without learning anything new about the
// destination.
func (h *MessageHandler) attempt(ctx context.Context, job domain.DeliveryJob, attempt int) Result {
	if h.breaker != nil {
		cooldown := time.Duration(job.CooldownSeconds) * time.Second
		if _, allowed := h.breaker.AllowRequest(ctx, job.DestinationID, cooldown); !allowed {
			return Result{Outcome: RetryableFailure, Detail: "circuit breaker open"}
		}
	}
	if h.limiter != nil && job.RateLimitPerSecond > 0 {
		if !h.limiter.Allow(ctx, job.DestinationID, job.RateLimitPerSecond) {
			return Result{Outcome: RetryableFailure, Detail: "rate limited"}
		}
	}

	result := h.client.Deliver(ctx, job.TargetURL, []byte(job.PayloadJSON), job.EventID, attempt)

	if h.breaker != nil {
		if result.Outcome == Success {
			h.breaker.RecordSuccess(ctx, job.DestinationID)
		} else {
			h.breaker.RecordFailure(ctx, job.DestinationID, job.FailureThreshold)
		}
	}

	return result
}

func (h *MessageHandler) feedBroadcast(eventType string, job domain.DeliveryJob, attempt int, result Result) {
	if h.feed == nil {
		return
	}
	h.feed.BroadcastDelivery(eventType, job, attempt, result.StatusCode, result.Detail)
}
