package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Circuit breaker states
const (
	StateClosed   = "closed"
	StateOpen     = "open"
	StateHalfOpen = "half-open"
)

// CircuitBreaker implements a per-destination circuit breaker using Redis.
// State transitions: closed → open → half-open → closed
//
// - Closed: Normal operation. Failures are counted.
// - Open: All deliveries are rejected. Transitions to half-open after cooldown.
// - Half-Open: Deliveries pass; probes are not limited to one. Success → closed, failure → open.
//
// The failure threshold and cooldown period are per-destination: callers
// pass a destination's configured override (0 meaning "use this breaker's
// default") on each call, since a noisy low-value destination and a
// business-critical one shouldn't trip at the same rate.
type CircuitBreaker struct {
	redisClient             *redis.Client
	logger                  *slog.Logger
	defaultFailureThreshold int
	defaultCooldownPeriod   time.Duration
}

// CircuitBreakerState represents the current state of a destination's circuit.
type CircuitBreakerState struct {
	State        string `json:"state"`
	Failures     int    `json:"failures"`
	LastFailedAt string `json:"last_failed_at,omitempty"`
}

func NewCircuitBreaker(redisClient *redis.Client, logger *slog.Logger) *CircuitBreaker {
	return &CircuitBreaker{
		redisClient:             redisClient,
		logger:                  logger,
		defaultFailureThreshold: 5,
		defaultCooldownPeriod:   30 * time.Second,
	}
}

func cbKey(destinationID string) string {
	return fmt.Sprintf("cb:%s", destinationID)
}

func (cb *CircuitBreaker) resolveCooldown(cooldownPeriod time.Duration) time.Duration {
	if cooldownPeriod <= 0 {
		return cb.defaultCooldownPeriod
	}
	return cooldownPeriod
}

func (cb *CircuitBreaker) resolveThreshold(failureThreshold int) int {
	if failureThreshold <= 0 {
		return cb.defaultFailureThreshold
	}
	return failureThreshold
}

// AllowRequest checks if a delivery to this destination is allowed.
// cooldownPeriod overrides how long an open circuit waits before trying a
// half-open probe; pass 0 to use this breaker's default. Returns the
// current state and whether the request should proceed.
func (cb *CircuitBreaker) AllowRequest(ctx context.Context, destinationID string, cooldownPeriod time.Duration) (string, bool) {
	key := cbKey(destinationID)
	cooldownPeriod = cb.resolveCooldown(cooldownPeriod)

	data, err := cb.redisClient.HGetAll(ctx, key).Result()
	if err != nil || len(data) == 0 {
		// No state yet — circuit is closed (default)
		return StateClosed, true
	}

	state := data["state"]
	failures, _ := strconv.Atoi(data["failures"])
	lastFailedAt, _ := strconv.ParseInt(data["last_failed_at"], 10, 64)

	switch state {
	case StateOpen:
		// Check if cooldown period has elapsed
		if time.Now().Unix()-lastFailedAt >= int64(cooldownPeriod.Seconds()) {
			// Transition to half-open: allow one test request
			cb.redisClient.HSet(ctx, key, "state", StateHalfOpen)
			cb.logger.Info("circuit breaker half-open",
				"destination_id", destinationID,
			)
			return StateHalfOpen, true
		}
		return StateOpen, false

	case StateHalfOpen:
		// Every request passes while half-open; the next recorded outcome
		// closes or re-opens the circuit.
		return StateHalfOpen, true

	default: // StateClosed
		_ = failures
		return StateClosed, true
	}
}

// RecordSuccess records a successful delivery. Resets the circuit to closed.
func (cb *CircuitBreaker) RecordSuccess(ctx context.Context, destinationID string) {
	key := cbKey(destinationID)

	state, _ := cb.redisClient.HGet(ctx, key, "state").Result()

	cb.redisClient.HSet(ctx, key,
		"state", StateClosed,
		"failures", 0,
	)

	if state == StateHalfOpen {
		cb.logger.Info("circuit breaker closed (recovered)",
			"destination_id", destinationID,
		)
	}
}

// RecordFailure records a failed delivery. Opens the circuit once
// failureThreshold is reached; pass 0 to use this breaker's default.
func (cb *CircuitBreaker) RecordFailure(ctx context.Context, destinationID string, failureThreshold int) {
	key := cbKey(destinationID)
	failureThreshold = cb.resolveThreshold(failureThreshold)

	// Increment failure count atomically
	failures, err := cb.redisClient.HIncrBy(ctx, key, "failures", 1).Result()
	if err != nil {
		cb.logger.Error("failed to record circuit breaker failure", "error", err)
		return
	}

	cb.redisClient.HSet(ctx, key, "last_failed_at", time.Now().Unix())

	state, _ := cb.redisClient.HGet(ctx, key, "state").Result()

	if state == StateHalfOpen {
		// Half-open test failed → back to open
		cb.redisClient.HSet(ctx, key, "state", StateOpen)
		cb.logger.Warn("circuit breaker re-opened (half-open test failed)",
			"destination_id", destinationID,
		)
	} else if failures >= int64(failureThreshold) {
		// Threshold reached → open the circuit
		cb.redisClient.HSet(ctx, key, "state", StateOpen)
		cb.logger.Warn("circuit breaker opened",
			"destination_id", destinationID,
			"failures", failures,
			"threshold", failureThreshold,
		)
	} else {
		// Ensure state is set to closed if not already set
		if state == "" {
			cb.redisClient.HSet(ctx, key, "state", StateClosed)
		}
	}
}

// GetState returns the current circuit breaker state for a destination.
// cooldownPeriod overrides the half-open transition check the same way it
// does in AllowRequest; pass 0 to use this breaker's default.
func (cb *CircuitBreaker) GetState(ctx context.Context, destinationID string, cooldownPeriod time.Duration) CircuitBreakerState {
	key := cbKey(destinationID)
	cooldownPeriod = cb.resolveCooldown(cooldownPeriod)

	data, err := cb.redisClient.HGetAll(ctx, key).Result()
	if err != nil || len(data) == 0 {
		return CircuitBreakerState{State: StateClosed, Failures: 0}
	}

	failures, _ := strconv.Atoi(data["failures"])
	state := data["state"]
	if state == "" {
		state = StateClosed
	}

	// Check if open circuit should transition to half-open
	if state == StateOpen {
		lastFailedAt, _ := strconv.ParseInt(data["last_failed_at"], 10, 64)
		if time.Now().Unix()-lastFailedAt >= int64(cooldownPeriod.Seconds()) {
			state = StateHalfOpen
		}
	}

	result := CircuitBreakerState{
		State:    state,
		Failures: failures,
	}

	if ts, ok := data["last_failed_at"]; ok && ts != "" {
		lastFailed, _ := strconv.ParseInt(ts, 10, 64)
		if lastFailed > 0 {
			result.LastFailedAt = time.Unix(lastFailed, 0).Format(time.RFC3339)
		}
	}

	return result
}
