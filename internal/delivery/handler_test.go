package delivery

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/webhookhub/webhookhub/internal/broker"
	"github.com/webhookhub/webhookhub/internal/domain"
)

type fakeStore struct {
	mu         sync.Mutex
	deliveries map[string]*domain.Delivery
}

func newFakeStore(d *domain.Delivery) *fakeStore {
	return &fakeStore{deliveries: map[string]*domain.Delivery{d.ID: d}}
}

func (s *fakeStore) GetDelivery(ctx context.Context, id string) (*domain.Delivery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.deliveries[id]
	if !ok {
		return nil, nil
	}
	cp := *d
	return &cp, nil
}

func (s *fakeStore) UpdateStatus(ctx context.Context, id string, status domain.DeliveryStatus, attempts int, lastErr string, deliveredAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.deliveries[id]
	if !ok || d.Status.Terminal() {
		return nil
	}
	d.Status = status
	d.Attempts = attempts
	d.LastError = lastErr
	d.DeliveredAt = deliveredAt
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestMessageHandler_SuccessMarksDelivered(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	del := &domain.Delivery{ID: "d1", EventID: "e1", DestinationID: "dest1", Status: domain.DeliveryPending, MaxAttempts: 3}
	store := newFakeStore(del)
	pub := broker.NewFakePublisher()
	h := NewMessageHandler(store, pub, NewClient(2*time.Second), nil, nil, nil, 100*time.Millisecond, time.Minute, testLogger())

	job := domain.DeliveryJob{DeliveryID: "d1", EventID: "e1", DestinationID: "dest1", TargetURL: srv.URL, PayloadJSON: `{"a":1}`, Attempt: 1}
	body, _ := json.Marshal(job)

	outcome := h.Handle(context.Background(), body)

	if outcome != broker.Ack {
		t.Fatalf("expected Ack, got %v", outcome)
	}
	got, _ := store.GetDelivery(context.Background(), "d1")
	if got.Status != domain.DeliveryDelivered {
		t.Errorf("expected DELIVERED, got %v", got.Status)
	}
	if len(pub.Retry) != 0 || len(pub.Dead) != 0 {
		t.Error("expected no retry or dead-letter publish on success")
	}
}

func TestMessageHandler_RetryableSchedulesRetry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	del := &domain.Delivery{ID: "d1", EventID: "e1", DestinationID: "dest1", Status: domain.DeliveryPending, MaxAttempts: 3}
	store := newFakeStore(del)
	pub := broker.NewFakePublisher()
	h := NewMessageHandler(store, pub, NewClient(2*time.Second), nil, nil, nil, 100*time.Millisecond, time.Minute, testLogger())

	job := domain.DeliveryJob{DeliveryID: "d1", EventID: "e1", DestinationID: "dest1", TargetURL: srv.URL, PayloadJSON: `{"a":1}`, Attempt: 1}
	body, _ := json.Marshal(job)

	outcome := h.Handle(context.Background(), body)

	if outcome != broker.Ack {
		t.Fatalf("expected Ack, got %v", outcome)
	}
	got, _ := store.GetDelivery(context.Background(), "d1")
	if got.Status != domain.DeliveryRetrying {
		t.Errorf("expected RETRYING, got %v", got.Status)
	}
	if got.Attempts != 2 {
		t.Errorf("expected stored attempts to carry the next attempt count 2, got %d", got.Attempts)
	}
	if len(pub.Retry) != 1 {
		t.Fatalf("expected 1 retry publish, got %d", len(pub.Retry))
	}
	if pub.Retry[0].Job.Attempt != 2 {
		t.Errorf("expected next attempt 2, got %d", pub.Retry[0].Job.Attempt)
	}
}

func TestMessageHandler_ExhaustedAttemptsGoesDead(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	del := &domain.Delivery{ID: "d1", EventID: "e1", DestinationID: "dest1", Status: domain.DeliveryRetrying, MaxAttempts: 3}
	store := newFakeStore(del)
	pub := broker.NewFakePublisher()
	h := NewMessageHandler(store, pub, NewClient(2*time.Second), nil, nil, nil, 100*time.Millisecond, time.Minute, testLogger())

	job := domain.DeliveryJob{DeliveryID: "d1", EventID: "e1", DestinationID: "dest1", TargetURL: srv.URL, PayloadJSON: `{"a":1}`, Attempt: 3}
	body, _ := json.Marshal(job)

	outcome := h.Handle(context.Background(), body)

	if outcome != broker.Ack {
		t.Fatalf("expected Ack, got %v", outcome)
	}
	got, _ := store.GetDelivery(context.Background(), "d1")
	if got.Status != domain.DeliveryDead {
		t.Errorf("expected DEAD, got %v", got.Status)
	}
	if len(pub.Dead) != 1 {
		t.Errorf("expected 1 dead-letter publish, got %d", len(pub.Dead))
	}
}

func TestMessageHandler_NonRetryableGoesDeadImmediately(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	del := &domain.Delivery{ID: "d1", EventID: "e1", DestinationID: "dest1", Status: domain.DeliveryPending, MaxAttempts: 5}
	store := newFakeStore(del)
	pub := broker.NewFakePublisher()
	h := NewMessageHandler(store, pub, NewClient(2*time.Second), nil, nil, nil, 100*time.Millisecond, time.Minute, testLogger())

	job := domain.DeliveryJob{DeliveryID: "d1", EventID: "e1", DestinationID: "dest1", TargetURL: srv.URL, PayloadJSON: `{"a":1}`, Attempt: 1}
	body, _ := json.Marshal(job)

	h.Handle(context.Background(), body)

	got, _ := store.GetDelivery(context.Background(), "d1")
	if got.Status != domain.DeliveryDead {
		t.Errorf("expected DEAD for non-retryable failure even on attempt 1, got %v", got.Status)
	}
}

func TestMessageHandler_UndecodableMessageIsRejected(t *testing.T) {
	store := newFakeStore(&domain.Delivery{ID: "d1", MaxAttempts: 3})
	pub := broker.NewFakePublisher()
	h := NewMessageHandler(store, pub, NewClient(time.Second), nil, nil, nil, time.Millisecond, time.Second, testLogger())

	outcome := h.Handle(context.Background(), []byte("not json"))

	if outcome != broker.Reject {
		t.Errorf("expected Reject for undecodable message, got %v", outcome)
	}
}

type denyingLimiter struct{}

func (denyingLimiter) Allow(ctx context.Context, destinationID string, limit int) bool { return false }

func TestMessageHandler_RateLimitedSchedulesRetryWithoutCallingEndpoint(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	del := &domain.Delivery{ID: "d1", EventID: "e1", DestinationID: "dest1", Status: domain.DeliveryPending, MaxAttempts: 3}
	store := newFakeStore(del)
	pub := broker.NewFakePublisher()
	h := NewMessageHandler(store, pub, NewClient(2*time.Second), nil, denyingLimiter{}, nil, 100*time.Millisecond, time.Minute, testLogger())

	job := domain.DeliveryJob{DeliveryID: "d1", EventID: "e1", DestinationID: "dest1", TargetURL: srv.URL, PayloadJSON: `{}`, Attempt: 1, RateLimitPerSecond: 10}
	body, _ := json.Marshal(job)

	outcome := h.Handle(context.Background(), body)

	if outcome != broker.Ack {
		t.Fatalf("expected Ack, got %v", outcome)
	}
	if called {
		t.Error("expected the endpoint not to be called when rate limited")
	}
	if len(pub.Retry) != 1 {
		t.Fatalf("expected 1 retry publish, got %d", len(pub.Retry))
	}
}

func TestMessageHandler_TerminalDeliveryIsAckedWithoutReattempt(t *testing.T) {
	del := &domain.Delivery{ID: "d1", Status: domain.DeliveryDelivered, MaxAttempts: 3}
	store := newFakeStore(del)
	pub := broker.NewFakePublisher()
	h := NewMessageHandler(store, pub, NewClient(time.Second), nil, nil, nil, time.Millisecond, time.Second, testLogger())

	job := domain.DeliveryJob{DeliveryID: "d1", TargetURL: "http://example.invalid", Attempt: 2}
	body, _ := json.Marshal(job)

	outcome := h.Handle(context.Background(), body)

	if outcome != broker.Ack {
		t.Errorf("expected Ack for already-terminal delivery, got %v", outcome)
	}
	if len(pub.Retry) != 0 || len(pub.Dead) != 0 {
		t.Error("expected no publish for an already-terminal delivery")
	}
}
