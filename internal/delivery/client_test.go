package delivery

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestClient_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(2 * time.Second)
	res := c.Deliver(context.Background(), srv.URL, []byte(`{}`), "evt-1", 1)

	if res.Outcome != Success {
		t.Errorf("expected Success, got %v", res.Outcome)
	}
	if res.StatusCode != 200 {
		t.Errorf("expected 200, got %d", res.StatusCode)
	}
}

func TestClient_RetryableOn500(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(2 * time.Second)
	res := c.Deliver(context.Background(), srv.URL, []byte(`{}`), "evt-1", 1)

	if res.Outcome != RetryableFailure {
		t.Errorf("expected RetryableFailure, got %v", res.Outcome)
	}
}

func TestClient_RetryableOn429(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(2 * time.Second)
	res := c.Deliver(context.Background(), srv.URL, []byte(`{}`), "evt-1", 1)

	if res.Outcome != RetryableFailure {
		t.Errorf("expected RetryableFailure for 429, got %v", res.Outcome)
	}
}

func TestClient_NonRetryableOn400(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient(2 * time.Second)
	res := c.Deliver(context.Background(), srv.URL, []byte(`{}`), "evt-1", 1)

	if res.Outcome != NonRetryableFailure {
		t.Errorf("expected NonRetryableFailure for 400, got %v", res.Outcome)
	}
}

func TestClient_RetryableOnConnectionFailure(t *testing.T) {
	c := NewClient(200 * time.Millisecond)
	res := c.Deliver(context.Background(), "http://127.0.0.1:1", []byte(`{}`), "evt-1", 1)

	if res.Outcome != RetryableFailure {
		t.Errorf("expected RetryableFailure for connection error, got %v", res.Outcome)
	}
	if res.StatusCode != 0 {
		t.Errorf("expected StatusCode 0, got %d", res.StatusCode)
	}
}
