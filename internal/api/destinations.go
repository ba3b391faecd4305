package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/webhookhub/webhookhub/internal/engine"
	"github.com/webhookhub/webhookhub/internal/store"
)

// DestinationHandler exposes read-only destination listing and circuit
// breaker health. Destinations and their rules are provisioned out of band
// (cmd/seed or direct SQL), never through this API.
type DestinationHandler struct {
	store   *store.PostgresStore
	breaker *engine.CircuitBreaker
}

func NewDestinationHandler(s *store.PostgresStore, cb *engine.CircuitBreaker) *DestinationHandler {
	return &DestinationHandler{store: s, breaker: cb}
}

func (h *DestinationHandler) List(w http.ResponseWriter, r *http.Request) {
	destinations, err := h.store.ListDestinations(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list destinations")
		return
	}

	respondJSON(w, http.StatusOK, destinations)
}

func (h *DestinationHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	dest, err := h.store.GetDestination(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get destination")
		return
	}
	if dest == nil {
		respondError(w, http.StatusNotFound, "destination not found")
		return
	}

	respondJSON(w, http.StatusOK, dest)
}

type destinationHealth struct {
	ID             string                     `json:"id"`
	Name           string                     `json:"name"`
	TargetURL      string                     `json:"target_url"`
	Active         bool                       `json:"active"`
	CircuitBreaker engine.CircuitBreakerState `json:"circuit_breaker"`
}

func (h *DestinationHandler) Health(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	dest, err := h.store.GetDestination(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get destination")
		return
	}
	if dest == nil {
		respondError(w, http.StatusNotFound, "destination not found")
		return
	}

	respondJSON(w, http.StatusOK, destinationHealth{
		ID:             dest.ID,
		Name:           dest.Name,
		TargetURL:      dest.TargetURL,
		Active:         dest.Active,
		CircuitBreaker: h.breaker.GetState(r.Context(), dest.ID, time.Duration(dest.CooldownSeconds)*time.Second),
	})
}
