package api

import (
	"net/http"
	"time"

	"github.com/webhookhub/webhookhub/internal/engine"
	"github.com/webhookhub/webhookhub/internal/store"
	"github.com/webhookhub/webhookhub/internal/wsfeed"
)

type DashboardHandler struct {
	store   *store.PostgresStore
	breaker *engine.CircuitBreaker
	hub     *wsfeed.Hub
}

func NewDashboardHandler(s *store.PostgresStore, cb *engine.CircuitBreaker, hub *wsfeed.Hub) *DashboardHandler {
	return &DashboardHandler{store: s, breaker: cb, hub: hub}
}

type metricsResponse struct {
	store.DeliveryMetrics
	DashboardClients int `json:"dashboard_clients"`
}

// Metrics returns aggregated system metrics for the operator dashboard.
func (h *DashboardHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	metrics, err := h.store.GetDeliveryMetrics(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get metrics")
		return
	}

	respondJSON(w, http.StatusOK, metricsResponse{
		DeliveryMetrics:  *metrics,
		DashboardClients: h.hub.ClientCount(),
	})
}

type destinationHealthSummary struct {
	ID             string                     `json:"id"`
	Name           string                     `json:"name"`
	TargetURL      string                     `json:"target_url"`
	Active         bool                       `json:"active"`
	CircuitBreaker engine.CircuitBreakerState `json:"circuit_breaker"`
}

// DestinationsHealth returns circuit breaker state for every destination.
func (h *DashboardHandler) DestinationsHealth(w http.ResponseWriter, r *http.Request) {
	destinations, err := h.store.ListDestinations(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list destinations")
		return
	}

	result := make([]destinationHealthSummary, 0, len(destinations))
	for _, dest := range destinations {
		result = append(result, destinationHealthSummary{
			ID:             dest.ID,
			Name:           dest.Name,
			TargetURL:      dest.TargetURL,
			Active:         dest.Active,
			CircuitBreaker: h.breaker.GetState(r.Context(), dest.ID, time.Duration(dest.CooldownSeconds)*time.Second),
		})
	}

	respondJSON(w, http.StatusOK, result)
}
