package api

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/webhookhub/webhookhub/internal/domain"
	"github.com/webhookhub/webhookhub/internal/ingest"
)

// IngestHandler exposes the inbound webhook endpoint: POST
// /api/v1/ingest/{source}/{eventType}.
type IngestHandler struct {
	pipeline *ingest.Pipeline
}

func NewIngestHandler(p *ingest.Pipeline) *IngestHandler {
	return &IngestHandler{pipeline: p}
}

type ingestResponse struct {
	Deliveries []domain.Delivery `json:"deliveries"`
	Duplicate  bool              `json:"duplicate"`
}

func (h *IngestHandler) Create(w http.ResponseWriter, r *http.Request) {
	sourceName := chi.URLParam(r, "source")
	eventType := chi.URLParam(r, "eventType")
	signature := r.Header.Get("X-Webhook-Signature")

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	deliveries, err := h.pipeline.Ingest(r.Context(), sourceName, eventType, signature, body)
	if err != nil {
		status, message := classifyIngestError(err)
		respondError(w, status, message)
		return
	}

	if deliveries == nil {
		respondJSON(w, http.StatusAccepted, ingestResponse{Deliveries: []domain.Delivery{}, Duplicate: true})
		return
	}

	respondJSON(w, http.StatusCreated, ingestResponse{Deliveries: deliveries})
}

func classifyIngestError(err error) (int, string) {
	switch e := err.(type) {
	case *ingest.ValidationError:
		return http.StatusBadRequest, e.Error()
	case *ingest.SourceNotFoundError:
		return http.StatusNotFound, e.Error()
	case *ingest.SourceInactiveError:
		return http.StatusUnauthorized, e.Error()
	case *ingest.MissingSignatureError:
		return http.StatusUnauthorized, e.Error()
	case *ingest.InvalidSignatureError:
		return http.StatusUnauthorized, e.Error()
	default:
		return http.StatusInternalServerError, "failed to process event"
	}
}
