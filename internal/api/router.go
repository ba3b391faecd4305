package api

import (
	"io/fs"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/webhookhub/webhookhub/internal/engine"
	"github.com/webhookhub/webhookhub/internal/ingest"
	"github.com/webhookhub/webhookhub/internal/store"
	"github.com/webhookhub/webhookhub/internal/wsfeed"
)

// NewRouter creates and configures the HTTP router for the ingest/operator
// front end.
func NewRouter(pgStore *store.PostgresStore, pipeline *ingest.Pipeline, cb *engine.CircuitBreaker, hub *wsfeed.Hub, dashboardFS fs.FS) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))
	r.Use(corsMiddleware)

	ingestHandler := NewIngestHandler(pipeline)
	eventHandler := NewEventHandler(pgStore)
	deliveryHandler := NewDeliveryHandler(pgStore)
	destHandler := NewDestinationHandler(pgStore, cb)
	dashHandler := NewDashboardHandler(pgStore, cb, hub)

	r.Get("/ws", hub.HandleWebSocket)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", HealthHandler())

		r.Post("/ingest/{source}/{eventType}", ingestHandler.Create)

		r.Route("/events", func(r chi.Router) {
			r.Get("/", eventHandler.List)
			r.Get("/{id}", eventHandler.Get)
		})

		r.Route("/deliveries", func(r chi.Router) {
			r.Get("/", deliveryHandler.List)
			r.Get("/{id}", deliveryHandler.Get)
		})

		r.Route("/destinations", func(r chi.Router) {
			r.Get("/", destHandler.List)
			r.Get("/{id}", destHandler.Get)
			r.Get("/{id}/health", destHandler.Health)
		})

		r.Get("/metrics", dashHandler.Metrics)
		r.Get("/destinations-health", dashHandler.DestinationsHealth)
	})

	if dashboardFS != nil {
		fileServer := http.FileServer(http.FS(dashboardFS))
		r.Handle("/*", fileServer)
	}

	return r
}

// corsMiddleware adds CORS headers for dashboard development.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
