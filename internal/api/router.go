package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates and configures the HTTP router with all routes and
// middleware. The metrics handler, when not nil, is mounted at /metrics.
func NewRouter(h *Handlers, logger *slog.Logger, metrics http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(RequestIDResponse)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(logger))
	r.Use(Recovery(logger))
	r.Use(middleware.Compress(5))
	r.Use(ContentTypeJSON)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Content-Length"},
		ExposedHeaders:   []string{"Link", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", h.Health)

	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics)
	}

	r.Get("/", h.LandingPage)
	r.Get("/conformance", h.Conformance)

	r.Get("/collections", h.Collections)
	r.Get("/collections/{collectionId}", h.Collection)
	r.Get("/collections/{collectionId}/items", h.Items)
	r.Get("/collections/{collectionId}/items/{itemId}", h.Item)

	r.Get("/search", h.Search)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		WriteNotFound(w, "endpoint not found")
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, http.StatusMethodNotAllowed, "MethodNotAllowed", "method not allowed")
	})

	return r
}
