package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noesis-ai/noesis/internal/api"
	"github.com/noesis-ai/noesis/internal/api/handlers"
	"github.com/noesis-ai/noesis/internal/api/middleware"
)

type RouterConfig struct {
	Authenticator    middleware.Authenticator
	QueryHandler     *handlers.QueryHandler
	IngestHandler    *handlers.IngestHandler
	KnowledgeHandler *handlers.KnowledgeHandler
	CategoryHandler  *handlers.CategoryHandler
	HealthHandler    *handlers.HealthHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 5 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	// Unauthenticated liveness probe. The authenticated /health below adds
	// per-organization statistics.
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(cfg.Authenticator))
		r.Use(middleware.ScopeContext)

		r.Post("/search", cfg.QueryHandler.Search)
		r.Post("/ask", cfg.QueryHandler.Ask)
		r.Post("/feedback", cfg.QueryHandler.Feedback)

		r.Post("/ingest", cfg.IngestHandler.Ingest)
		r.Post("/ingest/batch", cfg.IngestHandler.IngestBatch)

		r.Route("/knowledge", func(r chi.Router) {
			r.Get("/", cfg.KnowledgeHandler.List)
			r.Get("/{id}", cfg.KnowledgeHandler.Get)
			r.Get("/{id}/history", cfg.KnowledgeHandler.History)
			r.Patch("/{id}/validate", cfg.KnowledgeHandler.Validate)
			r.Post("/{id}/promote", cfg.KnowledgeHandler.Promote)
			r.Post("/{id}/similar", cfg.QueryHandler.Similar)
		})

		r.Post("/promotions/{id}/resolve", cfg.KnowledgeHandler.ResolvePromotion)

		r.Route("/categories", func(r chi.Router) {
			r.Get("/", cfg.CategoryHandler.List)
			r.Post("/", cfg.CategoryHandler.Create)
		})

		r.Get("/health", cfg.HealthHandler.Health)
	})

	return r
}
