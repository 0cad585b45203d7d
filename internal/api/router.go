package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"smartkeiba/internal/middleware"
)

// RouterConfig holds the cross-cutting settings of the router.
type RouterConfig struct {
	AllowedOrigins []string
	RateLimit      middleware.RateLimitConfig
	APIToken       string
}

// NewRouter builds the HTTP routes. ctx bounds background work of the
// middleware.
func NewRouter(ctx context.Context, h *Handler, cfg RouterConfig, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.AccessLog(logger))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders: []string{middleware.RequestIDHeader},
		MaxAge:         300,
	}))

	r.Get("/healthz", h.health)

	r.Route("/v1", func(r chi.Router) {
		if cfg.RateLimit.RequestsPerSecond > 0 {
			r.Use(middleware.NewRateLimiter(ctx, cfg.RateLimit).Handler)
		}
		r.Use(middleware.BearerToken(cfg.APIToken))

		r.Get("/sources", h.listSources)
		r.Post("/sources/declare", h.declareSources)

		r.Get("/exports", h.listJobs)
		r.Post("/exports", h.runAllExports)
		r.Post("/exports/{job}", h.runExport)
		r.Get("/exports/{job}/runs", h.listRuns)
		r.Get("/exports/{job}/state", h.listState)
		r.Get("/runs", h.listRuns)
	})
	return r
}
