package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"smartkeiba/internal/api"
	"smartkeiba/internal/config"
	"smartkeiba/internal/middleware"
)

const shutdownTimeout = 30 * time.Second

// Router builds the HTTP handler for the application.
func (a *App) Router(ctx context.Context, cfg *config.Config, logger *slog.Logger) http.Handler {
	h := api.NewHandler(a.Sources, a.Exports, logger.With("component", "api"))
	return api.NewRouter(ctx, h, api.RouterConfig{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimit: middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimitRPS,
			Burst:             cfg.RateLimitBurst,
		},
		APIToken: cfg.APIToken,
	}, logger)
}

// Serve runs the HTTP API, and the scheduler when enabled, until ctx is
// cancelled. In-flight requests get shutdownTimeout to finish.
func (a *App) Serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if cfg.SchedulerEnabled {
		if err := a.Scheduler.Start(ctx); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
		defer a.Scheduler.Stop()
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           a.Router(ctx, cfg, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP API listening", "addr", cfg.ListenAddr, "scheduler", cfg.SchedulerEnabled)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
