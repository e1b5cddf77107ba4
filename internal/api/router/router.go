// Package router assembles the HTTP surface: the gateway callback, health
// check and metrics.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	httpmiddleware "github.com/afyabook/afyabook/internal/http/middleware"
	"github.com/afyabook/afyabook/internal/ussd"
	"github.com/afyabook/afyabook/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger         *logging.Logger
	USSDHandler    *ussd.Handler
	MetricsHandler http.Handler

	// RateLimitPerSec throttles the gateway callback per source IP;
	// zero disables throttling.
	RateLimitPerSec float64
	RateLimitBurst  int
}

// New creates a Chi router with all routes configured.
func New(cfg *Config) http.Handler {
	if cfg.USSDHandler == nil {
		panic("router: ussd handler cannot be nil")
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Group(func(gw chi.Router) {
		if cfg.RateLimitPerSec > 0 {
			gw.Use(httpmiddleware.RateLimit(cfg.RateLimitPerSec, cfg.RateLimitBurst))
		}
		gw.Post("/ussd", cfg.USSDHandler.HandleTurn)
	})

	r.Get("/health", cfg.USSDHandler.HealthCheck)
	if cfg.MetricsHandler != nil {
		r.Get("/metrics", cfg.MetricsHandler.ServeHTTP)
	}

	return r
}
