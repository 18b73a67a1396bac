// Package api provides the HTTP API for Movility.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/movilityai/movility/internal/api/handler"
	"github.com/movilityai/movility/internal/api/middleware"
	"github.com/movilityai/movility/internal/api/response"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version   string
	BuildTime string
	Logger    zerolog.Logger
	Metrics   *middleware.Metrics

	Planner   handler.Planner
	Stops     handler.StopIndex
	Stations  handler.StationLister
	Providers handler.HealthReporter
	Refresh   handler.RefreshReporter
	Flags     handler.FlagLister

	WeatherConfigured bool
	AlertsConfigured  bool

	// RequireTLS rejects requests forwarded as plain HTTP.
	RequireTLS bool
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware - order matters
	r.Use(middleware.RequestID) // Generate/propagate request ID first
	r.Use(middleware.Tracing()) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))         // Structured logging
	r.Use(middleware.Recovery(cfg.Logger))       // Panic recovery
	r.Use(chimiddleware.RealIP)                  // Real IP extraction
	r.Use(middleware.SecurityHeaders)            // Security headers (HSTS, CSP, etc.)
	r.Use(middleware.RequireTLS(cfg.RequireTLS)) // TLS enforcement

	opsHandler := handler.NewOpsHandler(handler.OpsConfig{
		Version:           cfg.Version,
		BuildTime:         cfg.BuildTime,
		Stops:             cfg.Stops,
		Providers:         cfg.Providers,
		Refresh:           cfg.Refresh,
		Flags:             cfg.Flags,
		WeatherConfigured: cfg.WeatherConfigured,
		AlertsConfigured:  cfg.AlertsConfigured,
	})
	planHandler := handler.NewPlanHandler(cfg.Planner, cfg.Logger)
	stopsHandler := handler.NewStopsHandler(cfg.Stops)
	bikeShareHandler := handler.NewBikeShareHandler(cfg.Stations, cfg.Logger)

	expensiveRateLimit := middleware.RateLimitByIP(middleware.ExpensiveRateLimit) // 10 req/min
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit)   // 60 req/min

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.NotFound(w, r, "no such endpoint: "+r.URL.Path)
	})

	r.Route("/v1", func(r chi.Router) {
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.With(standardRateLimit).Get("/providers", opsHandler.Providers)
			r.With(standardRateLimit).Get("/flags", opsHandler.Flags)
		})

		// Planning is the expensive path: each plan fans out to every provider.
		r.Group(func(r chi.Router) {
			r.Use(expensiveRateLimit)
			r.Use(middleware.RequireJSON)
			r.Post("/routes:plan", planHandler.Plan)
			r.Post("/routes:direct", planHandler.Direct)
		})

		r.Group(func(r chi.Router) {
			r.Use(standardRateLimit)
			r.Get("/stops", stopsHandler.List)
			r.Get("/stops/nearest", stopsHandler.Nearest)
			r.Get("/bikeshare/stations", bikeShareHandler.Stations)
		})
	})

	return r
}
