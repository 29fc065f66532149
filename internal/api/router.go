// Package api provides the HTTP API for nagarbus.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/nagarbus/nagarbus/internal/api/handler"
	"github.com/nagarbus/nagarbus/internal/api/middleware"
	"github.com/nagarbus/nagarbus/internal/app"
	"github.com/nagarbus/nagarbus/internal/resilience"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version    string
	BuildTime  string
	Logger     zerolog.Logger
	App        *app.App
	Registry   *resilience.Registry
	Metrics    *middleware.Metrics
	RequireTLS bool
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing())
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.RequireTLS(cfg.RequireTLS))
	r.Use(middleware.ContentTypeJSON)
	r.Use(middleware.RequireJSON)

	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.Registry)
	networkHandler := handler.NewNetworkHandler(cfg.App)
	fleetHandler := handler.NewFleetHandler(cfg.App)
	journeyHandler := handler.NewJourneyHandler(cfg.App)
	searchHandler := handler.NewSearchHandler(cfg.App)
	preferencesHandler := handler.NewPreferencesHandler(cfg.App)

	planRateLimit := middleware.RateLimitByIP(middleware.PlanRateLimit)
	writeRateLimit := middleware.RateLimitByIP(middleware.WriteRateLimit)
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit)

	r.Get("/health", opsHandler.HealthCheck)
	r.Get("/ready", opsHandler.ReadinessCheck)

	r.Route("/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(standardRateLimit)

			r.Get("/stops", networkHandler.ListStops)
			r.Get("/stops/{stopID}", networkHandler.GetStop)

			r.Get("/routes", networkHandler.ListRoutes)
			r.Get("/routes/{routeID}", networkHandler.GetRoute)
			r.Get("/routes/{routeID}/timeline", networkHandler.RouteTimeline)

			r.Get("/buses", networkHandler.ListBuses)
			r.Get("/buses/nearby", networkHandler.NearbyBuses)
			r.Get("/buses/{busID}", networkHandler.GetBus)

			r.Get("/updates", networkHandler.ServiceUpdates)
			r.Get("/tracking/focus", fleetHandler.GetFocus)

			r.Get("/journeys/current", journeyHandler.Current)
			r.Get("/preferences", preferencesHandler.Get)
		})

		r.Group(func(r chi.Router) {
			r.Use(planRateLimit)

			r.Post("/journeys/plan", journeyHandler.Plan)
			r.Get("/search", searchHandler.Search)
		})

		r.Group(func(r chi.Router) {
			r.Use(writeRateLimit)

			r.Post("/positions/advance", fleetHandler.AdvancePositions)
			r.Put("/buses/{busID}/status", fleetHandler.SetBusStatus)
			r.Put("/tracking/focus", fleetHandler.Focus)
			r.Delete("/tracking/focus", fleetHandler.Unfocus)

			r.Delete("/journeys/current", journeyHandler.Clear)

			r.Put("/preferences/language", preferencesHandler.SetLanguage)
			r.Post("/preferences/searches", preferencesHandler.AddRecentSearch)
			r.Post("/preferences/favorites/routes/{routeID}", preferencesHandler.ToggleFavoriteRoute)
			r.Post("/preferences/favorites/stops/{stopID}", preferencesHandler.ToggleFavoriteStop)
		})
	})

	return r
}
