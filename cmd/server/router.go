package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mwhitford/edgegate/internal/api"
	"github.com/mwhitford/edgegate/internal/api/middleware"
)

// setupRouter creates and configures the application router with all routes
// and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Correlation)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Metrics)

	profileHandler := api.NewProfileHandler(app.profileStore, app.logger)
	idem := middleware.NewIdempotency(app.idempotencyStore)

	r.Route("/api", func(r chi.Router) {
		if app.config.Auth.JWTSecret != "" {
			r.Use(middleware.NewAuth(app.config.Auth.JWTSecret).Authenticate)
		}

		r.Route("/profiles", func(r chi.Router) {
			r.With(idem.Handle).Post("/", profileHandler.CreateProfile)
			r.Get("/", profileHandler.ListProfiles)
			r.Get("/{id}", profileHandler.GetProfile)
			r.Put("/{id}", profileHandler.UpdateProfile)
		})
	})

	// Probes and metrics stay outside the authenticated surface.
	r.Get("/health/live", app.healthRegistry.HandleLive)
	r.Get("/health/ready", app.healthRegistry.HandleReady)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}
