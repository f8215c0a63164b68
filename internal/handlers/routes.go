package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vidfriends/videosync/internal/changefeed"
	"github.com/vidfriends/videosync/internal/middleware"
)

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Videos  VideoStore
	Changes changefeed.Subscriber
	// Events is set when API writes publish their own change events.
	Events  ChangePublisher

	Database        HealthChecker
	// Locations signs storage locations; nil disables the location endpoint.
	Locations       LocationSigner
	// MutationLimiter guards write endpoints; nil disables limiting.
	MutationLimiter middleware.Limiter

	Metrics  *middleware.HTTPMetrics
	Gatherer prometheus.Gatherer
}

// NewRouter wires HTTP handlers into a chi router.
func NewRouter(deps Dependencies, logger *slog.Logger) http.Handler {
	health := HealthHandler{Database: deps.Database}
	videos := VideoHandler{Videos: deps.Videos, Events: deps.Events}
	changes := ChangeHandler{Source: deps.Changes}
	locations := LocationHandler{Videos: deps.Videos, Signer: deps.Locations}

	r := chi.NewRouter()
	r.Use(middleware.RequestLogger(logger))
	r.Use(deps.Metrics.Handler)

	r.Get("/healthz", health.Handle)
	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	limitWrites := middleware.RateLimit(deps.MutationLimiter, "mutations")

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/workspaces/{ownerID}/videos", func(r chi.Router) {
			r.Get("/", videos.List)
			r.With(limitWrites).Post("/", videos.Create)
			r.Get("/changes", changes.Stream)
		})
		r.Route("/videos/{key}", func(r chi.Router) {
			r.Get("/", videos.Get)
			r.With(limitWrites).Patch("/", videos.Update)
			r.With(limitWrites).Delete("/", videos.Delete)
			r.Get("/location", locations.Get)
		})
	})

	return r
}
