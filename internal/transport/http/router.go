package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pedersen-identity/internal/platform/middleware"
)

// RouterOption configures optional routes.
type RouterOption func(*routerConfig)

type routerConfig struct {
	metrics http.Handler
	timeout time.Duration
}

// WithMetricsHandler mounts h on /metrics. Without it the default Prometheus
// gatherer is served.
func WithMetricsHandler(h http.Handler) RouterOption {
	return func(c *routerConfig) {
		c.metrics = h
	}
}

// WithoutMetrics leaves /metrics unmounted.
func WithoutMetrics() RouterOption {
	return func(c *routerConfig) {
		c.metrics = nil
	}
}

// NewRouter mounts the public surface. Block submission requires a caller
// token; reads are public.
func NewRouter(h *Handler, validator middleware.CallerValidator, logger *slog.Logger, opts ...RouterOption) http.Handler {
	cfg := &routerConfig{metrics: promhttp.Handler(), timeout: 30 * time.Second}
	for _, opt := range opts {
		opt(cfg)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Logger(logger))

	r.Get("/health", h.HandleHealth)
	if cfg.metrics != nil {
		r.Handle("/metrics", cfg.metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		r.With(middleware.RequireCaller(validator, logger)).Post("/blocks", h.HandleMineBlock)
		r.Get("/identities/{principal}", h.HandleGetIdentity)
		r.Get("/providers/{principal}", h.HandleGetProvider)
		r.Get("/roles/{principal}", h.HandleGetRole)
		r.Post("/open", h.HandleOpenCommitment)
		r.Get("/events", h.HandleListEvents)
		r.Get("/consistency", h.HandleConsistency)
	})
	return http.TimeoutHandler(r, cfg.timeout, `{"error":"ERR_INTERNAL","error_description":"request timed out"}`)
}
