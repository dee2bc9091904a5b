// Package httpapi assembles the public router: pages, JSON API, operator
// endpoints, health and metrics.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"net/netip"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"vektorkite/internal/admin"
	"vektorkite/internal/pages"
	"vektorkite/internal/platform/metrics"
	"vektorkite/internal/platform/middleware"
	rlmodels "vektorkite/internal/ratelimit/models"
	registration "vektorkite/internal/registration/handler"
	verification "vektorkite/internal/verification/handler"
	"vektorkite/pkg/platform/httputil"
	authmw "vektorkite/pkg/platform/middleware/auth"
	"vektorkite/pkg/platform/middleware/metadata"
	"vektorkite/pkg/platform/middleware/requesttime"
)

// RateLimiter wraps a handler chain for one endpoint class.
type RateLimiter interface {
	RateLimit(class rlmodels.EndpointClass) func(http.Handler) http.Handler
}

// HealthCheck reports a dependency's health; nil means healthy.
type HealthCheck func(ctx context.Context) error

// Deps are the handlers and platform pieces the router mounts. RateLimiter,
// Admin and Gatherer are optional.
type Deps struct {
	Logger         *slog.Logger
	Metrics        *metrics.Metrics
	Gatherer       prometheus.Gatherer
	RequestTimeout time.Duration
	// TrustedProxies may set the client IP through forwarding headers.
	TrustedProxies []netip.Prefix

	Pages        *pages.Handler
	Registration *registration.Handler
	Verification *verification.Handler
	Admin        *admin.Handler
	RateLimiter  RateLimiter
	HealthChecks map[string]HealthCheck
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(d.Logger))
	r.Use(middleware.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(metadata.NewResolver(d.TrustedProxies).ClientMetadata)
	r.Use(middleware.Logger(d.Logger))
	if d.RequestTimeout > 0 {
		r.Use(middleware.Timeout(d.RequestTimeout))
	}
	if d.Metrics != nil {
		r.Use(middleware.LatencyMiddleware(d.Metrics))
	}
	r.Use(authmw.OptionalSession)

	r.Get("/healthz", healthHandler(d.HealthChecks))
	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	d.Pages.Register(r)
	limited(r, d.RateLimiter, rlmodels.ClassRegister).Group(d.Pages.RegisterSubmit)

	r.Group(func(api chi.Router) {
		api.Use(middleware.ContentTypeJSON)
		d.Registration.Register(api)
		limited(api, d.RateLimiter, rlmodels.ClassRegister).Group(d.Registration.RegisterSubmit)
		limited(api, d.RateLimiter, rlmodels.ClassVerify).Group(d.Verification.Register)
	})

	if d.Admin != nil {
		d.Admin.Register(r)
	}

	r.NotFound(d.Pages.NotFound)
	return r
}

func limited(r chi.Router, limiter RateLimiter, class rlmodels.EndpointClass) chi.Router {
	if limiter == nil {
		return r.With()
	}
	return r.With(limiter.RateLimit(class))
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		resp := healthResponse{Status: "ok"}
		status := http.StatusOK
		for name, check := range checks {
			if resp.Checks == nil {
				resp.Checks = make(map[string]string, len(checks))
			}
			if err := check(ctx); err != nil {
				resp.Checks[name] = err.Error()
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}
		httputil.WriteJSON(w, status, resp)
	}
}
