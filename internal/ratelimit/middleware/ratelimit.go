package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"vektorkite/internal/ratelimit/metrics"
	"vektorkite/internal/ratelimit/models"
	audit "vektorkite/pkg/platform/audit"
	"vektorkite/pkg/platform/httputil"
	"vektorkite/pkg/platform/privacy"
	"vektorkite/pkg/requestcontext"
)

const exceededMessage = "Too many requests from this IP address. Please try again later."

type BucketStore interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.RateLimitResult, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Limit is the number of requests one client IP may make per window.
type Limit struct {
	Requests int
	Window   time.Duration
}

type Middleware struct {
	store    BucketStore
	limit    Limit
	logger   *slog.Logger
	metrics  *metrics.Metrics
	auditor  AuditPublisher
	disabled bool
}

type Option func(*Middleware)

// WithDisabled disables rate limiting entirely (for testing/demo mode).
func WithDisabled(disabled bool) Option {
	return func(m *Middleware) { m.disabled = disabled }
}

func WithMetrics(metrics *metrics.Metrics) Option {
	return func(m *Middleware) { m.metrics = metrics }
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(m *Middleware) { m.auditor = publisher }
}

func New(store BucketStore, limit Limit, logger *slog.Logger, opts ...Option) *Middleware {
	m := &Middleware{
		store:  store,
		limit:  limit,
		logger: logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.disabled {
		logger.Info("rate limiting disabled")
	}
	return m
}

// RateLimit limits requests per client IP. Store errors let the request
// through.
func (m *Middleware) RateLimit(class models.EndpointClass) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m.disabled || m.store == nil {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			ip := requestcontext.ClientIP(ctx)

			result, err := m.store.Allow(ctx, models.NewIPRateLimitKey(ip, class), m.limit.Requests, m.limit.Window)
			if err != nil {
				m.logger.ErrorContext(ctx, "failed to check IP rate limit",
					"error", err,
					"ip_prefix", privacy.AnonymizeIP(ip),
					"request_id", requestcontext.RequestID(ctx),
				)
				if m.metrics != nil {
					m.metrics.IncrementStoreErrors()
				}
				next.ServeHTTP(w, r)
				return
			}
			if m.metrics != nil {
				m.metrics.IncrementDecision(string(class), result.Allowed)
			}

			addRateLimitHeaders(w, result)

			if !result.Allowed {
				m.logger.WarnContext(ctx, "rate limit exceeded",
					"class", class,
					"ip_prefix", privacy.AnonymizeIP(ip),
					"request_id", requestcontext.RequestID(ctx),
				)
				m.emitExceeded(ctx, class)
				writeRateLimitExceeded(w, r, result)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (m *Middleware) emitExceeded(ctx context.Context, class models.EndpointClass) {
	if m.auditor == nil {
		return
	}
	event := audit.NewEvent(ctx, audit.EventRateLimitExceeded)
	event.Decision = "denied"
	event.Reason = string(class)
	if err := m.auditor.Emit(ctx, event); err != nil {
		m.logger.WarnContext(ctx, "failed to emit audit event",
			"action", event.Action,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
}

func addRateLimitHeaders(w http.ResponseWriter, result *models.RateLimitResult) {
	if result == nil {
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

// writeRateLimitExceeded answers form posts with plain text and API calls with JSON.
func writeRateLimitExceeded(w http.ResponseWriter, r *http.Request, result *models.RateLimitResult) {
	w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
	if strings.Contains(r.Header.Get("Accept"), "text/html") {
		http.Error(w, exceededMessage, http.StatusTooManyRequests)
		return
	}
	httputil.WriteJSON(w, http.StatusTooManyRequests, &models.RateLimitExceededResponse{
		Error:      "rate_limit_exceeded",
		Message:    exceededMessage,
		RetryAfter: result.RetryAfter,
	})
}
