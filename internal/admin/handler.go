// Package admin serves operator endpoints over the registration audit trail
// and the per-IP rate-limit buckets.
package admin

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/netip"
	"strconv"

	"github.com/go-chi/chi/v5"

	rlmodels "vektorkite/internal/ratelimit/models"
	id "vektorkite/pkg/domain"
	audit "vektorkite/pkg/platform/audit"
	"vektorkite/pkg/platform/audit/publisher"
	"vektorkite/pkg/platform/httputil"
	adminmw "vektorkite/pkg/platform/middleware/admin"
	"vektorkite/pkg/requestcontext"

	dErrors "vektorkite/pkg/domain-errors"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

// AuditReader is satisfied by *publisher.Publisher.
type AuditReader interface {
	Recent(ctx context.Context, limit int) ([]audit.Event, error)
	List(ctx context.Context, userID id.UserID) ([]audit.Event, error)
}

// BucketAdmin inspects and clears rate-limit buckets. Both bucket stores
// implement it.
type BucketAdmin interface {
	GetCurrentCount(ctx context.Context, key string) (int, error)
	Reset(ctx context.Context, key string) error
}

var limitedClasses = []rlmodels.EndpointClass{rlmodels.ClassRegister, rlmodels.ClassVerify}

type Handler struct {
	reader  AuditReader
	buckets BucketAdmin
	token   string
	logger  *slog.Logger
}

type Option func(*Handler)

// WithBuckets mounts the /admin/ratelimit routes.
func WithBuckets(b BucketAdmin) Option {
	return func(h *Handler) { h.buckets = b }
}

func New(reader AuditReader, token string, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{reader: reader, token: token, logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts /admin behind the admin token. An empty token leaves every
// route answering 401.
func (h *Handler) Register(r chi.Router) {
	r.Route("/admin", func(r chi.Router) {
		r.Use(adminmw.RequireAdminToken(h.token, h.logger))
		r.Get("/audit", h.handleRecent)
		r.Get("/audit/users/{user_id}", h.handleUser)
		if h.buckets != nil {
			r.Get("/ratelimit/{ip}", h.handleBucketCounts)
			r.Delete("/ratelimit/{ip}", h.handleBucketReset)
		}
	})
}

func (h *Handler) handleRecent(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	events, err := h.reader.Recent(r.Context(), limit)
	if err != nil {
		h.writeReadError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, AuditEventsResponse{Events: nonNil(events), Total: len(events)})
}

func (h *Handler) handleUser(w http.ResponseWriter, r *http.Request) {
	userID, err := id.ParseUserID(chi.URLParam(r, "user_id"))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid user id"))
		return
	}
	events, err := h.reader.List(r.Context(), userID)
	if err != nil {
		h.writeReadError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, AuditEventsResponse{Events: nonNil(events), Total: len(events)})
}

func (h *Handler) writeReadError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, publisher.ErrNoReader) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "the configured audit sink cannot be queried"))
		return
	}
	ctx := r.Context()
	h.logger.ErrorContext(ctx, "failed to read audit events",
		"error", err,
		"request_id", requestcontext.RequestID(ctx),
	)
	httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read audit events"))
}

func (h *Handler) handleBucketCounts(w http.ResponseWriter, r *http.Request) {
	ip, classes, err := bucketTarget(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	resp := RateLimitCountsResponse{IP: ip, Counts: make(map[string]int, len(classes))}
	for _, class := range classes {
		n, err := h.buckets.GetCurrentCount(r.Context(), rlmodels.NewIPRateLimitKey(ip, class))
		if err != nil {
			h.writeBucketError(w, r, err)
			return
		}
		resp.Counts[string(class)] = n
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleBucketReset(w http.ResponseWriter, r *http.Request) {
	ip, classes, err := bucketTarget(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	ctx := r.Context()
	for _, class := range classes {
		if err := h.buckets.Reset(ctx, rlmodels.NewIPRateLimitKey(ip, class)); err != nil {
			h.writeBucketError(w, r, err)
			return
		}
	}
	h.logger.InfoContext(ctx, "rate limit reset by operator",
		"ip", ip,
		"classes", classes,
		"request_id", requestcontext.RequestID(ctx),
	)
	w.WriteHeader(http.StatusNoContent)
}

// bucketTarget reads the IP path parameter and the optional class query.
// Without a class every limited class is addressed.
func bucketTarget(r *http.Request) (string, []rlmodels.EndpointClass, error) {
	addr, err := netip.ParseAddr(chi.URLParam(r, "ip"))
	if err != nil {
		return "", nil, dErrors.New(dErrors.CodeBadRequest, "invalid ip address")
	}
	raw := r.URL.Query().Get("class")
	if raw == "" {
		return addr.Unmap().String(), limitedClasses, nil
	}
	for _, class := range limitedClasses {
		if string(class) == raw {
			return addr.Unmap().String(), []rlmodels.EndpointClass{class}, nil
		}
	}
	return "", nil, dErrors.New(dErrors.CodeBadRequest, "unknown rate limit class")
}

func (h *Handler) writeBucketError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	h.logger.ErrorContext(ctx, "rate limit bucket operation failed",
		"error", err,
		"request_id", requestcontext.RequestID(ctx),
	)
	httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "rate limit store failed"))
}

func parseLimit(raw string) (int, error) {
	if raw == "" {
		return defaultLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, dErrors.New(dErrors.CodeBadRequest, "limit must be a positive integer")
	}
	return min(n, maxLimit), nil
}

func nonNil(events []audit.Event) []audit.Event {
	if events == nil {
		return []audit.Event{}
	}
	return events
}
