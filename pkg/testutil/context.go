package testutil

import (
	"net/http"
	"time"

	"vektorkite/pkg/requestcontext"
)

// WithAccessToken attaches a session token the way the optional-session
// middleware would for a signed-in visitor.
func WithAccessToken(req *http.Request, token string) *http.Request {
	return req.WithContext(requestcontext.WithAccessToken(req.Context(), token))
}

// WithClock pins the request-scoped time so age checks are deterministic.
func WithClock(req *http.Request, now time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), now))
}

// WithClient sets the client metadata normally filled in by the metadata middleware.
func WithClient(req *http.Request, ip, userAgent string) *http.Request {
	return req.WithContext(requestcontext.WithClientMetadata(req.Context(), ip, userAgent))
}
