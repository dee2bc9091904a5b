// Package auth picks up the caller's hosted-auth session, when present.
//
// The service never issues sessions itself. Browsers that already hold a
// backend access token (after clicking a verification link twice, for
// example) send it as a bearer token or in the sb-access-token cookie so the
// verification flow can recognise an already-verified user.
package auth

import (
	"net/http"
	"strings"

	"vektorkite/pkg/requestcontext"
)

// SessionCookieName is the cookie the browser client stores the access token in.
const SessionCookieName = "sb-access-token"

// OptionalSession copies the caller's access token into the request context.
// Requests without a token pass through untouched.
func OptionalSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token := tokenFromRequest(r); token != "" {
			r = r.WithContext(requestcontext.WithAccessToken(r.Context(), token))
		}
		next.ServeHTTP(w, r)
	})
}

func tokenFromRequest(r *http.Request) string {
	const bearerPrefix = "Bearer "
	if after, ok := strings.CutPrefix(r.Header.Get("Authorization"), bearerPrefix); ok {
		return strings.TrimSpace(after)
	}
	if c, err := r.Cookie(SessionCookieName); err == nil {
		return strings.TrimSpace(c.Value)
	}
	return ""
}
