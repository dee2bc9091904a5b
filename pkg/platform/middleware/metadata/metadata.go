// Package metadata puts the client IP and User-Agent on the request context.
package metadata

import (
	"net"
	"net/http"
	"net/netip"
	"strings"

	"vektorkite/pkg/requestcontext"
)

// Resolver determines the client IP. Forwarding headers are only believed
// when the direct peer is a trusted proxy; otherwise any client could pick
// its own address and slip past per-IP limits.
type Resolver struct {
	trusted []netip.Prefix
}

// NewResolver trusts the given proxy prefixes. With none, RemoteAddr is the
// client.
func NewResolver(trusted []netip.Prefix) *Resolver {
	return &Resolver{trusted: trusted}
}

// ClientMetadata adds the resolved client IP and the User-Agent to the context.
func (res *Resolver) ClientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithClientMetadata(r.Context(), res.ClientIP(r), r.Header.Get("User-Agent"))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClientIP walks X-Forwarded-For from the right, skipping trusted hops, and
// returns the first address a trusted proxy vouched for.
func (res *Resolver) ClientIP(r *http.Request) string {
	peer := remoteIP(r.RemoteAddr)
	if !res.isTrusted(peer) {
		return peer
	}

	if xff := r.Header.Values("X-Forwarded-For"); len(xff) > 0 {
		hops := strings.Split(strings.Join(xff, ","), ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			addr, err := netip.ParseAddr(hop)
			if err != nil {
				// A malformed entry ends the chain the proxies can vouch for.
				return peer
			}
			if !res.trustedAddr(addr) || i == 0 {
				return addr.Unmap().String()
			}
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		if addr, err := netip.ParseAddr(xri); err == nil {
			return addr.Unmap().String()
		}
	}
	return peer
}

func (res *Resolver) isTrusted(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	return err == nil && res.trustedAddr(addr)
}

func (res *Resolver) trustedAddr(addr netip.Addr) bool {
	addr = addr.Unmap()
	for _, p := range res.trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// remoteIP strips the port from "ip:port" and "[::1]:port".
func remoteIP(addr string) string {
	if addr == "" {
		return "unknown"
	}
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return strings.Trim(addr, "[]")
}
