package metadata

import (
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"

	"vektorkite/pkg/requestcontext"
)

func newRequest(remote string, headers map[string]string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = remote
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return req
}

func TestClientIP_DirectClients(t *testing.T) {
	res := NewResolver(nil)

	t.Run("forged X-Forwarded-For is ignored", func(t *testing.T) {
		req := newRequest("203.0.113.7:40000", map[string]string{"X-Forwarded-For": "10.0.0.1"})
		assert.Equal(t, "203.0.113.7", res.ClientIP(req))
	})

	t.Run("forged X-Real-IP is ignored", func(t *testing.T) {
		req := newRequest("203.0.113.7:40000", map[string]string{"X-Real-IP": "10.0.0.1"})
		assert.Equal(t, "203.0.113.7", res.ClientIP(req))
	})

	t.Run("IPv6 remote address", func(t *testing.T) {
		assert.Equal(t, "::1", res.ClientIP(newRequest("[::1]:5555", nil)))
	})
}

func TestClientIP_BehindTrustedProxy(t *testing.T) {
	res := NewResolver([]netip.Prefix{netip.MustParsePrefix("10.0.0.0/8")})

	tests := []struct {
		name    string
		remote  string
		headers map[string]string
		want    string
	}{
		{
			name:    "client appended by the proxy",
			remote:  "10.0.0.2:443",
			headers: map[string]string{"X-Forwarded-For": "198.51.100.9"},
			want:    "198.51.100.9",
		},
		{
			name:    "client-supplied prefix does not win",
			remote:  "10.0.0.2:443",
			headers: map[string]string{"X-Forwarded-For": "1.2.3.4, 198.51.100.9"},
			want:    "198.51.100.9",
		},
		{
			name:    "trusted hops are skipped",
			remote:  "10.0.0.2:443",
			headers: map[string]string{"X-Forwarded-For": "198.51.100.9, 10.1.1.1"},
			want:    "198.51.100.9",
		},
		{
			name:    "malformed entry falls back to the peer",
			remote:  "10.0.0.2:443",
			headers: map[string]string{"X-Forwarded-For": "not-an-ip"},
			want:    "10.0.0.2",
		},
		{
			name:    "X-Real-IP without forwarded header",
			remote:  "10.0.0.2:443",
			headers: map[string]string{"X-Real-IP": " 198.51.100.2 "},
			want:    "198.51.100.2",
		},
		{
			name:    "untrusted peer cannot claim a trusted path",
			remote:  "203.0.113.7:40000",
			headers: map[string]string{"X-Forwarded-For": "198.51.100.9"},
			want:    "203.0.113.7",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, res.ClientIP(newRequest(tt.remote, tt.headers)))
		})
	}
}

func TestClientMetadata_PopulatesContext(t *testing.T) {
	var gotIP, gotUA string
	h := NewResolver(nil).ClientMetadata(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotIP = requestcontext.ClientIP(r.Context())
		gotUA = requestcontext.UserAgent(r.Context())
	}))

	req := newRequest("192.0.2.10:40000", map[string]string{
		"User-Agent":      "Mozilla/5.0",
		"X-Forwarded-For": "10.9.9.9",
	})
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "192.0.2.10", gotIP)
	assert.Equal(t, "Mozilla/5.0", gotUA)
}
