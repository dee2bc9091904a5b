package config

import (
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, AuthBackendMemory, cfg.Auth.Backend)
	assert.Equal(t, time.UTC, cfg.Registration.TimeZone)
	assert.Equal(t, 3*time.Second, cfg.Registration.ThankYouDelay)
	assert.Equal(t, 2*time.Second, cfg.Registration.VerifiedRedirectDelay)
	assert.Equal(t, 1500*time.Millisecond, cfg.Registration.AlreadyVerifiedDelay)
	assert.Equal(t, 5*time.Second, cfg.Registration.ErrorHomeRedirectDelay)
	assert.Equal(t, AuditSinkMemory, cfg.Audit.Sink)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.False(t, cfg.Server.IsProduction())
	assert.Empty(t, cfg.Server.TrustedProxies)
}

func TestFromEnv_TrustedProxies(t *testing.T) {
	t.Run("CIDRs and bare addresses", func(t *testing.T) {
		t.Setenv("SERVER_TRUSTED_PROXIES", "10.0.0.0/8, 192.0.2.10,::1")

		cfg, err := FromEnv()
		require.NoError(t, err)

		assert.Equal(t, []netip.Prefix{
			netip.MustParsePrefix("10.0.0.0/8"),
			netip.MustParsePrefix("192.0.2.10/32"),
			netip.MustParsePrefix("::1/128"),
		}, cfg.Server.TrustedProxies)
	})

	t.Run("garbage is reported", func(t *testing.T) {
		t.Setenv("SERVER_TRUSTED_PROXIES", "10.0.0.0/8,proxy.internal")

		_, err := FromEnv()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "SERVER_TRUSTED_PROXIES")
	})
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("VEKTORKITE_ADDR", ":9090")
	t.Setenv("AUTH_BACKEND", "gotrue")
	t.Setenv("AUTH_URL", "https://auth.example.com/")
	t.Setenv("REGISTRATION_TIMEZONE", "Africa/Windhoek")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("AUDIT_SINK", "kafka")
	t.Setenv("RATE_LIMIT_WINDOW", "30s")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "https://auth.example.com", cfg.Auth.URL)
	assert.Equal(t, "Africa/Windhoek", cfg.Registration.TimeZone.String())
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Audit.KafkaBrokers)
	assert.Equal(t, 30*time.Second, cfg.RateLimit.Window)
}

func TestFromEnv_ReportsEveryInvalidValue(t *testing.T) {
	t.Setenv("RATE_LIMIT_REQUESTS", "lots")
	t.Setenv("AUTH_TIMEOUT", "soon")

	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RATE_LIMIT_REQUESTS")
	assert.Contains(t, err.Error(), "AUTH_TIMEOUT")
}

func TestFromEnv_RejectsInconsistentSelection(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"gotrue without url", map[string]string{"AUTH_BACKEND": "gotrue"}, "AUTH_URL"},
		{"unknown backend", map[string]string{"AUTH_BACKEND": "ldap"}, "AUTH_BACKEND"},
		{"postgres sink without dsn", map[string]string{"AUDIT_SINK": "postgres"}, "DATABASE_URL"},
		{"kafka sink without brokers", map[string]string{"AUDIT_SINK": "kafka"}, "KAFKA_BROKERS"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := FromEnv()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
