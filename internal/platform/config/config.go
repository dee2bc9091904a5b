package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the full service configuration, read once at startup.
type Config struct {
	Server       Server
	Auth         Auth
	Registration Registration
	Redis        RedisConfig
	Database     Database
	RateLimit    RateLimit
	Audit        Audit
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	Environment     string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	// AdminToken guards the operator endpoints; empty disables them.
	AdminToken string
	// SupportEmail is shown on public pages; empty hides the contact line.
	SupportEmail string
	// TrustedProxies are the peers whose X-Forwarded-For and X-Real-IP
	// headers are believed. Empty means the service faces clients directly.
	TrustedProxies []netip.Prefix
}

// Auth selects and configures the hosted auth backend.
type Auth struct {
	// Backend is "gotrue" or "memory".
	Backend string
	URL     string
	APIKey  string
	Timeout time.Duration
	// Memory backend only.
	JWTSigningKey string
	AutoConfirm   bool
	TokenTTL      time.Duration
	// Circuit breaker around the remote backend.
	FailureThreshold int
	SuccessThreshold int
}

// Registration holds the flow's user-facing timings and the civil time zone
// used for age checks.
type Registration struct {
	TimeZone               *time.Location
	ThankYouDelay          time.Duration
	VerifiedRedirectDelay  time.Duration
	AlreadyVerifiedDelay   time.Duration
	ErrorHomeRedirectDelay time.Duration
	InFlightTTL            time.Duration
}

// RedisConfig holds connection settings; an empty URL keeps everything in memory.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Database holds Postgres settings; an empty DSN keeps profiles and audit in memory.
type Database struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	Migrate         bool
}

type RateLimit struct {
	Enabled  bool
	Requests int
	Window   time.Duration
}

// Audit selects the audit sink: "memory", "postgres" or "kafka".
type Audit struct {
	Sink         string
	BufferSize   int
	KafkaBrokers []string
	KafkaTopic   string
}

const (
	AuthBackendGoTrue = "gotrue"
	AuthBackendMemory = "memory"

	AuditSinkMemory   = "memory"
	AuditSinkPostgres = "postgres"
	AuditSinkKafka    = "kafka"
)

// FromEnv builds the config from environment variables so main stays lean.
func FromEnv() (Config, error) {
	r := &reader{}

	cfg := Config{
		Server: Server{
			Addr:            r.str("VEKTORKITE_ADDR", ":8080"),
			Environment:     r.str("ENVIRONMENT", "development"),
			ReadTimeout:     r.duration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    r.duration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			RequestTimeout:  r.duration("SERVER_REQUEST_TIMEOUT", 30*time.Second),
			ShutdownTimeout: r.duration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			AdminToken:      os.Getenv("ADMIN_API_TOKEN"),
			SupportEmail:    strings.TrimSpace(os.Getenv("SUPPORT_EMAIL")),
			TrustedProxies:  r.prefixes("SERVER_TRUSTED_PROXIES"),
		},
		Auth: Auth{
			Backend:          r.str("AUTH_BACKEND", AuthBackendMemory),
			URL:              strings.TrimRight(os.Getenv("AUTH_URL"), "/"),
			APIKey:           os.Getenv("AUTH_API_KEY"),
			Timeout:          r.duration("AUTH_TIMEOUT", 10*time.Second),
			JWTSigningKey:    r.str("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
			AutoConfirm:      r.boolean("AUTH_AUTO_CONFIRM", false),
			TokenTTL:         r.duration("AUTH_TOKEN_TTL", time.Hour),
			FailureThreshold: r.integer("AUTH_BREAKER_FAILURES", 5),
			SuccessThreshold: r.integer("AUTH_BREAKER_SUCCESSES", 3),
		},
		Registration: Registration{
			TimeZone:               r.location("REGISTRATION_TIMEZONE", time.UTC),
			ThankYouDelay:          r.duration("REGISTRATION_THANK_YOU_DELAY", 3*time.Second),
			VerifiedRedirectDelay:  r.duration("VERIFY_REDIRECT_DELAY", 2*time.Second),
			AlreadyVerifiedDelay:   r.duration("VERIFY_ALREADY_VERIFIED_DELAY", 1500*time.Millisecond),
			ErrorHomeRedirectDelay: r.duration("VERIFY_ERROR_REDIRECT_DELAY", 5*time.Second),
			InFlightTTL:            r.duration("REGISTRATION_INFLIGHT_TTL", 30*time.Second),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     r.integer("REDIS_POOL_SIZE", 10),
			MinIdleConns: r.integer("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  r.duration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  r.duration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: r.duration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Database: Database{
			DSN:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    r.integer("DATABASE_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    r.integer("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: r.duration("DATABASE_CONN_MAX_LIFETIME", 30*time.Minute),
			Migrate:         r.boolean("DATABASE_MIGRATE", true),
		},
		RateLimit: RateLimit{
			Enabled:  r.boolean("RATE_LIMIT_ENABLED", true),
			Requests: r.integer("RATE_LIMIT_REQUESTS", 10),
			Window:   r.duration("RATE_LIMIT_WINDOW", time.Minute),
		},
		Audit: Audit{
			Sink:         r.str("AUDIT_SINK", AuditSinkMemory),
			BufferSize:   r.integer("AUDIT_BUFFER_SIZE", 256),
			KafkaBrokers: r.list("KAFKA_BROKERS"),
			KafkaTopic:   r.str("AUDIT_KAFKA_TOPIC", "vektorkite.audit"),
		},
	}

	if err := errors.Join(r.errs...); err != nil {
		return Config{}, err
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	var errs []error
	switch c.Auth.Backend {
	case AuthBackendMemory:
	case AuthBackendGoTrue:
		if c.Auth.URL == "" {
			errs = append(errs, errors.New("AUTH_URL is required for the gotrue backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown AUTH_BACKEND %q", c.Auth.Backend))
	}
	switch c.Audit.Sink {
	case AuditSinkMemory:
	case AuditSinkPostgres:
		if c.Database.DSN == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres audit sink"))
		}
	case AuditSinkKafka:
		if len(c.Audit.KafkaBrokers) == 0 {
			errs = append(errs, errors.New("KAFKA_BROKERS is required for the kafka audit sink"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown AUDIT_SINK %q", c.Audit.Sink))
	}
	if c.RateLimit.Enabled && (c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0) {
		errs = append(errs, errors.New("RATE_LIMIT_REQUESTS and RATE_LIMIT_WINDOW must be positive"))
	}
	return errors.Join(errs...)
}

// IsProduction reports whether the service runs with production defaults.
func (s Server) IsProduction() bool {
	return s.Environment == "production"
}

// reader collects parse errors so every bad variable is reported at once.
type reader struct {
	errs []error
}

func (r *reader) str(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func (r *reader) integer(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: invalid integer %q", key, v))
		return def
	}
	return n
}

func (r *reader) boolean(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: invalid boolean %q", key, v))
		return def
	}
	return b
}

func (r *reader) duration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: invalid duration %q", key, v))
		return def
	}
	return d
}

func (r *reader) location(key string, def *time.Location) *time.Location {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	loc, err := time.LoadLocation(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: unknown time zone %q", key, v))
		return def
	}
	return loc
}

func (r *reader) list(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// prefixes reads a comma separated list of CIDRs or bare addresses; a bare
// address is a single-host prefix.
func (r *reader) prefixes(key string) []netip.Prefix {
	var out []netip.Prefix
	for _, raw := range r.list(key) {
		if p, err := netip.ParsePrefix(raw); err == nil {
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(raw)
		if err != nil {
			r.errs = append(r.errs, fmt.Errorf("%s: invalid address or CIDR %q", key, raw))
			continue
		}
		addr = addr.Unmap()
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out
}
