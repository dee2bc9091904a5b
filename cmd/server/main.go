package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"vektorkite/internal/admin"
	"vektorkite/internal/auth/gotrue"
	authmemory "vektorkite/internal/auth/memory"
	httpapi "vektorkite/internal/http"
	"vektorkite/internal/pages"
	"vektorkite/internal/platform/config"
	"vektorkite/internal/platform/httpserver"
	"vektorkite/internal/platform/logger"
	platformmetrics "vektorkite/internal/platform/metrics"
	"vektorkite/internal/platform/postgres"
	platformredis "vektorkite/internal/platform/redis"
	profilememory "vektorkite/internal/profile/store/memory"
	rlmetrics "vektorkite/internal/ratelimit/metrics"
	rlmiddleware "vektorkite/internal/ratelimit/middleware"
	"vektorkite/internal/ratelimit/store/bucket"
	reghandler "vektorkite/internal/registration/handler"
	regmetrics "vektorkite/internal/registration/metrics"
	"vektorkite/internal/registration/ports"
	regservice "vektorkite/internal/registration/service"
	"vektorkite/internal/registration/store/inflight"
	verifyhandler "vektorkite/internal/verification/handler"
	verifymetrics "vektorkite/internal/verification/metrics"
	verifyservice "vektorkite/internal/verification/service"
	"vektorkite/pkg/email"
	audit "vektorkite/pkg/platform/audit"
	"vektorkite/pkg/platform/audit/publisher"
	auditkafka "vektorkite/pkg/platform/audit/store/kafka"
	auditmemory "vektorkite/pkg/platform/audit/store/memory"
	auditpostgres "vektorkite/pkg/platform/audit/store/postgres"
	"vektorkite/pkg/platform/circuit"
)

// main wires the stores, the auth backend and the HTTP surface, then runs the
// server until SIGINT or SIGTERM.
func main() {
	if err := run(); err != nil {
		slog.Error("vektorkite exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg.Server.IsProduction())
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	backing, err := openInfra(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer backing.close()

	auth, err := buildAuth(cfg, reg, log)
	if err != nil {
		return err
	}

	auditStore, closeAudit, err := buildAuditStore(ctx, cfg, backing.db)
	if err != nil {
		return err
	}
	defer closeAudit()
	pub := publisher.NewPublisher(auditStore,
		publisher.WithAsyncBuffer(cfg.Audit.BufferSize),
		publisher.WithLogger(log),
	)

	var profiles ports.ProfileStore = profilememory.New()
	if backing.db != nil {
		profiles = newTxProfileStore(backing.db)
	}

	var guard regservice.InFlightGuard = inflight.NewInMemoryGuard()
	var buckets bucketStore = bucket.NewInMemoryBucketStore()
	if backing.redis != nil {
		guard = inflight.NewRedisGuard(backing.redis.Client)
		buckets = bucket.NewRedisBucketStore(backing.redis.Client)
	}

	regMetrics := regmetrics.New(reg)
	flow, err := regservice.NewFlow(auth,
		regservice.WithProfileStore(profiles),
		regservice.WithAuditPublisher(pub),
		regservice.WithLogger(log),
		regservice.WithMetrics(regMetrics),
		regservice.WithThankYouDelay(cfg.Registration.ThankYouDelay),
		// A dispatched signup outlives its request: the auth call plus the
		// pending-profile transaction.
		regservice.WithSubmitTimeout(cfg.Auth.Timeout+defaultProfileTxTimeout),
	)
	if err != nil {
		return fmt.Errorf("registration flow: %w", err)
	}
	controllers := regservice.NewFactory(flow,
		regservice.WithGuard(guard, cfg.Registration.InFlightTTL),
		regservice.WithLocation(cfg.Registration.TimeZone),
		regservice.WithControllerLogger(log),
		regservice.WithControllerMetrics(regMetrics),
	)

	verifier, err := verifyservice.New(auth,
		verifyservice.WithProfileStore(profiles),
		verifyservice.WithAuditPublisher(pub),
		verifyservice.WithLogger(log),
		verifyservice.WithMetrics(verifymetrics.New(reg)),
		verifyservice.WithRedirectDelays(
			cfg.Registration.VerifiedRedirectDelay,
			cfg.Registration.AlreadyVerifiedDelay,
			cfg.Registration.ErrorHomeRedirectDelay,
		),
	)
	if err != nil {
		return fmt.Errorf("verification service: %w", err)
	}

	pagesHandler, err := pages.New(controllers, log, pages.WithSupportEmail(cfg.Server.SupportEmail))
	if err != nil {
		return fmt.Errorf("pages: %w", err)
	}

	limiter := rlmiddleware.New(buckets,
		rlmiddleware.Limit{Requests: cfg.RateLimit.Requests, Window: cfg.RateLimit.Window},
		log,
		rlmiddleware.WithDisabled(!cfg.RateLimit.Enabled),
		rlmiddleware.WithMetrics(rlmetrics.New(reg)),
		rlmiddleware.WithAuditPublisher(pub),
	)

	router := httpapi.NewRouter(httpapi.Deps{
		Logger:         log,
		Metrics:        platformmetrics.New(reg),
		Gatherer:       reg,
		RequestTimeout: cfg.Server.RequestTimeout,
		TrustedProxies: cfg.Server.TrustedProxies,
		Pages:          pagesHandler,
		Registration:   reghandler.New(controllers, log),
		Verification:   verifyhandler.New(verifier, log),
		Admin:          admin.New(pub, cfg.Server.AdminToken, log, admin.WithBuckets(buckets)),
		RateLimiter:    limiter,
		HealthChecks:   backing.healthChecks(),
	})
	srv := httpserver.New(cfg.Server, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting vektorkite",
			"addr", cfg.Server.Addr,
			"environment", cfg.Server.Environment,
			"auth_backend", cfg.Auth.Backend,
			"audit_sink", cfg.Audit.Sink,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		err := srv.Shutdown(shutdownCtx)
		// Drain queued audit events once no request can emit more.
		pub.Close()
		return err
	})
	return g.Wait()
}

// bucketStore is what the limiter and the operator endpoints need from a
// rate-limit store.
type bucketStore interface {
	rlmiddleware.BucketStore
	admin.BucketAdmin
}

type infra struct {
	db    *sql.DB
	redis *platformredis.Client
}

func openInfra(ctx context.Context, cfg config.Config, log *slog.Logger) (*infra, error) {
	out := &infra{}
	if cfg.Database.DSN != "" {
		db, err := postgres.Open(ctx, postgres.Config{
			DSN:             cfg.Database.DSN,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		})
		if err != nil {
			return nil, err
		}
		if cfg.Database.Migrate {
			if err := postgres.Migrate(ctx, db); err != nil {
				_ = db.Close()
				return nil, fmt.Errorf("migrate: %w", err)
			}
		}
		out.db = db
		target, _ := postgres.Target(cfg.Database.DSN)
		log.Info("postgres connected", "target", target)
	}

	client, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		out.close()
		return nil, err
	}
	if client != nil {
		out.redis = client
		log.Info("redis connected")
	}
	return out, nil
}

func (i *infra) healthChecks() map[string]httpapi.HealthCheck {
	checks := map[string]httpapi.HealthCheck{}
	if i.db != nil {
		checks["postgres"] = i.db.PingContext
	}
	if i.redis != nil {
		checks["redis"] = i.redis.Health
	}
	return checks
}

func (i *infra) close() {
	if i.redis != nil {
		_ = i.redis.Close()
	}
	if i.db != nil {
		_ = i.db.Close()
	}
}

func buildAuth(cfg config.Config, reg prometheus.Registerer, log *slog.Logger) (ports.AuthService, error) {
	switch cfg.Auth.Backend {
	case config.AuthBackendGoTrue:
		breaker := circuit.New("auth-backend",
			circuit.WithFailureThreshold(cfg.Auth.FailureThreshold),
			circuit.WithSuccessThreshold(cfg.Auth.SuccessThreshold),
		)
		return gotrue.New(gotrue.Config{
			BaseURL: cfg.Auth.URL,
			APIKey:  cfg.Auth.APIKey,
			Timeout: cfg.Auth.Timeout,
		},
			gotrue.WithBreaker(breaker),
			gotrue.WithMetrics(gotrue.NewMetrics(reg)),
			gotrue.WithLogger(log),
		)
	default:
		opts := []authmemory.Option{
			authmemory.WithAutoConfirm(cfg.Auth.AutoConfirm),
			authmemory.WithTokenTTL(cfg.Auth.TokenTTL),
			authmemory.WithLogger(log),
		}
		// The in-memory backend sends no mail; outside production the link
		// goes to the log so the verification page can be exercised locally.
		if !cfg.Server.IsProduction() {
			opts = append(opts, authmemory.WithLinkFunc(func(ctx context.Context, addr, fragment string) {
				log.DebugContext(ctx, "dev verification link",
					"email", email.Mask(addr),
					"path", "/verify-email"+fragment,
				)
			}))
		}
		return authmemory.New(cfg.Auth.JWTSigningKey, opts...)
	}
}

func buildAuditStore(ctx context.Context, cfg config.Config, db *sql.DB) (audit.Store, func(), error) {
	noop := func() {}
	switch cfg.Audit.Sink {
	case config.AuditSinkPostgres:
		if db == nil {
			return nil, noop, errors.New("postgres audit sink requires DATABASE_URL")
		}
		return auditpostgres.New(db), noop, nil
	case config.AuditSinkKafka:
		store, err := auditkafka.New(ctx, cfg.Audit.KafkaBrokers, auditkafka.WithTopic(cfg.Audit.KafkaTopic))
		if err != nil {
			return nil, noop, fmt.Errorf("kafka audit sink: %w", err)
		}
		return store, store.Close, nil
	default:
		return auditmemory.NewInMemoryStore(), noop, nil
	}
}
