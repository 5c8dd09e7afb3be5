package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	audithandler "greenctf/internal/audit/handler"
	authhandler "greenctf/internal/auth/handler"
	authmetrics "greenctf/internal/auth/metrics"
	"greenctf/internal/auth/service"
	"greenctf/internal/auth/session"
	accountstore "greenctf/internal/auth/store/account"
	sessionstore "greenctf/internal/auth/store/session"
	"greenctf/internal/auth/workers/cleanup"
	"greenctf/internal/platform/config"
	"greenctf/internal/platform/health"
	"greenctf/internal/platform/metrics"
	redisclient "greenctf/internal/platform/redis"
	"greenctf/internal/platform/tracer"
	rlmetrics "greenctf/internal/ratelimit/metrics"
	rlmodels "greenctf/internal/ratelimit/models"
	"greenctf/internal/ratelimit/service/authlockout"
	"greenctf/internal/ratelimit/service/requestlimit"
	"greenctf/internal/ratelimit/store/counter"
	httptransport "greenctf/internal/transport/http"
	"greenctf/pkg/platform/audit/publisher"
	"greenctf/pkg/platform/audit/store/sqlstore"
	"greenctf/pkg/platform/middleware/metadata"
	"greenctf/pkg/secrets"
)

const poolStatsInterval = 15 * time.Second

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the admin access control server",
		Example: `  greenctf serve
  greenctf serve --addr :9000 --config /etc/greenctf/greenctf.yaml`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, map[string]string{
				"server.addr":     "addr",
				"log.level":       "log-level",
				"redis.url":       "redis-url",
				"database.dsn":    "dsn",
				"database.driver": "driver",
			})
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg)
		},
	}

	cmd.Flags().String("addr", "", "listen address (overrides server.addr)")
	cmd.Flags().String("log-level", "", "debug, info, warn or error")
	cmd.Flags().String("redis-url", "", "redis URL for shared rate-limit counters")
	cmd.Flags().String("driver", "", "database driver: sqlite or postgres")
	cmd.Flags().String("dsn", "", "database DSN")

	return cmd
}

// counterStore is what both the limiter and the cleanup worker need.
type counterStore interface {
	requestlimit.CounterStore
	cleanup.CounterStore
}

func runServe(ctx context.Context, cfg *config.Config) error {
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	log.InfoContext(ctx, "initializing greenctf admin server",
		"addr", cfg.Server.Addr,
		"environment", cfg.Server.Environment,
		"database", cfg.Database.Driver,
	)

	pool, err := openDatabase(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer pool.Close()

	reg := metrics.NewRegistry()
	rlm := rlmetrics.New(reg)
	am := authmetrics.New(reg)

	rdb, err := redisclient.New(ctx, cfg.Redis, reg)
	if err != nil {
		return err
	}
	var counters counterStore = counter.NewSQLStore(pool.DB())
	if rdb != nil {
		defer rdb.Close()
		counters = counter.NewRedisStore(rdb.Client)
		log.InfoContext(ctx, "rate-limit counters in redis")
	}

	if cfg.Auth.LoginMaxAttempts <= cfg.Auth.LockoutThreshold {
		log.WarnContext(ctx, "login throttle trips before account lockout; locked accounts will report rate_limited",
			"login_max_attempts", cfg.Auth.LoginMaxAttempts,
			"lockout_threshold", cfg.Auth.LockoutThreshold,
		)
	}

	accounts := accountstore.NewSQLStore(pool.DB())
	limiter, err := requestlimit.New(counters, requestlimit.WithLogger(log), requestlimit.WithMetrics(rlm))
	if err != nil {
		return err
	}
	lockout, err := authlockout.New(accounts,
		authlockout.WithLogger(log),
		authlockout.WithMetrics(rlm),
		authlockout.WithPolicy(cfg.Auth.LockoutThreshold, cfg.Auth.LockoutDuration),
	)
	if err != nil {
		return err
	}
	sessions, err := session.New(sessionstore.NewSQLStore(pool.DB()), accounts,
		session.WithLogger(log),
		session.WithIdleTimeout(cfg.Auth.SessionIdleTimeout),
		session.WithTouchInterval(cfg.Auth.SessionTouchInterval),
	)
	if err != nil {
		return err
	}

	auditStore := sqlstore.New(pool.DB())
	auditLog := publisher.New(auditStore,
		publisher.WithLogger(log),
		publisher.WithMetrics(publisher.NewMetrics(reg)),
		publisher.WithBufferSize(cfg.Audit.BufferSize),
		publisher.WithFlushInterval(cfg.Audit.FlushInterval),
		publisher.WithBatchSize(cfg.Audit.BatchSize),
		publisher.WithMaxRetries(cfg.Audit.MaxRetries),
	)
	defer func() {
		if err := auditLog.Close(); err != nil {
			log.Error("audit log did not drain", "error", err)
		}
	}()

	var tr tracer.Tracer = tracer.NewNoop()
	if cfg.Tracing.Enabled {
		tr = tracer.NewOTel()
	}

	gateway, err := service.New(accounts, limiter, lockout, sessions, secrets.NewHasher(cfg.Auth.BcryptCost),
		service.WithLogger(log),
		service.WithMetrics(am),
		service.WithTracer(tr),
		service.WithAuditRecorder(auditLog),
		service.WithLoginLimit(rlmodels.Limit{MaxAttempts: cfg.Auth.LoginMaxAttempts, Window: cfg.Auth.LoginWindow}),
	)
	if err != nil {
		return err
	}

	proxies, err := metadata.ParseTrustedProxies(cfg.Server.TrustedProxies)
	if err != nil {
		return err
	}

	healthHandler := health.New(cfg.Server.Environment, health.WithLogger(log))
	healthHandler.RegisterCheck("database", pool.Health)
	if rdb != nil {
		healthHandler.RegisterCheck("redis", rdb.Health)
	}

	router := httptransport.NewRouter(httptransport.Deps{
		Logger:   log,
		Registry: reg,
		Auth: authhandler.New(gateway, log, authhandler.CookieConfig{
			Name:   cfg.Auth.CookieName,
			Secure: cfg.Auth.CookieSecure || cfg.IsProduction(),
		}),
		Audit:               audithandler.New(auditStore, log),
		Health:              healthHandler,
		Sessions:            authhandler.SessionValidator(gateway),
		TrustedProxies:      proxies,
		CORSAllowedOrigins:  cfg.Server.CORSAllowedOrigins,
		RequestTimeout:      cfg.Server.RequestTimeout,
		IPRequestsPerMinute: cfg.Server.IPRequestsPerMinute,
	})

	cleaner, err := cleanup.New(sessions, counters,
		cleanup.WithCleanupInterval(cfg.Cleanup.Interval),
		cleanup.WithCleanupLogger(log),
		cleanup.WithCleanupMetrics(rlm, am),
	)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting http server", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return ignoreCanceled(cleaner.Start(gctx))
	})
	if rdb != nil {
		g.Go(func() error {
			recordPoolStats(gctx, rdb)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("server stopped")
	return nil
}

func recordPoolStats(ctx context.Context, c *redisclient.Client) {
	ticker := time.NewTicker(poolStatsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.RecordPoolStats()
		case <-ctx.Done():
			return
		}
	}
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
