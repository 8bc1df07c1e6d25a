package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/spendwise/pkg/accounts"
	"github.com/platinummonkey/spendwise/pkg/activity"
	"github.com/platinummonkey/spendwise/pkg/api"
	"github.com/platinummonkey/spendwise/pkg/auth"
	"github.com/platinummonkey/spendwise/pkg/config"
	"github.com/platinummonkey/spendwise/pkg/httputil"
	"github.com/platinummonkey/spendwise/pkg/middleware"
	"github.com/platinummonkey/spendwise/pkg/observability"
	"github.com/platinummonkey/spendwise/pkg/sessions"
	"github.com/platinummonkey/spendwise/pkg/storage/postgres"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel(), os.Stdout)
	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("spendwise exited with error")
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *observability.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httputil.SetDetailedErrors(cfg.IsDevelopment())
	if err := httputil.SetTrustedProxies(cfg.Server.TrustedProxies); err != nil {
		return err
	}
	if cfg.GeneratedSecret {
		logger.Warn("SPENDWISE_JWT_SECRET is not set; using a generated secret, tokens will not survive a restart")
	}

	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout)
	defer func() {
		if err := shutdown.Shutdown(context.Background()); err != nil {
			logger.WithError(err).Error("shutdown finished with errors")
		}
	}()

	tp, err := observability.InitTracing(ctx, cfg.OTel(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	if tp != nil {
		shutdown.Register("tracing", tp.Shutdown)
	}

	db, err := postgres.Open(ctx, postgres.ConnectionConfig{
		URL:            cfg.Database.URL,
		MaxOpenConns:   cfg.Database.MaxOpenConns,
		MaxIdleConns:   cfg.Database.MaxIdleConns,
		ConnectTimeout: cfg.Database.ConnectTimeout,
		IdleTimeout:    cfg.Database.IdleTimeout,
	})
	if err != nil {
		return err
	}
	shutdown.Register("database", func(context.Context) error { return db.Close() })
	logger.Info("Connected to PostgreSQL")

	if cfg.Database.AutoMigrate {
		if err := postgres.Migrate(ctx, db); err != nil {
			return err
		}
		logger.Info("Database schema is up to date")
	}

	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		redisClient, err = postgres.NewRedisClient(ctx, postgres.RedisConfig{
			URL:        cfg.Redis.URL,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			MaxRetries: cfg.Redis.MaxRetries,
			PoolSize:   cfg.Redis.PoolSize,
		})
		if err != nil {
			return err
		}
		shutdown.Register("redis", func(context.Context) error { return redisClient.Close() })
		logger.Info("Connected to Redis")
	}

	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(prometheus.NewRegistry())
	}

	hasher := auth.NewPasswordHasher(cfg.Auth.BcryptCost)
	tokens, err := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		return err
	}

	accountStore := accounts.NewStore(db, hasher, accounts.WithStatementTimeout(cfg.Database.StatementTimeout))
	sessionStore := sessions.NewStore(db, sessions.WithStatementTimeout(cfg.Database.StatementTimeout))

	attempts, err := newAttemptTracker(cfg, redisClient)
	if err != nil {
		return err
	}
	limiter := newRateLimiter(ctx, cfg, redisClient)

	serviceOpts := []activity.ServiceOption{
		activity.WithRetentionDays(cfg.Activity.RetentionDays),
	}
	if metrics != nil {
		serviceOpts = append(serviceOpts, activity.WithMetrics(metrics))
	}
	archive, err := postgres.OpenArchiveStore(ctx, cfg.Archive())
	if err != nil {
		return err
	}
	if archive != nil {
		serviceOpts = append(serviceOpts, activity.WithArchiver(activity.NewArchiver(archive, "")))
	}
	activityService := activity.NewService(
		activity.NewPostgresStore(db, cfg.Database.StatementTimeout),
		logger,
		serviceOpts...,
	)

	scheduler, err := activity.NewScheduler(activity.SchedulerConfig{
		AutoPurge:     cfg.Activity.AutoPurge,
		PurgeSchedule: cfg.Activity.PurgeSchedule,
		RetentionDays: cfg.Activity.RetentionDays,
		SweepSchedule: cfg.Activity.SessionSweep,
	}, activityService, sessionStore, logger, metrics)
	if err != nil {
		return err
	}
	scheduler.Start()
	shutdown.Register("scheduler", scheduler.Stop)

	health := observability.NewHealthChecker(db, redisClient, cfg.Observability.OTelServiceVersion)

	server, err := api.NewServer(api.Config{
		Accounts:     accountStore,
		Sessions:     sessionStore,
		Tokens:       tokens,
		Hasher:       hasher,
		Attempts:     attempts,
		Activity:     activityService,
		Owners:       middleware.NewOwnerRegistry(db),
		Limiter:      limiter,
		Metrics:      metrics,
		Health:       health,
		Logger:       logger,
		CORSOrigins:  cfg.Server.CORSOrigins,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
		Tracing:      tp != nil,
	})
	if err != nil {
		return err
	}

	apiServer := api.NewHTTPServer(
		net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		server,
		cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.IdleTimeout,
	)
	opsServer := api.NewHTTPServer(
		net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		opsRouter(health, metrics),
		cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.IdleTimeout,
	)
	serverLog := logger.Writer(observability.WarnLevel)
	apiServer.ErrorLog = log.New(serverLog, "", 0)
	opsServer.ErrorLog = log.New(serverLog, "", 0)
	shutdown.Register("server log", func(context.Context) error { return serverLog.Close() })
	shutdown.Register("ops server", opsServer.Shutdown)
	shutdown.Register("api server", apiServer.Shutdown)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Infof("Starting spendwise API on %s", apiServer.Addr)
		return listen(apiServer)
	})
	g.Go(func() error {
		logger.Infof("Starting health and metrics server on %s", opsServer.Addr)
		return listen(opsServer)
	})
	if metrics != nil {
		g.Go(func() error {
			observeDB(gctx, db, metrics)
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down gracefully...")
		return shutdown.Shutdown(context.Background())
	})

	return g.Wait()
}

func listen(srv *http.Server) error {
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server on %s failed: %w", srv.Addr, err)
	}
	return nil
}

// observeDB samples connection pool statistics every 15 seconds until ctx is done
func observeDB(ctx context.Context, db *sql.DB, metrics *observability.Metrics) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		metrics.ObserveDBStats(db.Stats())
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}

func opsRouter(health *observability.HealthChecker, metrics *observability.Metrics) http.Handler {
	router := mux.NewRouter()
	health.RegisterRoutes(router)
	if metrics != nil {
		router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	}
	return router
}

func newAttemptTracker(cfg *config.Config, client *redis.Client) (auth.AttemptTracker, error) {
	policy := auth.AttemptPolicy{
		MaxAttempts: cfg.Auth.MaxLoginAttempts,
		Window:      cfg.Auth.AttemptWindow,
	}
	if cfg.Auth.AttemptStore == config.AttemptStoreRedis {
		return auth.NewRedisAttemptTracker(client, policy, "", nil), nil
	}
	return auth.NewMemoryAttemptTracker(policy, cfg.Auth.AttemptCapacity, nil)
}

func newRateLimiter(ctx context.Context, cfg *config.Config, client *redis.Client) middleware.Limiter {
	limits := middleware.AuthRateLimitConfig(cfg.Auth.AuthRateLimit)
	if client != nil {
		return middleware.NewDistributedRateLimiter(client, limits, "")
	}
	limiter := middleware.NewRateLimiter(limits, nil)
	limiter.StartCleanup(ctx)
	return limiter
}
