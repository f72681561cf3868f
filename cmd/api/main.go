package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"funnel_backend/internal/adapters/storage"
	"funnel_backend/internal/delivery/automation"
	"funnel_backend/internal/delivery/heyreach"
	"funnel_backend/internal/delivery/pixel"
	"funnel_backend/internal/delivery/webhook"
	"funnel_backend/internal/events"
	"funnel_backend/internal/experiments"
	"funnel_backend/internal/fanout"
	"funnel_backend/internal/funnels"
	apphttp "funnel_backend/internal/http"
	"funnel_backend/internal/http/router"
	"funnel_backend/internal/integrations"
	"funnel_backend/internal/leads"
	"funnel_backend/internal/scheduler"
	"funnel_backend/platform/config"
	"funnel_backend/platform/db"
	"funnel_backend/platform/logger"
	"funnel_backend/platform/metrics"
	"funnel_backend/platform/ratelimit"
	"funnel_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

const (
	shutdownTimeout = 10 * time.Second
	drainTimeout    = 15 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, pool)
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	recorder, err := metrics.New(ctx, cfg)
	if err != nil {
		log.Error("failed to initialize metrics", "error", err)
		panic("failed to initialize metrics: " + err.Error())
	}

	limiter, closeLimiter := initLeadLimiter(cfg, log)
	if closeLimiter != nil {
		defer closeLimiter()
	}

	presigner := initPresigner(ctx, cfg, log)
	queue, closeQueue := initAutomationQueue(cfg, log)

	// Event bus feeding the fan-out worker pool
	eventBus := events.NewInMemoryBus(log, cfg.GetDispatchWorkers(), cfg.GetDispatchQueueSize())

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	settings := integrations.New(pool)
	targets := []fanout.Target{
		webhook.New(settings, nil, cfg.GetDeliveryTimeout()),
		pixel.New(settings, nil, cfg.GetMetaGraphBaseURL(), cfg.GetDeliveryTimeout()),
		heyreach.New(settings, cfg.GetHeyReachBaseURL(), cfg.GetHeyReachMaxAttempts(), cfg.GetHeyReachRatePerSecond(), cfg.GetDeliveryTimeout()),
	}
	if queue != nil {
		targets = append(targets, automation.New(settings, queue))
	}
	dispatcher := fanout.New(eventBus, log, recorder, targets...)

	// Shared validator instance for dependency injection
	val := validator.New()

	leadsModule := leads.NewModule(pool, dispatcher, val, recorder, log)
	funnelsModule := funnels.NewModule(pool, val, log)
	experimentsModule := experiments.NewModule(pool, presigner, val, log)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:      cfg,
		Logger:      log,
		Health:      pool,
		LeadLimiter: limiter,
		Metrics:     recorder,
		Modules: []apphttp.Module{
			leadsModule,
			funnelsModule,
			experimentsModule,
		},
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router.New(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received, gracefully shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err)
	}

	// In-flight deliveries finish before their dependencies are closed.
	drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	if err := eventBus.Close(drainCtx); err != nil {
		log.Error("event bus did not drain", "error", err)
	}
	if closeQueue != nil {
		closeQueue()
	}
	if err := recorder.Close(drainCtx); err != nil {
		log.Error("failed to flush metrics", "error", err)
	}
	log.Info("server stopped")
}

func initLeadLimiter(cfg *config.Config, log *logger.Logger) (ratelimit.Limiter, func()) {
	if cfg.GetRateLimitBackend() != "redis" {
		return ratelimit.NewWindowLimiter(cfg.GetRateLimitRequests(), cfg.GetRateLimitWindow(),
			ratelimit.WithSweepInterval(cfg.GetRateLimitSweepInterval())), nil
	}

	opt, err := redis.ParseURL(cfg.GetRedisURL())
	if err != nil {
		log.Error("invalid REDIS_URL for rate limiter", "error", err)
		panic("invalid REDIS_URL: " + err.Error())
	}
	client := redis.NewClient(opt)
	log.Info("using redis rate limiter")
	return ratelimit.NewRedisLimiter(client, cfg.GetRateLimitRequests(), cfg.GetRateLimitWindow()), func() {
		_ = client.Close()
	}
}

func initPresigner(ctx context.Context, cfg *config.Config, log *logger.Logger) storage.Presigner {
	if !cfg.IsMinIOEnabled() {
		log.Warn("MINIO_ENDPOINT not configured; lead magnet links disabled")
		return nil
	}

	storageSvc, err := storage.NewMinIOService(cfg)
	if err != nil {
		log.Error("failed to initialize storage service", "error", err)
		panic("failed to initialize storage service: " + err.Error())
	}
	if err := withRetry(ctx, log, "ensure lead magnet bucket", 5, 2*time.Second, func() error {
		return storageSvc.EnsureBucketExists(ctx)
	}); err != nil {
		log.Error("failed to ensure storage bucket exists", "error", err, "bucket", cfg.GetMinioBucketLeadMagnets())
		panic("failed to ensure storage bucket exists: " + err.Error())
	}
	log.Info("storage service initialized", "leadMagnetBucket", cfg.GetMinioBucketLeadMagnets())
	return storageSvc
}

func initAutomationQueue(cfg config.SchedulerConfig, log *logger.Logger) (scheduler.EmailAutomationEnqueuer, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; email automation disabled")
		return nil, nil
	}

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize email automation client", "error", err)
		return nil, nil
	}

	return client, func() {
		_ = client.Close()
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
