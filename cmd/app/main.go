package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"interview-sessions/internal/config"
	"interview-sessions/internal/infra/api"
	pg "interview-sessions/internal/infra/db/postgres"
	"interview-sessions/internal/infra/events"
	"interview-sessions/internal/infra/logging"
	"interview-sessions/internal/infra/metrics"
	red "interview-sessions/internal/infra/redis"
	"interview-sessions/internal/infra/sched"
	"interview-sessions/internal/infra/worker"
	"interview-sessions/internal/usecase"
)

// Set by -ldflags at build time.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, debug level)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("service stopped with error")
	}
	logger.Info().Msg("shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) error {
	if cfg.Metrics.Enabled {
		metrics.MustRegister()
		metrics.SetBuildInfo(version, commit)
	}

	// ---- Postgres ----
	if cfg.Database.AutoMigrate {
		if err := pg.Migrate(cfg.Database.URL); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		logger.Info().Msg("migrations applied")
	}
	pool, err := pg.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()
	go pg.ReportPoolStats(ctx, pool, 15*time.Second, logger)

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	defer redisClient.Close()
	limiter := red.NewRateLimiter(redisClient)
	workerLock := red.NewLocker(redisClient, 1)

	// ---- Repositories ----
	tm := pg.NewTxManager(pool)
	poolRepo := pg.NewSessionPoolRepo(pool)
	allocRepo := pg.NewAllocationRepo(pool)
	purchaseRepo := pg.NewSessionPurchaseRepo(pool)
	requestRepo := pg.NewSessionRequestRepo(pool)
	changeRepo := pg.NewScheduledChangeRepo(pool)
	pricingRepo := pg.NewPricingRepoCacheDecorator(pg.NewPricingRepo(pool), redisClient, cfg.Redis.TTL, logger)

	// ---- Use cases ----
	opts := usecase.Options{MaxRetries: cfg.Engine.MaxRetries, RetryBackoff: cfg.Engine.RetryBackoff}
	limit := usecase.RequestLimit{Limit: cfg.Engine.RequestRateLimit, Window: cfg.Engine.RequestRateWindow}

	poolUC := usecase.NewPoolUseCase(poolRepo, allocRepo, purchaseRepo, tm, tm, opts, logger)
	allocUC := usecase.NewAllocationUseCase(allocRepo, poolUC, tm, tm, opts, logger)
	requestUC := usecase.NewSessionRequestUseCase(requestRepo, allocUC, tm, tm, limiter, limit, opts, logger)
	pricingUC := usecase.NewPricingUseCase(pricingRepo, tm, tm, opts, logger)
	changeUC := usecase.NewScheduledChangeUseCase(changeRepo, pricingRepo, tm, tm, opts, logger)

	// ---- Price change worker ----
	priceWorker := sched.NewPriceChangeWorker(cfg.Scheduler.PriceChangeInterval, cfg.Scheduler.LockTTL, changeUC, workerLock, logger)
	go func() { _ = priceWorker.Run(ctx) }()

	// ---- NATS (optional) ----
	if cfg.NATS.URL != "" {
		nc, err := events.Connect(cfg.NATS.URL, logger)
		if err != nil {
			return err
		}
		defer nc.Close()
		eventPool := worker.NewPool(cfg.NATS.Workers, logger)
		eventPool.Start(ctx)
		defer eventPool.Stop()
		consumer := events.NewConsumer(nc, cfg.NATS, poolUC, allocUC, logger).WithPool(eventPool)
		if err := consumer.Start(); err != nil {
			return err
		}
		defer consumer.Close()
	} else {
		logger.Warn().Msg("nats.url not set; event intake disabled")
	}

	// ---- HTTP ----
	auth := api.NewAuthManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TTL)
	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	srv := api.NewServer(api.UseCases{
		Pools:    poolUC,
		Allocs:   allocUC,
		Requests: requestUC,
		Pricing:  pricingUC,
		Changes:  changeUC,
	}, auth, api.Options{RequestTimeout: cfg.HTTP.RequestTimeout, MetricsPath: metricsPath}, logger)

	logger.Info().Str("version", version).Bool("dev", cfg.Runtime.Dev).Msg("interview-sessions starting")
	return srv.Run(ctx, cfg.HTTP.Addr)
}
