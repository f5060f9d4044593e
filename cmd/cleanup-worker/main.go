package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sizif-22/eventy-back/internal/cleanup"
	"github.com/sizif-22/eventy-back/internal/events"
	"github.com/sizif-22/eventy-back/pkg/config"
	"github.com/sizif-22/eventy-back/pkg/db"
	"github.com/sizif-22/eventy-back/pkg/logger"
	"github.com/sizif-22/eventy-back/pkg/metrics"
	"github.com/sizif-22/eventy-back/pkg/migrate"
	"github.com/sizif-22/eventy-back/pkg/redis"
)

const lockNameFormat = "cleanup-worker:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cleanup-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "cleanup-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	metricsCollector := metrics.NewWorkerJobMetrics(prometheus.DefaultRegisterer)
	lock, err := cleanup.NewRedisLock(redisClient, redisClient.LockKey(lockName(cfg.App.Env)), cfg.Cleanup.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cleanup lock", err)
		os.Exit(1)
	}

	pendingJob, err := cleanup.NewPendingVerificationJob(cleanup.PendingVerificationJobParams{
		Logger:     logg,
		Repository: events.NewRepository(dbClient.DB()),
		Window:     cfg.Verification.CodeTTL,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create pending verification job", err)
		os.Exit(1)
	}

	service, err := cleanup.NewService(cleanup.ServiceParams{
		Logger:   logg,
		Registry: cleanup.NewRegistry(pendingJob),
		Lock:     lock,
		Metrics:  metricsCollector,
		Interval: cfg.Cleanup.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cleanup service", err)
		os.Exit(1)
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{Addr: ":" + cfg.Metrics.Port, Handler: metricsMux}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logg.Error(context.Background(), "metrics listener stopped unexpectedly", err)
		}
	}()
	defer metricsServer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env": cfg.App.Env,
	})
	logg.Info(ctx, "starting cleanup worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cleanup worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cleanup worker shutting down gracefully")
}

func lockName(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockNameFormat, env)
}
