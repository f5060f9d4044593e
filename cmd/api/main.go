package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sizif-22/eventy-back/api/routes"
	"github.com/sizif-22/eventy-back/internal/clock"
	"github.com/sizif-22/eventy-back/internal/dispatch"
	"github.com/sizif-22/eventy-back/internal/events"
	"github.com/sizif-22/eventy-back/internal/messages"
	"github.com/sizif-22/eventy-back/internal/scheduler"
	"github.com/sizif-22/eventy-back/internal/verification"
	"github.com/sizif-22/eventy-back/pkg/config"
	"github.com/sizif-22/eventy-back/pkg/db"
	"github.com/sizif-22/eventy-back/pkg/logger"
	"github.com/sizif-22/eventy-back/pkg/mailer"
	"github.com/sizif-22/eventy-back/pkg/metrics"
	"github.com/sizif-22/eventy-back/pkg/migrate"
	"github.com/sizif-22/eventy-back/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	clk, err := clock.New(cfg.Scheduler.Timezone)
	if err != nil {
		logg.Error(context.Background(), "failed to load scheduler timezone", err)
		os.Exit(1)
	}

	schedMetrics := metrics.NewSchedulerMetrics(prometheus.DefaultRegisterer)

	messagesRepo := messages.NewRepository(dbClient.DB())
	eventsRepo := events.NewRepository(dbClient.DB())
	eventsService := events.NewService(events.ServiceParams{
		Repo:   eventsRepo,
		Logger: logg,
	})

	smtpMailer := mailer.NewSMTP(cfg.SMTP)

	dispatcher := dispatch.NewDispatcher(dispatch.ServiceParams{
		Messages:    messagesRepo,
		Events:      eventsService,
		Mailer:      smtpMailer,
		Logger:      logg,
		Metrics:     schedMetrics,
		Retry:       retryPolicy(cfg.Scheduler),
		SendTimeout: cfg.SMTP.SendTimeout,
	})

	timers := scheduler.NewTimers(scheduler.TimersParams{
		Clock:           clk,
		Dispatcher:      dispatcher,
		Logger:          logg,
		Metrics:         schedMetrics,
		DispatchTimeout: cfg.Scheduler.DispatchTimeout,
	})
	timers.Start()
	defer timers.Stop()

	schedulerService := scheduler.NewService(scheduler.ServiceParams{
		Clock:      clk,
		Timers:     timers,
		Dispatcher: dispatcher,
		Messages:   messagesRepo,
		Events:     eventsService,
		Logger:     logg,
	})

	verificationService := verification.NewService(verification.ServiceParams{
		Repo:   eventsRepo,
		Codes:  redisClient,
		Mailer: smtpMailer,
		Logger: logg,
		Config: cfg.Verification,
	})

	// Replay anything that was pending when the previous process died:
	// past-due messages go out now, future ones get their timers back.
	report, err := schedulerService.Bootstrap(context.Background())
	if err != nil {
		logg.Error(context.Background(), "failed to replay unsent messages", err)
		os.Exit(1)
	}
	logg.Info(logg.WithFields(context.Background(), map[string]any{
		"missed":  report.Missed,
		"rearmed": report.Rearmed,
		"failed":  report.Failed,
	}), "unsent message replay complete")

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:       cfg,
			Logger:       logg,
			DB:           dbClient,
			Redis:        redisClient,
			Scheduler:    schedulerService,
			Verification: verificationService,
			Messages:     messagesRepo,
		}),
	}

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-stopCtx.Done():
		logg.Info(ctx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "error during server shutdown", err)
		}
	}
}

func retryPolicy(cfg config.SchedulerConfig) dispatch.RetryPolicy {
	if cfg.MaxAttempts > 1 {
		return dispatch.FixedBackoff{MaxAttempts: cfg.MaxAttempts, Delay: cfg.RetryDelay}
	}
	return dispatch.NoRetry{}
}
