package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/startupsquad-prog/company-os-sub003/internal/app"
	jobmetrics "github.com/startupsquad-prog/company-os-sub003/internal/jobs"
	"github.com/startupsquad-prog/company-os-sub003/internal/notify"
	"github.com/startupsquad-prog/company-os-sub003/internal/observability"
	"github.com/startupsquad-prog/company-os-sub003/jobs"
)

const sweepLimit = 200

func main() {
	if app.SkipStartup(slog.Default(), "worker") {
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	store, closeStore, err := app.OpenStore(ctx, cfg)
	if err != nil {
		logger.Error("open store", slog.Any("error", err))
		os.Exit(1)
	}
	defer closeStore()

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	client := jobs.NewClient(redisOpts)
	defer func() {
		if err := client.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	relay := notify.NewRelay(store, notify.NewOutbox(), notify.LogDeliverer{Logger: logger}, client, logger)
	notificationJob := jobs.NewNotificationJob(relay, logger, jobmetrics.NewMetrics(metrics.Registerer()), cfg.NotifySweepAge)

	sweepTask, err := jobs.NewSweepTask(int(cfg.NotifySweepAge.Seconds()), sweepLimit)
	if err != nil {
		logger.Error("build sweep task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   redisOpts,
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers:    notificationJob.Handlers(),
		Cron: []jobs.CronRegistration{
			{Spec: "@every 1m", Task: sweepTask, Options: []asynq.Option{asynq.Queue(jobs.QueueDefault), asynq.MaxRetry(1)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	metricsServer := &http.Server{Addr: cfg.WorkerMetricsAddr, Handler: metrics.Handler()}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("worker metrics server", slog.Any("error", err))
		}
	}()
	defer func() { _ = metricsServer.Close() }()

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
