package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/startupsquad-prog/company-os-sub003/internal/access"
	"github.com/startupsquad-prog/company-os-sub003/internal/app"
	"github.com/startupsquad-prog/company-os-sub003/internal/audit"
	"github.com/startupsquad-prog/company-os-sub003/internal/authz"
	"github.com/startupsquad-prog/company-os-sub003/internal/crm/leads"
	"github.com/startupsquad-prog/company-os-sub003/internal/gateway"
	"github.com/startupsquad-prog/company-os-sub003/internal/notify"
	"github.com/startupsquad-prog/company-os-sub003/internal/observability"
	"github.com/startupsquad-prog/company-os-sub003/internal/platform/cache"
	"github.com/startupsquad-prog/company-os-sub003/internal/support/tickets"
	"github.com/startupsquad-prog/company-os-sub003/jobs"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] != "serve" {
		os.Exit(runCommand(os.Args[1:]))
	}
	if app.SkipStartup(slog.Default(), "server") {
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
		logger.Error("open store", slog.String("driver", cfg.StorageDriver), slog.Any("error", err))
		os.Exit(1)
	}
	defer closeStore()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	accessMetrics := observability.NewAccessMetrics(metrics.Registerer())

	resolver := &authz.SessionResolver{
		Sessions:    authz.NewSessionStore(redisClient, cfg.SessionTTL),
		Store:       store,
		Permissions: authz.NewPermissionStore(store, redisClient, cfg.PermissionCacheTTL, logger),
	}
	guard := access.NewGuard(authz.ContextResolver{}, authz.RoleEvaluator{}, logger, accessMetrics)

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobClient := jobs.NewClient(redisOpts)
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	notifier := notify.NewNotifier(notify.NewOutbox(), jobClient, logger, cfg.NotifyDispatchTimeout)

	gw, err := gateway.New(gateway.Config{
		Store:    store,
		Guard:    guard,
		History:  audit.NewHistory(),
		Notifier: notifier,
		Logger:   logger,
		Metrics:  accessMetrics,
	})
	if err != nil {
		logger.Error("init gateway", slog.Any("error", err))
		os.Exit(1)
	}

	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		Auth:           &authz.Middleware{Resolver: resolver, Evaluator: guard.Evaluator(), Logger: logger},
		LeadsHandler:   leads.NewHandler(logger, leads.NewService(gw, nil, logger)),
		TicketsHandler: tickets.NewHandler(logger, tickets.NewService(gw, logger)),
		JobHandler:     jobs.NewHandler(inspector, logger),
		Metrics:        metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("http server listening", slog.String("addr", cfg.AppAddr), slog.String("storage", cfg.StorageDriver))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
	notifier.Wait()
}
