package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/ops-wrangler/wrangler/internal/access"
	"github.com/ops-wrangler/wrangler/internal/app"
	"github.com/ops-wrangler/wrangler/internal/audit"
	"github.com/ops-wrangler/wrangler/internal/commands"
	"github.com/ops-wrangler/wrangler/internal/gateway"
	"github.com/ops-wrangler/wrangler/internal/observability"
	"github.com/ops-wrangler/wrangler/internal/permissions"
	"github.com/ops-wrangler/wrangler/internal/platform/db"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping gateway startup")
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		logger.Error("apply schema", slog.Any("error", err))
		os.Exit(1)
	}

	store := permissions.NewPGStore(pool)
	auditLog := audit.NewLog(audit.NewPGRepository(pool), cfg.HistoryMaxEntries)
	controller := access.NewController(store)
	registry := commands.NewRegistry(logger, store, auditLog, controller)
	metrics := observability.NewMetrics()

	worker, err := gateway.NewWorker(gateway.WorkerConfig{
		RedisOpts:   asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:      logger,
		Registry:    registry,
		Responder:   gateway.LogResponder{Logger: logger},
		Metrics:     metrics,
		Concurrency: cfg.GatewayConcurrency,
	})
	if err != nil {
		logger.Error("init gateway worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("gateway run", slog.Any("error", err))
		os.Exit(1)
	}
}
