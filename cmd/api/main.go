package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ops-wrangler/wrangler/internal/access"
	"github.com/ops-wrangler/wrangler/internal/app"
	"github.com/ops-wrangler/wrangler/internal/audit"
	"github.com/ops-wrangler/wrangler/internal/commands"
	"github.com/ops-wrangler/wrangler/internal/interactions"
	"github.com/ops-wrangler/wrangler/internal/observability"
	"github.com/ops-wrangler/wrangler/internal/permissions"
	"github.com/ops-wrangler/wrangler/internal/platform/db"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	if cfg.PublicKey == "" {
		logger.Error("PUBLIC_KEY is required for the webhook channel")
		os.Exit(1)
	}

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

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	store := permissions.NewPGStore(pool)
	auditLog := audit.NewLog(audit.NewPGRepository(pool), cfg.HistoryMaxEntries)
	controller := access.NewController(store)
	registry := commands.NewRegistry(logger, store, auditLog, controller)
	metrics := observability.NewMetrics()

	handler := interactions.NewHandler(interactions.HandlerConfig{
		Logger:    logger,
		PublicKey: cfg.PublicKey,
		MaxAge:    cfg.SignatureMaxAge,
		Replay:    interactions.NewReplayGuard(redisClient, 2*cfg.SignatureMaxAge),
		Registry:  registry,
		Metrics:   metrics,
	})

	router := app.NewRouter(app.RouterParams{
		Logger:              logger,
		Config:              cfg,
		InteractionsHandler: handler,
		Metrics:             metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting webhook server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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
}
