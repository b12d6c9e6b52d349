package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"github.com/nikhilbhutani/docreader/internal/app"
	"github.com/nikhilbhutani/docreader/internal/config"
	"github.com/nikhilbhutani/docreader/internal/queue"
	"github.com/nikhilbhutani/docreader/internal/queue/workers"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using process environment")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	app.SetupLogging(cfg, os.Stdout)
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}
	if cfg.Redis.Addr == "" {
		slog.Error("missing required env vars: REDIS_ADDR")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, err := app.NewServices(ctx, cfg)
	if err != nil {
		slog.Error("failed to build document reader", "error", err)
		os.Exit(1)
	}
	defer svc.Close()
	go svc.PurgeStale(ctx, 10*time.Minute, time.Hour)

	// Each job runs a full extract/index/query cycle with its own embedding
	// fan-out, so keep concurrency low.
	const concurrency = 4
	srv := asynq.NewServer(queue.RedisOpt(cfg.Redis), asynq.Config{
		Concurrency:     concurrency,
		ShutdownTimeout: 30 * time.Second,
	})

	registry := queue.NewHandlersRegistry()
	registry.Register(queue.TypeDocumentQuery, workers.NewDocumentWorker(svc.Reader))

	slog.Info("starting worker", "concurrency", concurrency)
	if err := srv.Start(registry.Mux()); err != nil {
		slog.Error("worker error", "error", err)
		os.Exit(1)
	}
	<-ctx.Done()
	slog.Info("shutting down worker...")
	srv.Shutdown()
}
