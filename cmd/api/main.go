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

	"github.com/joho/godotenv"

	"github.com/nikhilbhutani/docreader/internal/api"
	"github.com/nikhilbhutani/docreader/internal/app"
	"github.com/nikhilbhutani/docreader/internal/cache"
	"github.com/nikhilbhutani/docreader/internal/completion"
	"github.com/nikhilbhutani/docreader/internal/config"
	"github.com/nikhilbhutani/docreader/internal/queue"
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	caller, err := completion.NewCaller(cfg.Azure)
	if err != nil {
		slog.Error("failed to create completion caller", "error", err)
		os.Exit(1)
	}

	svc, err := app.NewServices(ctx, cfg)
	if err != nil {
		slog.Error("failed to build document reader", "error", err)
		os.Exit(1)
	}
	defer svc.Close()
	go svc.PurgeStale(ctx, 10*time.Minute, time.Hour)

	deps := api.Deps{Caller: caller, Reader: svc.Reader}
	if svc.Pool != nil {
		deps.Database = svc.Pool
	}

	// Redis is optional: without it there is no answer cache, no async jobs
	// and rate limiting stays per process.
	if cfg.Redis.Addr != "" {
		rdb := cache.NewClient(cfg.Redis)
		defer rdb.Close()
		c := cache.NewCache(rdb)
		if err := c.Ping(ctx); err != nil {
			slog.Warn("redis unavailable at startup", "addr", cfg.Redis.Addr, "error", err)
		}
		deps.Cache = c

		jobs := queue.NewClient(cfg.Redis)
		defer jobs.Close()
		deps.Jobs = jobs
	}

	handler := api.NewRouter(cfg, deps).Setup(ctx)

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      handler,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("starting API server", "addr", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	slog.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced shutdown", "error", err)
	}
	slog.Info("server stopped")
}
