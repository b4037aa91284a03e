package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"zoomarchive/internal/app"
	"zoomarchive/internal/config"
	"zoomarchive/internal/logger"
	"zoomarchive/internal/worker"
)

// Worker consumes queued recording.completed jobs and archives each meeting.
func main() {
	cfg := config.MustLoad()
	log := logger.ForEnv(cfg.Env, cfg.LogLevel).With(slog.String("component", "worker"))
	slog.SetDefault(log)

	if cfg.QueueBackend != app.QueueRedis {
		log.Error("worker needs QUEUE_BACKEND=redis; the memory queue is drained inside the api process")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, nil, log)
	if err != nil {
		log.Error("worker setup failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer a.Close()

	if !a.Redis.Healthy(ctx) {
		log.Warn("redis not reachable yet, consumer will retry", slog.String("addr", cfg.RedisAddr))
	}

	if err := worker.Consume(ctx, a.Queue, a.Pipeline, log); err != nil {
		log.Error("worker failed", slog.String("error", err.Error()))
	}
}
