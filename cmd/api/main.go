package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"zoomarchive/internal/app"
	"zoomarchive/internal/config"
	"zoomarchive/internal/handler"
	"zoomarchive/internal/logger"
	"zoomarchive/internal/schedule"
	"zoomarchive/internal/worker"
)

func main() {
	cfg := config.MustLoad()
	log := logger.ForEnv(cfg.Env, cfg.LogLevel)
	slog.SetDefault(log)

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := run(cfg, log); err != nil {
		log.Error("http server failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(cfg *config.App, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, prometheus.DefaultRegisterer, log)
	if err != nil {
		return err
	}
	defer a.Close()

	checks := map[string]handler.HealthChecker{"catalog": a.Catalog}
	if a.Redis != nil {
		checks["redis"] = a.Redis
	}

	// With the in-memory queue the webhook consumer has to live in this process.
	if cfg.QueueBackend == app.QueueMemory {
		go func() {
			if err := worker.Consume(ctx, a.Queue, a.Pipeline, log.With(slog.String("component", "worker"))); err != nil {
				log.Error("webhook consumer stopped", slog.String("error", err.Error()))
			}
		}()
	}

	if cfg.Schedule.Enabled {
		if err := startSchedule(ctx, cfg, a); err != nil {
			return err
		}
	}

	h := handler.New(handler.Options{
		Runner:        a.Pipeline,
		Queue:         a.Queue,
		Meetings:      a.Meetings,
		Location:      a.ArchiveLoc,
		WebhookSecret: cfg.WebhookSecret,
		TenantKey:     a.TenantKey,
		Tenant:        a.Tenant,
		Checks:        checks,
		Metrics:       a.Metrics,
		Log:           log,
	})
	r := handler.NewRouter(h, handler.RouterOptions{
		CORSOrigins:     cfg.CORSOrigins,
		RateLimitMax:    cfg.RateLimitMax,
		RateLimitWindow: cfg.RateLimitWindow,
		AdminJWTKey:     cfg.AdminJWTKey,
		AdminJWTIssuer:  cfg.AdminJWTIssuer,
	})
	if cfg.AdminJWTKey == "" {
		log.Warn("ADMIN_JWT_KEY not set, trigger endpoints are unauthenticated")
	}
	if cfg.WebhookSecret == "" {
		log.Warn("ZOOM_WEBHOOK_SECRET not set, webhook signatures are not verified")
	}

	// Range runs are synchronous and can take minutes, so no write timeout.
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           r,
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("server forced shutdown", slog.String("error", err.Error()))
	}
	log.Info("server exited")
	return nil
}

// startSchedule runs the daily archive in the background.
func startSchedule(ctx context.Context, cfg *config.App, a *app.App) error {
	loc, err := cfg.ScheduleLocation()
	if err != nil {
		return fmt.Errorf("schedule time zone %q: %w", cfg.Schedule.TimeZone, err)
	}
	s, err := schedule.New(cfg.Schedule.Cron, loc, a.ScheduledRun, a.Log.With(slog.String("component", "schedule")))
	if err != nil {
		return err
	}
	go s.Run(ctx)
	return nil
}
