// Package app assembles the archive pipeline and its backing services from
// configuration. Every binary starts here.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
	// Archive and schedule zones must resolve in minimal containers.
	_ "time/tzdata"

	"github.com/prometheus/client_golang/prometheus"

	"zoomarchive/internal/archive"
	"zoomarchive/internal/attendance"
	"zoomarchive/internal/auth"
	"zoomarchive/internal/catalog"
	"zoomarchive/internal/config"
	"zoomarchive/internal/hostfilter"
	"zoomarchive/internal/meetings"
	"zoomarchive/internal/metrics"
	"zoomarchive/internal/pipeline"
	"zoomarchive/internal/queue"
	"zoomarchive/internal/store"
	"zoomarchive/internal/zoom"
)

const (
	QueueMemory = "memory"
	QueueRedis  = "redis"
)

// App is the wired object graph for one tenant.
type App struct {
	Config     *config.App
	TenantKey  string
	Tenant     config.Tenant
	ArchiveLoc *time.Location

	Pipeline *pipeline.Pipeline
	Meetings *meetings.Service
	Catalog  catalog.Catalog
	Metrics  *metrics.Metrics
	Queue    queue.Queue
	Redis    *store.Redis
	Log      *slog.Logger

	db *store.DB
}

// Build resolves the active tenant and wires the pipeline. reg may be nil
// to skip metric registration.
func Build(ctx context.Context, cfg *config.App, reg prometheus.Registerer, log *slog.Logger) (*App, error) {
	key, tenant, err := cfg.ResolveTenant()
	if err != nil {
		return nil, err
	}
	loc, err := cfg.ArchiveLocation()
	if err != nil {
		return nil, fmt.Errorf("archive time zone %q: %w", cfg.ArchiveTimeZone, err)
	}
	log = log.With(slog.String("tenant", key))

	a := &App{
		Config:     cfg,
		TenantKey:  key,
		Tenant:     tenant,
		ArchiveLoc: loc,
		Log:        log,
		Catalog:    catalog.Nop{},
	}
	if reg != nil {
		a.Metrics = metrics.New(reg)
	}

	if cfg.DatabaseURL != "" {
		db, err := store.OpenDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		pg := catalog.NewPostgres(db.Client)
		if err := pg.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate catalog: %w", err)
		}
		a.db = db
		a.Catalog = pg
		log.Info("archive catalog enabled")
	}

	switch cfg.QueueBackend {
	case QueueMemory:
		a.Queue = queue.NewInMemory(64)
	case QueueRedis:
		a.Redis = store.NewRedis(cfg.RedisAddr)
		a.Queue = queue.NewRedisQueue(a.Redis.Client, cfg.QueueKey, log)
	default:
		a.Close()
		return nil, fmt.Errorf("unknown queue backend %q", cfg.QueueBackend)
	}

	tokens, err := auth.NewTokenSource(tenant, &http.Client{Timeout: cfg.HTTPTimeout})
	if err != nil {
		a.Close()
		return nil, err
	}
	api := zoom.New(tenant.APIBaseURL, cfg.PageSize, cfg.HTTPTimeout)
	layout := archive.NewLayout(cfg.DownloadDir, loc)

	a.Pipeline = pipeline.New(pipeline.Deps{
		Tokens:     tokens,
		API:        api,
		Attendance: attendance.NewService(api, layout, log),
		Downloader: archive.NewDownloader(layout, log),
		Hosts:      hostfilter.New(tenant.AllowedHosts),
		Catalog:    a.Catalog,
		Metrics:    a.Metrics,
		Log:        log,
	}, pipeline.Options{
		Tenant:              key,
		UserIDs:             cfg.UserIDs,
		DeleteAfterDownload: cfg.DeleteAfterDownload,
		Location:            loc,
	})
	a.Meetings = meetings.New(tokens, api, log.With(slog.String("component", "meetings")))

	log.Info("archiver configured",
		slog.String("tenant_name", tenant.Name),
		slog.String("auth_mode", tenant.AuthMode),
		slog.String("download_dir", cfg.DownloadDir),
		slog.String("archive_tz", loc.String()),
		slog.String("queue", cfg.QueueBackend),
		slog.Bool("delete_after_download", cfg.DeleteAfterDownload),
		slog.Int("user_ids", len(cfg.UserIDs)),
	)
	return a, nil
}

// ScheduledRun is the schedule job: it archives the day firedAt falls on.
func (a *App) ScheduledRun(ctx context.Context, firedAt time.Time) error {
	sum, err := a.Pipeline.RunScheduled(ctx, firedAt)
	if err != nil {
		return err
	}
	a.Log.Info("scheduled archive run finished",
		slog.String("run_id", sum.RunID),
		slog.String("day", sum.From),
		slog.Int("meetings", sum.Meetings),
		slog.Int("files_downloaded", sum.FilesDownloaded),
		slog.Int("files_failed", sum.FilesFailed),
	)
	return nil
}

// Close releases the database pool and redis client.
func (a *App) Close() error {
	return errors.Join(a.db.Close(), a.Redis.Close())
}
