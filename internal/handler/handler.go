package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"zoomarchive/internal/config"
	"zoomarchive/internal/domain"
	"zoomarchive/internal/metrics"
	"zoomarchive/internal/pipeline"
	"zoomarchive/internal/queue"
)

// Runner runs the on-demand archive passes.
type Runner interface {
	RunRange(ctx context.Context, r pipeline.Range) (pipeline.Summary, error)
	RunUser(ctx context.Context, userID string, r pipeline.Range) (pipeline.Summary, error)
}

// HealthChecker reports whether a dependency is reachable.
type HealthChecker interface {
	Healthy(ctx context.Context) bool
}

// Handler serves the trigger endpoints.
type Handler struct {
	runner        Runner
	queue         queue.Queue
	meetings      MeetingManager
	location      *time.Location
	now           func() time.Time
	webhookSecret string
	tenantKey     string
	tenant        config.Tenant
	checks        map[string]HealthChecker
	metrics       *metrics.Metrics
	log           *slog.Logger
}

// Options configure a Handler.
type Options struct {
	Runner        Runner
	Queue         queue.Queue
	Meetings      MeetingManager
	Location      *time.Location
	WebhookSecret string
	TenantKey     string
	Tenant        config.Tenant
	Checks        map[string]HealthChecker
	Metrics       *metrics.Metrics
	Log           *slog.Logger
	Now           func() time.Time
}

// New creates a handler.
func New(o Options) *Handler {
	if o.Location == nil {
		o.Location = time.UTC
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Log == nil {
		o.Log = slog.Default()
	}
	return &Handler{
		runner:        o.Runner,
		queue:         o.Queue,
		meetings:      o.Meetings,
		location:      o.Location,
		now:           o.Now,
		webhookSecret: o.WebhookSecret,
		tenantKey:     o.TenantKey,
		tenant:        o.Tenant,
		checks:        o.Checks,
		metrics:       o.Metrics,
		log:           o.Log,
	}
}

// Banner answers GET /.
func (h *Handler) Banner(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Zoom recording archiver is running", "tenant": h.tenantKey})
}

// Healthz reports each configured dependency.
func (h *Handler) Healthz(c *gin.Context) {
	status := http.StatusOK
	results := gin.H{}
	for name, chk := range h.checks {
		ok := chk.Healthy(c.Request.Context())
		results[name] = ok
		if !ok {
			status = http.StatusServiceUnavailable
		}
	}
	state := "ok"
	if status != http.StatusOK {
		state = "degraded"
	}
	c.JSON(status, gin.H{"status": state, "checks": results})
}

// Tenant reports the active tenant without credentials.
func (h *Handler) Tenant(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"key":           h.tenantKey,
		"name":          h.tenant.Name,
		"api_base_url":  h.tenant.APIBaseURL,
		"auth_mode":     h.tenant.AuthMode,
		"allowed_hosts": h.tenant.AllowedHosts,
	})
}

// DownloadAll archives every target user's recordings between fromDate and toDate.
func (h *Handler) DownloadAll(c *gin.Context) {
	r, err := pipeline.ParseRange(c.Query("fromDate"), c.Query("toDate"), h.now(), h.location)
	if err != nil {
		h.fail(c, err)
		return
	}
	sum, err := h.runner.RunRange(detach(c), r)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Recordings and attendance downloaded successfully.", "summary": sum})
}

// DownloadByUser archives one user's recordings between fromDate and toDate.
func (h *Handler) DownloadByUser(c *gin.Context) {
	userID := c.Query("userId")
	if userID == "" {
		h.fail(c, domain.NewValidationError("User ID is required."))
		return
	}
	r, err := pipeline.ParseRange(c.Query("fromDate"), c.Query("toDate"), h.now(), h.location)
	if err != nil {
		h.fail(c, err)
		return
	}
	sum, err := h.runner.RunUser(detach(c), userID, r)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Recordings and attendance downloaded successfully.", "summary": sum})
}

// fail maps validation errors to 400 and everything else to 500.
func (h *Handler) fail(c *gin.Context, err error) {
	if domain.IsKind(err, domain.KindValidation) {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	h.log.Error("archive request failed", slog.String("path", c.FullPath()), slog.String("error", err.Error()))
	c.JSON(http.StatusInternalServerError, gin.H{
		"message": "Failed to download recordings and attendance.",
		"error":   err.Error(),
	})
}

// detach keeps a started run going if the client disconnects.
func detach(c *gin.Context) context.Context {
	return context.WithoutCancel(c.Request.Context())
}
