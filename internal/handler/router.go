package handler

import (
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"zoomarchive/internal/auth"
	"zoomarchive/internal/httpmiddleware"
)

// RouterOptions configure the HTTP surface around a Handler.
type RouterOptions struct {
	CORSOrigins     []string
	RateLimitMax    int
	RateLimitWindow time.Duration
	AdminJWTKey     string
	AdminJWTIssuer  string
	Gatherer        prometheus.Gatherer
}

// NewRouter wires middleware and routes.
func NewRouter(h *Handler, o RouterOptions) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(cors.New(corsConfig(o.CORSOrigins)))
	r.Use(httpmiddleware.SecurityHeaders())
	r.Use(httpmiddleware.NewFixedWindow(o.RateLimitMax, o.RateLimitWindow).GinMiddleware())

	gatherer := o.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	r.GET("/healthz", h.Healthz)
	r.GET("/", h.Banner)

	zoomGroup := r.Group("/zoom")
	zoomGroup.POST("/webhook", h.Webhook)

	admin := zoomGroup.Group("", auth.AdminAuth(o.AdminJWTKey, o.AdminJWTIssuer))
	admin.GET("/download-all", h.DownloadAll)
	admin.GET("/download-by-user", h.DownloadByUser)
	admin.GET("/tenant", h.Tenant)

	if h.meetings != nil {
		m := admin.Group("/meetings")
		m.POST("/users/:userId/meetings", h.CreateMeeting)
		m.GET("/users/:userId/meetings", h.ListUserMeetings)
		m.GET("/meetings", h.ListAllMeetings)
		m.PATCH("/meetings/:meetingId", h.UpdateMeeting)
		m.DELETE("/meetings/:meetingId", h.DeleteMeeting)
		m.PATCH("/meetings/:meetingId/reschedule", h.RescheduleMeeting)
	}

	return r
}

// corsConfig allows the listed origins with credentials, or any origin
// without credentials when the list is empty or contains "*".
func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
		MaxAge:       12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}
