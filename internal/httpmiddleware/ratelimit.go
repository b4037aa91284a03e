package httpmiddleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// RateLimitMessage is returned with 429 responses.
const RateLimitMessage = "Too many requests, please try again later."

// FixedWindow allows limit requests per client IP in each window.
// State is in memory and per process.
type FixedWindow struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	clients map[string]*windowState
}

type windowState struct {
	start time.Time
	count int
}

// NewFixedWindow creates a limiter. limit <= 0 disables limiting.
func NewFixedWindow(limit int, window time.Duration) *FixedWindow {
	if window <= 0 {
		window = 15 * time.Minute
	}
	return &FixedWindow{
		limit:   limit,
		window:  window,
		now:     time.Now,
		clients: make(map[string]*windowState),
	}
}

// GinMiddleware returns a gin handler enforcing per-IP limits.
func (l *FixedWindow) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if l.limit <= 0 {
			c.Next()
			return
		}
		ip := c.ClientIP()
		if ip == "" {
			ip = "unknown"
		}
		remaining, reset, ok := l.allow(ip)
		c.Header("RateLimit-Limit", strconv.Itoa(l.limit))
		c.Header("RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("RateLimit-Reset", strconv.Itoa(int(reset.Seconds())))
		if !ok {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"message": RateLimitMessage})
			return
		}
		c.Next()
	}
}

func (l *FixedWindow) allow(key string) (remaining int, reset time.Duration, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	st, found := l.clients[key]
	if !found || now.Sub(st.start) >= l.window {
		l.sweep(now)
		st = &windowState{start: now}
		l.clients[key] = st
	}
	reset = st.start.Add(l.window).Sub(now)
	if st.count >= l.limit {
		return 0, reset, false
	}
	st.count++
	return l.limit - st.count, reset, true
}

// sweep drops expired windows; callers hold mu.
func (l *FixedWindow) sweep(now time.Time) {
	for k, st := range l.clients {
		if now.Sub(st.start) >= l.window {
			delete(l.clients, k)
		}
	}
}
