package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"zoomarchive/internal/pipeline"
	"zoomarchive/internal/worker"
	"zoomarchive/internal/zoom"
)

const (
	eventURLValidation     = "endpoint.url_validation"
	eventRecordingComplete = "recording.completed"

	signatureHeader = "x-zm-signature"
	timestampHeader = "x-zm-request-timestamp"

	maxWebhookBody  = 1 << 20
	maxTimestampAge = 5 * time.Minute
)

type webhookEnvelope struct {
	Event   string          `json:"event"`
	EventTS int64           `json:"event_ts"`
	Payload json.RawMessage `json:"payload"`
}

// Webhook accepts provider events. recording.completed meetings are queued
// and acknowledged immediately; the provider never waits on the archive run.
func (h *Handler) Webhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "unreadable body"})
		return
	}

	if h.webhookSecret != "" && !h.validSignature(c, body) {
		h.metrics.Webhook("unknown", "unauthorized")
		c.JSON(http.StatusUnauthorized, gin.H{"message": "invalid webhook signature"})
		return
	}

	var env webhookEnvelope
	if err := json.Unmarshal(body, &env); err != nil || env.Event == "" || len(env.Payload) == 0 {
		h.metrics.Webhook("unknown", "rejected")
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid webhook payload: missing event or payload data."})
		return
	}

	switch env.Event {
	case eventURLValidation:
		h.urlValidation(c, env.Payload)
	case eventRecordingComplete:
		h.recordingCompleted(c, env.Payload)
	default:
		h.metrics.Webhook(env.Event, "ignored")
		h.log.Warn("unhandled webhook event", slog.String("event", env.Event))
		c.JSON(http.StatusOK, gin.H{"message": "ignored"})
	}
}

func (h *Handler) urlValidation(c *gin.Context, raw json.RawMessage) {
	var p struct {
		PlainToken string `json:"plainToken"`
	}
	if err := json.Unmarshal(raw, &p); err != nil || p.PlainToken == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "missing plainToken"})
		return
	}
	if h.webhookSecret == "" {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "webhook secret not configured"})
		return
	}
	h.metrics.Webhook(eventURLValidation, "answered")
	c.JSON(http.StatusOK, gin.H{
		"plainToken":     p.PlainToken,
		"encryptedToken": sign(h.webhookSecret, p.PlainToken),
	})
}

func (h *Handler) recordingCompleted(c *gin.Context, raw json.RawMessage) {
	var p struct {
		AccountID string        `json:"account_id"`
		Object    *zoom.Meeting `json:"object"`
	}
	if err := json.Unmarshal(raw, &p); err != nil || p.Object == nil {
		h.metrics.Webhook(eventRecordingComplete, "rejected")
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid webhook payload: missing event or payload data."})
		return
	}
	if err := pipeline.ValidateWebhookMeeting(*p.Object); err != nil {
		h.metrics.Webhook(eventRecordingComplete, "rejected")
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	if err := worker.Enqueue(c.Request.Context(), h.queue, *p.Object); err != nil {
		h.log.Error("webhook enqueue failed", slog.String("meeting_uuid", p.Object.UUID), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal Server Error while processing webhook."})
		return
	}
	h.metrics.Webhook(eventRecordingComplete, "queued")
	h.log.Info("recording.completed queued",
		slog.String("meeting_uuid", p.Object.UUID),
		slog.Int("files", len(p.Object.RecordingFiles)),
	)
	c.JSON(http.StatusOK, gin.H{"message": "Webhook processed successfully."})
}

// validSignature checks x-zm-signature against v0:<timestamp>:<body>.
func (h *Handler) validSignature(c *gin.Context, body []byte) bool {
	ts := c.GetHeader(timestampHeader)
	got := c.GetHeader(signatureHeader)
	if ts == "" || got == "" {
		return false
	}
	sec, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return false
	}
	if age := h.now().Sub(time.Unix(sec, 0)); age > maxTimestampAge || age < -maxTimestampAge {
		return false
	}
	want := "v0=" + sign(h.webhookSecret, "v0:"+ts+":"+string(body))
	return hmac.Equal([]byte(got), []byte(want))
}

func sign(secret, msg string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(msg))
	return hex.EncodeToString(mac.Sum(nil))
}
