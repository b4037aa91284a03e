package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"zoomarchive/internal/domain"
	"zoomarchive/internal/zoom"
)

// MeetingManager schedules and edits provider meetings.
type MeetingManager interface {
	Create(ctx context.Context, userID string, in zoom.MeetingRequest) (zoom.ScheduledMeeting, error)
	Update(ctx context.Context, meetingID string, in zoom.MeetingRequest) error
	Reschedule(ctx context.Context, meetingID string, start time.Time) error
	Delete(ctx context.Context, meetingID string) error
	ListForUser(ctx context.Context, userID string) ([]zoom.ScheduledMeeting, error)
	ListAll(ctx context.Context) ([]zoom.ScheduledMeeting, error)
}

// CreateMeeting answers POST /zoom/meetings/users/:userId/meetings.
func (h *Handler) CreateMeeting(c *gin.Context) {
	var in zoom.MeetingRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid meeting body.", "error": err.Error()})
		return
	}
	m, err := h.meetings.Create(c.Request.Context(), c.Param("userId"), in)
	if err != nil {
		h.failMeeting(c, "Failed to create meeting", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Meeting created successfully", "meeting": m})
}

// UpdateMeeting answers PATCH /zoom/meetings/meetings/:meetingId.
func (h *Handler) UpdateMeeting(c *gin.Context) {
	var in zoom.MeetingRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid meeting body.", "error": err.Error()})
		return
	}
	if err := h.meetings.Update(c.Request.Context(), c.Param("meetingId"), in); err != nil {
		h.failMeeting(c, "Failed to update meeting", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Meeting updated successfully", "updatedMeeting": in})
}

// RescheduleMeeting answers PATCH /zoom/meetings/meetings/:meetingId/reschedule.
func (h *Handler) RescheduleMeeting(c *gin.Context) {
	var in struct {
		StartTime time.Time `json:"start_time"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "start_time must be an RFC 3339 timestamp.", "error": err.Error()})
		return
	}
	if err := h.meetings.Reschedule(c.Request.Context(), c.Param("meetingId"), in.StartTime); err != nil {
		h.failMeeting(c, "Failed to reschedule meeting", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Meeting rescheduled successfully"})
}

// DeleteMeeting answers DELETE /zoom/meetings/meetings/:meetingId.
func (h *Handler) DeleteMeeting(c *gin.Context) {
	if err := h.meetings.Delete(c.Request.Context(), c.Param("meetingId")); err != nil {
		h.failMeeting(c, "Failed to delete meeting", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListUserMeetings answers GET /zoom/meetings/users/:userId/meetings.
func (h *Handler) ListUserMeetings(c *gin.Context) {
	ms, err := h.meetings.ListForUser(c.Request.Context(), c.Param("userId"))
	if err != nil {
		h.failMeeting(c, "Failed to list meetings", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"meetings": nonNil(ms)})
}

// ListAllMeetings answers GET /zoom/meetings/meetings.
func (h *Handler) ListAllMeetings(c *gin.Context) {
	ms, err := h.meetings.ListAll(c.Request.Context())
	if err != nil {
		h.failMeeting(c, "Failed to list all meetings", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"meetings": nonNil(ms)})
}

// failMeeting maps validation errors to 400, a provider 404 to 404 and
// everything else to 500.
func (h *Handler) failMeeting(c *gin.Context, label string, err error) {
	if domain.IsKind(err, domain.KindValidation) {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	var apiErr *zoom.APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": label, "message": err.Error()})
		return
	}
	h.log.Error("meeting request failed", slog.String("path", c.FullPath()), slog.String("error", err.Error()))
	c.JSON(http.StatusInternalServerError, gin.H{"error": label, "message": err.Error()})
}

func nonNil(ms []zoom.ScheduledMeeting) []zoom.ScheduledMeeting {
	if ms == nil {
		return []zoom.ScheduledMeeting{}
	}
	return ms
}
