// Package meetings schedules, edits and lists provider meetings on behalf
// of the archive's operators.
package meetings

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"zoomarchive/internal/auth"
	"zoomarchive/internal/domain"
	"zoomarchive/internal/zoom"
)

// API is the subset of the provider client the service calls.
type API interface {
	ListUsers(ctx context.Context, token string) (zoom.UserList, error)
	CreateMeeting(ctx context.Context, token, userID string, in zoom.MeetingRequest) (zoom.ScheduledMeeting, error)
	UpdateMeeting(ctx context.Context, token, meetingID string, in zoom.MeetingRequest) error
	DeleteMeeting(ctx context.Context, token, meetingID string) error
	ListMeetings(ctx context.Context, token, userID string) ([]zoom.ScheduledMeeting, error)
}

// Service fetches a fresh token for every call.
type Service struct {
	tokens auth.TokenSource
	api    API
	log    *slog.Logger
}

// New creates a Service.
func New(tokens auth.TokenSource, api API, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{tokens: tokens, api: api, log: log}
}

// Create schedules a meeting hosted by userID.
func (s *Service) Create(ctx context.Context, userID string, in zoom.MeetingRequest) (zoom.ScheduledMeeting, error) {
	if userID == "" {
		return zoom.ScheduledMeeting{}, domain.NewValidationError("User ID is required.")
	}
	if in.Topic == "" {
		return zoom.ScheduledMeeting{}, domain.NewValidationError("Meeting topic is required.")
	}
	token, err := s.token(ctx)
	if err != nil {
		return zoom.ScheduledMeeting{}, err
	}
	m, err := s.api.CreateMeeting(ctx, token, userID, in)
	if err != nil {
		return zoom.ScheduledMeeting{}, err
	}
	s.log.Info("meeting created", slog.Int64("meeting_id", m.ID), slog.String("host", userID))
	return m, nil
}

// Update patches the set fields of meetingID.
func (s *Service) Update(ctx context.Context, meetingID string, in zoom.MeetingRequest) error {
	if err := validID(meetingID); err != nil {
		return err
	}
	token, err := s.token(ctx)
	if err != nil {
		return err
	}
	if err := s.api.UpdateMeeting(ctx, token, meetingID, in); err != nil {
		return err
	}
	s.log.Info("meeting updated", slog.String("meeting_id", meetingID))
	return nil
}

// Reschedule moves meetingID to start.
func (s *Service) Reschedule(ctx context.Context, meetingID string, start time.Time) error {
	if start.IsZero() {
		return domain.NewValidationError("start_time is required.")
	}
	return s.Update(ctx, meetingID, zoom.MeetingRequest{StartTime: &start})
}

// Delete removes meetingID.
func (s *Service) Delete(ctx context.Context, meetingID string) error {
	if err := validID(meetingID); err != nil {
		return err
	}
	token, err := s.token(ctx)
	if err != nil {
		return err
	}
	if err := s.api.DeleteMeeting(ctx, token, meetingID); err != nil {
		return err
	}
	s.log.Info("meeting deleted", slog.String("meeting_id", meetingID))
	return nil
}

// ListForUser returns every scheduled meeting of userID.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]zoom.ScheduledMeeting, error) {
	if userID == "" {
		return nil, domain.NewValidationError("User ID is required.")
	}
	token, err := s.token(ctx)
	if err != nil {
		return nil, err
	}
	return s.api.ListMeetings(ctx, token, userID)
}

// ListAll returns the scheduled meetings of every account user on the first
// users page. A user whose listing fails is logged and skipped.
func (s *Service) ListAll(ctx context.Context) ([]zoom.ScheduledMeeting, error) {
	token, err := s.token(ctx)
	if err != nil {
		return nil, err
	}
	list, err := s.api.ListUsers(ctx, token)
	if err != nil {
		return nil, domain.NewListingError("list users", err)
	}
	if list.Truncated {
		s.log.Warn("user listing truncated, meetings of later users are not listed",
			slog.Int("returned", len(list.Users)),
			slog.Int("total_records", list.TotalRecords),
		)
	}
	var all []zoom.ScheduledMeeting
	for _, u := range list.Users {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ms, err := s.api.ListMeetings(ctx, token, u.ID)
		if err != nil {
			s.log.Warn("meeting listing failed", slog.String("user_id", u.ID), slog.String("error", err.Error()))
			continue
		}
		all = append(all, ms...)
	}
	return all, nil
}

func (s *Service) token(ctx context.Context) (string, error) {
	token, err := s.tokens.Token(ctx)
	if err != nil {
		if domain.KindOf(err) == 0 {
			err = domain.NewAuthError("acquire token", err)
		}
		return "", err
	}
	return token, nil
}

// validID accepts the numeric meeting IDs the meetings endpoints address.
func validID(meetingID string) error {
	if meetingID == "" {
		return domain.NewValidationError("Meeting ID is required.")
	}
	if _, err := strconv.ParseUint(meetingID, 10, 64); err != nil {
		return domain.NewValidationError("Meeting ID must be numeric.")
	}
	return nil
}
