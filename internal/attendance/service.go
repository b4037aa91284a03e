package attendance

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"zoomarchive/internal/archive"
	"zoomarchive/internal/domain"
	"zoomarchive/internal/zoom"
)

const failedMsg = "attendance processing failed"

// ParticipantLister fetches a meeting's full participant report.
type ParticipantLister interface {
	ListParticipants(ctx context.Context, token, meetingUUID string) ([]zoom.Participant, error)
}

// Report is the outcome of processing one meeting. Path is empty when the
// meeting had no participants and nothing was written.
type Report struct {
	Path       string
	Sessions   int
	Aggregates []Aggregate
}

// Service fetches, merges and writes attendance reports.
type Service struct {
	api    ParticipantLister
	layout archive.Layout
	log    *slog.Logger
}

// NewService creates a service writing under layout.
func NewService(api ParticipantLister, layout archive.Layout, log *slog.Logger) *Service {
	return &Service{api: api, layout: layout, log: log}
}

// Process writes the attendance report for one meeting.
func (s *Service) Process(ctx context.Context, token string, meeting zoom.Meeting) (Report, error) {
	if meeting.UUID == "" || meeting.StartTime.IsZero() {
		return Report{}, domain.NewValidationError("invalid meeting: uuid and start time are required")
	}

	sessions, err := s.api.ListParticipants(ctx, token, meeting.UUID)
	if err != nil {
		return Report{}, domain.NewItemError(failedMsg, meeting.UUID, "", err)
	}
	if len(sessions) == 0 {
		s.log.Info("no participants found", slog.String("meeting_uuid", meeting.UUID))
		return Report{}, nil
	}

	aggregates := Merge(sessions, meeting.HostID)
	path := s.layout.AttendanceReportPath(meeting.StartTime, meeting.Topic)
	if err := s.write(path, meeting, aggregates); err != nil {
		return Report{}, domain.NewItemError(failedMsg, meeting.UUID, "", err)
	}

	s.log.Info("attendance report saved",
		slog.String("meeting_uuid", meeting.UUID),
		slog.String("path", path),
		slog.Int("sessions", len(sessions)),
		slog.Int("participants", len(aggregates)),
	)
	return Report{Path: path, Sessions: len(sessions), Aggregates: aggregates}, nil
}

// write replaces path atomically so a failed run never leaves a truncated report.
func (s *Service) write(path string, meeting zoom.Meeting, aggregates []Aggregate) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".attendance-*.csv")
	if err != nil {
		return fmt.Errorf("create temp report: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := WriteReport(tmp, meeting, aggregates, s.location()); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write report: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close report: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod report: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

func (s *Service) location() *time.Location {
	if s.layout.Location == nil {
		return time.UTC
	}
	return s.layout.Location
}
