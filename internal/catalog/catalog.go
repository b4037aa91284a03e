// Package catalog records what each archive run downloaded and deleted.
package catalog

import (
	"context"
	"time"

	"zoomarchive/internal/attendance"
	"zoomarchive/internal/zoom"
)

// Run is one pipeline invocation.
type Run struct {
	ID         string
	Trigger    string
	Tenant     string
	From       time.Time
	To         time.Time
	StartedAt  time.Time
	FinishedAt time.Time
	Status     string
	Error      string
}

// File is one downloaded recording file.
type File struct {
	RunID       string
	MeetingUUID string
	MeetingID   int64
	FileID      string
	FileType    string
	Path        string
	Bytes       int64
	Deleted     bool
	DeleteError string
}

// Catalog persists run history. Implementations must be safe to call with a
// cancelled context at shutdown; errors are logged by callers, never fatal.
type Catalog interface {
	StartRun(ctx context.Context, run Run) error
	FinishRun(ctx context.Context, run Run) error
	RecordFile(ctx context.Context, f File) error
	RecordDeletion(ctx context.Context, runID, meetingUUID, fileID string, deleteErr error) error
	RecordAttendance(ctx context.Context, runID string, meeting zoom.Meeting, aggregates []attendance.Aggregate) error
	Healthy(ctx context.Context) bool
}

// Nop discards everything. Used when no database is configured.
type Nop struct{}

func (Nop) StartRun(context.Context, Run) error { return nil }
func (Nop) FinishRun(context.Context, Run) error { return nil }
func (Nop) RecordFile(context.Context, File) error { return nil }
func (Nop) Healthy(context.Context) bool { return true }
func (Nop) RecordDeletion(context.Context, string, string, string, error) error {
	return nil
}
func (Nop) RecordAttendance(context.Context, string, zoom.Meeting, []attendance.Aggregate) error {
	return nil
}
