package zoom

import (
	"encoding/json"
	"fmt"
	"time"
)

// Meeting is one recorded meeting instance as returned by the recordings API
// and the recording.completed webhook.
type Meeting struct {
	ID             int64           `json:"id"`
	UUID           string          `json:"uuid"`
	Topic          string          `json:"topic"`
	HostID         string          `json:"host_id"`
	HostEmail      string          `json:"host_email"`
	StartTime      time.Time       `json:"start_time"`
	EndTime        *time.Time      `json:"end_time,omitempty"`
	Duration       int             `json:"duration"`
	TotalSize      int64           `json:"total_size,omitempty"`
	RecordingCount int             `json:"recording_count,omitempty"`
	RecordingFiles []RecordingFile `json:"recording_files"`
}

// DurationMinutes applies the archive-wide floor rule to the meeting duration in seconds.
func (m Meeting) DurationMinutes() int {
	return m.Duration / 60
}

// End returns EndTime when reported, otherwise start plus duration.
func (m Meeting) End() time.Time {
	if m.EndTime != nil && !m.EndTime.IsZero() {
		return *m.EndTime
	}
	return m.StartTime.Add(time.Duration(m.Duration) * time.Second)
}

// RecordingFile is one downloadable artifact of a meeting.
type RecordingFile struct {
	ID             string    `json:"id"`
	MeetingID      string    `json:"meeting_id,omitempty"`
	FileType       string    `json:"file_type"`
	FileExtension  string    `json:"file_extension"`
	FileSize       int64     `json:"file_size"`
	DownloadURL    string    `json:"download_url"`
	Status         string    `json:"status,omitempty"`
	RecordingType  string    `json:"recording_type,omitempty"`
	RecordingStart time.Time `json:"recording_start"`
	RecordingEnd   time.Time `json:"recording_end"`
}

// Participant is a single join/leave session from the participant report.
type Participant struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	UserEmail string    `json:"user_email"`
	JoinTime  time.Time `json:"join_time"`
	LeaveTime time.Time `json:"leave_time"`
	Duration  int       `json:"duration"`
}

// User is an account member whose email keys the recordings listing.
type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Type      int    `json:"type"`
	Status    string `json:"status"`
}

// UserList is the single users page the fleet enumerator reads.
// Truncated is set when the provider reported more users than were returned.
type UserList struct {
	Users        []User
	TotalRecords int
	Truncated    bool
}

// ScheduledMeeting is a meeting as returned by the meetings endpoints.
// Duration here is in minutes, as the provider schedules it.
type ScheduledMeeting struct {
	ID        int64      `json:"id"`
	UUID      string     `json:"uuid,omitempty"`
	HostID    string     `json:"host_id,omitempty"`
	HostEmail string     `json:"host_email,omitempty"`
	Topic     string     `json:"topic"`
	Type      int        `json:"type"`
	StartTime *time.Time `json:"start_time,omitempty"`
	Duration  int        `json:"duration"`
	Timezone  string     `json:"timezone,omitempty"`
	Agenda    string     `json:"agenda,omitempty"`
	JoinURL   string     `json:"join_url,omitempty"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

// MeetingRequest creates or patches a meeting. Zero fields are left out so
// a patch only touches what was set.
type MeetingRequest struct {
	Topic     string          `json:"topic,omitempty"`
	Type      int             `json:"type,omitempty"`
	StartTime *time.Time      `json:"start_time,omitempty"`
	Duration  int             `json:"duration,omitempty"`
	Timezone  string          `json:"timezone,omitempty"`
	Agenda    string          `json:"agenda,omitempty"`
	Password  string          `json:"password,omitempty"`
	Settings  json.RawMessage `json:"settings,omitempty"`
}

// APIError is a non-2xx response from the API.
type APIError struct {
	Status  int    `json:"-"`
	Code    int    `json:"code"`
	Message string `json:"message"`
	Body    string `json:"-"`
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("zoom api error %d (code %d): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("zoom api error %d: %s", e.Status, e.Body)
}
