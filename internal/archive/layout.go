// Package archive lays out and writes the local recording archive.
package archive

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// UnknownCourse names the folder for topics without a leading alphanumeric run.
const UnknownCourse = "UnknownCourse"

var courseCodeRe = regexp.MustCompile(`^[A-Za-z0-9]+`)

// Layout maps a (timestamp, topic) pair to a directory under Root. The
// calendar date is taken in Location so every file of a meeting recorded on
// the same day lands in the same directory.
type Layout struct {
	Root     string
	Location *time.Location
}

// NewLayout returns a layout rooted at root. A nil location means UTC.
func NewLayout(root string, loc *time.Location) Layout {
	if loc == nil {
		loc = time.UTC
	}
	return Layout{Root: root, Location: loc}
}

// Dir returns <root>/Yr<YYYY>/<MON>/<course> <DD Mon YYYY>.
func (l Layout) Dir(ts time.Time, topic string) string {
	d := l.local(ts)
	folder := CourseCode(topic) + " " + FormatDate(d)
	return filepath.Join(l.Root, fmt.Sprintf("Yr%d", d.Year()), strings.ToUpper(d.Format("Jan")), folder)
}

// AttendanceReportPath returns the attendance CSV path for a meeting.
func (l Layout) AttendanceReportPath(start time.Time, topic string) string {
	return filepath.Join(l.Dir(start, topic), AttendanceReportName(topic, l.local(start)))
}

func (l Layout) local(ts time.Time) time.Time {
	if l.Location == nil {
		return ts.UTC()
	}
	return ts.In(l.Location)
}

// CourseCode is the leading alphanumeric run of a topic.
func CourseCode(topic string) string {
	if m := courseCodeRe.FindString(strings.TrimSpace(topic)); m != "" {
		return m
	}
	return UnknownCourse
}

// FormatDate renders "02 Jan 2006".
func FormatDate(t time.Time) string {
	return t.Format("02 Jan 2006")
}

// RecordingFileName is <meetingId>-<fileId>.<ext>, extension lower-cased.
func RecordingFileName(meetingID int64, fileID, ext string) string {
	name := fmt.Sprintf("%d-%s", meetingID, fileID)
	if ext = strings.TrimPrefix(strings.TrimSpace(ext), "."); ext != "" {
		name += "." + strings.ToLower(ext)
	}
	return name
}

// AttendanceReportName is Attendance_<course> (<DD Mon YYYY>).csv.
func AttendanceReportName(topic string, date time.Time) string {
	return fmt.Sprintf("Attendance_%s (%s).csv", CourseCode(topic), FormatDate(date))
}
