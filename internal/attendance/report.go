package attendance

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"zoomarchive/internal/zoom"
)

const timeLayout = "02 Jan 2006 15:04:05"

var reportHeader = []string{"Participant ID", "Name", "Email", "First Join", "Last Leave", "Duration (Minutes)", "Sessions", "Guest"}

// WriteReport writes the meeting metadata block, a blank line and one row per
// aggregate. Times are rendered in loc.
func WriteReport(w io.Writer, meeting zoom.Meeting, aggregates []Aggregate, loc *time.Location) error {
	if loc == nil {
		loc = time.UTC
	}
	cw := csv.NewWriter(w)

	meta := [][]string{
		{"Meeting ID", strconv.FormatInt(meeting.ID, 10)},
		{"Meeting UUID", meeting.UUID},
		{"Topic", orNA(meeting.Topic)},
		{"Host Email", orNA(meeting.HostEmail)},
		{"Duration (Minutes)", strconv.Itoa(meeting.DurationMinutes())},
		{"Start Time", formatTime(meeting.StartTime, loc)},
		{"End Time", formatTime(meeting.End(), loc)},
		{"Participants", strconv.Itoa(len(aggregates))},
	}
	if err := cw.WriteAll(meta); err != nil {
		return err
	}
	if err := cw.Write(nil); err != nil {
		return err
	}
	if err := cw.Write(reportHeader); err != nil {
		return err
	}
	for _, a := range aggregates {
		row := []string{
			a.ID,
			a.Name,
			a.Email,
			formatTime(a.FirstJoin, loc),
			formatTime(a.LastLeave, loc),
			strconv.Itoa(a.Minutes),
			strconv.Itoa(a.Sessions),
			strconv.FormatBool(a.Guest),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatTime(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return NotAvailable
	}
	return t.In(loc).Format(timeLayout)
}
