package pipeline

import (
	"time"

	"zoomarchive/internal/domain"
)

// DateLayout is the calendar-date format accepted by the triggers.
const DateLayout = "2006-01-02"

// Range is an inclusive day-granularity window. From is the start of its
// day and To the last instant of its day, both in the archive location.
type Range struct {
	From time.Time
	To   time.Time
}

// DayRange covers the calendar day of t in loc.
func DayRange(t time.Time, loc *time.Location) Range {
	start := startOfDay(t, loc)
	return Range{From: start, To: endOfDay(start)}
}

// CalendarDay covers the calendar date t shows in its own location, taken
// as a day in loc. A 23:58 firing in New York on 5 March covers 5 March in
// loc even though loc may already be on 6 March.
func CalendarDay(t time.Time, loc *time.Location) Range {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, loc)
	return Range{From: start, To: endOfDay(start)}
}

// ParseRange parses optional YYYY-MM-DD bounds. Missing bounds default to
// the day of now in loc. A from after to is rejected.
func ParseRange(from, to string, now time.Time, loc *time.Location) (Range, error) {
	if loc == nil {
		loc = time.UTC
	}
	today := startOfDay(now, loc)

	start, err := parseDay(from, "fromDate", today, loc)
	if err != nil {
		return Range{}, err
	}
	end, err := parseDay(to, "toDate", today, loc)
	if err != nil {
		return Range{}, err
	}
	if start.After(end) {
		return Range{}, domain.NewValidationError(`"fromDate" cannot be after "toDate"`)
	}
	return Range{From: start, To: endOfDay(end)}, nil
}

// FromDate renders the lower bound as YYYY-MM-DD.
func (r Range) FromDate() string { return r.From.Format(DateLayout) }

// ToDate renders the upper bound as YYYY-MM-DD.
func (r Range) ToDate() string { return r.To.Format(DateLayout) }

func parseDay(value, field string, fallback time.Time, loc *time.Location) (time.Time, error) {
	if value == "" {
		return fallback, nil
	}
	t, err := time.ParseInLocation(DateLayout, value, loc)
	if err != nil {
		return time.Time{}, domain.NewValidationError(`"` + field + `" must be a date in YYYY-MM-DD format`)
	}
	return t, nil
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

func endOfDay(start time.Time) time.Time {
	return start.AddDate(0, 0, 1).Add(-time.Nanosecond)
}
