package timesheet

import (
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// CALENDAR HELPERS - Date-granularity arithmetic in UTC
// =============================================================================

const DateLayout = "2006-01-02"

// DateOf truncates t to midnight of its calendar day, keeping t's location.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// NewDate builds a UTC date.
func NewDate(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD string as a UTC date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}

// Today returns the current UTC date.
func Today() time.Time { return DateOf(time.Now().UTC()) }

// WeekStart returns midnight of the first day of the week containing day,
// where weeks begin on start.
func WeekStart(day time.Time, start time.Weekday) time.Time {
	d := DateOf(day)
	offset := (int(d.Weekday()) - int(start) + 7) % 7
	return d.AddDate(0, 0, -offset)
}

// Week returns the half-open week [from, to) containing day.
func Week(day time.Time, start time.Weekday) (from, to time.Time) {
	from = WeekStart(day, start)
	return from, from.AddDate(0, 0, 7)
}

// Month returns the half-open calendar month [from, to) containing day.
func Month(day time.Time) (from, to time.Time) {
	from = time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, day.Location())
	return from, from.AddDate(0, 1, 0)
}

// ParseWeekday accepts full or three-letter English day names, any case.
func ParseWeekday(s string) (time.Weekday, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for d := time.Sunday; d <= time.Saturday; d++ {
		full := strings.ToLower(d.String())
		if name == full || name == full[:3] {
			return d, nil
		}
	}
	return time.Sunday, fmt.Errorf("unknown weekday %q", s)
}
