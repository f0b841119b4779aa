/*
Package billing generates the recurring invoicing windows of a project.

PURPOSE:
  A RepeatPeriod ("every 2 weeks", "every month") chunks time into
  contiguous billing windows. This package owns the calendar arithmetic
  for one step of a period and keeps a period's window sequence gap-free
  when the cadence or start date changes.

KEY CONCEPTS:
  - RepeatPeriod: interval unit + count + active flag
  - Delta: the calendar offset of one window (N weeks or N months)
  - Window: one [Date, EndDate) instance
  - Generator: regenerates windows against a boundary date and persists
    the replacement atomically

INVARIANT:
  Ordered by Date, window[i].EndDate == window[i+1].Date for every
  adjacent pair. Windows ending on or before the boundary are history and
  are never rewritten.

SEE ALSO:
  - windows.go: Regenerate / Reschedule and the Generator
  - ical.go: Calendar export
*/
package billing

import (
	"errors"
	"fmt"
	"time"
)

// =============================================================================
// INTERVAL
// =============================================================================

type Interval string

const (
	IntervalWeek  Interval = "week"
	IntervalMonth Interval = "month"
)

// Intervals lists the supported units in display order.
var Intervals = []Interval{IntervalWeek, IntervalMonth}

func (i Interval) Valid() bool {
	return i == IntervalWeek || i == IntervalMonth
}

// =============================================================================
// ERRORS
// =============================================================================

var (
	ErrInvalidInterval = errors.New("invalid interval")
	ErrInvalidCount    = errors.New("count must be a positive integer")
	ErrPeriodNotFound  = errors.New("repeat period not found")

	// ErrNoWindows is returned when regenerating a period that was never seeded.
	ErrNoWindows = errors.New("repeat period has no windows to extend")

	// ErrRescheduleElapsed is returned when a new start date would cut into
	// windows that already ended.
	ErrRescheduleElapsed = errors.New("start date falls inside elapsed windows")
)

// ConfigError reports an invalid RepeatPeriod field.
type ConfigError struct {
	Field string
	Value any
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid repeat period %s %v: %v", e.Field, e.Value, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// =============================================================================
// REPEAT PERIOD
// =============================================================================

type PeriodID string

type RepeatPeriod struct {
	ID       PeriodID
	Interval Interval
	Count    int
	Active   bool
}

// Validate rejects unknown intervals and non-positive counts.
func (p RepeatPeriod) Validate() error {
	if !p.Interval.Valid() {
		return &ConfigError{Field: "interval", Value: p.Interval, Err: ErrInvalidInterval}
	}
	if p.Count < 1 {
		return &ConfigError{Field: "count", Value: p.Count, Err: ErrInvalidCount}
	}
	return nil
}

// Delta returns the length of one window of the period.
func (p RepeatPeriod) Delta() (Delta, error) {
	return NewDelta(p.Interval, p.Count)
}

// =============================================================================
// DELTA - One step of calendar arithmetic
// =============================================================================

// Delta is an offset of Weeks weeks or Months months. Exactly one is set.
type Delta struct {
	Weeks  int
	Months int
}

// NewDelta builds the offset for count units of interval.
func NewDelta(interval Interval, count int) (Delta, error) {
	p := RepeatPeriod{Interval: interval, Count: count}
	if err := p.Validate(); err != nil {
		return Delta{}, err
	}
	if interval == IntervalWeek {
		return Delta{Weeks: count}, nil
	}
	return Delta{Months: count}, nil
}

// AddTo applies the offset to t.
func (d Delta) AddTo(t time.Time) time.Time {
	if d.Months != 0 {
		t = AddMonths(t, d.Months)
	}
	if d.Weeks != 0 {
		t = t.AddDate(0, 0, 7*d.Weeks)
	}
	return t
}

func (d Delta) String() string {
	if d.Months != 0 {
		return fmt.Sprintf("%d month(s)", d.Months)
	}
	return fmt.Sprintf("%d week(s)", d.Weeks)
}

// AddMonths adds n calendar months to t, clamping the day to the last day
// of the target month (Jan 31 + 1 month = Feb 28, or Feb 29 in leap years).
// Time of day and location are preserved.
func AddMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	target := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, t.Location())
	if last := daysIn(target.Year(), target.Month()); d > last {
		d = last
	}
	hh, mm, ss := t.Clock()
	return time.Date(target.Year(), target.Month(), d, hh, mm, ss, t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
