package timesheet

import (
	"errors"
	"fmt"
	"time"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrEntryNotFound   = errors.New("entry not found")
	ErrProjectNotFound = errors.New("project not found")

	// ErrAlreadyClockedIn is returned when a user with an open entry clocks in again.
	ErrAlreadyClockedIn = errors.New("user already clocked in")

	// ErrEntryClosed is returned when clocking out an entry that already has an end.
	ErrEntryClosed = errors.New("entry already closed")

	ErrEndBeforeStart = errors.New("end before start")

	ErrInvalidStatus     = errors.New("invalid status")
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrInvalidRange is returned for date ranges whose end is not after the start.
	ErrInvalidRange = errors.New("invalid range: end must be after start")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// RangeError carries the rejected bounds.
type RangeError struct {
	Start time.Time
	End   time.Time
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("invalid range [%s, %s): end must be after start",
		e.Start.Format("2006-01-02"), e.End.Format("2006-01-02"))
}

func (e *RangeError) Unwrap() error { return ErrInvalidRange }

// CheckRange returns a *RangeError unless end is strictly after start.
func CheckRange(start, end time.Time) error {
	if !end.After(start) {
		return &RangeError{Start: start, End: end}
	}
	return nil
}

type StatusError struct {
	Value string
}

func (e *StatusError) Error() string { return fmt.Sprintf("invalid status %q", e.Value) }

func (e *StatusError) Unwrap() error { return ErrInvalidStatus }

type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot move entry from %s to %s", e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrAlreadyClockedIn) ||
		errors.Is(err, ErrEntryClosed) ||
		errors.Is(err, ErrEndBeforeStart) ||
		errors.Is(err, ErrInvalidStatus) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrInvalidRange)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrEntryNotFound) ||
		errors.Is(err, ErrProjectNotFound)
}
