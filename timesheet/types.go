/*
Package timesheet provides the time-entry model shared by billing and payroll.

PURPOSE:
  Holds the records a user produces by clocking in and out against a
  project, plus the approval status each entry moves through before it
  counts toward payroll.

KEY CONCEPTS IN THIS FILE (types.go):
  - Entry: One clock-in/clock-out span on a project
  - Project: Billable flag and optional billing period reference
  - Status: unverified -> verified -> approved -> invoiced

DESIGN PRINCIPLES:
  1. Precision: Hours are decimal.Decimal, never float64
  2. Open entries (no end) contribute zero hours
  3. Type Safety: Distinct ID types for users, projects, activities

SEE ALSO:
  - clock.go: Clock-in / clock-out and status transitions
  - store.go: Persistence interfaces
  - payroll/calculator.go: Aggregation over approved entries
*/
package timesheet

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type UserID string
type ProjectID string
type ActivityID string
type EntryID string

// =============================================================================
// STATUS - Approval lifecycle of an entry
// =============================================================================

type Status string

const (
	StatusUnverified Status = "unverified"
	StatusVerified   Status = "verified"
	StatusApproved   Status = "approved"
	StatusInvoiced   Status = "invoiced"
)

var statusOrder = map[Status]int{
	StatusUnverified: 0,
	StatusVerified:   1,
	StatusApproved:   2,
	StatusInvoiced:   3,
}

// ParseStatus returns the Status named by s.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if _, ok := statusOrder[st]; !ok {
		return "", &StatusError{Value: s}
	}
	return st, nil
}

func (s Status) Valid() bool {
	_, ok := statusOrder[s]
	return ok
}

// =============================================================================
// PROJECT
// =============================================================================

// Project is something time is logged against. BillingPeriodID refers to a
// billing.RepeatPeriod; several projects may share one period.
type Project struct {
	ID              ProjectID
	Name            string
	Billable        bool
	BillingPeriodID string
}

// =============================================================================
// ENTRY - One clock-in / clock-out span
// =============================================================================

type Entry struct {
	ID        EntryID
	UserID    UserID
	ProjectID ProjectID
	// ActivityID is empty for entries with no activity; those are never billable.
	ActivityID ActivityID
	Start      time.Time
	End        *time.Time
	Status     Status
	Comments   string
}

// IsClosed reports whether the entry has been clocked out.
func (e Entry) IsClosed() bool { return e.End != nil }

// HasActivity reports whether an activity was recorded on the entry.
func (e Entry) HasActivity() bool { return e.ActivityID != "" }

var secondsPerHour = decimal.NewFromInt(3600)

// Hours returns the exact duration in hours. Open entries are zero.
func (e Entry) Hours() decimal.Decimal {
	if e.End == nil {
		return decimal.Zero
	}
	secs := int64(e.End.Sub(e.Start) / time.Second)
	if secs <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(secs).Div(secondsPerHour)
}

// =============================================================================
// FILTER - Query shape for entry lookups
// =============================================================================

// EntryFilter selects entries for one user whose start falls in [From, To).
// Empty Statuses or ProjectIDs match everything. A zero From or To leaves
// that side of the range open.
type EntryFilter struct {
	UserID     UserID
	Statuses   []Status
	ProjectIDs []ProjectID
	From       time.Time
	To         time.Time
	OnlyOpen   bool
}

// Matches applies the filter to a single entry in memory.
func (f EntryFilter) Matches(e Entry) bool {
	if f.UserID != "" && e.UserID != f.UserID {
		return false
	}
	if f.OnlyOpen && e.IsClosed() {
		return false
	}
	if len(f.Statuses) > 0 && !containsStatus(f.Statuses, e.Status) {
		return false
	}
	if len(f.ProjectIDs) > 0 && !containsProject(f.ProjectIDs, e.ProjectID) {
		return false
	}
	if !f.From.IsZero() && e.Start.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !e.Start.Before(f.To) {
		return false
	}
	return true
}

func containsStatus(list []Status, s Status) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func containsProject(list []ProjectID, id ProjectID) bool {
	for _, v := range list {
		if v == id {
			return true
		}
	}
	return false
}
