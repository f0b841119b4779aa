package payroll

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/timepiece/timesheet"
)

var (
	ErrPersonNotFound = errors.New("person repeat period not found")

	// ErrDuplicateLeaveProject is returned when one project backs two leave categories.
	ErrDuplicateLeaveProject = errors.New("project assigned to more than one leave category")

	ErrInvalidConfig = errors.New("invalid payroll config")
)

// DefaultOvertimeThreshold is the weekly hour count above which hours are overtime.
func DefaultOvertimeThreshold() decimal.Decimal {
	return decimal.NewFromInt(40)
}

// Config is passed to the Calculator explicitly; nothing is read from
// process-wide settings.
type Config struct {
	// LeaveProjects maps a paid-leave category ("sick", "vacation") to the
	// placeholder project its hours are logged against.
	LeaveProjects map[string]timesheet.ProjectID

	WeekStart         time.Weekday
	OvertimeThreshold decimal.Decimal

	// CountedStatuses are the entry statuses that count toward totals.
	CountedStatuses []timesheet.Status
}

func DefaultConfig() Config {
	return Config{
		LeaveProjects:     map[string]timesheet.ProjectID{},
		WeekStart:         time.Sunday,
		OvertimeThreshold: DefaultOvertimeThreshold(),
		CountedStatuses:   []timesheet.Status{timesheet.StatusApproved},
	}
}

// Validate enforces that a project backs at most one leave category.
func (c Config) Validate() error {
	seen := make(map[timesheet.ProjectID]string, len(c.LeaveProjects))
	for _, category := range c.Categories() {
		id := c.LeaveProjects[category]
		if other, dup := seen[id]; dup {
			return fmt.Errorf("%w: %s is both %q and %q", ErrDuplicateLeaveProject, id, other, category)
		}
		seen[id] = category
	}
	if c.OvertimeThreshold.IsNegative() {
		return fmt.Errorf("%w: negative overtime threshold %s", ErrInvalidConfig, c.OvertimeThreshold)
	}
	if len(c.CountedStatuses) == 0 {
		return fmt.Errorf("%w: no counted statuses", ErrInvalidConfig)
	}
	for _, s := range c.CountedStatuses {
		if !s.Valid() {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, &timesheet.StatusError{Value: string(s)})
		}
	}
	return nil
}

// Categories returns the configured leave categories in sorted order.
func (c Config) Categories() []string {
	out := make([]string, 0, len(c.LeaveProjects))
	for k := range c.LeaveProjects {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (c Config) leaveIndex() map[timesheet.ProjectID]string {
	idx := make(map[timesheet.ProjectID]string, len(c.LeaveProjects))
	for category, id := range c.LeaveProjects {
		idx[id] = category
	}
	return idx
}
