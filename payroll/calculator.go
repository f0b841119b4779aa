/*
Package payroll aggregates approved time entries into payroll totals.

PURPOSE:
  Given a user and a date range, classifies each counted entry as
  billable, non-billable or paid leave and sums exact decimal hours.
  Weekly and monthly overtime are derived from the same entries.

CLASSIFICATION (mutually exclusive, first match wins):
  1. Project is a configured leave project  -> paid_leave[category]
  2. Entry has an activity and the project is billable -> billable
  3. Anything else -> non_billable

PRECISION:
  Durations are summed exactly with decimal.Decimal and each bucket is
  rounded to two places once, after summing. Total is the sum of the
  rounded buckets so reported columns add up.

WEEKS AND MONTHS:
  A week is seven days from Config.WeekStart (Sunday by default); an entry
  belongs to the week its start falls in. Monthly overtime sums the weekly
  overtime of every week overlapping the calendar month.

SEE ALSO:
  - config.go: Leave mapping, week start, threshold
  - person.go: User-scoped view (PersonRepeatPeriod)
  - export.go: Spreadsheet report
*/
package payroll

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/timepiece/timesheet"
)

// =============================================================================
// SUMMARY
// =============================================================================

type Summary struct {
	Billable    decimal.Decimal
	NonBillable decimal.Decimal
	PaidLeave   map[string]decimal.Decimal
	Total       decimal.Decimal
}

// =============================================================================
// CALCULATOR
// =============================================================================

type Calculator struct {
	entries  timesheet.EntryStore
	projects timesheet.ProjectStore
	cfg      Config
	leave    map[timesheet.ProjectID]string
	logger   *zap.Logger
}

// NewCalculator validates cfg and returns a calculator reading from the stores.
func NewCalculator(entries timesheet.EntryStore, projects timesheet.ProjectStore, cfg Config, logger *zap.Logger) (*Calculator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Calculator{
		entries:  entries,
		projects: projects,
		cfg:      cfg,
		leave:    cfg.leaveIndex(),
		logger:   logger,
	}, nil
}

func (c *Calculator) Config() Config { return c.cfg }

func (c *Calculator) counted(ctx context.Context, user timesheet.UserID, from, to time.Time) ([]timesheet.Entry, error) {
	entries, err := c.entries.FindEntries(ctx, timesheet.EntryFilter{
		UserID:   user,
		Statuses: c.cfg.CountedStatuses,
		From:     from,
		To:       to,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load entries: %w", err)
	}
	closed := entries[:0]
	for _, e := range entries {
		if e.IsClosed() {
			closed = append(closed, e)
		}
	}
	return closed, nil
}

// Summary totals the user's counted entries starting in [start, end).
func (c *Calculator) Summary(ctx context.Context, user timesheet.UserID, start, end time.Time) (Summary, error) {
	if err := timesheet.CheckRange(start, end); err != nil {
		return Summary{}, err
	}
	entries, err := c.counted(ctx, user, start, end)
	if err != nil {
		return Summary{}, err
	}

	billable, nonBillable := decimal.Zero, decimal.Zero
	leave := make(map[string]decimal.Decimal, len(c.cfg.LeaveProjects))
	for category := range c.cfg.LeaveProjects {
		leave[category] = decimal.Zero
	}

	projects := make(map[timesheet.ProjectID]timesheet.Project)
	for _, e := range entries {
		hours := e.Hours()
		if category, ok := c.leave[e.ProjectID]; ok {
			leave[category] = leave[category].Add(hours)
			continue
		}
		p, ok := projects[e.ProjectID]
		if !ok {
			p, err = c.projects.GetProject(ctx, e.ProjectID)
			if err != nil {
				return Summary{}, fmt.Errorf("entry %s: %w", e.ID, err)
			}
			projects[e.ProjectID] = p
		}
		if e.HasActivity() && p.Billable {
			billable = billable.Add(hours)
		} else {
			nonBillable = nonBillable.Add(hours)
		}
	}

	s := Summary{
		Billable:    round(billable),
		NonBillable: round(nonBillable),
		PaidLeave:   make(map[string]decimal.Decimal, len(leave)),
	}
	s.Total = s.Billable.Add(s.NonBillable)
	for category, hours := range leave {
		s.PaidLeave[category] = round(hours)
		s.Total = s.Total.Add(s.PaidLeave[category])
	}

	c.logger.Debug("payroll summary",
		zap.String("user_id", string(user)),
		zap.Time("start", start),
		zap.Time("end", end),
		zap.Int("entries", len(entries)),
		zap.String("total", s.Total.StringFixed(2)),
	)
	return s, nil
}

// HoursInWeek sums counted hours starting in the week containing day.
func (c *Calculator) HoursInWeek(ctx context.Context, user timesheet.UserID, day time.Time) (decimal.Decimal, error) {
	from, to := timesheet.Week(day, c.cfg.WeekStart)
	entries, err := c.counted(ctx, user, from, to)
	if err != nil {
		return decimal.Zero, err
	}
	return round(sumHours(entries)), nil
}

// OvertimeHoursInWeek returns hours in the week above the threshold, never negative.
func (c *Calculator) OvertimeHoursInWeek(ctx context.Context, user timesheet.UserID, day time.Time) (decimal.Decimal, error) {
	hours, err := c.HoursInWeek(ctx, user, day)
	if err != nil {
		return decimal.Zero, err
	}
	return c.overtime(hours), nil
}

// TotalMonthlyOvertime sums weekly overtime over every week that overlaps
// the calendar month containing day.
func (c *Calculator) TotalMonthlyOvertime(ctx context.Context, user timesheet.UserID, day time.Time) (decimal.Decimal, error) {
	monthStart, monthEnd := timesheet.Month(timesheet.DateOf(day))
	first := timesheet.WeekStart(monthStart, c.cfg.WeekStart)
	last := timesheet.WeekStart(monthEnd.AddDate(0, 0, -1), c.cfg.WeekStart).AddDate(0, 0, 7)

	entries, err := c.counted(ctx, user, first, last)
	if err != nil {
		return decimal.Zero, err
	}

	weekly := make(map[string]decimal.Decimal)
	for _, e := range entries {
		w := timesheet.WeekStart(e.Start.In(first.Location()), c.cfg.WeekStart).Format(timesheet.DateLayout)
		weekly[w] = weekly[w].Add(e.Hours())
	}

	total := decimal.Zero
	for w := first; w.Before(last); w = w.AddDate(0, 0, 7) {
		total = total.Add(c.overtime(round(weekly[w.Format(timesheet.DateLayout)])))
	}
	return total, nil
}

func (c *Calculator) overtime(hours decimal.Decimal) decimal.Decimal {
	over := hours.Sub(c.cfg.OvertimeThreshold)
	if over.IsNegative() {
		return decimal.Zero
	}
	return over
}

func sumHours(entries []timesheet.Entry) decimal.Decimal {
	total := decimal.Zero
	for _, e := range entries {
		total = total.Add(e.Hours())
	}
	return total
}

func round(d decimal.Decimal) decimal.Decimal { return d.Round(2) }
