package payroll

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/timepiece/billing"
	"github.com/warp/timepiece/timesheet"
)

// PersonRepeatPeriod associates a user with the repeat period their payroll
// is aggregated over.
type PersonRepeatPeriod struct {
	ID       string
	UserID   timesheet.UserID
	PeriodID billing.PeriodID
}

// PersonStore persists person/period associations.
type PersonStore interface {
	SavePerson(ctx context.Context, p PersonRepeatPeriod) error

	// GetPerson returns ErrPersonNotFound when no association has the ID.
	GetPerson(ctx context.Context, id string) (PersonRepeatPeriod, error)

	ListPeople(ctx context.Context) ([]PersonRepeatPeriod, error)
}

// Person is a Calculator scoped to one user.
type Person struct {
	Record PersonRepeatPeriod
	calc   *Calculator
}

func (c *Calculator) For(p PersonRepeatPeriod) *Person {
	return &Person{Record: p, calc: c}
}

func (p *Person) Summary(ctx context.Context, start, end time.Time) (Summary, error) {
	return p.calc.Summary(ctx, p.Record.UserID, start, end)
}

func (p *Person) HoursInWeek(ctx context.Context, day time.Time) (decimal.Decimal, error) {
	return p.calc.HoursInWeek(ctx, p.Record.UserID, day)
}

func (p *Person) OvertimeHoursInWeek(ctx context.Context, day time.Time) (decimal.Decimal, error) {
	return p.calc.OvertimeHoursInWeek(ctx, p.Record.UserID, day)
}

func (p *Person) TotalMonthlyOvertime(ctx context.Context, day time.Time) (decimal.Decimal, error) {
	return p.calc.TotalMonthlyOvertime(ctx, p.Record.UserID, day)
}
