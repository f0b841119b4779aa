package payroll_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/timepiece/payroll"
	"github.com/warp/timepiece/store/memory"
	"github.com/warp/timepiece/timesheet"
)

// =============================================================================
// TEST SETUP
// =============================================================================

const user timesheet.UserID = "alice"

func newTestCalculator(t *testing.T) (*payroll.Calculator, *memory.Memory) {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	for _, p := range []timesheet.Project{
		{ID: "acme", Name: "Acme", Billable: true},
		{ID: "internal", Name: "Internal"},
		{ID: "sick-leave", Name: "Sick"},
		{ID: "vacation-leave", Name: "Vacation"},
	} {
		require.NoError(t, store.SaveProject(ctx, p))
	}

	cfg := payroll.DefaultConfig()
	cfg.LeaveProjects = map[string]timesheet.ProjectID{
		"sick":     "sick-leave",
		"vacation": "vacation-leave",
	}
	calc, err := payroll.NewCalculator(store, store, cfg, nil)
	require.NoError(t, err)
	return calc, store
}

type entrySpec struct {
	project  timesheet.ProjectID
	activity timesheet.ActivityID
	status   timesheet.Status
	start    time.Time
	duration time.Duration
}

func addEntries(t *testing.T, store *memory.Memory, specs ...entrySpec) {
	t.Helper()
	for _, s := range specs {
		end := s.start.Add(s.duration)
		e := timesheet.Entry{
			ID:         timesheet.EntryID(string(s.project) + "@" + s.start.Format(time.RFC3339)),
			UserID:     user,
			ProjectID:  s.project,
			ActivityID: s.activity,
			Start:      s.start,
			End:        &end,
			Status:     s.status,
		}
		require.NoError(t, store.SaveEntry(context.Background(), e))
	}
}

func approved(project timesheet.ProjectID, activity timesheet.ActivityID, start time.Time, d time.Duration) entrySpec {
	return entrySpec{project: project, activity: activity, status: timesheet.StatusApproved, start: start, duration: d}
}

func morning(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 9, 0, 0, 0, time.UTC)
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func assertHours(t *testing.T, want string, got decimal.Decimal, msg string) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), "%s: want %s, got %s", msg, want, got.StringFixed(2))
}

// =============================================================================
// SUMMARY
// =============================================================================

func TestSummary_ClassifiesAndTotals(t *testing.T) {
	// GIVEN: 3h30m billable, 2h non-billable, 5h verified-only, 8h sick, 4h vacation
	// WHEN: Summarizing January 2011
	// THEN: 3.50 / 2.00 / {sick 8.00, vacation 4.00}, total 17.50

	calc, store := newTestCalculator(t)
	addEntries(t, store,
		approved("acme", "dev", morning(2011, time.January, 3), 3*time.Hour+30*time.Minute),
		approved("internal", "", morning(2011, time.January, 4), 2*time.Hour),
		entrySpec{project: "acme", activity: "dev", status: timesheet.StatusVerified, start: morning(2011, time.January, 5), duration: 5 * time.Hour},
		approved("sick-leave", "", morning(2011, time.January, 6), 8*time.Hour),
		approved("vacation-leave", "", morning(2011, time.January, 7), 4*time.Hour),
	)

	s, err := calc.Summary(context.Background(), user, timesheet.NewDate(2011, time.January, 1), timesheet.NewDate(2011, time.February, 1))
	require.NoError(t, err)

	assertHours(t, "3.50", s.Billable, "billable")
	assertHours(t, "2.00", s.NonBillable, "non-billable")
	assertHours(t, "8.00", s.PaidLeave["sick"], "sick")
	assertHours(t, "4.00", s.PaidLeave["vacation"], "vacation")
	assertHours(t, "17.50", s.Total, "total")
	assert.Equal(t, "17.50", s.Total.StringFixed(2))
}

func TestSummary_BillableNeedsActivity(t *testing.T) {
	calc, store := newTestCalculator(t)
	addEntries(t, store, approved("acme", "", morning(2011, time.January, 3), time.Hour))

	s, err := calc.Summary(context.Background(), user, timesheet.NewDate(2011, time.January, 1), timesheet.NewDate(2011, time.February, 1))
	require.NoError(t, err)
	assertHours(t, "0", s.Billable, "billable")
	assertHours(t, "1", s.NonBillable, "non-billable")
}

func TestSummary_ConfiguredCategoryWithoutEntriesIsZero(t *testing.T) {
	calc, _ := newTestCalculator(t)

	s, err := calc.Summary(context.Background(), user, timesheet.NewDate(2011, time.January, 1), timesheet.NewDate(2011, time.February, 1))
	require.NoError(t, err)
	require.Contains(t, s.PaidLeave, "sick")
	require.Contains(t, s.PaidLeave, "vacation")
	assert.True(t, s.PaidLeave["sick"].IsZero())
	assert.True(t, s.Total.IsZero())
}

func TestSummary_RangeIsHalfOpen(t *testing.T) {
	calc, store := newTestCalculator(t)
	addEntries(t, store,
		approved("internal", "", time.Date(2011, time.January, 31, 23, 0, 0, 0, time.UTC), time.Hour),
		approved("internal", "", timesheet.NewDate(2011, time.February, 1), time.Hour),
	)

	s, err := calc.Summary(context.Background(), user, timesheet.NewDate(2011, time.January, 1), timesheet.NewDate(2011, time.February, 1))
	require.NoError(t, err)
	assertHours(t, "1.00", s.Total, "only the entry starting before the end counts")
}

func TestSummary_OpenEntriesExcluded(t *testing.T) {
	calc, store := newTestCalculator(t)
	require.NoError(t, store.SaveEntry(context.Background(), timesheet.Entry{
		ID: "open", UserID: user, ProjectID: "acme", ActivityID: "dev",
		Start: morning(2011, time.January, 3), Status: timesheet.StatusApproved,
	}))

	s, err := calc.Summary(context.Background(), user, timesheet.NewDate(2011, time.January, 1), timesheet.NewDate(2011, time.February, 1))
	require.NoError(t, err)
	assert.True(t, s.Total.IsZero())
}

func TestSummary_InvalidRange(t *testing.T) {
	calc, _ := newTestCalculator(t)
	day := timesheet.NewDate(2011, time.January, 1)

	_, err := calc.Summary(context.Background(), user, day, day)
	assert.ErrorIs(t, err, timesheet.ErrInvalidRange)

	_, err = calc.Summary(context.Background(), user, day, day.AddDate(0, 0, -1))
	assert.ErrorIs(t, err, timesheet.ErrInvalidRange)
}

func TestSummary_RoundsAfterSumming(t *testing.T) {
	// Three 20-minute entries are 1.00 exactly; rounding each to 0.33 first would give 0.99.
	calc, store := newTestCalculator(t)
	addEntries(t, store,
		approved("internal", "", morning(2011, time.January, 3), 20*time.Minute),
		approved("internal", "", morning(2011, time.January, 4), 20*time.Minute),
		approved("internal", "", morning(2011, time.January, 5), 20*time.Minute),
	)

	s, err := calc.Summary(context.Background(), user, timesheet.NewDate(2011, time.January, 1), timesheet.NewDate(2011, time.February, 1))
	require.NoError(t, err)
	assert.Equal(t, "1.00", s.NonBillable.StringFixed(2))
}

// =============================================================================
// WEEKLY HOURS AND OVERTIME
// =============================================================================

func TestHoursInWeek_ExcludesUnapproved(t *testing.T) {
	calc, store := newTestCalculator(t)
	addEntries(t, store,
		approved("acme", "dev", morning(2011, time.January, 3), 8*time.Hour),
		approved("acme", "dev", morning(2011, time.January, 4), 8*time.Hour),
		entrySpec{project: "acme", activity: "dev", status: timesheet.StatusVerified, start: morning(2011, time.January, 5), duration: 5 * time.Hour},
	)

	got, err := calc.HoursInWeek(context.Background(), user, timesheet.NewDate(2011, time.January, 5))
	require.NoError(t, err)
	assertHours(t, "16.00", got, "hours in week")
}

func TestHoursInWeek_SundayBoundary(t *testing.T) {
	// GIVEN: 8h on Sunday 2011-01-02 and 8h on Sunday 2011-01-09
	// WHEN: Asking for each week
	// THEN: Each reports 8.00, nothing bleeds across the boundary

	calc, store := newTestCalculator(t)
	addEntries(t, store,
		approved("acme", "dev", morning(2011, time.January, 2), 8*time.Hour),
		approved("acme", "dev", morning(2011, time.January, 9), 8*time.Hour),
	)

	first, err := calc.HoursInWeek(context.Background(), user, timesheet.NewDate(2011, time.January, 2))
	require.NoError(t, err)
	second, err := calc.HoursInWeek(context.Background(), user, timesheet.NewDate(2011, time.January, 9))
	require.NoError(t, err)

	assertHours(t, "8.00", first, "first week")
	assertHours(t, "8.00", second, "second week")
}

func fourDays(t *testing.T, store *memory.Memory, monday time.Time, perDay time.Duration) {
	t.Helper()
	for i := 0; i < 4; i++ {
		addEntries(t, store, approved("acme", "dev", monday.AddDate(0, 0, i), perDay))
	}
}

func TestOvertimeHoursInWeek(t *testing.T) {
	calc, store := newTestCalculator(t)
	fourDays(t, store, morning(2011, time.January, 10), 11*time.Hour) // 44h
	fourDays(t, store, morning(2011, time.January, 17), 10*time.Hour) // 40h

	over, err := calc.OvertimeHoursInWeek(context.Background(), user, timesheet.NewDate(2011, time.January, 12))
	require.NoError(t, err)
	assertHours(t, "4.00", over, "44h week")

	over, err = calc.OvertimeHoursInWeek(context.Background(), user, timesheet.NewDate(2011, time.January, 19))
	require.NoError(t, err)
	assertHours(t, "0.00", over, "40h week")

	over, err = calc.OvertimeHoursInWeek(context.Background(), user, timesheet.NewDate(2011, time.February, 2))
	require.NoError(t, err)
	assertHours(t, "0.00", over, "empty week is never negative")
}

func TestTotalMonthlyOvertime(t *testing.T) {
	calc, store := newTestCalculator(t)
	fourDays(t, store, morning(2011, time.January, 10), 11*time.Hour)
	fourDays(t, store, morning(2011, time.January, 17), 11*time.Hour)

	got, err := calc.TotalMonthlyOvertime(context.Background(), user, timesheet.NewDate(2011, time.January, 20))
	require.NoError(t, err)
	assertHours(t, "8.00", got, "monthly overtime")
}

func TestTotalMonthlyOvertime_IncludesOverlappingWeeks(t *testing.T) {
	// GIVEN: 44h in the week of Sunday 2011-01-30, which is mostly February
	// WHEN: Asking for January
	// THEN: The whole week's overtime counts since it overlaps January

	calc, store := newTestCalculator(t)
	fourDays(t, store, morning(2011, time.January, 31), 11*time.Hour)

	got, err := calc.TotalMonthlyOvertime(context.Background(), user, timesheet.NewDate(2011, time.January, 1))
	require.NoError(t, err)
	assertHours(t, "4.00", got, "january")

	got, err = calc.TotalMonthlyOvertime(context.Background(), user, timesheet.NewDate(2011, time.February, 1))
	require.NoError(t, err)
	assertHours(t, "4.00", got, "february")
}

func TestPerson_ScopesToUser(t *testing.T) {
	calc, store := newTestCalculator(t)
	addEntries(t, store, approved("acme", "dev", morning(2011, time.January, 3), 8*time.Hour))

	alice := calc.For(payroll.PersonRepeatPeriod{ID: "pr-1", UserID: user})
	bob := calc.For(payroll.PersonRepeatPeriod{ID: "pr-2", UserID: "bob"})

	got, err := alice.HoursInWeek(context.Background(), timesheet.NewDate(2011, time.January, 3))
	require.NoError(t, err)
	assertHours(t, "8.00", got, "alice")

	got, err = bob.HoursInWeek(context.Background(), timesheet.NewDate(2011, time.January, 3))
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}

// =============================================================================
// CONFIG
// =============================================================================

func TestNewCalculator_RejectsSharedLeaveProject(t *testing.T) {
	cfg := payroll.DefaultConfig()
	cfg.LeaveProjects = map[string]timesheet.ProjectID{"sick": "leave", "vacation": "leave"}

	_, err := payroll.NewCalculator(memory.New(), memory.New(), cfg, nil)
	assert.ErrorIs(t, err, payroll.ErrDuplicateLeaveProject)
}

func TestConfig_Validate(t *testing.T) {
	cfg := payroll.DefaultConfig()
	cfg.OvertimeThreshold = dec("-1")
	assert.ErrorIs(t, cfg.Validate(), payroll.ErrInvalidConfig)

	cfg = payroll.DefaultConfig()
	cfg.CountedStatuses = nil
	assert.ErrorIs(t, cfg.Validate(), payroll.ErrInvalidConfig)

	cfg = payroll.DefaultConfig()
	cfg.CountedStatuses = []timesheet.Status{"paid"}
	assert.ErrorIs(t, cfg.Validate(), timesheet.ErrInvalidStatus)
}

func TestConfig_CountedStatuses(t *testing.T) {
	// Counting verified too brings the verified entry into the week.
	store := memory.New()
	require.NoError(t, store.SaveProject(context.Background(), timesheet.Project{ID: "acme", Billable: true}))
	cfg := payroll.DefaultConfig()
	cfg.CountedStatuses = []timesheet.Status{timesheet.StatusVerified, timesheet.StatusApproved}
	calc, err := payroll.NewCalculator(store, store, cfg, nil)
	require.NoError(t, err)

	addEntries(t, store,
		approved("acme", "dev", morning(2011, time.January, 3), 8*time.Hour),
		entrySpec{project: "acme", activity: "dev", status: timesheet.StatusVerified, start: morning(2011, time.January, 5), duration: 5 * time.Hour},
	)

	got, err := calc.HoursInWeek(context.Background(), user, timesheet.NewDate(2011, time.January, 3))
	require.NoError(t, err)
	assertHours(t, "13.00", got, "verified counted")
}
