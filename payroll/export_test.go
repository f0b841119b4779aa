package payroll_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/warp/timepiece/payroll"
	"github.com/warp/timepiece/timesheet"
)

func TestMonthlyReport_AndExport(t *testing.T) {
	// GIVEN: Alice with billable, sick and overtime hours in January 2011, Bob with none
	// WHEN: Exporting January
	// THEN: One row per person with fixed two-decimal hours

	calc, store := newTestCalculator(t)
	fourDays(t, store, morning(2011, time.January, 10), 11*time.Hour)
	addEntries(t, store, approved("sick-leave", "", morning(2011, time.January, 20), 8*time.Hour))

	people := []payroll.PersonRepeatPeriod{
		{ID: "pr-1", UserID: user},
		{ID: "pr-2", UserID: "bob"},
	}
	month := timesheet.NewDate(2011, time.January, 15)

	rows, err := calc.MonthlyReport(context.Background(), people, month)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assertHours(t, "44.00", rows[0].Summary.Billable, "alice billable")
	assertHours(t, "4.00", rows[0].MonthlyOvertime, "alice overtime")
	assert.True(t, rows[1].Summary.Total.IsZero())

	buf, err := calc.ExportXLSX(rows, month)
	require.NoError(t, err)

	f, err := excelize.OpenReader(buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Payroll 2011-01"}, f.GetSheetList())
	got, err := f.GetRows("Payroll 2011-01")
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, []string{"User", "Billable", "Non-billable", "Paid leave: sick", "Paid leave: vacation", "Total", "Monthly overtime"}, got[0])
	assert.Equal(t, []string{"alice", "44.00", "0.00", "8.00", "0.00", "52.00", "4.00"}, got[1])
	assert.Equal(t, []string{"bob", "0.00", "0.00", "0.00", "0.00", "0.00", "0.00"}, got[2])
}
