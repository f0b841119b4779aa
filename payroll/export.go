package payroll

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/warp/timepiece/timesheet"
)

// ReportRow is one person's line in the monthly payroll report.
type ReportRow struct {
	Person          PersonRepeatPeriod
	Summary         Summary
	MonthlyOvertime decimal.Decimal
}

// MonthlyReport computes a row per person for the calendar month containing day.
func (c *Calculator) MonthlyReport(ctx context.Context, people []PersonRepeatPeriod, day time.Time) ([]ReportRow, error) {
	start, end := timesheet.Month(timesheet.DateOf(day))
	rows := make([]ReportRow, 0, len(people))
	for _, p := range people {
		s, err := c.Summary(ctx, p.UserID, start, end)
		if err != nil {
			return nil, fmt.Errorf("summary for %s: %w", p.UserID, err)
		}
		ot, err := c.TotalMonthlyOvertime(ctx, p.UserID, start)
		if err != nil {
			return nil, fmt.Errorf("overtime for %s: %w", p.UserID, err)
		}
		rows = append(rows, ReportRow{Person: p, Summary: s, MonthlyOvertime: ot})
	}
	return rows, nil
}

// ExportXLSX writes the report rows into a single-sheet workbook. Hours are
// written as fixed two-decimal text so no float conversion happens.
func (c *Calculator) ExportXLSX(rows []ReportRow, month time.Time) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Payroll " + month.Format("2006-01")
	idx, err := f.NewSheet(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(idx)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to drop default sheet: %w", err)
	}

	categories := c.cfg.Categories()
	header := []any{"User", "Billable", "Non-billable"}
	for _, category := range categories {
		header = append(header, "Paid leave: "+category)
	}
	header = append(header, "Total", "Monthly overtime")
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}

	for i, r := range rows {
		line := []any{
			string(r.Person.UserID),
			r.Summary.Billable.StringFixed(2),
			r.Summary.NonBillable.StringFixed(2),
		}
		for _, category := range categories {
			line = append(line, r.Summary.PaidLeave[category].StringFixed(2))
		}
		line = append(line, r.Summary.Total.StringFixed(2), r.MonthlyOvertime.StringFixed(2))

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(sheet, cell, &line); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to render workbook: %w", err)
	}
	c.logger.Info("payroll report exported",
		zap.String("month", month.Format("2006-01")),
		zap.Int("rows", len(rows)),
	)
	return buf, nil
}
