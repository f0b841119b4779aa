package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/warp/timepiece/billing"
	"github.com/warp/timepiece/payroll"
	"github.com/warp/timepiece/timesheet"
)

var (
	periodFlag   string
	boundaryFlag string

	personFlag string
	startFlag  string
	endFlag    string

	monthFlag string
	outFlag   string
)

var windowsCmd = &cobra.Command{
	Use:   "windows",
	Short: "Manage billing windows",
}

var windowsUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Regenerate a period's billing windows up to a boundary",
	Args:  cobra.NoArgs,
	RunE:  runWindowsUpdate,
}

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Print a person's payroll summary over [start, end)",
	Args:  cobra.NoArgs,
	RunE:  runSummary,
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the monthly payroll workbook (xlsx)",
	Args:  cobra.NoArgs,
	RunE:  runExport,
}

func init() {
	windowsUpdateCmd.Flags().StringVar(&periodFlag, "period", "", "repeat period id")
	windowsUpdateCmd.Flags().StringVar(&boundaryFlag, "boundary", "", "boundary date YYYY-MM-DD (default: today)")
	windowsUpdateCmd.MarkFlagRequired("period")
	windowsCmd.AddCommand(windowsUpdateCmd)

	summaryCmd.Flags().StringVar(&personFlag, "person", "", "person repeat period id")
	summaryCmd.Flags().StringVar(&startFlag, "start", "", "start date YYYY-MM-DD")
	summaryCmd.Flags().StringVar(&endFlag, "end", "", "end date YYYY-MM-DD (exclusive)")
	summaryCmd.MarkFlagRequired("person")
	summaryCmd.MarkFlagRequired("start")
	summaryCmd.MarkFlagRequired("end")

	exportCmd.Flags().StringVar(&monthFlag, "month", "", "month YYYY-MM (default: current month)")
	exportCmd.Flags().StringVar(&outFlag, "out", "", "output file (default: payroll-YYYY-MM.xlsx)")
}

func runWindowsUpdate(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	var boundary time.Time
	if boundaryFlag != "" {
		if boundary, err = timesheet.ParseDate(boundaryFlag); err != nil {
			return err
		}
	}

	ctx := context.Background()
	p, err := a.store.GetPeriod(ctx, billing.PeriodID(periodFlag))
	if err != nil {
		return err
	}
	windows, err := billing.NewGenerator(a.store, a.logger).Update(ctx, p.ID, boundary)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, w := range windows {
		fmt.Fprintf(out, "%s\t%s\t%s\n", w.ID, w.Date.Format(timesheet.DateLayout), w.EndDate.Format(timesheet.DateLayout))
	}
	return nil
}

func runSummary(cmd *cobra.Command, args []string) error {
	start, err := timesheet.ParseDate(startFlag)
	if err != nil {
		return err
	}
	end, err := timesheet.ParseDate(endFlag)
	if err != nil {
		return err
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	calc, err := newCalculator(a)
	if err != nil {
		return err
	}
	ctx := context.Background()
	person, err := a.store.GetPerson(ctx, personFlag)
	if err != nil {
		return err
	}
	s, err := calc.For(person).Summary(ctx, start, end)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "billable\t%s\n", s.Billable.StringFixed(2))
	fmt.Fprintf(out, "non_billable\t%s\n", s.NonBillable.StringFixed(2))
	for _, category := range calc.Config().Categories() {
		fmt.Fprintf(out, "%s\t%s\n", category, s.PaidLeave[category].StringFixed(2))
	}
	fmt.Fprintf(out, "total\t%s\n", s.Total.StringFixed(2))
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	month := timesheet.Today()
	if monthFlag != "" {
		m, err := time.Parse("2006-01", monthFlag)
		if err != nil {
			return fmt.Errorf("invalid month %q (use YYYY-MM): %w", monthFlag, err)
		}
		month = m
	}
	out := outFlag
	if out == "" {
		out = fmt.Sprintf("payroll-%s.xlsx", month.Format("2006-01"))
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	calc, err := newCalculator(a)
	if err != nil {
		return err
	}
	ctx := context.Background()
	people, err := a.store.ListPeople(ctx)
	if err != nil {
		return err
	}
	rows, err := calc.MonthlyReport(ctx, people, month)
	if err != nil {
		return err
	}
	buf, err := calc.ExportXLSX(rows, month)
	if err != nil {
		return err
	}
	if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", out, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %d rows to %s\n", len(rows), out)
	return nil
}

func newCalculator(a *app) (*payroll.Calculator, error) {
	cfg, err := a.cfg.PayrollConfig()
	if err != nil {
		return nil, err
	}
	return payroll.NewCalculator(a.store, a.store, cfg, a.logger.Named("payroll"))
}
