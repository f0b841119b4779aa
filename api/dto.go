/*
dto.go - Data Transfer Objects for API requests and responses

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

FORMATS:
  Dates are YYYY-MM-DD, timestamps RFC3339, hours are decimal strings
  with two fractional digits ("3.50") so no float ever crosses the wire.

VALIDATION:
  Validation is done in handlers and the core packages, not in DTOs.
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/timepiece/billing"
	"github.com/warp/timepiece/payroll"
	"github.com/warp/timepiece/timesheet"
)

// =============================================================================
// PROJECTS
// =============================================================================

type ProjectDTO struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Billable        bool   `json:"billable"`
	BillingPeriodID string `json:"billing_period_id,omitempty"`
}

type CreateProjectRequest = ProjectDTO

func toProjectDTO(p timesheet.Project) ProjectDTO {
	return ProjectDTO{
		ID:              string(p.ID),
		Name:            p.Name,
		Billable:        p.Billable,
		BillingPeriodID: p.BillingPeriodID,
	}
}

// =============================================================================
// ENTRIES
// =============================================================================

type EntryDTO struct {
	ID         string  `json:"id"`
	UserID     string  `json:"user_id"`
	ProjectID  string  `json:"project_id"`
	ActivityID string  `json:"activity_id,omitempty"`
	Start      string  `json:"start_time"`
	End        *string `json:"end_time,omitempty"`
	Status     string  `json:"status"`
	Hours      string  `json:"hours"`
}

type ClockInRequest struct {
	UserID     string `json:"user_id"`
	ProjectID  string `json:"project_id"`
	ActivityID string `json:"activity_id"`
	// At defaults to now.
	At string `json:"start_time"`
}

type ClockOutRequest struct {
	At string `json:"end_time"`
}

type StatusRequest struct {
	Status string `json:"status"`
}

func toEntryDTO(e timesheet.Entry) EntryDTO {
	dto := EntryDTO{
		ID:         string(e.ID),
		UserID:     string(e.UserID),
		ProjectID:  string(e.ProjectID),
		ActivityID: string(e.ActivityID),
		Start:      e.Start.Format(time.RFC3339),
		Status:     string(e.Status),
		Hours:      hours(e.Hours()),
	}
	if e.End != nil {
		end := e.End.Format(time.RFC3339)
		dto.End = &end
	}
	return dto
}

// =============================================================================
// REPEAT PERIODS AND WINDOWS
// =============================================================================

type PeriodDTO struct {
	ID       string `json:"id"`
	Interval string `json:"interval"`
	Count    int    `json:"count"`
	Active   bool   `json:"active"`
}

type PeriodRequest struct {
	ID       string `json:"id"`
	Interval string `json:"interval"`
	Count    int    `json:"count"`
	Active   *bool  `json:"active"`
	// Start seeds the first window on create and moves the period onto that
	// date on update.
	Start string `json:"start_date"`
}

type RescheduleRequest struct {
	Start    string `json:"start_date"`
	Boundary string `json:"boundary"`
}

type WindowDTO struct {
	ID      string `json:"id"`
	Date    string `json:"date"`
	EndDate string `json:"end_date"`
}

type PeriodWindowsDTO struct {
	Period  PeriodDTO   `json:"period"`
	Windows []WindowDTO `json:"windows"`
}

func toPeriodDTO(p billing.RepeatPeriod) PeriodDTO {
	return PeriodDTO{ID: string(p.ID), Interval: string(p.Interval), Count: p.Count, Active: p.Active}
}

func toWindowDTOs(ws []billing.Window) []WindowDTO {
	dtos := make([]WindowDTO, len(ws))
	for i, w := range ws {
		dtos[i] = WindowDTO{
			ID:      w.ID,
			Date:    w.Date.Format(timesheet.DateLayout),
			EndDate: w.EndDate.Format(timesheet.DateLayout),
		}
	}
	return dtos
}

// =============================================================================
// PAYROLL
// =============================================================================

type PersonDTO struct {
	ID       string `json:"id"`
	UserID   string `json:"user_id"`
	PeriodID string `json:"period_id,omitempty"`
}

type CreatePersonRequest = PersonDTO

type SummaryDTO struct {
	Start       string            `json:"start"`
	End         string            `json:"end"`
	Billable    string            `json:"billable"`
	NonBillable string            `json:"non_billable"`
	PaidLeave   map[string]string `json:"paid_leave"`
	Total       string            `json:"total"`
}

type WeekDTO struct {
	WeekStart string `json:"week_start"`
	Hours     string `json:"hours"`
	Overtime  string `json:"overtime"`
}

type MonthOvertimeDTO struct {
	Month    string `json:"month"`
	Overtime string `json:"overtime"`
}

func toPersonDTO(p payroll.PersonRepeatPeriod) PersonDTO {
	return PersonDTO{ID: p.ID, UserID: string(p.UserID), PeriodID: string(p.PeriodID)}
}

func toSummaryDTO(s payroll.Summary, start, end time.Time) SummaryDTO {
	dto := SummaryDTO{
		Start:       start.Format(timesheet.DateLayout),
		End:         end.Format(timesheet.DateLayout),
		Billable:    hours(s.Billable),
		NonBillable: hours(s.NonBillable),
		PaidLeave:   make(map[string]string, len(s.PaidLeave)),
		Total:       hours(s.Total),
	}
	for category, h := range s.PaidLeave {
		dto.PaidLeave[category] = hours(h)
	}
	return dto
}

func hours(d decimal.Decimal) string { return d.StringFixed(2) }

// =============================================================================
// ERRORS
// =============================================================================

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
