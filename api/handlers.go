/*
handlers.go - HTTP API handlers for time tracking, billing windows and payroll

PURPOSE:
  Thin adapter over the core packages. Handles HTTP request/response and
  JSON serialization, and delegates every decision to timesheet, billing
  and payroll.

ENDPOINTS:
  Projects:
    POST   /api/projects                          Create or update a project
    GET    /api/projects/{id}                     Get a project

  Entries:
    POST   /api/entries/clock-in                  Open an entry
    POST   /api/entries/{id}/clock-out            Close an entry
    POST   /api/entries/{id}/status               Advance approval status

  Repeat periods:
    POST   /api/periods                           Create a period (optionally seeded)
    GET    /api/periods/{id}                      Period with its windows
    PUT    /api/periods/{id}                      Change cadence (and start_date), then regenerate
    POST   /api/periods/{id}/windows/update       Regenerate up to ?boundary=
    POST   /api/periods/{id}/reschedule           Move onto a new start date
    GET    /api/periods/{id}/windows.ics          Windows as iCalendar

  Payroll:
    POST   /api/people                            Associate a user with a period
    GET    /api/people/{id}/summary               ?start=&end=
    GET    /api/people/{id}/weeks/{date}          Hours and overtime of the week
    GET    /api/people/{id}/months/{date}/overtime Monthly overtime
    GET    /api/payroll/export                    ?month=YYYY-MM, xlsx

ERROR HANDLING:
  - 400: Validation errors, invalid input, bad period configuration
  - 404: Missing project, entry, period or person
  - 409: Clock-in conflict, period with no windows to extend, start date
         inside elapsed windows
  - 500: Store failures

SECURITY NOTE:
  No authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - scheduler.go: Background window regeneration
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/warp/timepiece/billing"
	"github.com/warp/timepiece/payroll"
	"github.com/warp/timepiece/timesheet"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Store is everything the handlers persist through.
type Store interface {
	timesheet.Store
	billing.PeriodStore
	billing.WindowStore
	payroll.PersonStore
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store      Store
	Calculator *payroll.Calculator
	Generator  *billing.Generator
	Logger     *zap.Logger

	now func() time.Time
}

// NewHandler creates a new handler with the given store and payroll config.
func NewHandler(store Store, cfg payroll.Config, logger *zap.Logger) (*Handler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	calc, err := payroll.NewCalculator(store, store, cfg, logger.Named("payroll"))
	if err != nil {
		return nil, err
	}
	return &Handler{
		Store:      store,
		Calculator: calc,
		Generator:  billing.NewGenerator(store, logger.Named("billing")),
		Logger:     logger,
		now:        time.Now,
	}, nil
}

func (h *Handler) today() time.Time { return timesheet.DateOf(h.now().UTC()) }

// =============================================================================
// PROJECT HANDLERS
// =============================================================================

// CreateProject creates or replaces a project.
func (h *Handler) CreateProject(w http.ResponseWriter, r *http.Request) {
	var req CreateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.BillingPeriodID != "" {
		if _, err := h.Store.GetPeriod(r.Context(), billing.PeriodID(req.BillingPeriodID)); err != nil {
			h.writeDomainError(w, "Unknown billing period", err)
			return
		}
	}

	p := timesheet.Project{
		ID:              timesheet.ProjectID(req.ID),
		Name:            req.Name,
		Billable:        req.Billable,
		BillingPeriodID: req.BillingPeriodID,
	}
	if err := h.Store.SaveProject(r.Context(), p); err != nil {
		h.writeDomainError(w, "Failed to save project", err)
		return
	}
	writeJSON(w, http.StatusCreated, toProjectDTO(p))
}

// GetProject returns a single project.
func (h *Handler) GetProject(w http.ResponseWriter, r *http.Request) {
	p, err := h.Store.GetProject(r.Context(), timesheet.ProjectID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeDomainError(w, "Project not found", err)
		return
	}
	writeJSON(w, http.StatusOK, toProjectDTO(p))
}

// =============================================================================
// ENTRY HANDLERS
// =============================================================================

// ClockIn opens a new entry.
func (h *Handler) ClockIn(w http.ResponseWriter, r *http.Request) {
	var req ClockInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.UserID == "" || req.ProjectID == "" {
		writeError(w, http.StatusBadRequest, "user_id and project_id are required", nil)
		return
	}
	at, err := h.timestampOrNow(req.At)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start_time format (use RFC3339)", err)
		return
	}

	e, err := timesheet.ClockIn(r.Context(), h.Store,
		timesheet.UserID(req.UserID), timesheet.ProjectID(req.ProjectID), timesheet.ActivityID(req.ActivityID), at)
	if err != nil {
		h.writeDomainError(w, "Failed to clock in", err)
		return
	}
	writeJSON(w, http.StatusCreated, toEntryDTO(e))
}

// ClockOut closes an open entry.
func (h *Handler) ClockOut(w http.ResponseWriter, r *http.Request) {
	var req ClockOutRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}
	at, err := h.timestampOrNow(req.At)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid end_time format (use RFC3339)", err)
		return
	}

	e, err := timesheet.ClockOut(r.Context(), h.Store, timesheet.EntryID(chi.URLParam(r, "id")), at)
	if err != nil {
		h.writeDomainError(w, "Failed to clock out", err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTO(e))
}

// SetEntryStatus moves an entry forward in the approval workflow.
func (h *Handler) SetEntryStatus(w http.ResponseWriter, r *http.Request) {
	var req StatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	status, err := timesheet.ParseStatus(req.Status)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid status", err)
		return
	}

	e, err := timesheet.SetStatus(r.Context(), h.Store, timesheet.EntryID(chi.URLParam(r, "id")), status)
	if err != nil {
		h.writeDomainError(w, "Failed to update status", err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTO(e))
}

// =============================================================================
// REPEAT PERIOD HANDLERS
// =============================================================================

// CreatePeriod validates and stores a period, seeding it when start_date is given.
func (h *Handler) CreatePeriod(w http.ResponseWriter, r *http.Request) {
	var req PeriodRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	p := billing.RepeatPeriod{
		ID:       billing.PeriodID(req.ID),
		Interval: billing.Interval(req.Interval),
		Count:    req.Count,
		Active:   req.Active == nil || *req.Active,
	}
	h.savePeriod(w, r, p, req.Start, h.Generator.Seed, http.StatusCreated)
}

// UpdatePeriod changes a period's cadence and regenerates its windows. A
// start_date moves the period onto that date in the same call.
func (h *Handler) UpdatePeriod(w http.ResponseWriter, r *http.Request) {
	p, err := h.Store.GetPeriod(r.Context(), billing.PeriodID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeDomainError(w, "Period not found", err)
		return
	}

	var req PeriodRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Interval != "" {
		p.Interval = billing.Interval(req.Interval)
	}
	if req.Count != 0 {
		p.Count = req.Count
	}
	if req.Active != nil {
		p.Active = *req.Active
	}
	h.savePeriod(w, r, p, req.Start, h.Generator.Reschedule, http.StatusOK)
}

type startFunc func(ctx context.Context, id billing.PeriodID, start, boundary time.Time) ([]billing.Window, error)

func (h *Handler) savePeriod(w http.ResponseWriter, r *http.Request, p billing.RepeatPeriod, start string, onStart startFunc, status int) {
	ctx := r.Context()
	if err := p.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid repeat period", err)
		return
	}
	if err := h.Store.SavePeriod(ctx, p); err != nil {
		h.writeDomainError(w, "Failed to save period", err)
		return
	}

	var (
		windows []billing.Window
		err     error
	)
	if start != "" {
		day, perr := timesheet.ParseDate(start)
		if perr != nil {
			writeError(w, http.StatusBadRequest, "Invalid start_date format (use YYYY-MM-DD)", perr)
			return
		}
		windows, err = onStart(ctx, p.ID, day, h.today())
	} else {
		windows, err = h.Generator.Update(ctx, p.ID, h.today())
		if errors.Is(err, billing.ErrNoWindows) {
			windows, err = nil, nil
		}
	}
	if err != nil {
		h.writeDomainError(w, "Failed to generate windows", err)
		return
	}
	writeJSON(w, status, PeriodWindowsDTO{Period: toPeriodDTO(p), Windows: toWindowDTOs(windows)})
}

// GetPeriod returns a period with its windows.
func (h *Handler) GetPeriod(w http.ResponseWriter, r *http.Request) {
	p, windows, ok := h.loadPeriod(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, PeriodWindowsDTO{Period: toPeriodDTO(p), Windows: toWindowDTOs(windows)})
}

// UpdateWindows regenerates a period's windows up to ?boundary= (default today).
func (h *Handler) UpdateWindows(w http.ResponseWriter, r *http.Request) {
	p, err := h.Store.GetPeriod(r.Context(), billing.PeriodID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeDomainError(w, "Period not found", err)
		return
	}
	boundary, err := h.dateOrToday(r.URL.Query().Get("boundary"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid boundary format (use YYYY-MM-DD)", err)
		return
	}

	windows, err := h.Generator.Update(r.Context(), p.ID, boundary)
	if err != nil {
		h.writeDomainError(w, "Failed to update windows", err)
		return
	}
	writeJSON(w, http.StatusOK, PeriodWindowsDTO{Period: toPeriodDTO(p), Windows: toWindowDTOs(windows)})
}

// ReschedulePeriod moves a period's windows onto a new start date.
func (h *Handler) ReschedulePeriod(w http.ResponseWriter, r *http.Request) {
	p, err := h.Store.GetPeriod(r.Context(), billing.PeriodID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeDomainError(w, "Period not found", err)
		return
	}
	var req RescheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	start, err := timesheet.ParseDate(req.Start)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start_date format (use YYYY-MM-DD)", err)
		return
	}
	boundary, err := h.dateOrToday(req.Boundary)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid boundary format (use YYYY-MM-DD)", err)
		return
	}

	windows, err := h.Generator.Reschedule(r.Context(), p.ID, start, boundary)
	if err != nil {
		h.writeDomainError(w, "Failed to reschedule period", err)
		return
	}
	writeJSON(w, http.StatusOK, PeriodWindowsDTO{Period: toPeriodDTO(p), Windows: toWindowDTOs(windows)})
}

// PeriodCalendar renders a period's windows as text/calendar.
func (h *Handler) PeriodCalendar(w http.ResponseWriter, r *http.Request) {
	p, windows, ok := h.loadPeriod(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="period-%s.ics"`, p.ID))
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(billing.WindowsCalendar(p, windows, h.now())))
}

func (h *Handler) loadPeriod(w http.ResponseWriter, r *http.Request) (billing.RepeatPeriod, []billing.Window, bool) {
	p, err := h.Store.GetPeriod(r.Context(), billing.PeriodID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeDomainError(w, "Period not found", err)
		return p, nil, false
	}
	windows, err := h.Store.Windows(r.Context(), p.ID)
	if err != nil {
		h.writeDomainError(w, "Failed to load windows", err)
		return p, nil, false
	}
	return p, windows, true
}

// =============================================================================
// PAYROLL HANDLERS
// =============================================================================

// CreatePerson associates a user with a repeat period.
func (h *Handler) CreatePerson(w http.ResponseWriter, r *http.Request) {
	var req CreatePersonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required", nil)
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.PeriodID != "" {
		if _, err := h.Store.GetPeriod(r.Context(), billing.PeriodID(req.PeriodID)); err != nil {
			h.writeDomainError(w, "Unknown period", err)
			return
		}
	}

	p := payroll.PersonRepeatPeriod{
		ID:       req.ID,
		UserID:   timesheet.UserID(req.UserID),
		PeriodID: billing.PeriodID(req.PeriodID),
	}
	if err := h.Store.SavePerson(r.Context(), p); err != nil {
		h.writeDomainError(w, "Failed to save person", err)
		return
	}
	writeJSON(w, http.StatusCreated, toPersonDTO(p))
}

// GetSummary returns the payroll summary over [start, end).
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	person, ok := h.loadPerson(w, r)
	if !ok {
		return
	}
	start, err := timesheet.ParseDate(r.URL.Query().Get("start"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start format (use YYYY-MM-DD)", err)
		return
	}
	end, err := timesheet.ParseDate(r.URL.Query().Get("end"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid end format (use YYYY-MM-DD)", err)
		return
	}

	s, err := person.Summary(r.Context(), start, end)
	if err != nil {
		h.writeDomainError(w, "Failed to compute summary", err)
		return
	}
	writeJSON(w, http.StatusOK, toSummaryDTO(s, start, end))
}

// GetWeek returns hours and overtime for the week containing {date}.
func (h *Handler) GetWeek(w http.ResponseWriter, r *http.Request) {
	person, ok := h.loadPerson(w, r)
	if !ok {
		return
	}
	day, err := timesheet.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}

	worked, err := person.HoursInWeek(r.Context(), day)
	if err != nil {
		h.writeDomainError(w, "Failed to compute weekly hours", err)
		return
	}
	overtime, err := person.OvertimeHoursInWeek(r.Context(), day)
	if err != nil {
		h.writeDomainError(w, "Failed to compute weekly overtime", err)
		return
	}
	writeJSON(w, http.StatusOK, WeekDTO{
		WeekStart: timesheet.WeekStart(day, h.Calculator.Config().WeekStart).Format(timesheet.DateLayout),
		Hours:     hours(worked),
		Overtime:  hours(overtime),
	})
}

// GetMonthlyOvertime returns overtime for the month containing {date}.
func (h *Handler) GetMonthlyOvertime(w http.ResponseWriter, r *http.Request) {
	person, ok := h.loadPerson(w, r)
	if !ok {
		return
	}
	day, err := timesheet.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}

	overtime, err := person.TotalMonthlyOvertime(r.Context(), day)
	if err != nil {
		h.writeDomainError(w, "Failed to compute monthly overtime", err)
		return
	}
	writeJSON(w, http.StatusOK, MonthOvertimeDTO{Month: day.Format("2006-01"), Overtime: hours(overtime)})
}

// ExportPayroll streams the monthly payroll workbook for every person.
func (h *Handler) ExportPayroll(w http.ResponseWriter, r *http.Request) {
	month, err := time.Parse("2006-01", r.URL.Query().Get("month"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid month format (use YYYY-MM)", err)
		return
	}
	people, err := h.Store.ListPeople(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to list people", err)
		return
	}
	rows, err := h.Calculator.MonthlyReport(r.Context(), people, month)
	if err != nil {
		h.writeDomainError(w, "Failed to compute payroll", err)
		return
	}
	buf, err := h.Calculator.ExportXLSX(rows, month)
	if err != nil {
		h.writeDomainError(w, "Failed to render payroll", err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="payroll-%s.xlsx"`, month.Format("2006-01")))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func (h *Handler) loadPerson(w http.ResponseWriter, r *http.Request) (*payroll.Person, bool) {
	p, err := h.Store.GetPerson(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, "Person not found", err)
		return nil, false
	}
	return h.Calculator.For(p), true
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) timestampOrNow(s string) (time.Time, error) {
	if s == "" {
		return h.now().UTC(), nil
	}
	return time.Parse(time.RFC3339, s)
}

func (h *Handler) dateOrToday(s string) (time.Time, error) {
	if s == "" {
		return h.today(), nil
	}
	return timesheet.ParseDate(s)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps core errors onto HTTP status codes.
func (h *Handler) writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case timesheet.IsNotFound(err),
		errors.Is(err, billing.ErrPeriodNotFound),
		errors.Is(err, payroll.ErrPersonNotFound):
		writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, timesheet.ErrAlreadyClockedIn),
		errors.Is(err, billing.ErrNoWindows),
		errors.Is(err, billing.ErrRescheduleElapsed):
		writeError(w, http.StatusConflict, message, err)
	case timesheet.IsClientError(err),
		errors.Is(err, billing.ErrInvalidInterval),
		errors.Is(err, billing.ErrInvalidCount):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		h.Logger.Error(message, zap.Error(err))
		writeError(w, http.StatusInternalServerError, message, err)
	}
}
