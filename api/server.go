/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/projects/*       Projects
  /api/entries/*        Clock in/out and approval
  /api/periods/*        Repeat periods and billing windows
  /api/people/*         Payroll per person
  /api/payroll/*        Payroll export

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/timepiece/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/projects", func(r chi.Router) {
			r.Post("/", h.CreateProject)
			r.Get("/{id}", h.GetProject)
		})

		r.Route("/entries", func(r chi.Router) {
			r.Post("/clock-in", h.ClockIn)
			r.Post("/{id}/clock-out", h.ClockOut)
			r.Post("/{id}/status", h.SetEntryStatus)
		})

		r.Route("/periods", func(r chi.Router) {
			r.Post("/", h.CreatePeriod)
			r.Get("/{id}", h.GetPeriod)
			r.Put("/{id}", h.UpdatePeriod)
			r.Get("/{id}/windows", h.GetPeriod)
			r.Post("/{id}/windows/update", h.UpdateWindows)
			r.Post("/{id}/reschedule", h.ReschedulePeriod)
			r.Get("/{id}/windows.ics", h.PeriodCalendar)
		})

		r.Route("/people", func(r chi.Router) {
			r.Post("/", h.CreatePerson)
			r.Get("/{id}/summary", h.GetSummary)
			r.Get("/{id}/weeks/{date}", h.GetWeek)
			r.Get("/{id}/months/{date}/overtime", h.GetMonthlyOvertime)
		})

		r.Get("/payroll/export", h.ExportPayroll)
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return r
}
