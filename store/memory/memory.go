// Package memory provides an in-memory implementation of every store
// interface (for testing/dev).
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/warp/timepiece/billing"
	"github.com/warp/timepiece/payroll"
	"github.com/warp/timepiece/timesheet"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

type Memory struct {
	mu       sync.RWMutex
	entries  map[timesheet.EntryID]timesheet.Entry
	projects map[timesheet.ProjectID]timesheet.Project
	periods  map[billing.PeriodID]billing.RepeatPeriod
	windows  map[billing.PeriodID][]billing.Window
	people   map[string]payroll.PersonRepeatPeriod
}

func New() *Memory {
	return &Memory{
		entries:  make(map[timesheet.EntryID]timesheet.Entry),
		projects: make(map[timesheet.ProjectID]timesheet.Project),
		periods:  make(map[billing.PeriodID]billing.RepeatPeriod),
		windows:  make(map[billing.PeriodID][]billing.Window),
		people:   make(map[string]payroll.PersonRepeatPeriod),
	}
}

// =============================================================================
// ENTRIES AND PROJECTS
// =============================================================================

func (m *Memory) SaveEntry(_ context.Context, e timesheet.Entry) error {
	if e.End != nil && e.End.Before(e.Start) {
		return timesheet.ErrEndBeforeStart
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[e.ID] = e
	return nil
}

func (m *Memory) GetEntry(_ context.Context, id timesheet.EntryID) (timesheet.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[id]
	if !ok {
		return timesheet.Entry{}, timesheet.ErrEntryNotFound
	}
	return e, nil
}

func (m *Memory) FindEntries(_ context.Context, f timesheet.EntryFilter) ([]timesheet.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []timesheet.Entry
	for _, e := range m.entries {
		if f.Matches(e) {
			result = append(result, e)
		}
	}
	return result, nil
}

func (m *Memory) SaveProject(_ context.Context, p timesheet.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.projects[p.ID] = p
	return nil
}

func (m *Memory) GetProject(_ context.Context, id timesheet.ProjectID) (timesheet.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.projects[id]
	if !ok {
		return timesheet.Project{}, timesheet.ErrProjectNotFound
	}
	return p, nil
}

// =============================================================================
// PERIODS AND WINDOWS
// =============================================================================

func (m *Memory) SavePeriod(_ context.Context, p billing.RepeatPeriod) error {
	if err := p.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.periods[p.ID] = p
	return nil
}

func (m *Memory) GetPeriod(_ context.Context, id billing.PeriodID) (billing.RepeatPeriod, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.periods[id]
	if !ok {
		return billing.RepeatPeriod{}, billing.ErrPeriodNotFound
	}
	return p, nil
}

func (m *Memory) ListPeriods(_ context.Context) ([]billing.RepeatPeriod, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]billing.RepeatPeriod, 0, len(m.periods))
	for _, p := range m.periods {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *Memory) Windows(_ context.Context, id billing.PeriodID) ([]billing.Window, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]billing.Window, len(m.windows[id]))
	copy(result, m.windows[id])
	return result, nil
}

// UpdateWindows holds the write lock across the read, fn and the swap. The
// new set is validated as a whole first, so a rejected set leaves the
// previous windows in place.
func (m *Memory) UpdateWindows(_ context.Context, id billing.PeriodID, fn billing.WindowsFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.periods[id]
	if !ok {
		return billing.ErrPeriodNotFound
	}
	existing := make([]billing.Window, len(m.windows[id]))
	copy(existing, m.windows[id])

	windows, err := fn(p, existing)
	if err != nil {
		return err
	}
	next, err := checkWindows(id, windows)
	if err != nil {
		return err
	}
	if billing.SameWindows(m.windows[id], next) {
		return nil
	}
	m.windows[id] = next
	return nil
}

func checkWindows(id billing.PeriodID, windows []billing.Window) ([]billing.Window, error) {
	next := make([]billing.Window, len(windows))
	copy(next, windows)
	sort.Slice(next, func(i, j int) bool { return next[i].Date.Before(next[j].Date) })

	seen := make(map[string]bool, len(next))
	for i, w := range next {
		if !w.EndDate.After(w.Date) {
			return nil, fmt.Errorf("window %s: %w", w, timesheet.ErrEndBeforeStart)
		}
		if w.ID != "" && seen[w.ID] {
			return nil, fmt.Errorf("duplicate window id %s", w.ID)
		}
		seen[w.ID] = true
		next[i].PeriodID = id
	}
	return next, nil
}

// =============================================================================
// PEOPLE
// =============================================================================

func (m *Memory) SavePerson(_ context.Context, p payroll.PersonRepeatPeriod) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.people[p.ID] = p
	return nil
}

func (m *Memory) GetPerson(_ context.Context, id string) (payroll.PersonRepeatPeriod, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.people[id]
	if !ok {
		return payroll.PersonRepeatPeriod{}, payroll.ErrPersonNotFound
	}
	return p, nil
}

func (m *Memory) ListPeople(_ context.Context) ([]payroll.PersonRepeatPeriod, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]payroll.PersonRepeatPeriod, 0, len(m.people))
	for _, p := range m.people {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}
