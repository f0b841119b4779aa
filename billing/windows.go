package billing

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// =============================================================================
// WINDOW
// =============================================================================

// Window is one [Date, EndDate) instance of a repeat period.
type Window struct {
	ID       string
	PeriodID PeriodID
	Date     time.Time
	EndDate  time.Time
}

func (w Window) String() string {
	return "[" + w.Date.Format("2006-01-02") + ", " + w.EndDate.Format("2006-01-02") + ")"
}

// Contains reports whether day falls inside the window.
func (w Window) Contains(day time.Time) bool {
	day = dateOf(day)
	return !day.Before(w.Date) && day.Before(w.EndDate)
}

func sameSpan(a, b Window) bool {
	return a.Date.Equal(b.Date) && a.EndDate.Equal(b.EndDate)
}

// SameWindows reports whether two ordered sequences cover identical spans.
func SameWindows(a, b []Window) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !sameSpan(a[i], b[i]) {
			return false
		}
	}
	return true
}

func sortWindows(ws []Window) []Window {
	out := append([]Window(nil), ws...)
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// =============================================================================
// REGENERATION - Pure window arithmetic
// =============================================================================

// Regenerate returns the window sequence of p as of boundary.
//
// Windows ending on or before the boundary are kept untouched. Everything
// after them is rebuilt with p's current delta, starting at the last kept
// window's end (or the first window's date when nothing is kept), until a
// window ends after the boundary. Rebuilt windows that match an existing
// span keep the existing ID. Inactive periods and empty sequences are
// returned unchanged.
func Regenerate(existing []Window, p RepeatPeriod, boundary time.Time) ([]Window, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	ordered := sortWindows(existing)
	if !p.Active || len(ordered) == 0 {
		return ordered, nil
	}
	delta, _ := p.Delta()
	boundary = dateOf(boundary)

	kept := 0
	for kept < len(ordered) && !ordered[kept].EndDate.After(boundary) {
		kept++
	}

	result := append([]Window(nil), ordered[:kept]...)
	cursor := ordered[0].Date
	if kept > 0 {
		cursor = ordered[kept-1].EndDate
	}
	return extend(result, ordered[kept:], p.ID, delta, cursor, boundary), nil
}

// extend appends windows starting at cursor until one ends after boundary.
func extend(result, previous []Window, id PeriodID, delta Delta, cursor, boundary time.Time) []Window {
	for {
		w := Window{PeriodID: id, Date: cursor, EndDate: dateOf(delta.AddTo(cursor))}
		w.ID = reuseID(previous, w)
		result = append(result, w)
		cursor = w.EndDate
		if w.EndDate.After(boundary) {
			return result
		}
	}
}

func reuseID(previous []Window, w Window) string {
	for _, old := range previous {
		if sameSpan(old, w) && old.ID != "" {
			return old.ID
		}
	}
	return uuid.NewString()
}

// Reschedule moves the period onto a new start date. Windows starting on or
// after start are dropped and generation resumes from start with p's delta.
// The last remaining window is cut to end at start, or, when it already
// ended on or before the boundary, a bridging window [end, start) is added
// instead so elapsed windows are never rewritten. A start that falls before
// the end of an elapsed window returns ErrRescheduleElapsed. With no
// existing windows this seeds the period at start.
func Reschedule(existing []Window, p RepeatPeriod, start, boundary time.Time) ([]Window, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	ordered := sortWindows(existing)
	start = dateOf(start)
	boundary = dateOf(boundary)

	var result []Window
	for _, w := range ordered {
		elapsed := !w.EndDate.After(boundary)
		if elapsed && w.EndDate.After(start) {
			return nil, fmt.Errorf("%w: %s is before the end of %s", ErrRescheduleElapsed, start.Format("2006-01-02"), w)
		}
		if w.Date.Before(start) {
			result = append(result, w)
		}
	}
	if n := len(result); n > 0 && !result[n-1].EndDate.Equal(start) {
		last := result[n-1]
		if last.EndDate.After(boundary) {
			result[n-1] = Window{ID: uuid.NewString(), PeriodID: last.PeriodID, Date: last.Date, EndDate: start}
		} else {
			result = append(result, Window{ID: uuid.NewString(), PeriodID: p.ID, Date: last.EndDate, EndDate: start})
		}
	}
	if !p.Active {
		return result, nil
	}

	delta, _ := p.Delta()
	return extend(result, ordered, p.ID, delta, start, boundary), nil
}

// =============================================================================
// STORES
// =============================================================================

// PeriodStore persists repeat period definitions.
type PeriodStore interface {
	SavePeriod(ctx context.Context, p RepeatPeriod) error

	// GetPeriod returns ErrPeriodNotFound when no period has the ID.
	GetPeriod(ctx context.Context, id PeriodID) (RepeatPeriod, error)

	ListPeriods(ctx context.Context) ([]RepeatPeriod, error)
}

// WindowsFunc computes a period's next window sequence from its stored
// definition and windows.
type WindowsFunc func(p RepeatPeriod, existing []Window) ([]Window, error)

// WindowStore persists the windows of a period.
type WindowStore interface {
	// Windows returns the period's windows ordered by Date.
	Windows(ctx context.Context, id PeriodID) ([]Window, error)

	// UpdateWindows loads the period and its windows, calls fn and swaps in
	// the sequence fn returns, all as one serialized step: no other window
	// update can run between the read and the write, and readers see either
	// the old or the new sequence. An error from fn aborts without writing.
	// A result covering the same spans as the stored windows is not written.
	// Returns ErrPeriodNotFound when no period has the ID. fn must not call
	// back into the store.
	UpdateWindows(ctx context.Context, id PeriodID, fn WindowsFunc) error
}

// =============================================================================
// GENERATOR - Regeneration against a store
// =============================================================================

// Generator runs window regeneration through a WindowStore. Every operation
// works on the period as currently stored, inside one UpdateWindows call.
type Generator struct {
	store  WindowStore
	logger *zap.Logger
	now    func() time.Time
}

func NewGenerator(store WindowStore, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{store: store, logger: logger, now: time.Now}
}

func (g *Generator) boundaryOr(boundary time.Time) time.Time {
	if boundary.IsZero() {
		return dateOf(g.now().UTC())
	}
	return dateOf(boundary)
}

// Update regenerates the period's windows up to boundary (today when zero)
// and persists the result if it changed. Calling it again with the same
// boundary and cadence writes nothing.
func (g *Generator) Update(ctx context.Context, id PeriodID, boundary time.Time) ([]Window, error) {
	boundary = g.boundaryOr(boundary)
	return g.apply(ctx, id, boundary, func(p RepeatPeriod, existing []Window) ([]Window, error) {
		return regenerateStored(existing, p, boundary)
	})
}

// Reschedule applies Reschedule to the stored windows and persists them.
func (g *Generator) Reschedule(ctx context.Context, id PeriodID, start, boundary time.Time) ([]Window, error) {
	boundary = g.boundaryOr(boundary)
	return g.apply(ctx, id, boundary, func(p RepeatPeriod, existing []Window) ([]Window, error) {
		return Reschedule(existing, p, start, boundary)
	})
}

// Seed starts an unseeded period at start, or updates a seeded one.
func (g *Generator) Seed(ctx context.Context, id PeriodID, start, boundary time.Time) ([]Window, error) {
	boundary = g.boundaryOr(boundary)
	return g.apply(ctx, id, boundary, func(p RepeatPeriod, existing []Window) ([]Window, error) {
		if len(existing) > 0 {
			return regenerateStored(existing, p, boundary)
		}
		return Reschedule(existing, p, start, boundary)
	})
}

func regenerateStored(existing []Window, p RepeatPeriod, boundary time.Time) ([]Window, error) {
	if !p.Active {
		return existing, nil
	}
	if len(existing) == 0 {
		return nil, ErrNoWindows
	}
	return Regenerate(existing, p, boundary)
}

func (g *Generator) apply(ctx context.Context, id PeriodID, boundary time.Time, fn WindowsFunc) ([]Window, error) {
	var before, after []Window
	err := g.store.UpdateWindows(ctx, id, func(p RepeatPeriod, existing []Window) ([]Window, error) {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		next, err := fn(p, existing)
		if err != nil {
			return nil, err
		}
		before, after = existing, next
		return next, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update windows of period %s: %w", id, err)
	}

	if !SameWindows(sortWindows(before), after) {
		g.logger.Info("billing windows regenerated",
			zap.String("period_id", string(id)),
			zap.String("boundary", boundary.Format("2006-01-02")),
			zap.Int("before", len(before)),
			zap.Int("after", len(after)),
		)
	}
	return after, nil
}
