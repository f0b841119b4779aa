package timesheet

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// CLOCK IN / CLOCK OUT
// =============================================================================

// ClockIn opens a new unverified entry for the user on the project.
// A user may have at most one open entry.
func ClockIn(ctx context.Context, store Store, user UserID, project ProjectID, activity ActivityID, at time.Time) (Entry, error) {
	if _, err := store.GetProject(ctx, project); err != nil {
		return Entry{}, err
	}

	open, err := store.FindEntries(ctx, EntryFilter{UserID: user, OnlyOpen: true})
	if err != nil {
		return Entry{}, fmt.Errorf("failed to look up open entries: %w", err)
	}
	if len(open) > 0 {
		return Entry{}, ErrAlreadyClockedIn
	}

	e := Entry{
		ID:         EntryID(uuid.NewString()),
		UserID:     user,
		ProjectID:  project,
		ActivityID: activity,
		Start:      at.UTC(),
		Status:     StatusUnverified,
	}
	if err := store.SaveEntry(ctx, e); err != nil {
		return Entry{}, fmt.Errorf("failed to save entry: %w", err)
	}
	return e, nil
}

// ClockOut closes the entry at the given time.
func ClockOut(ctx context.Context, store EntryStore, id EntryID, at time.Time) (Entry, error) {
	e, err := store.GetEntry(ctx, id)
	if err != nil {
		return Entry{}, err
	}
	if e.IsClosed() {
		return Entry{}, ErrEntryClosed
	}
	at = at.UTC()
	if at.Before(e.Start) {
		return Entry{}, ErrEndBeforeStart
	}

	e.End = &at
	if err := store.SaveEntry(ctx, e); err != nil {
		return Entry{}, fmt.Errorf("failed to save entry: %w", err)
	}
	return e, nil
}

// =============================================================================
// STATUS TRANSITIONS
// =============================================================================

// Transition moves an entry forward in the approval lifecycle. Steps may be
// skipped but never reversed, and open entries stay unverified.
func Transition(e Entry, to Status) (Entry, error) {
	if !to.Valid() {
		return e, &StatusError{Value: string(to)}
	}
	if !e.IsClosed() && to != StatusUnverified {
		return e, &TransitionError{From: e.Status, To: to}
	}
	if statusOrder[to] < statusOrder[e.Status] {
		return e, &TransitionError{From: e.Status, To: to}
	}
	e.Status = to
	return e, nil
}

// SetStatus loads, transitions and saves an entry.
func SetStatus(ctx context.Context, store EntryStore, id EntryID, to Status) (Entry, error) {
	e, err := store.GetEntry(ctx, id)
	if err != nil {
		return Entry{}, err
	}
	e, err = Transition(e, to)
	if err != nil {
		return Entry{}, err
	}
	if err := store.SaveEntry(ctx, e); err != nil {
		return Entry{}, fmt.Errorf("failed to save entry: %w", err)
	}
	return e, nil
}
