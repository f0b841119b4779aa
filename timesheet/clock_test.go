package timesheet_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/timepiece/store/memory"
	"github.com/warp/timepiece/timesheet"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *memory.Memory {
	t.Helper()
	store := memory.New()
	require.NoError(t, store.SaveProject(context.Background(), timesheet.Project{ID: "acme", Name: "Acme", Billable: true}))
	return store
}

func at(hour, minute int) time.Time {
	return time.Date(2009, time.September, 7, hour, minute, 0, 0, time.UTC)
}

// =============================================================================
// CLOCK IN / CLOCK OUT
// =============================================================================

func TestClockIn_OpensUnverifiedEntry(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	e, err := timesheet.ClockIn(ctx, store, "alice", "acme", "dev", at(9, 0))
	require.NoError(t, err)

	assert.NotEmpty(t, e.ID)
	assert.Equal(t, timesheet.StatusUnverified, e.Status)
	assert.False(t, e.IsClosed())
	assert.True(t, e.Hours().IsZero(), "open entries contribute zero hours")

	stored, err := store.GetEntry(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, e.Start, stored.Start)
}

func TestClockIn_RejectsSecondOpenEntry(t *testing.T) {
	// GIVEN: Alice is clocked in
	// WHEN: She clocks in again
	// THEN: ErrAlreadyClockedIn, and Bob is unaffected

	store := newTestStore(t)
	ctx := context.Background()

	_, err := timesheet.ClockIn(ctx, store, "alice", "acme", "", at(9, 0))
	require.NoError(t, err)

	_, err = timesheet.ClockIn(ctx, store, "alice", "acme", "", at(10, 0))
	assert.ErrorIs(t, err, timesheet.ErrAlreadyClockedIn)

	_, err = timesheet.ClockIn(ctx, store, "bob", "acme", "", at(10, 0))
	assert.NoError(t, err)
}

func TestClockIn_UnknownProject(t *testing.T) {
	_, err := timesheet.ClockIn(context.Background(), newTestStore(t), "alice", "nope", "", at(9, 0))
	assert.ErrorIs(t, err, timesheet.ErrProjectNotFound)
	assert.True(t, timesheet.IsNotFound(err))
}

func TestClockOut(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	e, err := timesheet.ClockIn(ctx, store, "alice", "acme", "dev", at(9, 0))
	require.NoError(t, err)

	closed, err := timesheet.ClockOut(ctx, store, e.ID, at(12, 30))
	require.NoError(t, err)
	assert.True(t, closed.IsClosed())
	assert.True(t, decimal.RequireFromString("3.5").Equal(closed.Hours()), "got %s", closed.Hours())

	_, err = timesheet.ClockOut(ctx, store, e.ID, at(13, 0))
	assert.ErrorIs(t, err, timesheet.ErrEntryClosed)

	// Alice can clock in again once the entry is closed.
	_, err = timesheet.ClockIn(ctx, store, "alice", "acme", "", at(13, 0))
	assert.NoError(t, err)
}

func TestClockOut_BeforeStart(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	e, err := timesheet.ClockIn(ctx, store, "alice", "acme", "", at(9, 0))
	require.NoError(t, err)

	_, err = timesheet.ClockOut(ctx, store, e.ID, at(8, 0))
	assert.ErrorIs(t, err, timesheet.ErrEndBeforeStart)
	assert.True(t, timesheet.IsClientError(err))
}

func TestClockOut_UnknownEntry(t *testing.T) {
	_, err := timesheet.ClockOut(context.Background(), newTestStore(t), "missing", at(9, 0))
	assert.ErrorIs(t, err, timesheet.ErrEntryNotFound)
}

// =============================================================================
// STATUS TRANSITIONS
// =============================================================================

func closedEntry(status timesheet.Status) timesheet.Entry {
	end := at(17, 0)
	return timesheet.Entry{ID: "e1", UserID: "alice", ProjectID: "acme", Start: at(9, 0), End: &end, Status: status}
}

func TestTransition(t *testing.T) {
	tests := []struct {
		name    string
		entry   timesheet.Entry
		to      timesheet.Status
		wantErr error
	}{
		{"forward one step", closedEntry(timesheet.StatusUnverified), timesheet.StatusVerified, nil},
		{"skip steps", closedEntry(timesheet.StatusUnverified), timesheet.StatusInvoiced, nil},
		{"same status", closedEntry(timesheet.StatusApproved), timesheet.StatusApproved, nil},
		{"backwards", closedEntry(timesheet.StatusApproved), timesheet.StatusVerified, timesheet.ErrInvalidTransition},
		{"unknown status", closedEntry(timesheet.StatusUnverified), "paid", timesheet.ErrInvalidStatus},
		{"open entry", timesheet.Entry{Start: at(9, 0), Status: timesheet.StatusUnverified}, timesheet.StatusApproved, timesheet.ErrInvalidTransition},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := timesheet.Transition(tt.entry, tt.to)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, tt.entry.Status, got.Status)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.to, got.Status)
		})
	}
}

func TestSetStatus_Persists(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveEntry(ctx, closedEntry(timesheet.StatusUnverified)))

	_, err := timesheet.SetStatus(ctx, store, "e1", timesheet.StatusApproved)
	require.NoError(t, err)

	e, err := store.GetEntry(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, timesheet.StatusApproved, e.Status)
}

func TestParseStatus(t *testing.T) {
	s, err := timesheet.ParseStatus("invoiced")
	require.NoError(t, err)
	assert.Equal(t, timesheet.StatusInvoiced, s)

	_, err = timesheet.ParseStatus("Approved")
	var statusErr *timesheet.StatusError
	assert.ErrorAs(t, err, &statusErr)
}
