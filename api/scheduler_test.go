package api

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/timepiece/billing"
	"github.com/warp/timepiece/store/memory"
)

func TestWindowScheduler_RunNow(t *testing.T) {
	// GIVEN: One seeded active period, one inactive period and one never seeded
	// WHEN: The scheduler runs
	// THEN: Only the seeded active period is extended to today

	ctx := context.Background()
	store := memory.New()
	gen := billing.NewGenerator(store, nil)

	seeded := billing.RepeatPeriod{ID: "seeded", Interval: billing.IntervalWeek, Count: 1, Active: true}
	inactive := billing.RepeatPeriod{ID: "inactive", Interval: billing.IntervalWeek, Count: 1, Active: true}
	unseeded := billing.RepeatPeriod{ID: "unseeded", Interval: billing.IntervalMonth, Count: 1, Active: true}
	for _, p := range []billing.RepeatPeriod{seeded, inactive, unseeded} {
		require.NoError(t, store.SavePeriod(ctx, p))
	}

	// Seeded a month ago so at least four weeks are missing.
	start := time.Now().UTC().AddDate(0, -1, 0)
	_, err := gen.Reschedule(ctx, seeded.ID, start, start)
	require.NoError(t, err)
	_, err = gen.Reschedule(ctx, inactive.ID, start, start)
	require.NoError(t, err)

	inactive.Active = false
	require.NoError(t, store.SavePeriod(ctx, inactive))

	scheduler := NewWindowScheduler(store, gen, nil)
	assert.Equal(t, 1, scheduler.RunNow(ctx))

	windows, err := store.Windows(ctx, "seeded")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(windows), 5)
	assert.True(t, windows[len(windows)-1].Contains(time.Now().UTC()))

	windows, err = store.Windows(ctx, "inactive")
	require.NoError(t, err)
	assert.Len(t, windows, 1)

	windows, err = store.Windows(ctx, "unseeded")
	require.NoError(t, err)
	assert.Empty(t, windows)
}

// listSnapshot returns the periods as they were before a concurrent edit.
type listSnapshot struct {
	*memory.Memory
	periods []billing.RepeatPeriod
}

func (s listSnapshot) ListPeriods(context.Context) ([]billing.RepeatPeriod, error) {
	return s.periods, nil
}

func TestWindowScheduler_UsesStoredCadence(t *testing.T) {
	// GIVEN: The scheduler listed a period as weekly
	// AND: The period was switched to monthly before the scheduler reached it
	// WHEN: The scheduler regenerates the period
	// THEN: The windows follow the monthly cadence, not the listed snapshot

	ctx := context.Background()
	store := memory.New()
	gen := billing.NewGenerator(store, nil)

	weekly := billing.RepeatPeriod{ID: "p", Interval: billing.IntervalWeek, Count: 1, Active: true}
	require.NoError(t, store.SavePeriod(ctx, weekly))
	start := time.Now().UTC().AddDate(0, 0, -1)
	_, err := gen.Reschedule(ctx, weekly.ID, start, start.AddDate(0, 0, -1))
	require.NoError(t, err)

	monthly := weekly
	monthly.Interval = billing.IntervalMonth
	require.NoError(t, store.SavePeriod(ctx, monthly))
	_, err = gen.Reschedule(ctx, monthly.ID, start, start.AddDate(0, 0, -1))
	require.NoError(t, err)

	scheduler := NewWindowScheduler(listSnapshot{Memory: store, periods: []billing.RepeatPeriod{weekly}}, gen, nil)
	scheduler.RunNow(ctx)

	windows, err := store.Windows(ctx, "p")
	require.NoError(t, err)
	require.Len(t, windows, 1)
	assert.Equal(t, billing.AddMonths(windows[0].Date, 1), windows[0].EndDate)
}

func TestWindowScheduler_StartStop(t *testing.T) {
	store := memory.New()
	scheduler := NewWindowScheduler(store, billing.NewGenerator(store, nil), nil)
	scheduler.CheckInterval = time.Hour

	scheduler.Start()
	scheduler.Stop()
	scheduler.Stop()
}

func TestWindowScheduler_Disabled(t *testing.T) {
	store := memory.New()
	scheduler := NewWindowScheduler(store, billing.NewGenerator(store, nil), nil)
	scheduler.Enabled = false

	scheduler.Start()
	assert.Nil(t, scheduler.ticker)
	scheduler.Stop()
}
