/*
scheduler.go - Automated billing window regeneration

PURPOSE:
  Periodically extends every active repeat period's billing windows up to
  today, so windows exist for the current date without a manual call.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Runs once immediately on start
  - Skips inactive periods and periods that were never seeded
  - Each period is regenerated from its stored definition, not the listed
    snapshot, so a cadence change made mid-run is never overwritten

USAGE:
  scheduler := NewWindowScheduler(store, generator, logger)
  scheduler.CheckInterval = cfg.Scheduler.Interval
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: UpdateWindows endpoint (manual regeneration)
  - billing/windows.go: Generator
*/
package api

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/warp/timepiece/billing"
)

// WindowScheduler regenerates billing windows on a ticker.
type WindowScheduler struct {
	Periods       billing.PeriodStore
	Generator     *billing.Generator
	Logger        *zap.Logger
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewWindowScheduler creates a new scheduler.
func NewWindowScheduler(periods billing.PeriodStore, gen *billing.Generator, logger *zap.Logger) *WindowScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WindowScheduler{
		Periods:       periods,
		Generator:     gen,
		Logger:        logger.Named("scheduler"),
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
	}
}

// Start begins the scheduler.
func (ws *WindowScheduler) Start() {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	if !ws.Enabled {
		ws.Logger.Info("disabled, not starting")
		return
	}
	if ws.ticker != nil {
		return
	}

	ws.ticker = time.NewTicker(ws.CheckInterval)
	ws.stop = make(chan struct{})
	ws.wg.Add(1)

	go ws.run(ws.ticker, ws.stop)

	ws.Logger.Info("started", zap.Duration("interval", ws.CheckInterval))
}

// Stop stops the scheduler and waits for an in-flight run to finish.
func (ws *WindowScheduler) Stop() {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	if ws.ticker != nil {
		ws.ticker.Stop()
		close(ws.stop)
		ws.wg.Wait()
		ws.ticker = nil
		ws.Logger.Info("stopped")
	}
}

func (ws *WindowScheduler) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer ws.wg.Done()

	ws.RunNow(context.Background())

	for {
		select {
		case <-ticker.C:
			ws.RunNow(context.Background())
		case <-stop:
			return
		}
	}
}

// RunNow regenerates every active period up to today and returns how many
// periods were updated.
func (ws *WindowScheduler) RunNow(ctx context.Context) int {
	periods, err := ws.Periods.ListPeriods(ctx)
	if err != nil {
		ws.Logger.Error("failed to list periods", zap.Error(err))
		return 0
	}

	updated, skipped := 0, 0
	for _, p := range periods {
		if !p.Active {
			skipped++
			continue
		}
		if _, err := ws.Generator.Update(ctx, p.ID, time.Time{}); err != nil {
			if errors.Is(err, billing.ErrNoWindows) {
				skipped++
				continue
			}
			ws.Logger.Error("failed to update windows",
				zap.String("period_id", string(p.ID)), zap.Error(err))
			continue
		}
		updated++
	}

	ws.Logger.Debug("run completed", zap.Int("updated", updated), zap.Int("skipped", skipped))
	return updated
}
