package checkpoint

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// DefaultSweepSchedule runs the expiry sweep hourly.
const DefaultSweepSchedule = "@every 1h"

// Janitor periodically sweeps expired rows out of a GormStore. Redis-backed
// stores expire natively and do not need one.
type Janitor struct {
	store    *GormStore
	cron     *cron.Cron
	schedule string
	logger   *slog.Logger
}

// NewJanitor creates a janitor. An empty schedule falls back to
// DefaultSweepSchedule.
func NewJanitor(store *GormStore, schedule string, logger *slog.Logger) *Janitor {
	if logger == nil {
		logger = slog.Default()
	}
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}
	return &Janitor{
		store:    store,
		cron:     cron.New(),
		schedule: schedule,
		logger:   logger.With("component", "checkpoint-janitor"),
	}
}

// Start registers the sweep job and starts the scheduler.
func (j *Janitor) Start() error {
	if _, err := j.cron.AddFunc(j.schedule, j.sweep); err != nil {
		return fmt.Errorf("scheduling checkpoint sweep: %w", err)
	}
	j.cron.Start()
	j.logger.Info("checkpoint janitor started", "schedule", j.schedule)
	return nil
}

// Stop halts the scheduler and waits for a running sweep to finish.
func (j *Janitor) Stop() {
	ctx := j.cron.Stop()
	<-ctx.Done()
}

func (j *Janitor) sweep() {
	removed, err := j.store.DeleteExpired(context.Background())
	if err != nil {
		j.logger.Error("checkpoint sweep failed", "error", err)
		return
	}
	if removed > 0 {
		j.logger.Info("swept expired checkpoints", "removed", removed)
	}
}
