package schedule

import (
	"context"
	"log/slog"
	"time"
)

// Clock abstracts wall-clock reads so the runner and scheduler can be tested
// against fixed instants.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}

// Runner drives the scheduler forever at a fixed cadence. It has no failure
// mode of its own: anything that could go wrong in a run is contained at the
// job boundary, so the loop exits only when its context is cancelled.
type Runner struct {
	scheduler *Scheduler
	interval  time.Duration
	clock     Clock
	logger    *slog.Logger
}

// NewRunner creates a runner ticking at the given interval.
func NewRunner(s *Scheduler, interval time.Duration, logger *slog.Logger) *Runner {
	return &Runner{
		scheduler: s,
		interval:  interval,
		clock:     realClock{},
		logger:    logger,
	}
}

// Run ticks immediately, then on every interval, until ctx is cancelled.
// The immediate first tick is what makes never-run interval jobs fire once
// at startup.
func (r *Runner) Run(ctx context.Context) {
	r.logger.Info("runner started",
		"tick_interval", r.interval,
		"jobs", r.scheduler.Len())

	r.scheduler.Tick(ctx, r.clock.Now())

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("runner stopped", "reason", ctx.Err())
			return
		case <-ticker.C:
			r.scheduler.Tick(ctx, r.clock.Now())
		}
	}
}
