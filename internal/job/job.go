package job

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/opsdesk/vigia/internal/gate"
	"github.com/opsdesk/vigia/internal/report"
	"github.com/opsdesk/vigia/internal/window"
)

// DataSource is the fetch capability a job pulls its data through. The
// connection is acquired and released inside each call; nothing is held
// across runs.
type DataSource interface {
	Fetch(ctx context.Context) (report.Table, error)
}

// Message is a formatted payload addressed to a named channel.
type Message struct {
	Channel string
	Text    string
}

// Sink is the delivery capability a job publishes through.
type Sink interface {
	Deliver(ctx context.Context, msg Message) error
}

// Job is one named fetch-transform-deliver unit. Jobs are built once at
// startup from configuration and hold no scheduling state; the scheduler
// owns due-ness and last-run bookkeeping.
type Job struct {
	Name      string
	Channel   string
	Source    DataSource
	Transform report.Transform
	Sink      Sink

	// Window gates execution on wall-clock time. Nil means always allowed.
	Window window.Policy

	// Gate blocks the run until the data dependency is reachable. Nil skips
	// the reachability wait (used by sources that are their own gate).
	Gate *gate.Gate

	// Per-step timeouts. Zero values fall back to the defaults below.
	FetchTimeout   time.Duration
	DeliverTimeout time.Duration

	Logger *slog.Logger
}

const (
	defaultFetchTimeout   = 60 * time.Second
	defaultDeliverTimeout = 20 * time.Second
)

// Run executes the job once. It always returns an Outcome: every failure in
// fetch, transform or delivery is caught here so one broken job can never
// take down the scheduler or affect its neighbors. Panics are converted to
// Failed outcomes for the same reason.
func (j *Job) Run(ctx context.Context, now time.Time) (outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			j.Logger.Error("job panic recovered", "job", j.Name, "panic", r)
			outcome = Failed(fmt.Errorf("panic: %v", r))
		}
	}()

	// 1. Window check. Outside the window we do not touch the dependency.
	if j.Window != nil && !j.Window.Allowed(now) {
		return Skipped("outside window")
	}

	// 2. Wait for the data dependency. This may block for a long time if
	// the link is down; only shutdown interrupts it.
	if j.Gate != nil {
		if err := j.Gate.AwaitReachable(ctx); err != nil {
			return Skipped("canceled while waiting for dependency")
		}
	}

	// 3. Fetch.
	table, err := j.fetch(ctx)
	if err != nil {
		return Failed(fmt.Errorf("fetch error: %w", err))
	}

	// 4. Transform. Pure, so any error is a formatting defect, not transient.
	text, err := j.Transform(table, now)
	if err != nil {
		return Failed(fmt.Errorf("transform error: %w", err))
	}

	// 5. Deliver. A rejection is logged as Failed but not retried here; the
	// next scheduled run is the retry mechanism.
	if err := j.deliver(ctx, text); err != nil {
		return Failed(fmt.Errorf("delivery error: %w", err))
	}

	return Succeeded()
}

func (j *Job) fetch(ctx context.Context) (report.Table, error) {
	timeout := j.FetchTimeout
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}

	fetchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return j.Source.Fetch(fetchCtx)
}

func (j *Job) deliver(ctx context.Context, text string) error {
	timeout := j.DeliverTimeout
	if timeout <= 0 {
		timeout = defaultDeliverTimeout
	}

	deliverCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return j.Sink.Deliver(deliverCtx, Message{Channel: j.Channel, Text: text})
}
