package schedule

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/opsdesk/vigia/internal/job"
)

// Entry pairs a job with its recurrence rule and the instant it last ran.
// LastRun is written only by the scheduler, exactly once per dispatch
// decision, regardless of the run's outcome: a persistently failing job or
// one stuck outside its window must wait for its next slot, never re-fire
// in a tight loop.
type Entry struct {
	Job     *job.Job
	Rule    Rule
	LastRun time.Time
}

// RecordFunc receives the outcome of every dispatched run. Used to feed the
// optional run history; never consulted for scheduling.
type RecordFunc func(jobName string, at time.Time, outcome job.Outcome)

// Scheduler owns the schedule registry. Jobs are registered once at startup
// and dispatched sequentially, in registration order, on every tick. A job
// outcome, good or bad, never affects another job's eligibility or the
// scheduler's liveness.
type Scheduler struct {
	mu      sync.Mutex
	entries []*Entry
	logger  *slog.Logger
	record  RecordFunc
}

// New creates an empty scheduler.
func New(logger *slog.Logger) *Scheduler {
	return &Scheduler{
		entries: make([]*Entry, 0),
		logger:  logger,
	}
}

// SetRecorder installs an outcome recorder. Must be called before the runner
// starts ticking.
func (s *Scheduler) SetRecorder(fn RecordFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record = fn
}

// Register appends a job and its rule to the registry. Registration order is
// dispatch order for coincident due instants.
func (s *Scheduler) Register(j *job.Job, r Rule) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append(s.entries, &Entry{Job: j, Rule: r})

	s.logger.Info("job registered",
		"job", j.Name,
		"schedule", r,
		"channel", j.Channel)
}

// Len returns the number of registered entries.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Tick evaluates every entry against now and runs the due ones. LastRun is
// advanced when the dispatch decision is made, before the job runs, so
// due-ness is consumed exactly once even if the run is interrupted. Jobs run
// sequentially, which also guarantees successive runs of the same job never
// overlap.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, entry := range s.entries {
		if ctx.Err() != nil {
			return
		}

		if !entry.Rule.Due(now, entry.LastRun) {
			continue
		}

		entry.LastRun = now

		started := time.Now()
		outcome := entry.Job.Run(ctx, now)
		s.logOutcome(entry.Job.Name, outcome, time.Since(started))

		if s.record != nil {
			s.record(entry.Job.Name, now, outcome)
		}
	}
}

func (s *Scheduler) logOutcome(name string, outcome job.Outcome, elapsed time.Duration) {
	switch outcome.Status {
	case job.StatusSkipped:
		s.logger.Info("job skipped",
			"job", name,
			"outcome", outcome.Status.String(),
			"reason", outcome.Reason)
	case job.StatusSucceeded:
		s.logger.Info("job succeeded",
			"job", name,
			"outcome", outcome.Status.String(),
			"duration", elapsed)
	case job.StatusFailed:
		s.logger.Error("job failed",
			"job", name,
			"outcome", outcome.Status.String(),
			"duration", elapsed,
			"error", outcome.Err)
	}
}
