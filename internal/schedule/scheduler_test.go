package schedule

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/opsdesk/vigia/internal/job"
	"github.com/opsdesk/vigia/internal/report"
	"github.com/opsdesk/vigia/internal/testutil"
	"github.com/opsdesk/vigia/internal/window"
)

func newTestJob(name string, sink job.Sink) *job.Job {
	return &job.Job{
		Name:    name,
		Channel: "#test",
		Source:  testutil.NewFakeSource(),
		Transform: func(t report.Table, now time.Time) (string, error) {
			return name, nil
		},
		Sink:   sink,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func failingSource(t *testing.T, msg string) *testutil.FakeSource {
	t.Helper()
	src := testutil.NewFakeSource()
	src.SetError(errors.New(msg))
	return src
}

func fortalezaTime(t *testing.T, day, hour, minute int) time.Time {
	t.Helper()
	// January 2024: the 7th is a Sunday, 8th Monday, 9th Tuesday.
	return time.Date(2024, 1, day, hour, minute, 0, 0, fortaleza(t))
}

// TestTick_IntervalScenario walks a 30-minute interval job through a tick
// sequence: fires on the first tick, not at +29m, and again at +30m.
func TestTick_IntervalScenario(t *testing.T) {
	sink := testutil.NewFakeSink()
	s := New(slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.Register(newTestJob("NOVO", sink), Interval{Every: 30 * time.Minute})

	ctx := context.Background()

	tueTen := fortalezaTime(t, 9, 10, 0)
	s.Tick(ctx, tueTen)
	if sink.DeliveredCount() != 1 {
		t.Fatalf("expected first tick to dispatch, got %d deliveries", sink.DeliveredCount())
	}
	if !s.entries[0].LastRun.Equal(tueTen) {
		t.Errorf("expected LastRun %v, got %v", tueTen, s.entries[0].LastRun)
	}

	s.Tick(ctx, fortalezaTime(t, 9, 10, 29))
	if sink.DeliveredCount() != 1 {
		t.Errorf("expected no dispatch at +29m, got %d deliveries", sink.DeliveredCount())
	}

	s.Tick(ctx, fortalezaTime(t, 9, 10, 30))
	if sink.DeliveredCount() != 2 {
		t.Errorf("expected dispatch at +30m, got %d deliveries", sink.DeliveredCount())
	}
}

// TestTick_DuenessConsumedOncePerInstant verifies a second tick at the
// identical instant does not re-dispatch.
func TestTick_DuenessConsumedOncePerInstant(t *testing.T) {
	sink := testutil.NewFakeSink()
	s := New(slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.Register(newTestJob("NOVO", sink), Interval{Every: 30 * time.Minute})

	now := fortalezaTime(t, 9, 10, 0)
	s.Tick(context.Background(), now)
	s.Tick(context.Background(), now)

	if sink.DeliveredCount() != 1 {
		t.Errorf("expected exactly 1 dispatch for repeated tick, got %d", sink.DeliveredCount())
	}
}

// TestTick_WeeklySundayNeverDue verifies a weekly rule without Sunday in its
// day set never fires on a Sunday, at any hour.
func TestTick_WeeklySundayNeverDue(t *testing.T) {
	sink := testutil.NewFakeSink()
	s := New(slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.Register(newTestJob("RESUMO", sink), Weekly{
		Days:     []time.Weekday{time.Monday, time.Tuesday},
		Times:    []TimeOfDay{{11, 30}, {17, 30}},
		Location: fortaleza(t),
	})

	s.Tick(context.Background(), fortalezaTime(t, 7, 12, 0)) // Sunday noon
	if sink.DeliveredCount() != 0 {
		t.Errorf("expected no dispatch on Sunday, got %d", sink.DeliveredCount())
	}
}

// TestTick_LastRunAdvancesOnFailure verifies a failing job consumes its
// due-ness instead of re-firing every tick.
func TestTick_LastRunAdvancesOnFailure(t *testing.T) {
	sink := testutil.NewFakeSink()
	j := newTestJob("NOVO", sink)
	j.Source = failingSource(t, "boom")

	s := New(slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.Register(j, Interval{Every: 30 * time.Minute})

	now := fortalezaTime(t, 9, 10, 0)
	s.Tick(context.Background(), now)

	if !s.entries[0].LastRun.Equal(now) {
		t.Error("expected LastRun to advance on failure")
	}

	// One minute later: still consumed, no retry storm.
	s.Tick(context.Background(), now.Add(time.Minute))
	if sink.DeliveredCount() != 0 {
		t.Errorf("expected no deliveries from a failing job, got %d", sink.DeliveredCount())
	}
}

// TestTick_LastRunAdvancesOnSkip verifies window skips also consume due-ness:
// a job skipped all night fires once at window open, not once per missed slot.
func TestTick_LastRunAdvancesOnSkip(t *testing.T) {
	sink := testutil.NewFakeSink()
	j := newTestJob("NOVO", sink)
	j.Window = window.NewBusinessHours(fortaleza(t))

	s := New(slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.Register(j, Interval{Every: 30 * time.Minute})

	sundayNoon := fortalezaTime(t, 7, 12, 0)
	s.Tick(context.Background(), sundayNoon)

	if sink.DeliveredCount() != 0 {
		t.Fatalf("expected skip, got %d deliveries", sink.DeliveredCount())
	}
	if !s.entries[0].LastRun.Equal(sundayNoon) {
		t.Error("expected LastRun to advance on skip")
	}
}

// TestTick_FailureIsolation verifies one failing job does not affect the
// dispatch of the jobs registered after it, and that the failure is logged
// at error level with the job name.
func TestTick_FailureIsolation(t *testing.T) {
	failing := newTestJob("REFIN", testutil.NewFakeSink())
	failing.Source = failingSource(t, "query timeout")

	healthySink := testutil.NewFakeSink()
	healthy := newTestJob("PORTABILITY", healthySink)

	logs := testutil.NewTestLogger()
	s := New(logs.Logger())
	s.Register(failing, Interval{Every: 40 * time.Minute})
	s.Register(healthy, Interval{Every: 50 * time.Minute})

	s.Tick(context.Background(), fortalezaTime(t, 9, 10, 0))

	if healthySink.DeliveredCount() != 1 {
		t.Errorf("expected healthy job to run despite earlier failure, got %d", healthySink.DeliveredCount())
	}

	failures := logs.GetEntriesByLevel(slog.LevelError.String())
	if len(failures) != 1 {
		t.Fatalf("expected 1 error log entry, got %d", len(failures))
	}
	if failures[0].Fields["job"] != "REFIN" {
		t.Errorf("expected failure logged for REFIN, got %v", failures[0].Fields["job"])
	}
}

// TestTick_RegistrationOrder verifies coincident due jobs run in the order
// they were registered.
func TestTick_RegistrationOrder(t *testing.T) {
	var order []string
	var mu sync.Mutex

	orderedJob := func(name string) *job.Job {
		j := newTestJob(name, testutil.NewFakeSink())
		j.Transform = func(tb report.Table, now time.Time) (string, error) {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return name, nil
		}
		return j
	}

	s := New(slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.Register(orderedJob("NOVO"), Interval{Every: 30 * time.Minute})
	s.Register(orderedJob("REFIN"), Interval{Every: 40 * time.Minute})
	s.Register(orderedJob("PORTABILITY"), Interval{Every: 50 * time.Minute})

	s.Tick(context.Background(), fortalezaTime(t, 9, 10, 0))

	want := []string{"NOVO", "REFIN", "PORTABILITY"}
	if len(order) != len(want) {
		t.Fatalf("expected %d runs, got %d", len(want), len(order))
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("run %d: expected %s, got %s", i, want[i], order[i])
		}
	}
}

// TestTick_RecorderReceivesOutcomes verifies the recorder sees every
// dispatched outcome with the dispatch instant.
func TestTick_RecorderReceivesOutcomes(t *testing.T) {
	type record struct {
		name    string
		at      time.Time
		outcome job.Outcome
	}

	var records []record
	s := New(slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.SetRecorder(func(jobName string, at time.Time, outcome job.Outcome) {
		records = append(records, record{jobName, at, outcome})
	})

	failing := newTestJob("REFIN", testutil.NewFakeSink())
	failing.Source = failingSource(t, "boom")

	s.Register(newTestJob("NOVO", testutil.NewFakeSink()), Interval{Every: time.Minute})
	s.Register(failing, Interval{Every: time.Minute})

	now := fortalezaTime(t, 9, 10, 0)
	s.Tick(context.Background(), now)

	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].name != "NOVO" || records[0].outcome.Status != job.StatusSucceeded {
		t.Errorf("unexpected first record: %+v", records[0])
	}
	if records[1].name != "REFIN" || records[1].outcome.Status != job.StatusFailed {
		t.Errorf("unexpected second record: %+v", records[1])
	}
	if !records[0].at.Equal(now) {
		t.Errorf("expected record instant %v, got %v", now, records[0].at)
	}
}

// TestRunner_TicksUntilCancelled verifies the runner keeps dispatching and
// exits cleanly on cancellation. The clock is fixed so every tick evaluates
// the same instant.
func TestRunner_TicksUntilCancelled(t *testing.T) {
	sink := testutil.NewFakeSink()
	s := New(slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.Register(newTestJob("NOVO", sink), Interval{Every: 0})

	r := NewRunner(s, 5*time.Millisecond, slog.New(slog.NewTextHandler(io.Discard, nil)))
	r.clock = testutil.NewMockClock(fortalezaTime(t, 9, 10, 0))

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	// Wait for the immediate tick plus at least one interval tick.
	deadline := time.After(2 * time.Second)
	for sink.DeliveredCount() < 2 {
		select {
		case <-deadline:
			t.Fatal("runner did not dispatch twice in time")
		case <-time.After(time.Millisecond):
		}
	}

	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop after cancellation")
	}
}
