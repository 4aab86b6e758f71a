package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/opsdesk/vigia/internal/job"
	"github.com/opsdesk/vigia/internal/report"
)

// FakeSource is a controllable DataSource for testing job execution.
type FakeSource struct {
	mu         sync.Mutex
	table      report.Table
	err        error
	fetchCount int
}

func NewFakeSource() *FakeSource {
	return &FakeSource{}
}

func (f *FakeSource) SetTable(t report.Table) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.table = t
}

func (f *FakeSource) SetError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *FakeSource) Fetch(ctx context.Context) (report.Table, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.fetchCount++
	if f.err != nil {
		return report.Table{}, f.err
	}
	return f.table, nil
}

func (f *FakeSource) FetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetchCount
}

// FakeSink records delivered messages and can be made to fail.
type FakeSink struct {
	mu        sync.Mutex
	delivered []job.Message
	err       error
}

func NewFakeSink() *FakeSink {
	return &FakeSink{}
}

func (f *FakeSink) SetError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *FakeSink) Deliver(ctx context.Context, msg job.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return f.err
	}

	f.delivered = append(f.delivered, msg)
	return nil
}

func (f *FakeSink) Delivered() []job.Message {
	f.mu.Lock()
	defer f.mu.Unlock()

	result := make([]job.Message, len(f.delivered))
	copy(result, f.delivered)
	return result
}

func (f *FakeSink) DeliveredCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.delivered)
}

// MockClock provides controllable time for testing
type MockClock struct {
	mu      sync.Mutex
	current time.Time
}

func NewMockClock(start time.Time) *MockClock {
	return &MockClock{
		current: start,
	}
}

func (m *MockClock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

func (m *MockClock) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = m.current.Add(d)
}

func (m *MockClock) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = t
}
