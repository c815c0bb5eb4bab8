package temporal

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockScheduler is an in-memory Scheduler for testing.
type MockScheduler struct {
	mu        sync.Mutex
	schedules map[string]time.Duration // by schedule ID
	started   []SyncWalletInput
	upsertErr error
	deleteErr error
	startErr  error
}

// NewMockScheduler creates a new MockScheduler.
func NewMockScheduler() *MockScheduler {
	return &MockScheduler{
		schedules: make(map[string]time.Duration),
	}
}

// UpsertSyncSchedule creates or updates a schedule.
func (m *MockScheduler) UpsertSyncSchedule(ctx context.Context, input SyncWalletInput, interval time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.schedules[scheduleID(input)] = interval
	return nil
}

// DeleteSyncSchedule removes a schedule.
func (m *MockScheduler) DeleteSyncSchedule(ctx context.Context, input SyncWalletInput) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.deleteErr != nil {
		return m.deleteErr
	}
	id := scheduleID(input)
	if _, exists := m.schedules[id]; !exists {
		return fmt.Errorf("%w: %q", ErrScheduleNotFound, id)
	}
	delete(m.schedules, id)
	return nil
}

// StartSync records a one-off run.
func (m *MockScheduler) StartSync(ctx context.Context, input SyncWalletInput) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.startErr != nil {
		return "", m.startErr
	}
	m.started = append(m.started, input)
	return fmt.Sprintf("%s-manual-%d", scheduleID(input), len(m.started)), nil
}

// SetUpsertError makes UpsertSyncSchedule return err.
func (m *MockScheduler) SetUpsertError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upsertErr = err
}

// SetDeleteError makes DeleteSyncSchedule return err.
func (m *MockScheduler) SetDeleteError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteErr = err
}

// SetStartError makes StartSync return err.
func (m *MockScheduler) SetStartError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startErr = err
}

// ScheduleInterval returns the interval of a wallet's schedule.
func (m *MockScheduler) ScheduleInterval(input SyncWalletInput) (time.Duration, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	interval, exists := m.schedules[scheduleID(input)]
	return interval, exists
}

// ScheduleCount returns the number of schedules.
func (m *MockScheduler) ScheduleCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.schedules)
}

// Started returns the inputs of every one-off run.
func (m *MockScheduler) Started() []SyncWalletInput {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SyncWalletInput, len(m.started))
	copy(out, m.started)
	return out
}
