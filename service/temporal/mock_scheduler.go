package temporal

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockScheduler is a mock implementation of Scheduler for testing.
type MockScheduler struct {
	mu        sync.Mutex
	schedules map[string]time.Duration // map[scheduleID]interval
	inputs    map[string]CycleInput
	createErr error
	deleteErr error
}

// NewMockScheduler creates a new MockScheduler.
func NewMockScheduler() *MockScheduler {
	return &MockScheduler{
		schedules: make(map[string]time.Duration),
		inputs:    make(map[string]CycleInput),
	}
}

// CreateCycleSchedule records that the schedule was created.
func (m *MockScheduler) CreateCycleSchedule(ctx context.Context, interval time.Duration, input CycleInput) error {
	if m.createErr != nil {
		return m.createErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.schedules[ScheduleID]; exists {
		return fmt.Errorf("schedule %q already exists", ScheduleID)
	}
	m.schedules[ScheduleID] = interval
	m.inputs[ScheduleID] = input
	return nil
}

// DeleteCycleSchedule records that the schedule was deleted.
func (m *MockScheduler) DeleteCycleSchedule(ctx context.Context) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.schedules[ScheduleID]; !exists {
		return fmt.Errorf("schedule %q not found", ScheduleID)
	}
	delete(m.schedules, ScheduleID)
	delete(m.inputs, ScheduleID)
	return nil
}

// ScheduleExists checks if the cycle schedule exists (for testing).
func (m *MockScheduler) ScheduleExists() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, exists := m.schedules[ScheduleID]
	return exists
}

// GetInterval returns the interval of the cycle schedule (for testing).
func (m *MockScheduler) GetInterval() (time.Duration, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	interval, exists := m.schedules[ScheduleID]
	return interval, exists
}

// GetInput returns the workflow input of the cycle schedule (for testing).
func (m *MockScheduler) GetInput() (CycleInput, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	input, exists := m.inputs[ScheduleID]
	return input, exists
}

// SetCreateError configures the mock to return an error on create.
func (m *MockScheduler) SetCreateError(err error) {
	m.createErr = err
}

// SetDeleteError configures the mock to return an error on delete.
func (m *MockScheduler) SetDeleteError(err error) {
	m.deleteErr = err
}
