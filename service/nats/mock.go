package nats

import (
	"context"
	"sync"
)

// MockPublisher is a mock implementation of Publisher for testing.
type MockPublisher struct {
	mu           sync.RWMutex
	recordEvents []*RecordEvent
	cycleEvents  []*CycleEvent
	publishError error
	closed       bool
}

// NewMockPublisher creates a new mock publisher for testing.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

// PublishRecord records the event and returns any configured error.
func (m *MockPublisher) PublishRecord(ctx context.Context, event *RecordEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.publishError != nil {
		return m.publishError
	}
	m.recordEvents = append(m.recordEvents, event)
	return nil
}

// PublishCycle records the event and returns any configured error.
func (m *MockPublisher) PublishCycle(ctx context.Context, event *CycleEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.publishError != nil {
		return m.publishError
	}
	m.cycleEvents = append(m.cycleEvents, event)
	return nil
}

// Close marks the publisher as closed.
func (m *MockPublisher) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// RecordEvents returns a copy of all published record events.
func (m *MockPublisher) RecordEvents() []*RecordEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	events := make([]*RecordEvent, len(m.recordEvents))
	copy(events, m.recordEvents)
	return events
}

// CycleEvents returns a copy of all published cycle events.
func (m *MockPublisher) CycleEvents() []*CycleEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	events := make([]*CycleEvent, len(m.cycleEvents))
	copy(events, m.cycleEvents)
	return events
}

// SetPublishError configures the mock to fail every publish.
func (m *MockPublisher) SetPublishError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishError = err
}

// IsClosed returns whether the publisher has been closed.
func (m *MockPublisher) IsClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}
