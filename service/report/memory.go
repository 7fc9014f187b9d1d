package report

import (
	"context"
	"sync"
	"time"

	"github.com/amr0ny/bc-parser/service/record"
)

// Memory keeps the last report in memory.
type Memory struct {
	mu          sync.RWMutex
	rows        [][]any
	records     []*record.Record
	lastUpdated time.Time
	clears      int
}

// NewMemory creates an empty in-memory sink.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = nil
	m.records = nil
	m.clears++
	return nil
}

func (m *Memory) Append(ctx context.Context, recs []*record.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, Rows(recs)...)
	m.records = append(m.records, recs...)
	return nil
}

func (m *Memory) UpdateTimestamp(ctx context.Context, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastUpdated = at
	return nil
}

// Rows returns a copy of the rendered rows.
func (m *Memory) Rows() [][]any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([][]any, len(m.rows))
	copy(out, m.rows)
	return out
}

// Records returns a copy of the appended records.
func (m *Memory) Records() []*record.Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*record.Record, len(m.records))
	copy(out, m.records)
	return out
}

// LastUpdated returns the last stamped time.
func (m *Memory) LastUpdated() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastUpdated
}

// Clears returns how many times Clear was called.
func (m *Memory) Clears() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.clears
}
