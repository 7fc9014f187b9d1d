// Package report defines where finished cycles are written.
package report

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/amr0ny/bc-parser/service/metrics"
	"github.com/amr0ny/bc-parser/service/record"
)

// Sink receives the report of one cycle: Clear, then Append for every page,
// then UpdateTimestamp.
type Sink interface {
	// Clear removes prior rows and re-applies the header.
	Clear(ctx context.Context) error
	// Append writes rows in record.Headers order.
	Append(ctx context.Context, recs []*record.Record) error
	// UpdateTimestamp stamps the report as last updated at the given time.
	UpdateTimestamp(ctx context.Context, at time.Time) error
}

// Rows renders records as spreadsheet rows. Absent fields are "".
func Rows(recs []*record.Record) [][]any {
	rows := make([][]any, len(recs))
	for i, rec := range recs {
		rows[i] = rec.Values()
	}
	return rows
}

type namedSink struct {
	name string
	sink Sink
}

// Multi writes to several sinks in registration order.
// A failing sink does not stop the others; the errors are joined.
type Multi struct {
	sinks   []namedSink
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewMulti creates an empty fan-out sink.
func NewMulti(m *metrics.Metrics, logger *slog.Logger) *Multi {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Multi{logger: logger, metrics: m}
}

// Add registers a sink under name, used in logs and metrics.
func (m *Multi) Add(name string, s Sink) *Multi {
	m.sinks = append(m.sinks, namedSink{name: name, sink: s})
	return m
}

// Len returns the number of registered sinks.
func (m *Multi) Len() int {
	return len(m.sinks)
}

// Clear clears every sink.
func (m *Multi) Clear(ctx context.Context) error {
	return m.each(ctx, "clear", 0, func(s Sink) error { return s.Clear(ctx) })
}

// Append appends recs to every sink.
func (m *Multi) Append(ctx context.Context, recs []*record.Record) error {
	return m.each(ctx, "append", len(recs), func(s Sink) error { return s.Append(ctx, recs) })
}

// UpdateTimestamp stamps every sink.
func (m *Multi) UpdateTimestamp(ctx context.Context, at time.Time) error {
	return m.each(ctx, "update_timestamp", 0, func(s Sink) error { return s.UpdateTimestamp(ctx, at) })
}

func (m *Multi) each(ctx context.Context, op string, rows int, fn func(Sink) error) error {
	var errs []error
	for _, ns := range m.sinks {
		err := fn(ns.sink)
		m.metrics.RecordSinkOperation(ns.name, op, rows, err)
		if err != nil {
			m.logger.ErrorContext(ctx, "sink operation failed",
				"sink", ns.name,
				"operation", op,
				"error", err,
			)
			errs = append(errs, fmt.Errorf("%s %s: %w", ns.name, op, err))
		}
	}
	return errors.Join(errs...)
}
