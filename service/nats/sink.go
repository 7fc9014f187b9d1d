package nats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/amr0ny/bc-parser/service/record"
)

// Sink publishes report rows through a Publisher.
// Clear and UpdateTimestamp emit cycle markers so consumers can tell report boundaries apart.
type Sink struct {
	pub    Publisher
	logger *slog.Logger
	rows   int
}

// NewSink creates a report sink on top of pub.
func NewSink(pub Publisher, logger *slog.Logger) *Sink {
	return &Sink{pub: pub, logger: logger}
}

// Clear publishes a cycle start marker.
func (s *Sink) Clear(ctx context.Context) error {
	s.rows = 0
	now := time.Now().UTC()
	return s.pub.PublishCycle(ctx, &CycleEvent{Kind: CycleStarted, At: now, PublishedAt: now})
}

// Append publishes one event per record. A failed publish does not stop the rest;
// the failures are joined into the returned error.
func (s *Sink) Append(ctx context.Context, recs []*record.Record) error {
	var errs []error
	for _, rec := range recs {
		if err := s.pub.PublishRecord(ctx, FromRecord(rec)); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish record", "name", rec.Name, "error", err)
			errs = append(errs, fmt.Errorf("failed to publish record %s: %w", rec.Name, err))
			continue
		}
		s.rows++
	}
	return errors.Join(errs...)
}

// UpdateTimestamp publishes a cycle completion marker stamped with at.
func (s *Sink) UpdateTimestamp(ctx context.Context, at time.Time) error {
	return s.pub.PublishCycle(ctx, &CycleEvent{
		Kind:        CycleCompleted,
		Rows:        s.rows,
		At:          at.UTC(),
		PublishedAt: time.Now().UTC(),
	})
}
