package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/amr0ny/bc-parser/service/metrics"
)

// Publisher defines the interface for publishing report events to NATS.
type Publisher interface {
	// PublishRecord publishes a report row to the subject "records.{name}".
	PublishRecord(ctx context.Context, event *RecordEvent) error

	// PublishCycle publishes a cycle marker to CycleSubject.
	PublishCycle(ctx context.Context, event *CycleEvent) error

	// Close closes the connection to NATS.
	Close() error
}

// JetStreamPublisher publishes report events to NATS JetStream.
type JetStreamPublisher struct {
	nc      *nats.Conn
	js      jetstream.JetStream
	logger  *slog.Logger
	metrics *metrics.Metrics
}

const (
	// StreamName is the name of the JetStream stream for report rows.
	StreamName = "RECORDS"

	// StreamSubjects is the subject pattern for the stream.
	// Account ids contain dots, so rows are matched with a full wildcard.
	StreamSubjects = "records.>"

	// CycleSubject carries cycle start and completion markers.
	CycleSubject = "records._cycle"

	// StreamRetention is how long messages are retained (7 days by default).
	StreamRetention = 7 * 24 * time.Hour
)

// RecordSubject returns the subject a row for name is published to.
func RecordSubject(name string) string {
	return "records." + name
}

// NewPublisher creates a new JetStream publisher.
// It connects to NATS and ensures the stream exists.
func NewPublisher(natsURL string, m *metrics.Metrics, logger *slog.Logger) (*JetStreamPublisher, error) {
	nc, err := nats.Connect(natsURL,
		nats.Name("bc-parser-publisher"),
		nats.Timeout(10*time.Second),
		nats.ReconnectWait(1*time.Second),
		nats.MaxReconnects(-1), // Unlimited reconnects
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	publisher := &JetStreamPublisher{
		nc:      nc,
		js:      js,
		logger:  logger,
		metrics: m,
	}

	if err := publisher.ensureStream(); err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to ensure stream exists: %w", err)
	}

	logger.Info("NATS publisher initialized",
		"url", natsURL,
		"stream", StreamName,
	)

	return publisher, nil
}

// ensureStream creates the JetStream stream if it doesn't exist.
func (p *JetStreamPublisher) ensureStream() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stream, err := p.js.Stream(ctx, StreamName)
	if err == nil {
		info, err := stream.Info(ctx)
		if err == nil {
			p.logger.Debug("JetStream stream already exists",
				"stream", StreamName,
				"messages", info.State.Msgs,
			)
		}
		return nil
	}

	p.logger.Info("creating JetStream stream", "stream", StreamName)

	streamConfig := jetstream.StreamConfig{
		Name:        StreamName,
		Description: "Mint report rows and cycle markers",
		Subjects:    []string{StreamSubjects},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      StreamRetention,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
	}

	if _, err := p.js.CreateStream(ctx, streamConfig); err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	p.logger.Info("JetStream stream created successfully", "stream", StreamName)
	return nil
}

// PublishRecord publishes a single report row.
func (p *JetStreamPublisher) PublishRecord(ctx context.Context, event *RecordEvent) error {
	if err := p.publish(ctx, RecordSubject(event.Name), event); err != nil {
		return fmt.Errorf("failed to publish record %s: %w", event.Name, err)
	}
	p.logger.DebugContext(ctx, "published record event", "name", event.Name, "found", event.Found)
	return nil
}

// PublishCycle publishes a cycle marker.
func (p *JetStreamPublisher) PublishCycle(ctx context.Context, event *CycleEvent) error {
	if err := p.publish(ctx, CycleSubject, event); err != nil {
		return fmt.Errorf("failed to publish cycle event: %w", err)
	}
	p.logger.DebugContext(ctx, "published cycle event", "kind", event.Kind, "rows", event.Rows)
	return nil
}

func (p *JetStreamPublisher) publish(ctx context.Context, subject string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	start := time.Now()
	_, err = p.js.Publish(ctx, subject, data)
	status := "success"
	if err != nil {
		status = "error"
	}
	// Label with the stream pattern to keep per-account subjects out of metric cardinality.
	p.metrics.RecordNATSPublish(StreamSubjects, status, time.Since(start).Seconds())
	return err
}

// Close closes the connection to NATS.
func (p *JetStreamPublisher) Close() error {
	if p.nc != nil {
		p.nc.Close()
		p.logger.Info("NATS publisher closed")
	}
	return nil
}
