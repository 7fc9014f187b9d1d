package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the application.
// Following the explicit dependency injection pattern, this struct
// is passed to all components that need to record metrics.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Explorer (nearblocks) metrics
	explorerCallsTotal   *prometheus.CounterVec
	explorerCallDuration *prometheus.HistogramVec
	explorerRateLimits   *prometheus.CounterVec

	// Lookup metrics
	lookupsTotal       *prometheus.CounterVec
	lookupDuration     *prometheus.HistogramVec
	candidatesRejected prometheus.Counter
	lookupPagesScanned prometheus.Histogram

	// Cycle metrics
	cycleDuration       *prometheus.HistogramVec
	cyclesTotal         *prometheus.CounterVec
	cycleState          *prometheus.GaugeVec
	accountsProcessed   *prometheus.CounterVec
	lastCycleCompletion prometheus.Gauge

	// Temporal metrics
	workflowDuration *prometheus.HistogramVec
	activityDuration *prometheus.HistogramVec

	// Database metrics
	dbQueryDuration   *prometheus.HistogramVec
	dbOperationsTotal *prometheus.CounterVec

	// Sink metrics
	sinkRowsWritten *prometheus.CounterVec
	sinkOperations  *prometheus.CounterVec

	// HTTP metrics
	httpRequestDuration *prometheus.HistogramVec
	httpRequestsTotal   *prometheus.CounterVec

	// NATS metrics
	natsMessagesPublished *prometheus.CounterVec
	natsPublishDuration   *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance and registers all collectors.
// If registry is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		explorerCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "explorer_calls_total",
				Help: "Total number of explorer API calls by feed and status",
			},
			[]string{"feed", "status"},
		),
		explorerCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "explorer_call_duration_seconds",
				Help:    "Duration of explorer API calls in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
			},
			[]string{"feed"},
		),
		explorerRateLimits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "explorer_rate_limit_hits_total",
				Help: "Total number of explorer responses with status 429",
			},
			[]string{"feed"},
		),

		lookupsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lookups_total",
				Help: "Total number of account lookups by outcome (found, not_found, error)",
			},
			[]string{"outcome"},
		),
		lookupDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "lookup_duration_seconds",
				Help:    "Duration of a full account lookup in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"outcome"},
		),
		candidatesRejected: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "lookup_candidates_rejected_total",
				Help: "Mint candidates rejected by cross-validation",
			},
		),
		lookupPagesScanned: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "lookup_pages_scanned",
				Help:    "Number of transaction pages fetched per lookup",
				Buckets: []float64{1, 2, 3, 5, 10},
			},
		),

		cycleDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cycle_duration_seconds",
				Help:    "Duration of a report cycle in seconds",
				Buckets: []float64{10, 30, 60, 120, 300, 600, 1200, 3600},
			},
			[]string{"status"},
		),
		cyclesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cycles_total",
				Help: "Total number of report cycles by status",
			},
			[]string{"status"},
		),
		cycleState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "cycle_state",
				Help: "1 for the state the cycle runner is currently in, 0 otherwise",
			},
			[]string{"state"},
		),
		accountsProcessed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "accounts_processed_total",
				Help: "Total number of accounts processed by outcome",
			},
			[]string{"outcome"},
		),
		lastCycleCompletion: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "last_cycle_completion_timestamp_seconds",
				Help: "Unix time of the last successfully completed cycle",
			},
		),

		workflowDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cycle_workflow_duration_seconds",
				Help:    "Duration of cycle workflow execution in seconds",
				Buckets: []float64{10, 30, 60, 120, 300, 600, 1200, 3600},
			},
			[]string{"status"},
		),
		activityDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cycle_activity_duration_seconds",
				Help:    "Duration of cycle workflow activities in seconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"activity", "status"},
		),

		dbQueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "db_query_duration_seconds",
				Help:    "Duration of database queries in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
			},
			[]string{"operation", "table"},
		),
		dbOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "db_operations_total",
				Help: "Total number of database operations",
			},
			[]string{"operation", "status"},
		),

		sinkRowsWritten: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sink_rows_written_total",
				Help: "Total number of report rows written per sink",
			},
			[]string{"sink"},
		),
		sinkOperations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sink_operations_total",
				Help: "Total number of report sink operations",
			},
			[]string{"sink", "operation", "status"},
		),

		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
			},
			[]string{"handler", "method", "status"},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"handler", "method", "status"},
		),

		natsMessagesPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nats_messages_published_total",
				Help: "Total number of NATS messages published",
			},
			[]string{"subject", "status"},
		),
		natsPublishDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nats_publish_duration_seconds",
				Help:    "Duration of NATS publish operations in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
			[]string{"subject"},
		),
	}
}

// Explorer metric helpers

// RecordExplorerCall records an explorer API call with duration.
func (m *Metrics) RecordExplorerCall(feed, status string, duration float64) {
	if m == nil {
		return
	}
	m.explorerCallsTotal.WithLabelValues(feed, status).Inc()
	m.explorerCallDuration.WithLabelValues(feed).Observe(duration)
}

// RecordRateLimitHit records a 429 from the explorer.
func (m *Metrics) RecordRateLimitHit(feed string) {
	if m == nil {
		return
	}
	m.explorerRateLimits.WithLabelValues(feed).Inc()
}

// Lookup metric helpers

// RecordLookup records the outcome of one account lookup.
func (m *Metrics) RecordLookup(outcome string, duration float64, pages int) {
	if m == nil {
		return
	}
	m.lookupsTotal.WithLabelValues(outcome).Inc()
	m.lookupDuration.WithLabelValues(outcome).Observe(duration)
	m.lookupPagesScanned.Observe(float64(pages))
}

// RecordCandidateRejected records a mint candidate that failed cross-validation.
func (m *Metrics) RecordCandidateRejected() {
	if m == nil {
		return
	}
	m.candidatesRejected.Inc()
}

// Cycle metric helpers

// RecordCycle records a finished cycle.
func (m *Metrics) RecordCycle(status string, duration float64, completedAt float64) {
	if m == nil {
		return
	}
	m.cycleDuration.WithLabelValues(status).Observe(duration)
	m.cyclesTotal.WithLabelValues(status).Inc()
	if status == "success" {
		m.lastCycleCompletion.Set(completedAt)
	}
}

// SetCycleState marks state as the current runner state.
func (m *Metrics) SetCycleState(state string, all []string) {
	if m == nil {
		return
	}
	for _, s := range all {
		v := 0.0
		if s == state {
			v = 1
		}
		m.cycleState.WithLabelValues(s).Set(v)
	}
}

// RecordAccountProcessed records one account handled during a cycle.
func (m *Metrics) RecordAccountProcessed(outcome string) {
	if m == nil {
		return
	}
	m.accountsProcessed.WithLabelValues(outcome).Inc()
}

// Workflow metric helpers

// RecordWorkflowDuration records workflow execution duration.
func (m *Metrics) RecordWorkflowDuration(status string, duration float64) {
	if m == nil {
		return
	}
	m.workflowDuration.WithLabelValues(status).Observe(duration)
}

// RecordActivityDuration records activity execution duration.
func (m *Metrics) RecordActivityDuration(activity string, duration float64, err error) {
	if m == nil {
		return
	}
	m.activityDuration.WithLabelValues(activity, errStatus(err)).Observe(duration)
}

// Database metric helpers

// RecordDBQuery records a database query with duration.
func (m *Metrics) RecordDBQuery(operation, table string, duration float64, err error) {
	if m == nil {
		return
	}
	m.dbQueryDuration.WithLabelValues(operation, table).Observe(duration)
	m.dbOperationsTotal.WithLabelValues(operation, errStatus(err)).Inc()
}

// Sink metric helpers

// RecordSinkOperation records a report sink call and, for appends, the rows written.
func (m *Metrics) RecordSinkOperation(sink, operation string, rows int, err error) {
	if m == nil {
		return
	}
	m.sinkOperations.WithLabelValues(sink, operation, errStatus(err)).Inc()
	if err == nil && rows > 0 {
		m.sinkRowsWritten.WithLabelValues(sink).Add(float64(rows))
	}
}

// HTTP metric helpers

// RecordHTTPRequest records an HTTP request with duration.
func (m *Metrics) RecordHTTPRequest(handler, method string, statusCode int, duration float64) {
	if m == nil {
		return
	}
	status := statusCodeToString(statusCode)
	m.httpRequestDuration.WithLabelValues(handler, method, status).Observe(duration)
	m.httpRequestsTotal.WithLabelValues(handler, method, status).Inc()
}

// NATS metric helpers

// RecordNATSPublish records a NATS publish operation.
func (m *Metrics) RecordNATSPublish(subject, status string, duration float64) {
	if m == nil {
		return
	}
	m.natsMessagesPublished.WithLabelValues(subject, status).Inc()
	m.natsPublishDuration.WithLabelValues(subject).Observe(duration)
}

// Helper functions

func errStatus(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func statusCodeToString(code int) string {
	// Group status codes by class
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500 && code < 600:
		return "5xx"
	default:
		return "unknown"
	}
}
