package temporal

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"
)

// Client is a production implementation of Scheduler that talks to Temporal.
type Client struct {
	client    client.Client
	taskQueue string
	logger    *slog.Logger
}

var _ Scheduler = (*Client)(nil)

// NewClient creates a new Temporal client.
func NewClient(host, namespace, taskQueue string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("connecting to temporal",
		"host", host,
		"namespace", namespace,
		"task_queue", taskQueue,
	)

	c, err := client.Dial(client.Options{
		HostPort:  host,
		Namespace: namespace,
		Logger:    newTemporalLogger(logger),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Temporal: %w", err)
	}

	logger.Info("connected to temporal successfully")

	return &Client{
		client:    c,
		taskQueue: taskQueue,
		logger:    logger,
	}, nil
}

// CreateCycleSchedule creates the Temporal schedule that runs CycleWorkflow every interval.
func (c *Client) CreateCycleSchedule(ctx context.Context, interval time.Duration, input CycleInput) error {
	c.logger.Debug("creating cycle schedule",
		"schedule_id", ScheduleID,
		"interval", interval,
		"account_delay", input.AccountDelay,
	)

	scheduleSpec := client.ScheduleSpec{
		Intervals: []client.ScheduleIntervalSpec{
			{
				Every: interval,
			},
		},
	}

	workflowAction := client.ScheduleWorkflowAction{
		ID:        ScheduleID + "-workflow",
		Workflow:  CycleWorkflow,
		TaskQueue: c.taskQueue,
		Args:      []interface{}{input},
	}

	_, err := c.client.ScheduleClient().Create(ctx, client.ScheduleOptions{
		ID:                 ScheduleID,
		Spec:               scheduleSpec,
		Action:             &workflowAction,
		Overlap:            enumspb.SCHEDULE_OVERLAP_POLICY_SKIP,
		TriggerImmediately: true,
		Memo: map[string]interface{}{
			"created_by": "bc-parser",
		},
	})
	if err != nil {
		c.logger.Error("failed to create schedule",
			"schedule_id", ScheduleID,
			"error", err,
		)
		return fmt.Errorf("failed to create schedule %q: %w", ScheduleID, err)
	}

	c.logger.Info("cycle schedule created",
		"schedule_id", ScheduleID,
		"interval", interval,
	)
	return nil
}

// DeleteCycleSchedule deletes the cycle schedule.
func (c *Client) DeleteCycleSchedule(ctx context.Context) error {
	c.logger.Debug("deleting cycle schedule", "schedule_id", ScheduleID)

	handle := c.client.ScheduleClient().GetHandle(ctx, ScheduleID)
	if err := handle.Delete(ctx); err != nil {
		c.logger.Error("failed to delete schedule",
			"schedule_id", ScheduleID,
			"error", err,
		)
		return fmt.Errorf("failed to delete schedule %q: %w", ScheduleID, err)
	}

	c.logger.Info("cycle schedule deleted", "schedule_id", ScheduleID)
	return nil
}

// RunCycle starts a single CycleWorkflow outside the schedule and waits for its result.
func (c *Client) RunCycle(ctx context.Context, input CycleInput) (*CycleResult, error) {
	run, err := c.client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        fmt.Sprintf("%s-manual-%d", ScheduleID, time.Now().Unix()),
		TaskQueue: c.taskQueue,
	}, CycleWorkflow, input)
	if err != nil {
		return nil, fmt.Errorf("failed to start cycle workflow: %w", err)
	}

	c.logger.Info("cycle workflow started", "workflow_id", run.GetID(), "run_id", run.GetRunID())

	var result CycleResult
	if err := run.Get(ctx, &result); err != nil {
		return nil, fmt.Errorf("cycle workflow failed: %w", err)
	}
	return &result, nil
}

// Close closes the Temporal client connection.
func (c *Client) Close() {
	c.logger.Info("closing temporal client")
	c.client.Close()
}

// temporalLogger adapts slog.Logger to Temporal's logger interface.
type temporalLogger struct {
	logger *slog.Logger
}

func newTemporalLogger(logger *slog.Logger) *temporalLogger {
	return &temporalLogger{logger: logger}
}

func (l *temporalLogger) Debug(msg string, keyvals ...interface{}) {
	l.logger.Debug(msg, keyvals...)
}

func (l *temporalLogger) Info(msg string, keyvals ...interface{}) {
	l.logger.Info(msg, keyvals...)
}

func (l *temporalLogger) Warn(msg string, keyvals ...interface{}) {
	l.logger.Warn(msg, keyvals...)
}

func (l *temporalLogger) Error(msg string, keyvals ...interface{}) {
	l.logger.Error(msg, keyvals...)
}
