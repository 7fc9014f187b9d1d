package temporal

import (
	"context"
	"time"
)

// ScheduleID is the Temporal schedule that triggers CycleWorkflow.
const ScheduleID = "bc-parser-cycle"

// Scheduler manages the Temporal schedule for reporting cycles.
type Scheduler interface {
	// CreateCycleSchedule creates the schedule that triggers CycleWorkflow on the given interval.
	// A cycle still running when the next one is due causes that one to be skipped.
	CreateCycleSchedule(ctx context.Context, interval time.Duration, input CycleInput) error

	// DeleteCycleSchedule deletes the schedule. Running cycles finish.
	DeleteCycleSchedule(ctx context.Context) error
}
