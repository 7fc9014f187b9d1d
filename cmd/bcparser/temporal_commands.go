package main

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/amr0ny/bc-parser/service/temporal"
)

// newScheduler connects to Temporal. Tests replace it with a mock.
var newScheduler = func(c *cli.Context) (temporal.Scheduler, func(), error) {
	tc, err := temporal.NewClient(
		c.String("temporal-host"),
		c.String("temporal-namespace"),
		c.String("temporal-task-queue"),
		nil,
	)
	if err != nil {
		return nil, nil, err
	}
	return tc, tc.Close, nil
}

func createScheduleCommand() *cli.Command {
	return &cli.Command{
		Name:  "create",
		Usage: "Create the cycle schedule",
		Description: `Creates the schedule that starts CycleWorkflow every --interval.
The first cycle is triggered immediately. Overlapping cycles are skipped.`,
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:    "interval",
				Usage:   "Time between cycles",
				EnvVars: []string{"CYCLE_INTERVAL"},
				Value:   time.Hour,
			},
			&cli.DurationFlag{
				Name:    "account-delay",
				Usage:   "Pause between accounts within a cycle",
				EnvVars: []string{"ACCOUNT_DELAY"},
				Value:   3 * time.Second,
			},
		},
		Action: func(c *cli.Context) error {
			interval := c.Duration("interval")
			if interval <= 0 {
				return fmt.Errorf("interval must be positive")
			}
			if c.Duration("account-delay") < 0 {
				return fmt.Errorf("account-delay must not be negative")
			}

			sched, closeFn, err := newScheduler(c)
			if err != nil {
				return fmt.Errorf("failed to connect to temporal: %w", err)
			}
			defer closeFn()

			input := temporal.CycleInput{AccountDelay: c.Duration("account-delay")}
			if err := sched.CreateCycleSchedule(context.Background(), interval, input); err != nil {
				return fmt.Errorf("failed to create schedule: %w", err)
			}

			fmt.Fprintf(c.App.Writer, "✓ Schedule %s created (every %s)\n", temporal.ScheduleID, interval)
			return nil
		},
	}
}

func deleteScheduleCommand() *cli.Command {
	return &cli.Command{
		Name:  "delete",
		Usage: "Delete the cycle schedule",
		Action: func(c *cli.Context) error {
			sched, closeFn, err := newScheduler(c)
			if err != nil {
				return fmt.Errorf("failed to connect to temporal: %w", err)
			}
			defer closeFn()

			if err := sched.DeleteCycleSchedule(context.Background()); err != nil {
				return fmt.Errorf("failed to delete schedule: %w", err)
			}
			fmt.Fprintf(c.App.Writer, "✓ Schedule %s deleted\n", temporal.ScheduleID)
			return nil
		},
	}
}
