package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/amr0ny/bc-parser/service/app"
	"github.com/amr0ny/bc-parser/service/config"
	"github.com/amr0ny/bc-parser/service/temporal"
	"github.com/amr0ny/bc-parser/service/worker"
)

func cycleCommand() *cli.Command {
	return &cli.Command{
		Name:  "cycle",
		Usage: "Run one reporting cycle now",
		Description: `Runs reset, lookup of every account, and report flush once.

Configuration is read from the same environment as the worker. With --temporal
the cycle runs as a CycleWorkflow on the worker's task queue instead of in-process.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "temporal",
				Usage: "Run the cycle as a Temporal workflow",
			},
			&cli.DurationFlag{
				Name:    "account-delay",
				Usage:   "Pause between accounts (Temporal mode)",
				EnvVars: []string{"ACCOUNT_DELAY"},
			},
		},
		Action: func(c *cli.Context) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if c.Bool("temporal") {
				return runTemporalCycle(ctx, c)
			}
			return runLocalCycle(ctx, c)
		},
	}
}

func runTemporalCycle(ctx context.Context, c *cli.Context) error {
	tc, err := temporal.NewClient(
		c.String("temporal-host"),
		c.String("temporal-namespace"),
		c.String("temporal-task-queue"),
		app.NewLogger(c.App.ErrWriter, slog.LevelWarn),
	)
	if err != nil {
		return err
	}
	defer tc.Close()

	result, err := tc.RunCycle(ctx, temporal.CycleInput{AccountDelay: c.Duration("account-delay")})
	if err != nil {
		return err
	}

	if c.Bool("json") {
		return outputJSON(c.App.Writer, result)
	}
	fmt.Fprintf(c.App.Writer, "Cycle complete: %d accounts, %d found, %d not found, %d failed, %d rows written\n",
		result.Accounts, result.Found, result.NotFound, result.Failed, result.Rows)
	return nil
}

func runLocalCycle(ctx context.Context, c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := app.NewLogger(c.App.ErrWriter, cfg.SlogLevel())

	store, pool, err := app.ConnectDB(ctx, cfg.DatabaseURL, nil, logger)
	if err != nil {
		return err
	}
	defer pool.Close()

	sh := app.NewSheets(cfg)
	source, err := app.NewSource(ctx, cfg, sh, logger)
	if err != nil {
		return err
	}
	sink, closeSinks, err := app.NewSink(ctx, cfg, sh, nil, logger)
	if err != nil {
		return err
	}
	defer closeSinks()

	runner := worker.NewRunner(worker.Config{
		ContractName: cfg.ContractName,
		AccountDelay: cfg.AccountDelay,
		PageSize:     cfg.CachePageSize,
	}, worker.StoreAcquirer(store), source, app.NewPipeline(cfg, nil, logger), sink, nil, logger)

	if err := runner.RunCycle(ctx); err != nil {
		return fmt.Errorf("cycle failed: %w", err)
	}

	status := runner.Status()
	if c.Bool("json") {
		return outputJSON(c.App.Writer, status)
	}
	fmt.Fprintf(c.App.Writer, "Cycle complete: %d rows written\n", status.LastRows)
	return nil
}
