package main

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/urfave/cli/v2"

	"github.com/amr0ny/bc-parser/service/db"
)

func dbResetCommand() *cli.Command {
	return &cli.Command{
		Name:  "reset",
		Usage: "Delete every cached record",
		Description: `Empties the record cache. The next cycle rebuilds it from scratch.

Prompts for confirmation unless --yes is given.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "yes",
				Aliases: []string{"y"},
				Usage:   "Skip the confirmation prompt",
			},
		},
		Action: func(c *cli.Context) error {
			if !c.Bool("yes") && !confirm(c, "Delete every cached record?") {
				fmt.Fprintln(c.App.Writer, "Aborted")
				return nil
			}

			ctx := context.Background()
			store, cleanup, err := getStore(ctx, c)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := store.Reset(ctx); err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, "✓ Record cache reset")
			return nil
		},
	}
}

func dbCountCommand() *cli.Command {
	return &cli.Command{
		Name:  "count",
		Usage: "Count cached records",
		Action: func(c *cli.Context) error {
			ctx := context.Background()
			store, cleanup, err := getStore(ctx, c)
			if err != nil {
				return err
			}
			defer cleanup()

			n, err := store.Count(ctx)
			if err != nil {
				return err
			}
			if c.Bool("json") {
				return outputJSON(c.App.Writer, map[string]int64{"count": n})
			}
			fmt.Fprintf(c.App.Writer, "%d\n", n)
			return nil
		},
	}
}

func getStore(ctx context.Context, c *cli.Context) (*db.Store, func(), error) {
	dbURL := c.String("database-url")
	if dbURL == "" {
		return nil, nil, fmt.Errorf("database-url is required (set DATABASE_URL env var or use --database-url)")
	}
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	store := db.NewStore(pool, nil, nil)
	if err := store.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return store, pool.Close, nil
}

func confirm(c *cli.Context, prompt string) bool {
	fmt.Fprintf(c.App.Writer, "%s [y/N]: ", prompt)
	line, err := bufio.NewReader(c.App.Reader).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
