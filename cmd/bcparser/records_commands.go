package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/itchyny/gojq"
	"github.com/urfave/cli/v2"

	"github.com/amr0ny/bc-parser/client"
	"github.com/amr0ny/bc-parser/service/record"
)

func recordsCommands() *cli.Command {
	return &cli.Command{
		Name:  "records",
		Usage: "Query the status server",
		Subcommands: []*cli.Command{
			recordsListCommand(),
			recordsGetCommand(),
			recordsStatusCommand(),
		},
	}
}

func recordsListCommand() *cli.Command {
	return &cli.Command{
		Name:    "list",
		Aliases: []string{"ls"},
		Usage:   "List cached records in report order",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:  "jq",
				Usage: "jq filter over each record; records are kept when every filter is truthy (repeatable)",
			},
		},
		Action: func(c *cli.Context) error {
			filters, err := compileJQ(c.StringSlice("jq"))
			if err != nil {
				return err
			}

			cl := client.NewClient(c.String("server-url"), nil, nil)
			recs, err := cl.ListRecords(context.Background())
			if err != nil {
				return fmt.Errorf("failed to list records: %w", err)
			}

			kept := make([]*record.Record, 0, len(recs))
			for _, rec := range recs {
				ok, err := matchAll(filters, rec)
				if err != nil {
					return err
				}
				if ok {
					kept = append(kept, rec)
				}
			}

			if c.Bool("json") {
				return outputJSON(c.App.Writer, kept)
			}

			w := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tHASH\tQUANTITY\tAGE\tNEAR\tHOT\tCLAIM PERIOD")
			for _, rec := range kept {
				v := rec.Values()
				fmt.Fprintf(w, "%v\t%v\t%v\t%v\t%v\t%v\t%v\n", v[0], v[1], v[2], v[3], v[4], v[5], v[6])
			}
			w.Flush()
			fmt.Fprintf(c.App.ErrWriter, "\nTotal: %d records\n", len(kept))
			return nil
		},
	}
}

func recordsGetCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Show one cached record",
		ArgsUsage: "ACCOUNT",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: account")
			}

			cl := client.NewClient(c.String("server-url"), nil, nil)
			rec, err := cl.GetRecord(context.Background(), c.Args().First())
			if err != nil {
				return fmt.Errorf("failed to get record: %w", err)
			}

			if c.Bool("json") {
				return outputJSON(c.App.Writer, rec)
			}
			printRecord(c.App.Writer, rec)
			return nil
		},
	}
}

func recordsStatusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show cache size and runner state",
		Action: func(c *cli.Context) error {
			cl := client.NewClient(c.String("server-url"), nil, nil)
			status, err := cl.Status(context.Background())
			if err != nil {
				return fmt.Errorf("failed to get status: %w", err)
			}

			if c.Bool("json") {
				return outputJSON(c.App.Writer, status)
			}

			fmt.Fprintf(c.App.Writer, "Cached records:   %d\n", status.CachedRecords)
			if r := status.Runner; r != nil {
				fmt.Fprintf(c.App.Writer, "Runner state:     %s\n", r.State)
				fmt.Fprintf(c.App.Writer, "Cycles completed: %d\n", r.CyclesCompleted)
				fmt.Fprintf(c.App.Writer, "Cycles failed:    %d\n", r.CyclesFailed)
				if !r.LastCycleAt.IsZero() {
					fmt.Fprintf(c.App.Writer, "Last cycle:       %s (%d rows)\n", r.LastCycleAt.Format("2006-01-02 15:04:05 MST"), r.LastRows)
				}
				if r.LastError != "" {
					fmt.Fprintf(c.App.Writer, "Last error:       %s\n", r.LastError)
				}
			}
			return nil
		},
	}
}

func compileJQ(filters []string) ([]*gojq.Code, error) {
	compiled := make([]*gojq.Code, len(filters))
	for i, filter := range filters {
		query, err := gojq.Parse(filter)
		if err != nil {
			return nil, fmt.Errorf("failed to parse jq filter %q: %w", filter, err)
		}
		compiled[i], err = gojq.Compile(query)
		if err != nil {
			return nil, fmt.Errorf("failed to compile jq filter %q: %w", filter, err)
		}
	}
	return compiled, nil
}

// matchAll reports whether every filter yields a truthy first result for rec.
// The record is fed to jq as its JSON object, so absent fields are missing keys.
func matchAll(filters []*gojq.Code, rec *record.Record) (bool, error) {
	if len(filters) == 0 {
		return true, nil
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return false, fmt.Errorf("failed to marshal record: %w", err)
	}
	var input any
	if err := json.Unmarshal(data, &input); err != nil {
		return false, fmt.Errorf("failed to unmarshal record: %w", err)
	}

	for _, code := range filters {
		iter := code.Run(input)
		v, ok := iter.Next()
		if !ok {
			return false, nil
		}
		if err, isErr := v.(error); isErr {
			return false, fmt.Errorf("jq filter failed on %s: %w", rec.Name, err)
		}
		if !isTruthy(v) {
			return false, nil
		}
	}
	return true, nil
}

// isTruthy checks if a jq result value is truthy.
// In jq, false and null are falsy, everything else is truthy.
func isTruthy(v interface{}) bool {
	if v == nil {
		return false
	}
	if b, ok := v.(bool); ok {
		return b
	}
	return true
}

func printRecord(w io.Writer, rec *record.Record) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for i, v := range rec.Values() {
		fmt.Fprintf(tw, "%s:\t%v\n", record.Headers[i], v)
	}
	tw.Flush()
}
