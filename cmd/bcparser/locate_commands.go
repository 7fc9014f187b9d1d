package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/amr0ny/bc-parser/service/app"
	"github.com/amr0ny/bc-parser/service/config"
	"github.com/amr0ny/bc-parser/service/record"
)

func locateCommand() *cli.Command {
	return &cli.Command{
		Name:      "locate",
		Usage:     "Look up one account against the explorer without touching the cache",
		ArgsUsage: "ACCOUNT",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "claim-period",
				Usage: "Claim period to attach to a found record",
			},
			&cli.StringFlag{
				Name:    "contract",
				Usage:   "Token contract",
				EnvVars: []string{"CONTRACT_NAME"},
				Value:   config.DefaultContractName,
			},
			&cli.StringFlag{
				Name:    "txns-url",
				Usage:   "Token transactions feed (defaults to the contract's nearblocks feed)",
				EnvVars: []string{"NEARBLOCKS_TXNS_URL"},
			},
			&cli.StringFlag{
				Name:    "txn-url",
				Usage:   "Transaction detail feed",
				EnvVars: []string{"NEARBLOCKS_TXN_URL"},
				Value:   config.DefaultTxnURL,
			},
			&cli.StringFlag{
				Name:    "account-url",
				Usage:   "Account feed",
				EnvVars: []string{"NEARBLOCKS_ACCOUNT_URL"},
				Value:   config.DefaultAccountURL,
			},
			&cli.IntFlag{
				Name:    "depth",
				Usage:   "Transaction pages to scan",
				EnvVars: []string{"PARSING_DEPTH"},
				Value:   3,
			},
			&cli.DurationFlag{
				Name:    "timeout",
				Usage:   "Per-request timeout",
				EnvVars: []string{"HTTP_TIMEOUT"},
				Value:   30 * time.Second,
			},
			&cli.StringFlag{
				Name:    "age-format",
				Usage:   "Age column format: hours or human",
				EnvVars: []string{"AGE_FORMAT"},
				Value:   string(record.AgeHours),
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Log explorer calls to stderr",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: account")
			}
			account := c.Args().First()

			ageFormat, err := record.ParseAgeFormat(c.String("age-format"))
			if err != nil {
				return err
			}

			txnsURL := c.String("txns-url")
			if txnsURL == "" {
				txnsURL = config.DefaultTxnsURL(c.String("contract"))
			}

			cfg := &config.Config{
				TxnsURL:      txnsURL,
				TxnURL:       c.String("txn-url"),
				AccountURL:   c.String("account-url"),
				ContractName: c.String("contract"),
				ParsingDepth: c.Int("depth"),
				HTTPTimeout:  c.Duration("timeout"),
				AgeFormat:    ageFormat,
			}

			var logOut io.Writer = io.Discard
			if c.Bool("verbose") {
				logOut = c.App.ErrWriter
			}
			pipeline := app.NewPipeline(cfg, nil, app.NewLogger(logOut, slog.LevelDebug))

			rec := pipeline.Locate(context.Background(), account, cfg.ContractName, c.String("claim-period"))

			if c.Bool("json") {
				return outputJSON(c.App.Writer, rec)
			}
			if rec.Hash == nil {
				fmt.Fprintf(c.App.ErrWriter, "No mint found for %s in %d pages\n", account, cfg.ParsingDepth)
			}
			printRecord(c.App.Writer, rec)
			return nil
		},
	}
}
