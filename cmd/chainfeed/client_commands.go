package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/brojonat/chainfeed/client"
	"github.com/urfave/cli/v2"
)

func clientCommands() *cli.Command {
	return &cli.Command{
		Name:  "client",
		Usage: "HTTP client commands for interacting with the chainfeed server",
		Subcommands: []*cli.Command{
			clientCurrenciesCommand(),
			clientBalanceCommand(),
			clientTransactionsCommand(),
			clientSyncCommand(),
			clientUnsyncCommand(),
			clientSyncsCommand(),
		},
	}
}

func newClient(c *cli.Context) *client.Client {
	return client.NewClient(c.String("server-url"), nil, newLogger(c.String("log-level")))
}

func clientCurrenciesCommand() *cli.Command {
	return &cli.Command{
		Name:  "currencies",
		Usage: "List the currencies the server supports",
		Action: func(c *cli.Context) error {
			currencies, err := newClient(c).Currencies(c.Context)
			if err != nil {
				return fmt.Errorf("failed to list currencies: %w", err)
			}

			if c.Bool("json") {
				return outputJSON(c.App.Writer, currencies)
			}

			w := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "SYMBOL\tPROVIDER\tNETWORKS")
			for _, cur := range currencies {
				fmt.Fprintf(w, "%s\t%s\t%v\n", cur.Symbol, cur.Provider, cur.Networks)
			}
			return w.Flush()
		},
	}
}

func clientBalanceCommand() *cli.Command {
	return &cli.Command{
		Name:      "balance",
		Usage:     "Fetch a wallet balance through the server",
		ArgsUsage: "SYMBOL ADDRESS",
		Flags:     []cli.Flag{networkFlag()},
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return fmt.Errorf("symbol and wallet address are required")
			}

			balance, err := newClient(c).Balance(c.Context, c.Args().Get(0), c.String("network"), c.Args().Get(1))
			if err != nil {
				return fmt.Errorf("failed to get balance: %w", err)
			}

			if c.Bool("json") {
				return outputJSON(c.App.Writer, balance)
			}
			fmt.Fprintf(c.App.Writer, "%s %s\n", balance.Amount.String(), balance.CurrencySymbol)
			return nil
		},
	}
}

func clientTransactionsCommand() *cli.Command {
	return &cli.Command{
		Name:      "transactions",
		Aliases:   []string{"txns", "tx"},
		Usage:     "Fetch a wallet's normalized history through the server",
		ArgsUsage: "SYMBOL ADDRESS",
		Flags:     transactionFlags(),
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return fmt.Errorf("symbol and wallet address are required")
			}
			symbol, address := c.Args().Get(0), c.Args().Get(1)

			filters, err := compileFilters(c.StringSlice("jq"))
			if err != nil {
				return err
			}
			since, err := parseTimeFlag(c, "since")
			if err != nil {
				return err
			}
			until, err := parseTimeFlag(c, "until")
			if err != nil {
				return err
			}

			result, err := newClient(c).Transactions(c.Context, symbol, address, client.TransactionsOptions{
				Network: c.String("network"),
				Since:   since,
				Until:   until,
			})
			if err != nil {
				return fmt.Errorf("failed to get transactions: %w", err)
			}
			return writeTransactions(c, symbol, result.Transactions, filters)
		},
	}
}

func clientSyncCommand() *cli.Command {
	return &cli.Command{
		Name:      "sync",
		Usage:     "Schedule periodic syncs of a wallet",
		ArgsUsage: "SYMBOL ADDRESS",
		Flags: []cli.Flag{
			networkFlag(),
			&cli.DurationFlag{
				Name:    "interval",
				Aliases: []string{"i"},
				Usage:   "Sync interval (server default when unset)",
			},
			&cli.BoolFlag{
				Name:  "now",
				Usage: "Also start a sync immediately",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return fmt.Errorf("symbol and wallet address are required")
			}

			sync, err := newClient(c).ScheduleSync(c.Context, c.Args().Get(0), c.String("network"), c.Args().Get(1),
				c.Duration("interval"), c.Bool("now"))
			if err != nil {
				return fmt.Errorf("failed to schedule sync: %w", err)
			}

			if c.Bool("json") {
				return outputJSON(c.App.Writer, sync)
			}
			fmt.Fprintf(c.App.Writer, "✓ Syncing %s %s on %s every %v\n", sync.Symbol, sync.Address, sync.Network, sync.Interval)
			if sync.WorkflowID != "" {
				fmt.Fprintf(c.App.Writer, "  Workflow: %s\n", sync.WorkflowID)
			}
			return nil
		},
	}
}

func clientUnsyncCommand() *cli.Command {
	return &cli.Command{
		Name:      "unsync",
		Usage:     "Stop syncing a wallet",
		ArgsUsage: "SYMBOL ADDRESS",
		Flags:     []cli.Flag{networkFlag()},
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return fmt.Errorf("symbol and wallet address are required")
			}

			if err := newClient(c).DeleteSync(c.Context, c.Args().Get(0), c.String("network"), c.Args().Get(1)); err != nil {
				return fmt.Errorf("failed to delete sync: %w", err)
			}
			fmt.Fprintf(c.App.Writer, "✓ Stopped syncing %s\n", c.Args().Get(1))
			return nil
		},
	}
}

func clientSyncsCommand() *cli.Command {
	return &cli.Command{
		Name:  "syncs",
		Usage: "List scheduled wallet syncs",
		Action: func(c *cli.Context) error {
			syncs, err := newClient(c).Syncs(c.Context)
			if err != nil {
				return fmt.Errorf("failed to list syncs: %w", err)
			}

			if c.Bool("json") {
				return outputJSON(c.App.Writer, syncs)
			}

			w := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "SYMBOL\tNETWORK\tADDRESS\tINTERVAL\tLAST SYNC")
			for _, s := range syncs {
				lastSync := "never"
				if s.LastSyncedAt != nil {
					lastSync = s.LastSyncedAt.Format(time.RFC3339)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%v\t%s\n", s.Symbol, s.Network, s.Address, s.Interval, lastSync)
			}
			w.Flush()

			fmt.Fprintf(c.App.ErrWriter, "\nTotal: %d syncs\n", len(syncs))
			return nil
		},
	}
}
