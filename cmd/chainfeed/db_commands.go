package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/brojonat/chainfeed/service/db"
	"github.com/urfave/cli/v2"
)

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Create the database tables if they do not exist",
		Action: func(c *cli.Context) error {
			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			if err := store.Migrate(c.Context); err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, "✓ Schema applied")
			return nil
		},
	}
}

func historyCommand() *cli.Command {
	return &cli.Command{
		Name:      "history",
		Usage:     "List stored transactions for a wallet, newest first",
		ArgsUsage: "SYMBOL ADDRESS",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"l"},
				Usage:   "Maximum number of transactions to show",
				Value:   50,
			},
			&cli.IntFlag{
				Name:  "offset",
				Usage: "Number of transactions to skip",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return fmt.Errorf("symbol and wallet address are required")
			}
			symbol := strings.ToUpper(c.Args().Get(0))
			address := c.Args().Get(1)

			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			txns, err := store.ListTransactions(c.Context, db.ListTransactionsParams{
				Address: address,
				Symbol:  symbol,
				Limit:   c.Int("limit"),
				Offset:  c.Int("offset"),
			})
			if err != nil {
				return fmt.Errorf("failed to list transactions: %w", err)
			}

			if c.Bool("json") {
				return outputJSON(c.App.Writer, txns)
			}

			printTransactions(c.App.Writer, symbol, txns)
			total, err := store.CountTransactions(c.Context, address, symbol)
			if err != nil {
				return fmt.Errorf("failed to count transactions: %w", err)
			}
			fmt.Fprintf(c.App.ErrWriter, "\nShowing %d of %d transactions\n", len(txns), total)
			return nil
		},
	}
}

func listSyncsCommand() *cli.Command {
	return &cli.Command{
		Name:    "list-syncs",
		Usage:   "List registered wallet syncs",
		Aliases: []string{"ls"},
		Action: func(c *cli.Context) error {
			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			syncs, err := store.ListSyncs(c.Context)
			if err != nil {
				return fmt.Errorf("failed to list syncs: %w", err)
			}

			if c.Bool("json") {
				return outputJSON(c.App.Writer, syncs)
			}

			w := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "SYMBOL\tNETWORK\tADDRESS\tINTERVAL\tLAST SYNC\tCREATED")
			for _, s := range syncs {
				lastSync := "never"
				if s.LastSyncedAt != nil {
					lastSync = s.LastSyncedAt.Format(time.RFC3339)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%v\t%s\t%s\n",
					s.Symbol,
					s.Network,
					s.Address,
					s.Interval,
					lastSync,
					s.CreatedAt.Format(time.RFC3339),
				)
			}
			w.Flush()

			fmt.Fprintf(c.App.ErrWriter, "\nTotal: %d syncs\n", len(syncs))
			return nil
		},
	}
}

// getStore connects to the database named by --database-url.
func getStore(c *cli.Context) (*db.Store, func(), error) {
	dbURL := c.String("database-url")
	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL")
	}
	if dbURL == "" {
		return nil, nil, fmt.Errorf("database-url is required (set DATABASE_URL env var or use --database-url)")
	}

	ctx, cancel := context.WithTimeout(c.Context, 10*time.Second)
	defer cancel()

	pool, err := db.Connect(ctx, dbURL)
	if err != nil {
		return nil, nil, err
	}

	return db.NewStore(pool, nil), pool.Close, nil
}
