package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/brojonat/chainfeed/service/aggregate"
	"github.com/brojonat/chainfeed/service/config"
	"github.com/brojonat/chainfeed/service/ledger"
	"github.com/urfave/cli/v2"
)

// newFacade builds the provider facade from the environment.
func newFacade(c *cli.Context) (*aggregate.Facade, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return aggregate.New(cfg, aggregate.Options{Logger: newLogger(c.String("log-level"))})
}

// commandContext is cancelled on interrupt.
func commandContext(c *cli.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
}

func networkFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "network",
		Aliases: []string{"n"},
		Usage:   "Network to query (e.g. mainnet, devnet, ghostnet)",
		Value:   "mainnet",
	}
}

func currenciesCommand() *cli.Command {
	return &cli.Command{
		Name:  "currencies",
		Usage: "List supported currencies and their networks",
		Action: func(c *cli.Context) error {
			facade, err := newFacade(c)
			if err != nil {
				return err
			}

			type currency struct {
				Symbol   string   `json:"symbol"`
				Provider string   `json:"provider"`
				Networks []string `json:"networks"`
			}
			var currencies []currency
			for _, symbol := range facade.Currencies() {
				networks, err := facade.Networks(symbol)
				if err != nil {
					return err
				}
				provider, _ := facade.Provider(symbol)
				currencies = append(currencies, currency{Symbol: symbol, Provider: provider, Networks: networks})
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

func balanceCommand() *cli.Command {
	return &cli.Command{
		Name:      "balance",
		Usage:     "Fetch the current balance of a wallet",
		ArgsUsage: "SYMBOL ADDRESS",
		Flags:     []cli.Flag{networkFlag()},
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return fmt.Errorf("symbol and wallet address are required")
			}
			symbol, address := c.Args().Get(0), c.Args().Get(1)

			facade, err := newFacade(c)
			if err != nil {
				return err
			}

			ctx, cancel := commandContext(c)
			defer cancel()

			balance, err := facade.GetBalance(ctx, symbol, c.String("network"), ledger.NewWallet(address, symbol))
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

func transactionFlags() []cli.Flag {
	return []cli.Flag{
		networkFlag(),
		&cli.StringSliceFlag{
			Name:  "jq",
			Usage: "jq expression each transaction must satisfy (can be repeated, all must match)",
		},
		&cli.StringFlag{
			Name:  "since",
			Usage: "Only transactions at or after this RFC3339 time",
		},
		&cli.StringFlag{
			Name:  "until",
			Usage: "Only transactions before this RFC3339 time",
		},
	}
}

func transactionsCommand() *cli.Command {
	return &cli.Command{
		Name:      "transactions",
		Aliases:   []string{"txns", "tx"},
		Usage:     "Fetch and normalize the transaction history of a wallet",
		ArgsUsage: "SYMBOL ADDRESS",
		Description: `Fetch a wallet's history from its chain provider and print one record per
value movement.

Examples:
  chainfeed transactions XTZ tz1... --network ghostnet
  chainfeed transactions SOL <address> --jq '.tx_type == "inbound-transaction"' --json
  chainfeed transactions ETH 0x... --jq '.amount | tonumber > 1'`,
		Flags: transactionFlags(),
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

			facade, err := newFacade(c)
			if err != nil {
				return err
			}

			ctx, cancel := commandContext(c)
			defer cancel()

			txns, err := facade.GetTransactionData(ctx, symbol, c.String("network"), ledger.NewWallet(address, symbol))
			if err != nil {
				return fmt.Errorf("failed to get transactions: %w", err)
			}
			return writeTransactions(c, symbol, withinWindow(txns, since, until), filters)
		},
	}
}
