package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/brojonat/chainfeed/service/ledger"
	"github.com/itchyny/gojq"
	"github.com/urfave/cli/v2"
)

// newLogger returns a text logger on stderr at the given level.
func newLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn", "warning":
		logLevel = slog.LevelWarn
	default:
		logLevel = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
}

// compileFilters parses and compiles jq expressions.
func compileFilters(exprs []string) ([]*gojq.Code, error) {
	codes := make([]*gojq.Code, len(exprs))
	for i, expr := range exprs {
		query, err := gojq.Parse(expr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse jq filter %q: %w", expr, err)
		}
		codes[i], err = gojq.Compile(query)
		if err != nil {
			return nil, fmt.Errorf("failed to compile jq filter %q: %w", expr, err)
		}
	}
	return codes, nil
}

// filterTransactions keeps the transactions for which every filter yields a
// truthy first result. A filter that errors counts as a mismatch.
func filterTransactions(txns []ledger.Transaction, filters []*gojq.Code, logger *slog.Logger) ([]ledger.Transaction, error) {
	if len(filters) == 0 {
		return txns, nil
	}

	out := make([]ledger.Transaction, 0, len(txns))
	for _, txn := range txns {
		// gojq works on plain JSON values, not structs.
		data, err := json.Marshal(txn)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal transaction %s: %w", txn.UniqueID, err)
		}
		var value interface{}
		if err := json.Unmarshal(data, &value); err != nil {
			return nil, fmt.Errorf("failed to unmarshal transaction %s: %w", txn.UniqueID, err)
		}

		if matchesAll(value, filters, logger) {
			out = append(out, txn)
		}
	}
	return out, nil
}

func matchesAll(value interface{}, filters []*gojq.Code, logger *slog.Logger) bool {
	for _, code := range filters {
		iter := code.Run(value)
		v, ok := iter.Next()
		if !ok {
			return false
		}
		if err, isErr := v.(error); isErr {
			logger.Debug("jq filter error", "error", err)
			return false
		}
		if !isTruthy(v) {
			return false
		}
	}
	return true
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

// parseTimeFlag parses an optional RFC3339 flag value.
func parseTimeFlag(c *cli.Context, name string) (time.Time, error) {
	raw := c.String(name)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --%s %q: must be RFC3339", name, raw)
	}
	return t, nil
}

// withinWindow keeps transactions dated in [since, until). Zero bounds are open.
func withinWindow(txns []ledger.Transaction, since, until time.Time) []ledger.Transaction {
	out := make([]ledger.Transaction, 0, len(txns))
	for _, t := range txns {
		if !since.IsZero() && t.Date.Before(since) {
			continue
		}
		if !until.IsZero() && !t.Date.Before(until) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// outputJSON writes v as indented JSON.
func outputJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printTransactions writes a table of transactions.
func printTransactions(w io.Writer, symbol string, txns []ledger.Transaction) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tDIRECTION\tAMOUNT\tFROM\tTO\tTRANSACTION")
	for _, t := range txns {
		fmt.Fprintf(tw, "%s\t%s\t%s %s\t%s\t%s\t%s\n",
			t.Date.Format(time.RFC3339),
			direction(t.TxType),
			t.Amount.String(),
			symbol,
			formatOptionalAddress(t.Source),
			formatOptionalAddress(t.Destination),
			t.TransactionID,
		)
	}
	tw.Flush()
}

func direction(t ledger.TxType) string {
	switch t {
	case ledger.Inbound:
		return "in"
	case ledger.Outbound:
		return "out"
	default:
		return string(t)
	}
}

// formatOptionalAddress renders a possibly absent counterparty.
func formatOptionalAddress(addr *string) string {
	if addr != nil && *addr != "" {
		return *addr
	}
	return "(unknown)"
}

// writeTransactions applies jq filters and prints txns as JSON or a table.
func writeTransactions(c *cli.Context, symbol string, txns []ledger.Transaction, filters []*gojq.Code) error {
	txns, err := filterTransactions(txns, filters, newLogger(c.String("log-level")))
	if err != nil {
		return err
	}

	if c.Bool("json") {
		return outputJSON(c.App.Writer, txns)
	}

	printTransactions(c.App.Writer, strings.ToUpper(symbol), txns)
	fmt.Fprintf(c.App.ErrWriter, "\nTotal: %d transactions\n", len(txns))
	return nil
}
