// Package aggregate is the single entry point for balance and transaction
// reads. It resolves a currency symbol to the provider registered for it,
// fetches through that provider's adapter and normalizes the result.
package aggregate

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/brojonat/chainfeed/service/ledger"
	"github.com/brojonat/chainfeed/service/metrics"
	"github.com/brojonat/chainfeed/service/normalize"
)

// Facade routes reads to the Source registered for each currency symbol.
// It is safe for concurrent use.
type Facade struct {
	mu      sync.RWMutex
	sources map[string]Source
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewFacade creates an empty Facade. Metrics may be nil.
func NewFacade(logger *slog.Logger, m *metrics.Metrics) *Facade {
	if logger == nil {
		logger = slog.Default()
	}
	return &Facade{
		sources: make(map[string]Source),
		logger:  logger,
		metrics: m,
	}
}

// Register binds symbol to src, replacing any previous binding.
func (f *Facade) Register(symbol string, src Source) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sources[strings.ToUpper(symbol)] = src
}

// Currencies returns the registered symbols, sorted.
func (f *Facade) Currencies() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]string, 0, len(f.sources))
	for symbol := range f.sources {
		out = append(out, symbol)
	}
	sort.Strings(out)
	return out
}

// Networks returns the networks available for symbol.
func (f *Facade) Networks(symbol string) ([]string, error) {
	src, err := f.source(symbol)
	if err != nil {
		return nil, err
	}
	return src.Endpoints().Networks(), nil
}

// Provider returns the name of the provider serving symbol.
func (f *Facade) Provider(symbol string) (string, error) {
	src, err := f.source(symbol)
	if err != nil {
		return "", err
	}
	return src.Provider(), nil
}

// GetTransactionData returns the wallet's transactions on network in
// ascending date order. A wallet with no history yields an empty slice.
// Errors from the provider are returned unchanged.
func (f *Facade) GetTransactionData(ctx context.Context, symbol, network string, w ledger.Wallet) ([]ledger.Transaction, error) {
	start := time.Now()
	src, err := f.source(symbol)
	if err != nil {
		f.recordFetch(symbol, "transactions", start, outcome(err, false))
		return nil, err
	}

	res, err := src.Transactions(ctx, network, w)
	f.recordFetch(symbol, "transactions", start, outcome(err, len(res.Transactions) == 0))
	if err != nil {
		f.logger.WarnContext(ctx, "transaction fetch failed",
			"currency", symbol,
			"provider", src.Provider(),
			"network", network,
			"address", w.Address,
			"error", err,
		)
		return nil, err
	}

	f.report(ctx, src.Provider(), w, res)
	f.logger.DebugContext(ctx, "fetched transactions",
		"currency", symbol,
		"provider", src.Provider(),
		"network", network,
		"address", w.Address,
		"count", len(res.Transactions),
		"filtered", res.Filtered,
		"skipped", len(res.Skipped),
		"duplicates", res.Duplicates,
		"duration", time.Since(start),
	)
	return res.Transactions, nil
}

// GetBalance returns the wallet's current balance on network.
func (f *Facade) GetBalance(ctx context.Context, symbol, network string, w ledger.Wallet) (*ledger.Balance, error) {
	start := time.Now()
	src, err := f.source(symbol)
	if err != nil {
		f.recordFetch(symbol, "balance", start, outcome(err, false))
		return nil, err
	}

	bal, err := src.Balance(ctx, network, w)
	f.recordFetch(symbol, "balance", start, outcome(err, false))
	if err != nil {
		f.logger.WarnContext(ctx, "balance fetch failed",
			"currency", symbol,
			"provider", src.Provider(),
			"network", network,
			"address", w.Address,
			"error", err,
		)
		return nil, err
	}
	bal.CurrencySymbol = strings.ToUpper(symbol)

	f.logger.DebugContext(ctx, "fetched balance",
		"currency", symbol,
		"network", network,
		"address", w.Address,
		"amount", bal.Amount.String(),
	)
	return bal, nil
}

func (f *Facade) source(symbol string) (Source, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	src, ok := f.sources[strings.ToUpper(symbol)]
	if !ok {
		return nil, &ledger.UnsupportedCurrencyError{Symbol: symbol}
	}
	return src, nil
}

// report logs skipped records and updates normalization counters.
func (f *Facade) report(ctx context.Context, provider string, w ledger.Wallet, res normalize.Result) {
	for _, skip := range res.Skipped {
		f.logger.WarnContext(ctx, "skipped unparseable record",
			"provider", provider,
			"address", w.Address,
			"native_id", skip.NativeID,
			"reason", skip.Reason,
		)
	}
	if f.metrics == nil {
		return
	}

	counts := make(map[ledger.TxType]int)
	for _, txn := range res.Transactions {
		counts[txn.TxType]++
	}
	for txType, n := range counts {
		f.metrics.RecordNormalized(provider, string(txType), n)
	}
	f.metrics.RecordDropped(provider, "filtered", res.Filtered)
	f.metrics.RecordDropped(provider, "unparseable", len(res.Skipped))
	f.metrics.RecordDropped(provider, "duplicate", res.Duplicates)
}

func (f *Facade) recordFetch(symbol, op string, start time.Time, result string) {
	if f.metrics == nil {
		return
	}
	f.metrics.RecordFetch(strings.ToUpper(symbol), op, result, metrics.Since(start))
}

func outcome(err error, empty bool) string {
	switch {
	case err == nil && empty:
		return "empty"
	case err == nil:
		return "ok"
	case errors.Is(err, ledger.ErrUnsupportedCurrency):
		return "unsupported"
	case errors.Is(err, ledger.ErrConfiguration):
		return "config_error"
	case errors.Is(err, ledger.ErrProvider):
		return "provider_error"
	default:
		return "error"
	}
}
