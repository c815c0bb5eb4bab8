package temporal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/chainfeed/service/ledger"
	"github.com/brojonat/chainfeed/service/metrics"
	natspkg "github.com/brojonat/chainfeed/service/nats"
	temporalsdk "go.temporal.io/sdk/temporal"
)

// SyncWalletInput identifies the wallet a sync run fetches.
type SyncWalletInput struct {
	Symbol  string `json:"symbol"`
	Network string `json:"network"`
	Address string `json:"address"`
}

// Wallet returns the canonical wallet for the input.
func (in SyncWalletInput) Wallet() ledger.Wallet {
	return ledger.NewWallet(in.Address, in.Symbol)
}

// SyncWalletResult summarizes one sync run.
type SyncWalletResult struct {
	Symbol    string    `json:"symbol"`
	Network   string    `json:"network"`
	Address   string    `json:"address"`
	Fetched   int       `json:"fetched"`
	Written   int       `json:"written"`
	Skipped   int       `json:"skipped"`
	Published int       `json:"published"`
	Balance   string    `json:"balance,omitempty"`
	SyncTime  time.Time `json:"sync_time"`
	Error     *string   `json:"error,omitempty"`
}

// FetchTransactionsResult holds the canonical transactions of a wallet.
type FetchTransactionsResult struct {
	Transactions []ledger.Transaction `json:"transactions"`
}

// StoreTransactionsInput contains the transactions to persist.
type StoreTransactionsInput struct {
	Wallet       ledger.Wallet        `json:"wallet"`
	Network      string               `json:"network"`
	Transactions []ledger.Transaction `json:"transactions"`
}

// StoreTransactionsResult contains the result of writing transactions.
type StoreTransactionsResult struct {
	Written int `json:"written"`
	Skipped int `json:"skipped"` // already stored
}

// PublishTransactionsInput contains the transactions to publish.
type PublishTransactionsInput struct {
	Wallet       ledger.Wallet        `json:"wallet"`
	Transactions []ledger.Transaction `json:"transactions"`
}

// PublishTransactionsResult contains the number of events sent.
type PublishTransactionsResult struct {
	Published int `json:"published"`
}

// RecordBalanceResult contains the balance observed by a sync run.
type RecordBalanceResult struct {
	Balance *ledger.Balance `json:"balance"`
}

// TransactionSource fetches canonical data for a wallet. *aggregate.Facade
// implements it.
type TransactionSource interface {
	GetTransactionData(ctx context.Context, symbol, network string, w ledger.Wallet) ([]ledger.Transaction, error)
	GetBalance(ctx context.Context, symbol, network string, w ledger.Wallet) (*ledger.Balance, error)
}

// StoreInterface defines the database operations needed by activities.
type StoreInterface interface {
	UpsertTransactions(ctx context.Context, w ledger.Wallet, txns []ledger.Transaction) (int, int, error)
	RecordBalance(ctx context.Context, address, network string, b *ledger.Balance, observedAt time.Time) error
	TouchSync(ctx context.Context, symbol, network, address string, at time.Time) error
}

// PublisherInterface defines the NATS publishing operations needed by activities.
type PublisherInterface interface {
	PublishTransactionBatch(ctx context.Context, events []*natspkg.TransactionEvent) error
}

// Activities holds the dependencies needed by Temporal activities. Store and
// publisher are optional; the matching activities do nothing when unset.
type Activities struct {
	source    TransactionSource
	store     StoreInterface
	publisher PublisherInterface
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewActivities creates a new Activities instance with explicit dependencies.
// If metrics is nil, no metrics will be recorded.
func NewActivities(
	source TransactionSource,
	store StoreInterface,
	publisher PublisherInterface,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Activities {
	if logger == nil {
		logger = slog.Default()
	}
	return &Activities{
		source:    source,
		store:     store,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
	}
}

// FetchTransactions fetches and normalizes a wallet's history through the facade.
func (a *Activities) FetchTransactions(ctx context.Context, input SyncWalletInput) (res *FetchTransactionsResult, err error) {
	defer a.record(ctx, "FetchTransactions", input.Symbol, time.Now(), &err)

	txns, err := a.source.GetTransactionData(ctx, input.Symbol, input.Network, input.Wallet())
	if err != nil {
		a.logger.ErrorContext(ctx, "failed to fetch transactions",
			"symbol", input.Symbol,
			"network", input.Network,
			"address", input.Address,
			"error", err,
		)
		return nil, activityError("failed to fetch transactions", err)
	}

	a.logger.InfoContext(ctx, "fetched transactions",
		"symbol", input.Symbol,
		"network", input.Network,
		"address", input.Address,
		"count", len(txns),
	)
	return &FetchTransactionsResult{Transactions: txns}, nil
}

// StoreTransactions persists transactions; rows already stored are skipped.
func (a *Activities) StoreTransactions(ctx context.Context, input StoreTransactionsInput) (res *StoreTransactionsResult, err error) {
	defer a.record(ctx, "StoreTransactions", input.Wallet.CurrencySymbol, time.Now(), &err)

	if a.store == nil {
		a.logger.DebugContext(ctx, "no store configured, skipping write", "count", len(input.Transactions))
		return &StoreTransactionsResult{}, nil
	}

	written, skipped, err := a.store.UpsertTransactions(ctx, input.Wallet, input.Transactions)
	if err != nil {
		return nil, fmt.Errorf("failed to store transactions: %w", err)
	}
	if err := a.store.TouchSync(ctx, input.Wallet.CurrencySymbol, input.Network, input.Wallet.Address, time.Now().UTC()); err != nil {
		a.logger.WarnContext(ctx, "failed to update last sync time",
			"address", input.Wallet.Address,
			"error", err,
		)
	}

	a.logger.InfoContext(ctx, "stored transactions",
		"address", input.Wallet.Address,
		"written", written,
		"skipped", skipped,
	)
	return &StoreTransactionsResult{Written: written, Skipped: skipped}, nil
}

// PublishTransactions sends one event per transaction to NATS.
func (a *Activities) PublishTransactions(ctx context.Context, input PublishTransactionsInput) (res *PublishTransactionsResult, err error) {
	defer a.record(ctx, "PublishTransactions", input.Wallet.CurrencySymbol, time.Now(), &err)

	if a.publisher == nil || len(input.Transactions) == 0 {
		return &PublishTransactionsResult{}, nil
	}

	events := natspkg.FromTransactions(input.Wallet, input.Transactions)
	if err := a.publisher.PublishTransactionBatch(ctx, events); err != nil {
		return nil, fmt.Errorf("failed to publish transactions: %w", err)
	}
	return &PublishTransactionsResult{Published: len(events)}, nil
}

// RecordBalance fetches the current balance and stores the observation.
func (a *Activities) RecordBalance(ctx context.Context, input SyncWalletInput) (res *RecordBalanceResult, err error) {
	defer a.record(ctx, "RecordBalance", input.Symbol, time.Now(), &err)

	balance, err := a.source.GetBalance(ctx, input.Symbol, input.Network, input.Wallet())
	if err != nil {
		return nil, activityError("failed to fetch balance", err)
	}
	if a.store != nil {
		if err := a.store.RecordBalance(ctx, input.Address, input.Network, balance, time.Now().UTC()); err != nil {
			return nil, fmt.Errorf("failed to record balance: %w", err)
		}
	}
	return &RecordBalanceResult{Balance: balance}, nil
}

func (a *Activities) record(ctx context.Context, activity, currency string, start time.Time, err *error) {
	if a.metrics == nil {
		return
	}
	a.metrics.RecordActivity(activity, currency, time.Since(start).Seconds(), *err)
}

// activityError marks errors no retry can fix as non-retryable so Temporal
// fails the workflow instead of backing off.
func activityError(msg string, err error) error {
	var perr *ledger.ProviderError
	switch {
	case errors.Is(err, ledger.ErrConfiguration):
		return temporalsdk.NewNonRetryableApplicationError(msg, "ConfigurationError", err)
	case errors.Is(err, ledger.ErrUnsupportedCurrency):
		return temporalsdk.NewNonRetryableApplicationError(msg, "UnsupportedCurrencyError", err)
	case errors.As(err, &perr) && !perr.Retryable() && perr.StatusCode >= 400:
		return temporalsdk.NewNonRetryableApplicationError(msg, "ProviderError", err)
	}
	return fmt.Errorf("%s: %w", msg, err)
}
