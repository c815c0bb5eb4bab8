package db

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/brojonat/chainfeed/service/ledger"
	"github.com/brojonat/chainfeed/service/metrics"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

//go:embed schema.sql
var schema string

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// Pool is the subset of *pgxpool.Pool the store uses. pgxmock satisfies it.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store persists canonical transactions, balance observations and sync
// registrations in Postgres.
type Store struct {
	pool    Pool
	metrics *metrics.Metrics
}

// NewStore creates a Store. metrics may be nil.
func NewStore(pool Pool, m *metrics.Metrics) *Store {
	return &Store{pool: pool, metrics: m}
}

// Connect opens a connection pool for databaseURL and verifies it.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

// Migrate creates the tables the store needs if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

const insertTransaction = `INSERT INTO transactions (unique_id, wallet_address, currency_symbol, network, provider,
	transaction_id, source, destination, amount, tx_type, activity_category, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::numeric, $10, $11, $12)
ON CONFLICT (unique_id) DO NOTHING`

// UpsertTransactions writes txns for wallet w in one database transaction.
// Rows whose unique_id already exists are left alone and counted as skipped,
// so refreshing a wallet never double counts.
func (s *Store) UpsertTransactions(ctx context.Context, w ledger.Wallet, txns []ledger.Transaction) (written, skipped int, err error) {
	start := time.Now()
	defer func() {
		s.recordQuery("upsert", "transactions", start, err)
	}()
	if len(txns) == 0 {
		return 0, 0, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for _, t := range txns {
		tag, err := tx.Exec(ctx, insertTransaction,
			t.UniqueID, w.Address, w.CurrencySymbol, t.Network, t.Provider,
			t.TransactionID, t.Source, t.Destination, t.Amount.String(),
			string(t.TxType), t.ActivityCategory, t.Date,
		)
		if err != nil {
			return 0, 0, fmt.Errorf("failed to insert transaction %s: %w", t.UniqueID, err)
		}
		if tag.RowsAffected() == 0 {
			skipped++
			continue
		}
		written++
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, 0, fmt.Errorf("failed to commit transactions: %w", err)
	}
	if s.metrics != nil {
		s.metrics.RecordTransactionsWritten(w.CurrencySymbol, written)
	}
	return written, skipped, nil
}

// ListTransactionsParams selects a page of stored transactions, newest first.
type ListTransactionsParams struct {
	Address string
	Symbol  string
	Limit   int
	Offset  int
}

const listTransactions = `SELECT unique_id, network, provider, transaction_id, source, destination,
	amount::text, tx_type, activity_category, occurred_at
FROM transactions
WHERE wallet_address = $1 AND currency_symbol = $2
ORDER BY occurred_at DESC, unique_id
LIMIT $3 OFFSET $4`

// ListTransactions returns stored transactions for a wallet.
func (s *Store) ListTransactions(ctx context.Context, params ListTransactionsParams) (txns []ledger.Transaction, err error) {
	start := time.Now()
	defer func() {
		s.recordQuery("list", "transactions", start, err)
	}()
	if params.Limit <= 0 {
		params.Limit = 100
	}

	rows, err := s.pool.Query(ctx, listTransactions, params.Address, params.Symbol, params.Limit, params.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	txns = []ledger.Transaction{}
	for rows.Next() {
		var (
			t      ledger.Transaction
			amount string
			txType string
		)
		if err := rows.Scan(&t.UniqueID, &t.Network, &t.Provider, &t.TransactionID, &t.Source, &t.Destination,
			&amount, &txType, &t.ActivityCategory, &t.Date); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		t.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("failed to parse amount of %s: %w", t.UniqueID, err)
		}
		t.TxType = ledger.TxType(txType)
		t.Date = t.Date.UTC()
		txns = append(txns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}
	return txns, nil
}

// CountTransactions counts stored transactions for a wallet.
func (s *Store) CountTransactions(ctx context.Context, address, symbol string) (count int64, err error) {
	start := time.Now()
	defer func() {
		s.recordQuery("count", "transactions", start, err)
	}()
	err = s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM transactions WHERE wallet_address = $1 AND currency_symbol = $2`,
		address, symbol,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return count, nil
}

// RecordBalance appends a balance observation.
func (s *Store) RecordBalance(ctx context.Context, address, network string, b *ledger.Balance, observedAt time.Time) (err error) {
	start := time.Now()
	defer func() {
		s.recordQuery("insert", "balances", start, err)
	}()
	_, err = s.pool.Exec(ctx,
		`INSERT INTO balances (wallet_address, currency_symbol, network, amount, observed_at)
VALUES ($1, $2, $3, $4::numeric, $5)
ON CONFLICT DO NOTHING`,
		address, b.CurrencySymbol, network, b.Amount.String(), observedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record balance: %w", err)
	}
	return nil
}

func (s *Store) recordQuery(operation, table string, start time.Time, err error) {
	if s.metrics != nil {
		s.metrics.RecordDBQuery(operation, table, time.Since(start).Seconds(), err)
	}
}
