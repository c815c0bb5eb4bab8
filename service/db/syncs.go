package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// Sync is a wallet registered for scheduled syncs.
type Sync struct {
	Symbol       string        `json:"symbol"`
	Network      string        `json:"network"`
	Address      string        `json:"address"`
	Interval     time.Duration `json:"interval"`
	LastSyncedAt *time.Time    `json:"last_synced_at,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

const syncColumns = `currency_symbol, network, wallet_address, sync_interval, last_synced_at, created_at, updated_at`

// UpsertSync registers a wallet or updates its interval.
func (s *Store) UpsertSync(ctx context.Context, symbol, network, address string, interval time.Duration) (sync *Sync, err error) {
	start := time.Now()
	defer func() {
		s.recordQuery("upsert", "syncs", start, err)
	}()
	row := s.pool.QueryRow(ctx,
		`INSERT INTO syncs (currency_symbol, network, wallet_address, sync_interval)
VALUES ($1, $2, $3, $4)
ON CONFLICT (currency_symbol, network, wallet_address)
DO UPDATE SET sync_interval = EXCLUDED.sync_interval, updated_at = NOW()
RETURNING `+syncColumns,
		symbol, network, address, int64(interval/time.Second),
	)
	sync, err = scanSync(row)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert sync: %w", err)
	}
	return sync, nil
}

// GetSync returns one registration or ErrNotFound.
func (s *Store) GetSync(ctx context.Context, symbol, network, address string) (sync *Sync, err error) {
	start := time.Now()
	defer func() {
		s.recordQuery("get", "syncs", start, err)
	}()
	row := s.pool.QueryRow(ctx,
		`SELECT `+syncColumns+` FROM syncs WHERE currency_symbol = $1 AND network = $2 AND wallet_address = $3`,
		symbol, network, address,
	)
	sync, err = scanSync(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sync: %w", err)
	}
	return sync, nil
}

// ListSyncs returns every registration.
func (s *Store) ListSyncs(ctx context.Context) (syncs []*Sync, err error) {
	start := time.Now()
	defer func() {
		s.recordQuery("list", "syncs", start, err)
	}()
	rows, err := s.pool.Query(ctx, `SELECT `+syncColumns+` FROM syncs ORDER BY currency_symbol, network, wallet_address`)
	if err != nil {
		return nil, fmt.Errorf("failed to list syncs: %w", err)
	}
	defer rows.Close()

	syncs = []*Sync{}
	for rows.Next() {
		sync, err := scanSync(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sync: %w", err)
		}
		syncs = append(syncs, sync)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate syncs: %w", err)
	}
	return syncs, nil
}

// TouchSync records a completed sync run.
func (s *Store) TouchSync(ctx context.Context, symbol, network, address string, at time.Time) (err error) {
	start := time.Now()
	defer func() {
		s.recordQuery("touch", "syncs", start, err)
	}()
	_, err = s.pool.Exec(ctx,
		`UPDATE syncs SET last_synced_at = $4, updated_at = NOW()
WHERE currency_symbol = $1 AND network = $2 AND wallet_address = $3`,
		symbol, network, address, at,
	)
	if err != nil {
		return fmt.Errorf("failed to touch sync: %w", err)
	}
	return nil
}

// DeleteSync removes a registration. Deleting a missing one returns ErrNotFound.
func (s *Store) DeleteSync(ctx context.Context, symbol, network, address string) (err error) {
	start := time.Now()
	defer func() {
		s.recordQuery("delete", "syncs", start, err)
	}()
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM syncs WHERE currency_symbol = $1 AND network = $2 AND wallet_address = $3`,
		symbol, network, address,
	)
	if err != nil {
		return fmt.Errorf("failed to delete sync: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanSync(row pgx.Row) (*Sync, error) {
	var (
		sync    Sync
		seconds int64
	)
	if err := row.Scan(&sync.Symbol, &sync.Network, &sync.Address, &seconds,
		&sync.LastSyncedAt, &sync.CreatedAt, &sync.UpdatedAt); err != nil {
		return nil, err
	}
	sync.Interval = time.Duration(seconds) * time.Second
	return &sync, nil
}
