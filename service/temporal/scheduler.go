package temporal

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrScheduleNotFound is returned when deleting a schedule that does not exist.
var ErrScheduleNotFound = errors.New("schedule not found")

// Scheduler manages Temporal schedules for wallet syncs.
// Each (symbol, network, address) gets its own schedule that triggers
// SyncWalletWorkflow.
type Scheduler interface {
	// UpsertSyncSchedule creates the schedule or updates its interval.
	UpsertSyncSchedule(ctx context.Context, input SyncWalletInput, interval time.Duration) error

	// DeleteSyncSchedule stops a wallet from being synced.
	DeleteSyncSchedule(ctx context.Context, input SyncWalletInput) error

	// StartSync runs SyncWalletWorkflow once and returns its workflow ID.
	StartSync(ctx context.Context, input SyncWalletInput) (string, error)
}

// scheduleID returns the Temporal schedule ID for a wallet.
func scheduleID(input SyncWalletInput) string {
	return "sync-wallet-" + strings.ToUpper(input.Symbol) + "-" + input.Network + "-" + input.Address
}
