package temporal

import (
	"fmt"
	"time"

	temporalsdk "go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

var a *Activities // for type-safe activity invocation

// SyncWalletWorkflow fetches a wallet's canonical transactions, stores them
// and publishes them. It is triggered by a per-wallet Temporal schedule or
// started once through StartSync.
//
// Retries happen here, through the activity retry policy. The fetch pipeline
// itself never retries.
func SyncWalletWorkflow(ctx workflow.Context, input SyncWalletInput) (*SyncWalletResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("SyncWalletWorkflow started", "symbol", input.Symbol, "network", input.Network, "address", input.Address)

	result := &SyncWalletResult{
		Symbol:   input.Symbol,
		Network:  input.Network,
		Address:  input.Address,
		SyncTime: workflow.Now(ctx),
	}
	fail := func(step string, err error) (*SyncWalletResult, error) {
		msg := fmt.Sprintf("failed to %s: %v", step, err)
		result.Error = &msg
		return result, fmt.Errorf("failed to %s: %w", step, err)
	}

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 300 * time.Second,
		RetryPolicy: &temporalsdk.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    3,
		},
	})

	var fetched *FetchTransactionsResult
	if err := workflow.ExecuteActivity(ctx, a.FetchTransactions, input).Get(ctx, &fetched); err != nil {
		return fail("fetch transactions", err)
	}
	result.Fetched = len(fetched.Transactions)

	if result.Fetched > 0 {
		var stored *StoreTransactionsResult
		err := workflow.ExecuteActivity(ctx, a.StoreTransactions, StoreTransactionsInput{
			Wallet:       input.Wallet(),
			Network:      input.Network,
			Transactions: fetched.Transactions,
		}).Get(ctx, &stored)
		if err != nil {
			return fail("store transactions", err)
		}
		result.Written = stored.Written
		result.Skipped = stored.Skipped

		var published *PublishTransactionsResult
		err = workflow.ExecuteActivity(ctx, a.PublishTransactions, PublishTransactionsInput{
			Wallet:       input.Wallet(),
			Transactions: fetched.Transactions,
		}).Get(ctx, &published)
		if err != nil {
			// Stored rows are already durable; consumers can catch up next run.
			logger.Warn("failed to publish transactions", "address", input.Address, "error", err)
		} else {
			result.Published = published.Published
		}
	}

	var balance *RecordBalanceResult
	if err := workflow.ExecuteActivity(ctx, a.RecordBalance, input).Get(ctx, &balance); err != nil {
		logger.Warn("failed to record balance", "address", input.Address, "error", err)
	} else if balance != nil && balance.Balance != nil {
		result.Balance = balance.Balance.Amount.String()
	}

	logger.Info("SyncWalletWorkflow completed",
		"address", input.Address,
		"fetched", result.Fetched,
		"written", result.Written,
		"skipped", result.Skipped,
		"published", result.Published,
	)
	return result, nil
}
