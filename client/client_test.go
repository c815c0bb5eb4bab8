package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/brojonat/chainfeed/service/ledger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCurrencies_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GET", r.Method)
		assert.Equal(t, "/api/v1/currencies", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"currencies":[{"symbol":"SOL","provider":"solana","networks":["devnet","mainnet"]}]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	currencies, err := client.Currencies(context.Background())

	require.NoError(t, err)
	require.Len(t, currencies, 1)
	assert.Equal(t, "SOL", currencies[0].Symbol)
	assert.Equal(t, []string{"devnet", "mainnet"}, currencies[0].Networks)
}

func TestBalance_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/balances/XTZ/tz1abc", r.URL.Path)
		assert.Equal(t, "ghostnet", r.URL.Query().Get("network"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"address":"tz1abc","network":"ghostnet","currency_symbol":"XTZ","amount":"12.5","account_type":"wallet"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	balance, err := client.Balance(context.Background(), "XTZ", "ghostnet", "tz1abc")

	require.NoError(t, err)
	assert.Equal(t, "XTZ", balance.CurrencySymbol)
	assert.True(t, decimal.RequireFromString("12.5").Equal(balance.Amount))
	assert.Equal(t, ledger.AccountTypeWallet, balance.AccountType)
}

func TestTransactions_Success(t *testing.T) {
	since := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/transactions/SOL/Wallet1", r.URL.Path)
		assert.Equal(t, "devnet", r.URL.Query().Get("network"))
		assert.Equal(t, "2024-03-01T00:00:00Z", r.URL.Query().Get("since"))
		assert.Empty(t, r.URL.Query().Get("until"))

		src, dst := "Wallet1", "Peer"
		json.NewEncoder(w).Encode(map[string]interface{}{
			"symbol":  "SOL",
			"network": "devnet",
			"address": "Wallet1",
			"count":   1,
			"transactions": []ledger.Transaction{{
				UniqueID:         "sig-outbound",
				TransactionID:    "sig",
				Source:           &src,
				Destination:      &dst,
				Amount:           decimal.RequireFromString("0.000005"),
				TxType:           ledger.Outbound,
				ActivityCategory: string(ledger.Outbound),
				Date:             since.Add(time.Hour),
			}},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL+"/", nil, nil)
	result, err := client.Transactions(context.Background(), "SOL", "Wallet1", TransactionsOptions{Network: "devnet", Since: since})

	require.NoError(t, err)
	assert.Equal(t, 1, result.Count)
	require.Len(t, result.Transactions, 1)
	assert.Equal(t, ledger.Outbound, result.Transactions[0].TxType)
	assert.Equal(t, "Peer", *result.Transactions[0].Destination)
	assert.True(t, decimal.RequireFromString("0.000005").Equal(result.Transactions[0].Amount))
}

func TestTransactions_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "provider tzkt (mainnet) failed for tz1abc: status 429",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	_, err := client.Transactions(context.Background(), "XTZ", "tz1abc", TransactionsOptions{})

	require.Error(t, err)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "status 429")
}

func TestParseErrorResponse_PlainBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gateway exploded", http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	_, err := client.Currencies(context.Background())

	require.Error(t, err)
	assert.Equal(t, "request failed with status 502: gateway exploded", err.Error())
}

func TestScheduleSync_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/api/v1/syncs", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "SOL", body["symbol"])
		assert.Equal(t, "mainnet", body["network"])
		assert.Equal(t, "1m0s", body["interval"])
		assert.Equal(t, true, body["run_now"])

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"symbol":"SOL","network":"mainnet","address":"Wallet1","interval":"1m0s","workflow_id":"wf-1"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	sync, err := client.ScheduleSync(context.Background(), "SOL", "mainnet", "Wallet1", time.Minute, true)

	require.NoError(t, err)
	assert.Equal(t, time.Minute, sync.Interval)
	assert.Equal(t, "wf-1", sync.WorkflowID)
}

func TestScheduleSync_DefaultInterval(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, ok := body["interval"]
		assert.False(t, ok)

		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"symbol":"SOL","network":"mainnet","address":"Wallet1","interval":"5m0s"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	sync, err := client.ScheduleSync(context.Background(), "SOL", "mainnet", "Wallet1", 0, false)

	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, sync.Interval)
}

func TestDeleteSync_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "DELETE", r.Method)
		assert.Equal(t, "/api/v1/syncs/SOL/mainnet/Wallet1", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "sync not found"})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	err := client.DeleteSync(context.Background(), "SOL", "mainnet", "Wallet1")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "sync not found")
}

func TestSyncs_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/syncs", r.URL.Path)
		w.Write([]byte(`{"syncs":[{"symbol":"SOL","network":"mainnet","address":"a","interval":"30s"},{"symbol":"XTZ","network":"mainnet","address":"b","interval":"1h0m0s","last_synced_at":"2024-01-01T00:00:00Z"}],"count":2}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	syncs, err := client.Syncs(context.Background())

	require.NoError(t, err)
	require.Len(t, syncs, 2)
	assert.Equal(t, 30*time.Second, syncs[0].Interval)
	assert.Nil(t, syncs[0].LastSyncedAt)
	require.NotNil(t, syncs[1].LastSyncedAt)
	assert.Equal(t, time.Hour, syncs[1].Interval)
}

func TestSyncs_BadInterval(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"syncs":[{"symbol":"SOL","network":"mainnet","address":"a","interval":"often"}]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	_, err := client.Syncs(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid interval")
}
