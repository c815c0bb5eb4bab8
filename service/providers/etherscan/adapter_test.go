package etherscan

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/brojonat/chainfeed/service/endpoint"
	"github.com/brojonat/chainfeed/service/fetch"
	"github.com/brojonat/chainfeed/service/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAddress = "0xAbC0000000000000000000000000000000000001"

func newTestAdapter(t *testing.T, handler http.HandlerFunc, paging fetch.Paging) (*Adapter, endpoint.Endpoint) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	req := fetch.New(ProviderName, fetch.Options{RPS: 1000, Burst: 100, Logger: logger})
	registry := Networks().WithCredential("test-key").WithBaseURL("sepolia", server.URL)
	ep, err := registry.Lookup("sepolia")
	require.NoError(t, err)
	return New(registry, req, paging), ep
}

func writeEnvelope(w http.ResponseWriter, status, message string, result any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":  status,
		"message": message,
		"result":  result,
	})
}

func TestNetworks(t *testing.T) {
	assert.Equal(t, []string{"holesky", "mainnet", "sepolia"}, Networks().Networks())
	assert.Error(t, Networks().Validate(), "api key is required")
	assert.NoError(t, Networks().WithCredential("k").Validate())
}

func TestAdapter_Balance(t *testing.T) {
	adapter, ep := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "11155111", q.Get("chainid"))
		assert.Equal(t, "balance", q.Get("action"))
		assert.Equal(t, "test-key", q.Get("apikey"))
		writeEnvelope(w, "1", "OK", "1500000000000000000")
	}, fetch.Paging{})

	bal, err := adapter.Balance(context.Background(), ep, ledger.NewWallet(testAddress, "eth"))

	require.NoError(t, err)
	assert.Equal(t, "ETH", bal.CurrencySymbol)
	assert.Equal(t, "1.5", bal.Amount.String())
}

func TestAdapter_Transactions_Pages(t *testing.T) {
	var calls int
	adapter, ep := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		q := r.URL.Query()
		assert.Equal(t, "txlist", q.Get("action"))
		assert.Equal(t, "asc", q.Get("sort"))
		assert.Equal(t, "2", q.Get("offset"))

		page, _ := strconv.Atoi(q.Get("page"))
		switch page {
		case 1:
			writeEnvelope(w, "1", "OK", []Transaction{
				{Hash: "0x1", TimeStamp: "1700000000", From: "0xpeer", To: testAddress, Value: "1"},
				{Hash: "0x2", TimeStamp: "1700000001", From: testAddress, To: "0xpeer", Value: "2"},
			})
		case 2:
			writeEnvelope(w, "1", "OK", []Transaction{
				{Hash: "0x3", TimeStamp: "1700000002", From: "0xpeer", To: testAddress, Value: "3"},
			})
		default:
			t.Errorf("unexpected page %d", page)
		}
	}, fetch.Paging{PageSize: 2})

	list, err := adapter.Transactions(context.Background(), ep, ledger.NewWallet(testAddress, "ETH"))

	require.NoError(t, err)
	require.Equal(t, 3, list.Len())
	assert.Equal(t, "0x3", list.Transactions[2].Hash)
	assert.Equal(t, 2, calls)
}

func TestAdapter_Transactions_NoneFound(t *testing.T) {
	adapter, ep := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, "0", "No transactions found", []Transaction{})
	}, fetch.Paging{})

	list, err := adapter.Transactions(context.Background(), ep, ledger.NewWallet(testAddress, "ETH"))

	require.NoError(t, err)
	assert.Equal(t, 0, list.Len())
}

func TestAdapter_Errors(t *testing.T) {
	tests := []struct {
		name       string
		handler    http.HandlerFunc
		wantStatus int
	}{
		{
			name: "http 429",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusTooManyRequests)
			},
			wantStatus: http.StatusTooManyRequests,
		},
		{
			name: "rate limit envelope",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeEnvelope(w, "0", "NOTOK", "Max rate limit reached")
			},
			wantStatus: http.StatusTooManyRequests,
		},
		{
			name: "invalid key envelope",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeEnvelope(w, "0", "NOTOK", "Invalid API Key")
			},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "malformed result",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeEnvelope(w, "1", "OK", "not a list")
			},
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter, ep := newTestAdapter(t, tt.handler, fetch.Paging{})

			_, err := adapter.Transactions(context.Background(), ep, ledger.NewWallet(testAddress, "ETH"))

			var perr *ledger.ProviderError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, tt.wantStatus, perr.StatusCode)
			assert.Equal(t, ProviderName, perr.Provider)
			assert.Equal(t, "sepolia", perr.Network)
		})
	}
}

func TestAdapter_MissingKey(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	adapter := New(Networks(), fetch.New(ProviderName, fetch.Options{Logger: logger}), fetch.Paging{})
	ep, err := adapter.Endpoints().Lookup("mainnet")
	require.NoError(t, err)

	_, err = adapter.Balance(context.Background(), ep, ledger.NewWallet(testAddress, "ETH"))

	assert.ErrorIs(t, err, ledger.ErrConfiguration)
}

func TestEnvelopeStatus(t *testing.T) {
	assert.Equal(t, http.StatusTooManyRequests, envelopeStatus("Max rate limit reached, please use API Key for higher rate limit"))
	assert.Equal(t, http.StatusUnauthorized, envelopeStatus("Missing/Invalid API Key"))
	assert.Equal(t, http.StatusBadRequest, envelopeStatus("Error! Invalid address format"))
	assert.Equal(t, http.StatusBadGateway, envelopeStatus("Query Timeout occured"))
}
