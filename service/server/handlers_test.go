package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/brojonat/chainfeed/service/config"
	"github.com/brojonat/chainfeed/service/db"
	"github.com/brojonat/chainfeed/service/ledger"
	"github.com/brojonat/chainfeed/service/temporal"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeService serves canned data keyed by symbol.
type fakeService struct {
	networks map[string][]string
	txns     []ledger.Transaction
	balance  *ledger.Balance
	err      error

	gotNetwork string
	gotWallet  ledger.Wallet
}

func newFakeService() *fakeService {
	return &fakeService{
		networks: map[string][]string{
			"SOL": {"devnet", "mainnet"},
			"XTZ": {"ghostnet", "mainnet"},
		},
	}
}

func (f *fakeService) Currencies() []string {
	out := make([]string, 0, len(f.networks))
	for s := range f.networks {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func (f *fakeService) Networks(symbol string) ([]string, error) {
	n, ok := f.networks[strings.ToUpper(symbol)]
	if !ok {
		return nil, &ledger.UnsupportedCurrencyError{Symbol: symbol}
	}
	return n, nil
}

func (f *fakeService) Provider(symbol string) (string, error) {
	if _, ok := f.networks[strings.ToUpper(symbol)]; !ok {
		return "", &ledger.UnsupportedCurrencyError{Symbol: symbol}
	}
	return strings.ToLower(symbol) + "-provider", nil
}

func (f *fakeService) GetTransactionData(ctx context.Context, symbol, network string, w ledger.Wallet) ([]ledger.Transaction, error) {
	f.gotNetwork = network
	f.gotWallet = w
	if f.err != nil {
		return nil, f.err
	}
	return f.txns, nil
}

func (f *fakeService) GetBalance(ctx context.Context, symbol, network string, w ledger.Wallet) (*ledger.Balance, error) {
	f.gotNetwork = network
	f.gotWallet = w
	if f.err != nil {
		return nil, f.err
	}
	return f.balance, nil
}

// fakeStore records sync registrations in memory.
type fakeStore struct {
	txns    []ledger.Transaction
	total   int64
	syncs   map[string]*db.Sync
	listErr error

	gotParams db.ListTransactionsParams
}

func newFakeStore() *fakeStore {
	return &fakeStore{syncs: make(map[string]*db.Sync)}
}

func syncKey(symbol, network, address string) string {
	return symbol + "/" + network + "/" + address
}

func (f *fakeStore) ListTransactions(ctx context.Context, params db.ListTransactionsParams) ([]ledger.Transaction, error) {
	f.gotParams = params
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.txns, nil
}

func (f *fakeStore) CountTransactions(ctx context.Context, address, symbol string) (int64, error) {
	return f.total, nil
}

func (f *fakeStore) UpsertSync(ctx context.Context, symbol, network, address string, interval time.Duration) (*db.Sync, error) {
	s := &db.Sync{Symbol: symbol, Network: network, Address: address, Interval: interval}
	f.syncs[syncKey(symbol, network, address)] = s
	return s, nil
}

func (f *fakeStore) DeleteSync(ctx context.Context, symbol, network, address string) error {
	key := syncKey(symbol, network, address)
	if _, ok := f.syncs[key]; !ok {
		return db.ErrNotFound
	}
	delete(f.syncs, key)
	return nil
}

func (f *fakeStore) ListSyncs(ctx context.Context) ([]*db.Sync, error) {
	out := []*db.Sync{}
	for _, s := range f.syncs {
		out = append(out, s)
	}
	return out, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testServerConfig() *config.Config {
	return &config.Config{SyncInterval: 5 * time.Minute, MinSyncInterval: 30 * time.Second}
}

func newTestServer(svc Service, opts Options) http.Handler {
	return New(":0", testServerConfig(), svc, opts, nil, testLogger()).routes()
}

func strPtr(s string) *string { return &s }

func sampleTransactions() []ledger.Transaction {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return []ledger.Transaction{
		{UniqueID: "a-outbound", TransactionID: "a", Source: strPtr("me"), Destination: strPtr("you"),
			Amount: decimal.RequireFromString("1"), TxType: ledger.Outbound, ActivityCategory: string(ledger.Outbound), Date: base},
		{UniqueID: "b-inbound", TransactionID: "b", Source: strPtr("you"), Destination: strPtr("me"),
			Amount: decimal.RequireFromString("0.25"), TxType: ledger.Inbound, ActivityCategory: string(ledger.Inbound), Date: base.Add(24 * time.Hour)},
		{UniqueID: "c-inbound", TransactionID: "c", Source: strPtr("you"), Destination: strPtr("me"),
			Amount: decimal.RequireFromString("3"), TxType: ledger.Inbound, ActivityCategory: string(ledger.Inbound), Date: base.Add(48 * time.Hour)},
	}
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHandleListCurrencies(t *testing.T) {
	h := newTestServer(newFakeService(), Options{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/currencies", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Currencies []currencyResponse `json:"currencies"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Currencies, 2)
	assert.Equal(t, "SOL", body.Currencies[0].Symbol)
	assert.Equal(t, "sol-provider", body.Currencies[0].Provider)
	assert.Equal(t, []string{"ghostnet", "mainnet"}, body.Currencies[1].Networks)
}

func TestHandleGetBalance(t *testing.T) {
	svc := newFakeService()
	svc.balance = &ledger.Balance{CurrencySymbol: "XTZ", Amount: decimal.RequireFromString("12.5"), AccountType: ledger.AccountTypeWallet}
	h := newTestServer(svc, Options{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/balances/xtz/tz1abc?network=ghostnet", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "12.5", body["amount"])
	assert.Equal(t, "XTZ", body["currency_symbol"])
	assert.Equal(t, "ghostnet", body["network"])
	assert.Equal(t, "tz1abc", body["address"])
	assert.Equal(t, "ghostnet", svc.gotNetwork)
	assert.Equal(t, ledger.NewWallet("tz1abc", "XTZ"), svc.gotWallet)
}

func TestHandleGetTransactions(t *testing.T) {
	svc := newFakeService()
	svc.txns = sampleTransactions()
	h := newTestServer(svc, Options{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/transactions/sol/Wallet1", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(3), body["count"])
	assert.Equal(t, "SOL", body["symbol"])
	assert.Equal(t, DefaultNetwork, svc.gotNetwork)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestHandleGetTransactions_Window(t *testing.T) {
	svc := newFakeService()
	svc.txns = sampleTransactions()
	h := newTestServer(svc, Options{})

	req := httptest.NewRequest(http.MethodGet,
		"/api/v1/transactions/sol/Wallet1?since=2024-03-02T00:00:00Z&until=2024-03-03T12:00:00Z", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Transactions []ledger.Transaction `json:"transactions"`
		Count        int                  `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 1, body.Count)
	assert.Equal(t, "b-inbound", body.Transactions[0].UniqueID)
	assert.True(t, decimal.RequireFromString("0.25").Equal(body.Transactions[0].Amount))
}

func TestHandleGetTransactions_BadRequests(t *testing.T) {
	h := newTestServer(newFakeService(), Options{})

	tests := []struct {
		name    string
		path    string
		wantErr string
	}{
		{name: "bad since", path: "/api/v1/transactions/sol/Wallet1?since=yesterday", wantErr: "invalid since"},
		{name: "inverted window", path: "/api/v1/transactions/sol/Wallet1?since=2024-03-02T00:00:00Z&until=2024-03-01T00:00:00Z", wantErr: "since must be before until"},
		{name: "bad address", path: "/api/v1/transactions/sol/wallet;drop", wantErr: "invalid characters"},
		{name: "bad symbol", path: "/api/v1/transactions/s-o-l/Wallet1", wantErr: "invalid symbol"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, decodeBody(t, rec)["error"], tt.wantErr)
		})
	}
}

func TestHandleGetTransactions_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "unknown network", err: &ledger.ConfigurationError{Provider: "tzkt", Network: "nope", Reason: "unknown network"}, wantStatus: http.StatusBadRequest},
		{name: "unsupported currency", err: &ledger.UnsupportedCurrencyError{Symbol: "DOGE"}, wantStatus: http.StatusNotFound},
		{name: "upstream failure", err: &ledger.ProviderError{Provider: "tzkt", StatusCode: 500}, wantStatus: http.StatusBadGateway},
		{name: "rate limited", err: &ledger.ProviderError{Provider: "tzkt", StatusCode: 429}, wantStatus: http.StatusServiceUnavailable},
		{name: "provider timeout", err: &ledger.ProviderError{Provider: "tzkt", Message: "request timed out", Err: context.DeadlineExceeded}, wantStatus: http.StatusGatewayTimeout},
		{name: "deadline", err: context.DeadlineExceeded, wantStatus: http.StatusGatewayTimeout},
		{name: "unexpected", err: errors.New("boom"), wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newFakeService()
			svc.err = tt.err
			h := newTestServer(svc, Options{})

			req := httptest.NewRequest(http.MethodGet, "/api/v1/transactions/xtz/tz1abc", nil)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.NotEmpty(t, decodeBody(t, rec)["error"])
			if tt.wantStatus == http.StatusServiceUnavailable {
				assert.Equal(t, "30", rec.Header().Get("Retry-After"))
			}
		})
	}
}

func TestHandleListStoredTransactions(t *testing.T) {
	store := newFakeStore()
	store.txns = sampleTransactions()[:2]
	store.total = 40
	h := newTestServer(newFakeService(), Options{Store: store})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/history/xtz/tz1abc?limit=2&offset=10", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(2), body["count"])
	assert.Equal(t, float64(40), body["total"])
	assert.Equal(t, db.ListTransactionsParams{Address: "tz1abc", Symbol: "XTZ", Limit: 2, Offset: 10}, store.gotParams)
}

func TestHandleListStoredTransactions_InvalidLimit(t *testing.T) {
	h := newTestServer(newFakeService(), Options{Store: newFakeStore()})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/history/xtz/tz1abc?limit=5000", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeBody(t, rec)["error"], "limit cannot exceed 1000")
}

func TestRoutes_OptionalBackendsDisabled(t *testing.T) {
	h := newTestServer(newFakeService(), Options{})

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/v1/history/xtz/tz1abc"},
		{http.MethodPost, "/api/v1/syncs"},
		{http.MethodGet, "/metrics"},
	} {
		req := httptest.NewRequest(tc.method, tc.path, nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code, tc.path)
	}
}

func postSync(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/syncs", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandleUpsertSync(t *testing.T) {
	store := newFakeStore()
	scheduler := temporal.NewMockScheduler()
	h := newTestServer(newFakeService(), Options{Store: store, Scheduler: scheduler})

	rec := postSync(t, h, `{"symbol":"sol","network":"devnet","address":"Wallet1","interval":"1m","run_now":true}`)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp syncResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "SOL", resp.Symbol)
	assert.Equal(t, "1m0s", resp.Interval)
	assert.NotEmpty(t, resp.WorkflowID)

	input := temporal.SyncWalletInput{Symbol: "SOL", Network: "devnet", Address: "Wallet1"}
	interval, ok := scheduler.ScheduleInterval(input)
	require.True(t, ok)
	assert.Equal(t, time.Minute, interval)
	assert.Equal(t, []temporal.SyncWalletInput{input}, scheduler.Started())
	assert.Contains(t, store.syncs, syncKey("SOL", "devnet", "Wallet1"))
}

func TestHandleUpsertSync_Defaults(t *testing.T) {
	scheduler := temporal.NewMockScheduler()
	h := newTestServer(newFakeService(), Options{Scheduler: scheduler})

	rec := postSync(t, h, `{"symbol":"XTZ","address":"tz1abc"}`)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	interval, ok := scheduler.ScheduleInterval(temporal.SyncWalletInput{Symbol: "XTZ", Network: DefaultNetwork, Address: "tz1abc"})
	require.True(t, ok)
	assert.Equal(t, 5*time.Minute, interval)
	assert.Empty(t, scheduler.Started())
}

func TestHandleUpsertSync_Invalid(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantErr    string
	}{
		{name: "malformed json", body: `{`, wantStatus: http.StatusBadRequest, wantErr: "must be valid JSON"},
		{name: "missing address", body: `{"symbol":"SOL"}`, wantStatus: http.StatusBadRequest, wantErr: "address is required"},
		{name: "unknown network", body: `{"symbol":"SOL","network":"moonnet","address":"Wallet1"}`, wantStatus: http.StatusBadRequest, wantErr: "unknown network"},
		{name: "unsupported currency", body: `{"symbol":"DOGE","address":"Wallet1"}`, wantStatus: http.StatusNotFound, wantErr: "DOGE"},
		{name: "interval too short", body: `{"symbol":"SOL","address":"Wallet1","interval":"1s"}`, wantStatus: http.StatusBadRequest, wantErr: "at least 30s"},
		{name: "interval unparseable", body: `{"symbol":"SOL","address":"Wallet1","interval":"soon"}`, wantStatus: http.StatusBadRequest, wantErr: "invalid interval"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scheduler := temporal.NewMockScheduler()
			h := newTestServer(newFakeService(), Options{Scheduler: scheduler})

			rec := postSync(t, h, tt.body)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, decodeBody(t, rec)["error"], tt.wantErr)
			assert.Zero(t, scheduler.ScheduleCount())
		})
	}
}

func TestHandleUpsertSync_SchedulerError(t *testing.T) {
	scheduler := temporal.NewMockScheduler()
	scheduler.SetUpsertError(errors.New("temporal unavailable"))
	h := newTestServer(newFakeService(), Options{Scheduler: scheduler})

	rec := postSync(t, h, `{"symbol":"SOL","address":"Wallet1"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHandleDeleteSync(t *testing.T) {
	store := newFakeStore()
	scheduler := temporal.NewMockScheduler()
	h := newTestServer(newFakeService(), Options{Store: store, Scheduler: scheduler})

	require.Equal(t, http.StatusCreated, postSync(t, h, `{"symbol":"SOL","address":"Wallet1"}`).Code)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/syncs/sol/mainnet/Wallet1", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Zero(t, scheduler.ScheduleCount())
	assert.Empty(t, store.syncs)

	// Deleting again reports the missing schedule.
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/syncs/sol/mainnet/Wallet1", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleListSyncs(t *testing.T) {
	store := newFakeStore()
	last := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store.syncs["k"] = &db.Sync{Symbol: "SOL", Network: "mainnet", Address: "Wallet1", Interval: time.Minute, LastSyncedAt: &last}
	h := newTestServer(newFakeService(), Options{Store: store})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/syncs", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Syncs []storedSyncResponse `json:"syncs"`
		Count int                  `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 1, body.Count)
	assert.Equal(t, "1m0s", body.Syncs[0].Interval)
	require.NotNil(t, body.Syncs[0].LastSyncedAt)
	assert.True(t, last.Equal(*body.Syncs[0].LastSyncedAt))
}

func TestCORSPreflight(t *testing.T) {
	h := newTestServer(newFakeService(), Options{})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/currencies", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "GET, POST, DELETE, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
}

func TestFilterWindow(t *testing.T) {
	txns := sampleTransactions()
	since := txns[1].Date

	got := filterWindow(txns, since, time.Time{})

	require.Len(t, got, 2)
	assert.Equal(t, "b-inbound", got[0].UniqueID)
	assert.Len(t, filterWindow(txns, time.Time{}, time.Time{}), 3)
}
