package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/brojonat/chainfeed/service/db"
	"github.com/brojonat/chainfeed/service/ledger"
	"github.com/brojonat/chainfeed/service/temporal"
)

// DefaultNetwork is used when a request names no network.
const DefaultNetwork = "mainnet"

// Service is the transaction and balance facade the handlers serve.
// *aggregate.Facade implements it.
type Service interface {
	Currencies() []string
	Networks(symbol string) ([]string, error)
	Provider(symbol string) (string, error)
	GetTransactionData(ctx context.Context, symbol, network string, w ledger.Wallet) ([]ledger.Transaction, error)
	GetBalance(ctx context.Context, symbol, network string, w ledger.Wallet) (*ledger.Balance, error)
}

// Store is the persistence the handlers use. *db.Store implements it.
type Store interface {
	ListTransactions(ctx context.Context, params db.ListTransactionsParams) ([]ledger.Transaction, error)
	CountTransactions(ctx context.Context, address, symbol string) (int64, error)
	UpsertSync(ctx context.Context, symbol, network, address string, interval time.Duration) (*db.Sync, error)
	DeleteSync(ctx context.Context, symbol, network, address string) error
	ListSyncs(ctx context.Context) ([]*db.Sync, error)
}

type currencyResponse struct {
	Symbol   string   `json:"symbol"`
	Provider string   `json:"provider"`
	Networks []string `json:"networks"`
}

// handleListCurrencies returns a handler that lists supported currencies.
// GET /api/v1/currencies
func handleListCurrencies(svc Service, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		currencies := []currencyResponse{}
		for _, symbol := range svc.Currencies() {
			networks, err := svc.Networks(symbol)
			if err != nil {
				logger.ErrorContext(r.Context(), "failed to list networks", "symbol", symbol, "error", err)
				continue
			}
			provider, _ := svc.Provider(symbol)
			currencies = append(currencies, currencyResponse{Symbol: symbol, Provider: provider, Networks: networks})
		}
		writeJSON(w, map[string]interface{}{
			"currencies": currencies,
		}, http.StatusOK)
	})
}

type balanceResponse struct {
	Address string `json:"address"`
	Network string `json:"network"`
	*ledger.Balance
}

// handleGetBalance returns a handler that fetches a wallet's current balance.
// GET /api/v1/balances/{symbol}/{address}?network={network}
func handleGetBalance(svc Service, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		symbol, address, network, ok := walletParams(w, r, logger)
		if !ok {
			return
		}

		balance, err := svc.GetBalance(r.Context(), symbol, network, ledger.NewWallet(address, symbol))
		if err != nil {
			writeServiceError(r.Context(), w, logger, "failed to get balance", err)
			return
		}

		writeJSON(w, balanceResponse{Address: address, Network: network, Balance: balance}, http.StatusOK)
	})
}

// handleGetTransactions returns a handler that fetches and normalizes a
// wallet's history, optionally restricted to [since, until).
// GET /api/v1/transactions/{symbol}/{address}?network={network}&since={rfc3339}&until={rfc3339}
func handleGetTransactions(svc Service, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		symbol, address, network, ok := walletParams(w, r, logger)
		if !ok {
			return
		}
		since, until, err := parseWindow(r.URL.Query().Get("since"), r.URL.Query().Get("until"))
		if err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		txns, err := svc.GetTransactionData(r.Context(), symbol, network, ledger.NewWallet(address, symbol))
		if err != nil {
			writeServiceError(r.Context(), w, logger, "failed to get transactions", err)
			return
		}
		txns = filterWindow(txns, since, until)

		logger.DebugContext(r.Context(), "transactions fetched",
			"symbol", symbol,
			"network", network,
			"address", address,
			"count", len(txns),
		)

		writeJSON(w, map[string]interface{}{
			"symbol":       strings.ToUpper(symbol),
			"network":      network,
			"address":      address,
			"transactions": txns,
			"count":        len(txns),
		}, http.StatusOK)
	})
}

// handleListStoredTransactions returns a handler that pages through
// transactions persisted by sync runs.
// GET /api/v1/history/{symbol}/{address}?limit=N&offset=N
func handleListStoredTransactions(store Store, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		symbol := strings.ToUpper(r.PathValue("symbol"))
		address := r.PathValue("address")
		if err := validateSymbol(symbol); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := validateAddress(address); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		limit, err := queryInt(r, "limit", 100, 1, 1000)
		if err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		offset, err := queryInt(r, "offset", 0, 0, -1)
		if err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		txns, err := store.ListTransactions(r.Context(), db.ListTransactionsParams{
			Address: address,
			Symbol:  symbol,
			Limit:   limit,
			Offset:  offset,
		})
		if err != nil {
			logger.ErrorContext(r.Context(), "failed to list transactions", "address", address, "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}
		total, err := store.CountTransactions(r.Context(), address, symbol)
		if err != nil {
			logger.ErrorContext(r.Context(), "failed to count transactions", "address", address, "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, map[string]interface{}{
			"transactions": txns,
			"count":        len(txns),
			"total":        total,
			"limit":        limit,
			"offset":       offset,
		}, http.StatusOK)
	})
}

type syncRequest struct {
	Symbol   string `json:"symbol"`
	Network  string `json:"network"`
	Address  string `json:"address"`
	Interval string `json:"interval"`
	RunNow   bool   `json:"run_now"`
}

type syncResponse struct {
	Symbol     string `json:"symbol"`
	Network    string `json:"network"`
	Address    string `json:"address"`
	Interval   string `json:"interval"`
	WorkflowID string `json:"workflow_id,omitempty"`
}

// handleUpsertSync returns a handler that schedules periodic syncs of a wallet.
// POST /api/v1/syncs
func handleUpsertSync(svc Service, store Store, scheduler temporal.Scheduler, defaultInterval, minInterval time.Duration, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

		var req syncRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.DebugContext(r.Context(), "failed to decode sync request", "error", err)
			if strings.Contains(err.Error(), "http: request body too large") {
				writeError(w, "request body too large: maximum size is 1MB", http.StatusBadRequest)
				return
			}
			writeError(w, "invalid request body: must be valid JSON", http.StatusBadRequest)
			return
		}
		req.Symbol = strings.ToUpper(req.Symbol)
		if req.Network == "" {
			req.Network = DefaultNetwork
		}

		if err := validateSymbol(req.Symbol); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := validateAddress(req.Address); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := validateNetwork(svc, req.Symbol, req.Network); err != nil {
			writeServiceError(r.Context(), w, logger, "invalid sync target", err)
			return
		}

		interval := defaultInterval
		if req.Interval != "" {
			parsed, err := time.ParseDuration(req.Interval)
			if err != nil {
				writeError(w, "invalid interval: must be a valid duration (e.g. '30s', '5m')", http.StatusBadRequest)
				return
			}
			interval = parsed
		}
		if err := validateSyncInterval(interval, minInterval); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		input := temporal.SyncWalletInput{Symbol: req.Symbol, Network: req.Network, Address: req.Address}
		if store != nil {
			if _, err := store.UpsertSync(r.Context(), req.Symbol, req.Network, req.Address, interval); err != nil {
				logger.ErrorContext(r.Context(), "failed to register sync", "address", req.Address, "error", err)
				writeError(w, "failed to register sync", http.StatusInternalServerError)
				return
			}
		}
		if err := scheduler.UpsertSyncSchedule(r.Context(), input, interval); err != nil {
			logger.ErrorContext(r.Context(), "failed to upsert schedule", "address", req.Address, "error", err)
			writeError(w, "failed to create schedule for wallet", http.StatusInternalServerError)
			return
		}

		resp := syncResponse{
			Symbol:   req.Symbol,
			Network:  req.Network,
			Address:  req.Address,
			Interval: interval.String(),
		}
		if req.RunNow {
			id, err := scheduler.StartSync(r.Context(), input)
			if err != nil {
				logger.ErrorContext(r.Context(), "failed to start sync", "address", req.Address, "error", err)
				writeError(w, "failed to start sync", http.StatusInternalServerError)
				return
			}
			resp.WorkflowID = id
		}

		logger.InfoContext(r.Context(), "wallet sync scheduled",
			"symbol", req.Symbol,
			"network", req.Network,
			"address", req.Address,
			"interval", interval,
		)
		writeJSON(w, resp, http.StatusCreated)
	})
}

// handleDeleteSync returns a handler that stops syncing a wallet.
// DELETE /api/v1/syncs/{symbol}/{network}/{address}
func handleDeleteSync(store Store, scheduler temporal.Scheduler, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		input := temporal.SyncWalletInput{
			Symbol:  strings.ToUpper(r.PathValue("symbol")),
			Network: r.PathValue("network"),
			Address: r.PathValue("address"),
		}
		if err := validateSymbol(input.Symbol); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := validateAddress(input.Address); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		err := scheduler.DeleteSyncSchedule(r.Context(), input)
		if errors.Is(err, temporal.ErrScheduleNotFound) {
			writeError(w, "sync not found", http.StatusNotFound)
			return
		}
		if err != nil {
			logger.ErrorContext(r.Context(), "failed to delete schedule", "address", input.Address, "error", err)
			writeError(w, "failed to delete schedule", http.StatusInternalServerError)
			return
		}
		if store != nil {
			if err := store.DeleteSync(r.Context(), input.Symbol, input.Network, input.Address); err != nil && !errors.Is(err, db.ErrNotFound) {
				logger.ErrorContext(r.Context(), "failed to delete sync registration", "address", input.Address, "error", err)
			}
		}

		logger.InfoContext(r.Context(), "wallet sync deleted", "symbol", input.Symbol, "network", input.Network, "address", input.Address)
		w.WriteHeader(http.StatusNoContent)
	})
}

type storedSyncResponse struct {
	Symbol       string     `json:"symbol"`
	Network      string     `json:"network"`
	Address      string     `json:"address"`
	Interval     string     `json:"interval"`
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// handleListSyncs returns a handler that lists registered syncs.
// GET /api/v1/syncs
func handleListSyncs(store Store, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		syncs, err := store.ListSyncs(r.Context())
		if err != nil {
			logger.ErrorContext(r.Context(), "failed to list syncs", "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}

		resp := make([]storedSyncResponse, len(syncs))
		for i, s := range syncs {
			resp[i] = storedSyncResponse{
				Symbol:       s.Symbol,
				Network:      s.Network,
				Address:      s.Address,
				Interval:     s.Interval.String(),
				LastSyncedAt: s.LastSyncedAt,
				CreatedAt:    s.CreatedAt,
				UpdatedAt:    s.UpdatedAt,
			}
		}
		writeJSON(w, map[string]interface{}{
			"syncs": resp,
			"count": len(resp),
		}, http.StatusOK)
	})
}

// walletParams reads and validates the symbol, address and network of a
// wallet route, writing a 400 when they are malformed.
func walletParams(w http.ResponseWriter, r *http.Request, logger *slog.Logger) (symbol, address, network string, ok bool) {
	symbol = r.PathValue("symbol")
	address = r.PathValue("address")
	network = r.URL.Query().Get("network")
	if network == "" {
		network = DefaultNetwork
	}

	if err := validateSymbol(symbol); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return "", "", "", false
	}
	if err := validateAddress(address); err != nil {
		logger.DebugContext(r.Context(), "invalid address", "address", address, "error", err)
		writeError(w, err.Error(), http.StatusBadRequest)
		return "", "", "", false
	}
	return symbol, address, network, true
}

// validateNetwork checks that symbol is supported on network.
func validateNetwork(svc Service, symbol, network string) error {
	networks, err := svc.Networks(symbol)
	if err != nil {
		return err
	}
	for _, n := range networks {
		if n == network {
			return nil
		}
	}
	provider, _ := svc.Provider(symbol)
	return &ledger.ConfigurationError{Provider: provider, Network: network, Reason: "unknown network"}
}

// filterWindow keeps transactions dated in [since, until). Zero bounds are open.
func filterWindow(txns []ledger.Transaction, since, until time.Time) []ledger.Transaction {
	if since.IsZero() && until.IsZero() {
		return txns
	}
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

// queryInt parses an optional integer query parameter. max < 0 means unbounded.
func queryInt(r *http.Request, name string, def, min, max int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errorf("invalid %s parameter: must be an integer", name)
	}
	if v < min {
		return 0, errorf("%s must be at least %d", name, min)
	}
	if max >= 0 && v > max {
		return 0, errorf("%s cannot exceed %d", name, max)
	}
	return v, nil
}

// statusFor maps a pipeline error to an HTTP status.
func statusFor(err error) int {
	var perr *ledger.ProviderError
	switch {
	case errors.Is(err, ledger.ErrConfiguration):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrUnsupportedCurrency):
		return http.StatusNotFound
	case errors.As(err, &perr):
		switch {
		case perr.Timeout():
			return http.StatusGatewayTimeout
		case perr.StatusCode == http.StatusTooManyRequests:
			return http.StatusServiceUnavailable
		}
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError logs err and writes it with the status statusFor picks.
func writeServiceError(ctx context.Context, w http.ResponseWriter, logger *slog.Logger, msg string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(ctx, msg, "error", err, "status", status)
	} else {
		logger.DebugContext(ctx, msg, "error", err, "status", status)
	}
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "30")
	}
	writeError(w, err.Error(), status)
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}
