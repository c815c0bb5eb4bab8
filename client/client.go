package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/brojonat/chainfeed/service/ledger"
)

// Currency is a supported currency and the networks it can be queried on.
type Currency struct {
	Symbol   string   `json:"symbol"`
	Provider string   `json:"provider"`
	Networks []string `json:"networks"`
}

// Balance is a wallet balance as reported by the server.
type Balance struct {
	Address string `json:"address"`
	Network string `json:"network"`
	ledger.Balance
}

// TransactionsResult is the normalized history of one wallet.
type TransactionsResult struct {
	Symbol       string               `json:"symbol"`
	Network      string               `json:"network"`
	Address      string               `json:"address"`
	Transactions []ledger.Transaction `json:"transactions"`
	Count        int                  `json:"count"`
}

// TransactionsOptions narrows a transactions request. Zero values are omitted.
type TransactionsOptions struct {
	Network string
	Since   time.Time
	Until   time.Time
}

// Sync is a scheduled wallet sync.
type Sync struct {
	Symbol       string        `json:"symbol"`
	Network      string        `json:"network"`
	Address      string        `json:"address"`
	Interval     time.Duration `json:"interval"`
	LastSyncedAt *time.Time    `json:"last_synced_at,omitempty"`
	WorkflowID   string        `json:"workflow_id,omitempty"`
}

// APIError is a non-success response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("request failed with status %d: %s", e.StatusCode, e.Message)
}

// Client is the HTTP client for the chainfeed service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new chainfeed client.
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 2 * time.Minute}
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}
}

// Currencies lists the currencies the server supports.
func (c *Client) Currencies(ctx context.Context) ([]Currency, error) {
	var response struct {
		Currencies []Currency `json:"currencies"`
	}
	if err := c.get(ctx, c.baseURL+"/api/v1/currencies", &response); err != nil {
		return nil, err
	}
	return response.Currencies, nil
}

// Balance fetches the current balance of a wallet.
func (c *Client) Balance(ctx context.Context, symbol, network, address string) (*Balance, error) {
	u := fmt.Sprintf("%s/api/v1/balances/%s/%s", c.baseURL, url.PathEscape(symbol), url.PathEscape(address))
	if network != "" {
		u += "?" + url.Values{"network": {network}}.Encode()
	}

	var balance Balance
	if err := c.get(ctx, u, &balance); err != nil {
		return nil, err
	}
	c.logger.Debug("balance fetched", "symbol", symbol, "address", address, "amount", balance.Amount)
	return &balance, nil
}

// Transactions fetches the normalized history of a wallet.
func (c *Client) Transactions(ctx context.Context, symbol, address string, opts TransactionsOptions) (*TransactionsResult, error) {
	u := fmt.Sprintf("%s/api/v1/transactions/%s/%s", c.baseURL, url.PathEscape(symbol), url.PathEscape(address))
	q := url.Values{}
	if opts.Network != "" {
		q.Set("network", opts.Network)
	}
	if !opts.Since.IsZero() {
		q.Set("since", opts.Since.UTC().Format(time.RFC3339))
	}
	if !opts.Until.IsZero() {
		q.Set("until", opts.Until.UTC().Format(time.RFC3339))
	}
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	var result TransactionsResult
	if err := c.get(ctx, u, &result); err != nil {
		return nil, err
	}
	c.logger.Debug("transactions fetched", "symbol", symbol, "address", address, "count", result.Count)
	return &result, nil
}

// ScheduleSync asks the server to sync a wallet every interval. A zero
// interval uses the server default. runNow also starts a sync immediately.
func (c *Client) ScheduleSync(ctx context.Context, symbol, network, address string, interval time.Duration, runNow bool) (*Sync, error) {
	reqBody := map[string]interface{}{
		"symbol":  symbol,
		"network": network,
		"address": address,
		"run_now": runNow,
	}
	if interval > 0 {
		reqBody["interval"] = interval.String()
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/v1/syncs", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return nil, c.parseErrorResponse(resp)
	}

	var apiSync syncResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiSync); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	c.logger.Debug("sync scheduled", "symbol", symbol, "address", address, "interval", apiSync.Interval)
	return responseToSync(&apiSync)
}

// DeleteSync stops syncing a wallet.
func (c *Client) DeleteSync(ctx context.Context, symbol, network, address string) error {
	u := fmt.Sprintf("%s/api/v1/syncs/%s/%s/%s", c.baseURL,
		url.PathEscape(symbol), url.PathEscape(network), url.PathEscape(address))
	req, err := http.NewRequestWithContext(ctx, "DELETE", u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		return c.parseErrorResponse(resp)
	}

	c.logger.Debug("sync deleted", "symbol", symbol, "address", address)
	return nil
}

// Syncs lists the registered wallet syncs.
func (c *Client) Syncs(ctx context.Context) ([]*Sync, error) {
	var response struct {
		Syncs []syncResponse `json:"syncs"`
	}
	if err := c.get(ctx, c.baseURL+"/api/v1/syncs", &response); err != nil {
		return nil, err
	}

	syncs := make([]*Sync, len(response.Syncs))
	for i, apiSync := range response.Syncs {
		sync, err := responseToSync(&apiSync)
		if err != nil {
			return nil, fmt.Errorf("failed to parse sync %s: %w", apiSync.Address, err)
		}
		syncs[i] = sync
	}
	return syncs, nil
}

// get issues a GET and decodes a 200 response into out.
func (c *Client) get(ctx context.Context, u string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.parseErrorResponse(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// syncResponse is the API response format for a sync.
// The server returns interval as a string (e.g. "5m0s").
type syncResponse struct {
	Symbol       string     `json:"symbol"`
	Network      string     `json:"network"`
	Address      string     `json:"address"`
	Interval     string     `json:"interval"`
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty"`
	WorkflowID   string     `json:"workflow_id,omitempty"`
}

func responseToSync(resp *syncResponse) (*Sync, error) {
	interval, err := time.ParseDuration(resp.Interval)
	if err != nil {
		return nil, fmt.Errorf("invalid interval %q: %w", resp.Interval, err)
	}

	return &Sync{
		Symbol:       resp.Symbol,
		Network:      resp.Network,
		Address:      resp.Address,
		Interval:     interval,
		LastSyncedAt: resp.LastSyncedAt,
		WorkflowID:   resp.WorkflowID,
	}, nil
}

// parseErrorResponse attempts to parse an error response from the server.
func (c *Client) parseErrorResponse(resp *http.Response) error {
	var errResp struct {
		Error string `json:"error"`
	}

	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == "" {
		return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}

	return &APIError{StatusCode: resp.StatusCode, Message: errResp.Error}
}
