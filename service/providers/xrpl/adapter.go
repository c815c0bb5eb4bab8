package xrpl

import (
	"context"
	"net/http"

	"github.com/brojonat/chainfeed/service/endpoint"
	"github.com/brojonat/chainfeed/service/fetch"
	"github.com/brojonat/chainfeed/service/ledger"
	"github.com/shopspring/decimal"
)

// ProviderName identifies this adapter in errors, logs and metrics.
const ProviderName = "xrpl"

const (
	statusSuccess = "success"
	// errAccountNotFound is returned for addresses that were never funded.
	errAccountNotFound = "actNotFound"
	maxLimit           = 400
)

// Networks returns the public rippled JSON-RPC endpoints.
func Networks() *endpoint.Registry {
	return endpoint.NewRegistry(ProviderName,
		endpoint.Endpoint{Network: "mainnet", BaseURL: "https://s1.ripple.com:51234"},
		endpoint.Endpoint{Network: "testnet", BaseURL: "https://s.altnet.rippletest.net:51234"},
		endpoint.Endpoint{Network: "devnet", BaseURL: "https://s.devnet.rippletest.net:51234"},
	)
}

// Adapter fetches XRP balances and account transactions from rippled.
type Adapter struct {
	registry *endpoint.Registry
	req      *fetch.Requester
	paging   fetch.Paging
}

// New creates an Adapter.
func New(registry *endpoint.Registry, req *fetch.Requester, paging fetch.Paging) *Adapter {
	return &Adapter{
		registry: registry,
		req:      req,
		paging:   paging.WithDefaults(),
	}
}

func (a *Adapter) Name() string                  { return ProviderName }
func (a *Adapter) Endpoints() *endpoint.Registry { return a.registry }

// Balance returns the wallet's balance in the last validated ledger. An
// account that does not exist yet holds zero.
func (a *Adapter) Balance(ctx context.Context, ep endpoint.Endpoint, w ledger.Wallet) (*ledger.Balance, error) {
	body := rpcRequest{
		Method: "account_info",
		Params: []any{accountInfoParams{Account: w.Address, LedgerIndex: "validated", APIVersion: 1}},
	}
	var resp rpcResponse[accountInfoResult]
	if err := a.req.PostJSON(ctx, ep, w.Address, "/", body, &resp); err != nil {
		return nil, err
	}

	amount := decimal.Zero
	switch {
	case resp.Result.Error == errAccountNotFound:
	case resp.Result.Status != statusSuccess:
		return nil, a.rpcError(ep, w.Address, resp.Result.rpcStatus)
	default:
		drops, err := decimal.NewFromString(resp.Result.AccountData.Balance)
		if err != nil {
			return nil, &ledger.ProviderError{
				Provider:   ProviderName,
				Network:    ep.Network,
				Address:    w.Address,
				StatusCode: http.StatusOK,
				Message:    "malformed response",
				Err:        err,
			}
		}
		amount = drops.Shift(-Decimals)
	}

	return &ledger.Balance{
		CurrencySymbol: w.CurrencySymbol,
		Amount:         amount,
		AccountType:    ledger.AccountTypeWallet,
	}, nil
}

// Transactions walks account_tx forward across all validated ledgers,
// following the opaque marker until it is absent.
func (a *Adapter) Transactions(ctx context.Context, ep endpoint.Endpoint, w ledger.Wallet) (*AccountTx, error) {
	out := &AccountTx{}
	limit := min(a.paging.PageSize, maxLimit)

	pages, err := fetch.Paginate(ctx, a.paging.MaxPages, []byte(nil), func(ctx context.Context, marker []byte) ([]byte, bool, error) {
		body := rpcRequest{
			Method: "account_tx",
			Params: []any{accountTxParams{
				Account:        w.Address,
				LedgerIndexMin: -1,
				LedgerIndexMax: -1,
				Limit:          limit,
				Forward:        true,
				Marker:         marker,
				APIVersion:     1,
			}},
		}
		var resp rpcResponse[accountTxResult]
		if err := a.req.PostJSON(ctx, ep, w.Address, "/", body, &resp); err != nil {
			return marker, false, err
		}

		switch {
		case resp.Result.Error == errAccountNotFound:
			return marker, false, nil
		case resp.Result.Status != statusSuccess:
			return marker, false, a.rpcError(ep, w.Address, resp.Result.rpcStatus)
		}

		out.Transactions = append(out.Transactions, resp.Result.Transactions...)
		if len(resp.Result.Marker) == 0 || string(resp.Result.Marker) == "null" {
			return marker, false, nil
		}
		return resp.Result.Marker, true, nil
	})
	if err != nil {
		return nil, err
	}

	if m := a.req.Metrics(); m != nil {
		m.RecordPages(ProviderName, pages)
	}
	a.req.Logger().DebugContext(ctx, "fetched xrpl account_tx",
		"network", ep.Network,
		"address", w.Address,
		"transactions", len(out.Transactions),
		"pages", pages,
	)
	return out, nil
}

// rpcError converts an error result carried in a 200 response.
func (a *Adapter) rpcError(ep endpoint.Endpoint, address string, st rpcStatus) error {
	status := http.StatusBadGateway
	switch st.Error {
	case "slowDown":
		status = http.StatusTooManyRequests
	case "actMalformed", "invalidParams":
		status = http.StatusBadRequest
	}
	msg := st.Error
	if st.ErrorMessage != "" {
		msg += ": " + st.ErrorMessage
	}
	return &ledger.ProviderError{
		Provider:   ProviderName,
		Network:    ep.Network,
		Address:    address,
		StatusCode: status,
		Message:    msg,
	}
}
