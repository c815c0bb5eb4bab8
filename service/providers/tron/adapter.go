package tron

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/brojonat/chainfeed/service/endpoint"
	"github.com/brojonat/chainfeed/service/fetch"
	"github.com/brojonat/chainfeed/service/ledger"
	"github.com/shopspring/decimal"
)

// ProviderName identifies this adapter in errors, logs and metrics.
const ProviderName = "tron"

const maxLimit = 200

// Networks returns the TronGrid endpoints. An API key, when configured, is
// sent in the TRON-PRO-API-KEY header and raises the rate limit.
func Networks() *endpoint.Registry {
	return endpoint.NewRegistry(ProviderName,
		endpoint.Endpoint{Network: "mainnet", BaseURL: "https://api.trongrid.io", Auth: endpoint.AuthHeaderKey, KeyName: "TRON-PRO-API-KEY"},
		endpoint.Endpoint{Network: "shasta", BaseURL: "https://api.shasta.trongrid.io", Auth: endpoint.AuthHeaderKey, KeyName: "TRON-PRO-API-KEY"},
		endpoint.Endpoint{Network: "nile", BaseURL: "https://nile.trongrid.io", Auth: endpoint.AuthHeaderKey, KeyName: "TRON-PRO-API-KEY"},
	)
}

// Adapter fetches TRX balances and transactions from TronGrid.
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

// Balance returns the account's TRX balance. An inactive account holds zero.
func (a *Adapter) Balance(ctx context.Context, ep endpoint.Endpoint, w ledger.Wallet) (*ledger.Balance, error) {
	var env envelope[account]
	if err := a.req.GetJSON(ctx, ep, w.Address, "/v1/accounts/"+url.PathEscape(w.Address), nil, &env); err != nil {
		return nil, err
	}
	if !env.Success {
		return nil, a.envelopeError(ep, w.Address, env.Error)
	}

	sun := int64(0)
	if len(env.Data) > 0 {
		sun = env.Data[0].Balance
	}
	return &ledger.Balance{
		CurrencySymbol: w.CurrencySymbol,
		Amount:         decimal.NewFromInt(sun).Shift(-Decimals),
		AccountType:    ledger.AccountTypeWallet,
	}, nil
}

// Transactions walks confirmed transactions oldest first using the
// fingerprint cursor from each page's meta.
func (a *Adapter) Transactions(ctx context.Context, ep endpoint.Endpoint, w ledger.Wallet) (*Transfers, error) {
	out := &Transfers{}
	limit := min(a.paging.PageSize, maxLimit)
	path := "/v1/accounts/" + url.PathEscape(w.Address) + "/transactions"

	pages, err := fetch.Paginate(ctx, a.paging.MaxPages, "", func(ctx context.Context, fingerprint string) (string, bool, error) {
		q := url.Values{}
		q.Set("only_confirmed", "true")
		q.Set("order_by", "block_timestamp,asc")
		q.Set("limit", strconv.Itoa(limit))
		if fingerprint != "" {
			q.Set("fingerprint", fingerprint)
		}

		var env envelope[Transaction]
		if err := a.req.GetJSON(ctx, ep, w.Address, path, q, &env); err != nil {
			return fingerprint, false, err
		}
		if !env.Success {
			return fingerprint, false, a.envelopeError(ep, w.Address, env.Error)
		}
		out.Transactions = append(out.Transactions, env.Data...)
		if env.Meta.Fingerprint == "" {
			return fingerprint, false, nil
		}
		return env.Meta.Fingerprint, true, nil
	})
	if err != nil {
		return nil, err
	}

	if m := a.req.Metrics(); m != nil {
		m.RecordPages(ProviderName, pages)
	}
	a.req.Logger().DebugContext(ctx, "fetched tron transactions",
		"network", ep.Network,
		"address", w.Address,
		"transactions", len(out.Transactions),
		"pages", pages,
	)
	return out, nil
}

func (a *Adapter) envelopeError(ep endpoint.Endpoint, address, msg string) error {
	if msg == "" {
		msg = "request was not successful"
	}
	return &ledger.ProviderError{
		Provider:   ProviderName,
		Network:    ep.Network,
		Address:    address,
		StatusCode: http.StatusBadGateway,
		Message:    msg,
	}
}
