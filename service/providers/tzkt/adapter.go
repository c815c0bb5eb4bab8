package tzkt

import (
	"context"
	"net/url"
	"strconv"

	"github.com/brojonat/chainfeed/service/endpoint"
	"github.com/brojonat/chainfeed/service/fetch"
	"github.com/brojonat/chainfeed/service/ledger"
	"github.com/shopspring/decimal"
)

// ProviderName identifies this adapter in errors, logs and metrics.
const ProviderName = "tzkt"

const maxLimit = 10000

// Networks returns the public TzKT API endpoints.
func Networks() *endpoint.Registry {
	return endpoint.NewRegistry(ProviderName,
		endpoint.Endpoint{Network: "mainnet", BaseURL: "https://api.tzkt.io"},
		endpoint.Endpoint{Network: "ghostnet", BaseURL: "https://api.ghostnet.tzkt.io"},
	)
}

// Adapter fetches XTZ balances and transaction operations from TzKT.
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

// Balance returns the wallet's spendable balance.
func (a *Adapter) Balance(ctx context.Context, ep endpoint.Endpoint, w ledger.Wallet) (*ledger.Balance, error) {
	var mutez int64
	path := "/v1/accounts/" + url.PathEscape(w.Address) + "/balance"
	if err := a.req.GetJSON(ctx, ep, w.Address, path, nil, &mutez); err != nil {
		return nil, err
	}
	return &ledger.Balance{
		CurrencySymbol: w.CurrencySymbol,
		Amount:         decimal.NewFromInt(mutez).Shift(-Decimals),
		AccountType:    ledger.AccountTypeWallet,
	}, nil
}

// Transactions walks the account's transaction operations in ascending id
// order using the lastId cursor.
func (a *Adapter) Transactions(ctx context.Context, ep endpoint.Endpoint, w ledger.Wallet) (*Operations, error) {
	ops := &Operations{}
	limit := min(a.paging.PageSize, maxLimit)
	path := "/v1/accounts/" + url.PathEscape(w.Address) + "/operations"

	pages, err := fetch.Paginate(ctx, a.paging.MaxPages, int64(0), func(ctx context.Context, lastID int64) (int64, bool, error) {
		q := url.Values{}
		q.Set("type", "transaction")
		q.Set("sort", "0")
		q.Set("limit", strconv.Itoa(limit))
		if lastID > 0 {
			q.Set("lastId", strconv.FormatInt(lastID, 10))
		}

		var page []Operation
		if err := a.req.GetJSON(ctx, ep, w.Address, path, q, &page); err != nil {
			return lastID, false, err
		}
		ops.Items = append(ops.Items, page...)
		if len(page) < limit {
			return lastID, false, nil
		}
		return page[len(page)-1].ID, true, nil
	})
	if err != nil {
		return nil, err
	}

	if m := a.req.Metrics(); m != nil {
		m.RecordPages(ProviderName, pages)
	}
	a.req.Logger().DebugContext(ctx, "fetched tzkt operations",
		"network", ep.Network,
		"address", w.Address,
		"operations", len(ops.Items),
		"pages", pages,
	)
	return ops, nil
}
