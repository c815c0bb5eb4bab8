package esplora

import (
	"context"
	"net/url"

	"github.com/brojonat/chainfeed/service/endpoint"
	"github.com/brojonat/chainfeed/service/fetch"
	"github.com/brojonat/chainfeed/service/ledger"
	"github.com/shopspring/decimal"
)

// ProviderName identifies this adapter in errors, logs and metrics.
const ProviderName = "esplora"

// Networks returns the public Esplora endpoints.
func Networks() *endpoint.Registry {
	return endpoint.NewRegistry(ProviderName,
		endpoint.Endpoint{Network: "mainnet", BaseURL: "https://blockstream.info/api"},
		endpoint.Endpoint{Network: "testnet", BaseURL: "https://blockstream.info/testnet/api"},
		endpoint.Endpoint{Network: "signet", BaseURL: "https://mempool.space/signet/api"},
	)
}

// Adapter fetches BTC balances and confirmed transactions from Esplora.
type Adapter struct {
	registry *endpoint.Registry
	req      *fetch.Requester
	paging   fetch.Paging
}

// New creates an Adapter. Esplora fixes the page size, so only
// paging.MaxPages applies.
func New(registry *endpoint.Registry, req *fetch.Requester, paging fetch.Paging) *Adapter {
	return &Adapter{
		registry: registry,
		req:      req,
		paging:   paging.WithDefaults(),
	}
}

func (a *Adapter) Name() string                  { return ProviderName }
func (a *Adapter) Endpoints() *endpoint.Registry { return a.registry }

// Balance returns the confirmed balance: funded minus spent outputs.
func (a *Adapter) Balance(ctx context.Context, ep endpoint.Endpoint, w ledger.Wallet) (*ledger.Balance, error) {
	var info addressInfo
	if err := a.req.GetJSON(ctx, ep, w.Address, "/address/"+url.PathEscape(w.Address), nil, &info); err != nil {
		return nil, err
	}
	sats := info.ChainStats.FundedTxoSum - info.ChainStats.SpentTxoSum
	return &ledger.Balance{
		CurrencySymbol: w.CurrencySymbol,
		Amount:         decimal.NewFromInt(sats).Shift(-Decimals),
		AccountType:    ledger.AccountTypeWallet,
	}, nil
}

// Transactions walks /txs/chain newest first, passing the last seen txid
// to fetch the next page.
func (a *Adapter) Transactions(ctx context.Context, ep endpoint.Endpoint, w ledger.Wallet) (*TxPage, error) {
	out := &TxPage{}
	base := "/address/" + url.PathEscape(w.Address) + "/txs/chain"

	pages, err := fetch.Paginate(ctx, a.paging.MaxPages, "", func(ctx context.Context, lastSeen string) (string, bool, error) {
		path := base
		if lastSeen != "" {
			path += "/" + url.PathEscape(lastSeen)
		}
		var txs []Tx
		if err := a.req.GetJSON(ctx, ep, w.Address, path, nil, &txs); err != nil {
			return lastSeen, false, err
		}
		out.Transactions = append(out.Transactions, txs...)
		if len(txs) < PageSize {
			return lastSeen, false, nil
		}
		return txs[len(txs)-1].TxID, true, nil
	})
	if err != nil {
		return nil, err
	}

	if m := a.req.Metrics(); m != nil {
		m.RecordPages(ProviderName, pages)
	}
	a.req.Logger().DebugContext(ctx, "fetched esplora transactions",
		"network", ep.Network,
		"address", w.Address,
		"transactions", len(out.Transactions),
		"pages", pages,
	)
	return out, nil
}
