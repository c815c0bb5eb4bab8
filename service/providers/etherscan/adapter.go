package etherscan

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/brojonat/chainfeed/service/endpoint"
	"github.com/brojonat/chainfeed/service/fetch"
	"github.com/brojonat/chainfeed/service/ledger"
	"github.com/shopspring/decimal"
)

// ProviderName identifies this adapter in errors, logs and metrics.
const ProviderName = "etherscan"

// BaseURL is the multichain v2 endpoint. The chain is selected per request.
const BaseURL = "https://api.etherscan.io/v2/api"

const (
	statusOK        = "1"
	noTransactions  = "No transactions found"
	maxResultWindow = 10000
)

var chainIDs = map[string]int{
	"mainnet": 1,
	"sepolia": 11155111,
	"holesky": 17000,
}

// Networks returns the Etherscan v2 endpoints. Every request requires an
// API key sent as the "apikey" query parameter.
func Networks() *endpoint.Registry {
	eps := make([]endpoint.Endpoint, 0, len(chainIDs))
	for name := range chainIDs {
		eps = append(eps, endpoint.Endpoint{
			Network:  name,
			BaseURL:  BaseURL,
			Auth:     endpoint.AuthQueryKey,
			KeyName:  "apikey",
			Required: true,
		})
	}
	return endpoint.NewRegistry(ProviderName, eps...)
}

// ChainID returns the EVM chain id Etherscan uses for network.
func ChainID(network string) (int, bool) {
	id, ok := chainIDs[network]
	return id, ok
}

// Adapter fetches ETH balances and normal transactions from Etherscan.
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

// Balance returns the wallet's latest ETH balance.
func (a *Adapter) Balance(ctx context.Context, ep endpoint.Endpoint, w ledger.Wallet) (*ledger.Balance, error) {
	q, err := a.query(ep, "balance", w.Address)
	if err != nil {
		return nil, err
	}
	q.Set("tag", "latest")

	var raw string
	if err := a.call(ctx, ep, w.Address, q, &raw); err != nil {
		return nil, err
	}
	wei, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, a.malformed(ep, w.Address, err)
	}

	return &ledger.Balance{
		CurrencySymbol: w.CurrencySymbol,
		Amount:         wei.Shift(-Decimals),
		AccountType:    ledger.AccountTypeWallet,
	}, nil
}

// Transactions walks the txlist action in ascending block order, one page
// at a time, until a short page or the page ceiling.
func (a *Adapter) Transactions(ctx context.Context, ep endpoint.Endpoint, w ledger.Wallet) (*TxList, error) {
	list := &TxList{}
	pageSize := a.paging.PageSize
	maxPages := a.paging.MaxPages
	if window := maxResultWindow / pageSize; maxPages > window {
		maxPages = window
	}

	pages, err := fetch.Paginate(ctx, maxPages, 1, func(ctx context.Context, page int) (int, bool, error) {
		q, err := a.query(ep, "txlist", w.Address)
		if err != nil {
			return page, false, err
		}
		q.Set("startblock", "0")
		q.Set("endblock", "99999999")
		q.Set("page", strconv.Itoa(page))
		q.Set("offset", strconv.Itoa(pageSize))
		q.Set("sort", "asc")

		var txs []Transaction
		if err := a.call(ctx, ep, w.Address, q, &txs); err != nil {
			return page, false, err
		}
		list.Transactions = append(list.Transactions, txs...)
		return page + 1, len(txs) == pageSize, nil
	})
	if err != nil {
		return nil, err
	}

	if m := a.req.Metrics(); m != nil {
		m.RecordPages(ProviderName, pages)
	}
	a.req.Logger().DebugContext(ctx, "fetched etherscan txlist",
		"network", ep.Network,
		"address", w.Address,
		"transactions", len(list.Transactions),
		"pages", pages,
	)
	return list, nil
}

func (a *Adapter) query(ep endpoint.Endpoint, action, address string) (url.Values, error) {
	chainID, ok := ChainID(ep.Network)
	if !ok {
		return nil, &ledger.ConfigurationError{Provider: ProviderName, Network: ep.Network, Reason: "unknown chain"}
	}
	if ep.Required && ep.Credential == "" {
		return nil, &ledger.ConfigurationError{Provider: ProviderName, Network: ep.Network, Reason: "missing API key"}
	}
	q := url.Values{}
	q.Set("chainid", strconv.Itoa(chainID))
	q.Set("module", "account")
	q.Set("action", action)
	q.Set("address", address)
	return q, nil
}

// call performs one request and unwraps the envelope into out. A "No
// transactions found" reply leaves out untouched.
func (a *Adapter) call(ctx context.Context, ep endpoint.Endpoint, address string, q url.Values, out any) error {
	var env envelope
	if err := a.req.GetJSON(ctx, ep, address, "", q, &env); err != nil {
		return err
	}

	if env.Status != statusOK {
		if env.Message == noTransactions {
			return nil
		}
		var detail string
		_ = json.Unmarshal(env.Result, &detail)
		perr := &ledger.ProviderError{
			Provider:   ProviderName,
			Network:    ep.Network,
			Address:    address,
			StatusCode: envelopeStatus(detail),
			Message:    strings.TrimSpace(fmt.Sprintf("%s %s", env.Message, detail)),
		}
		a.req.Logger().WarnContext(ctx, "etherscan returned an error envelope", "error", perr)
		return perr
	}

	if err := json.Unmarshal(env.Result, out); err != nil {
		return a.malformed(ep, address, err)
	}
	return nil
}

// envelopeStatus maps the error text of a 200 response onto the HTTP status
// it stands for.
func envelopeStatus(detail string) int {
	lower := strings.ToLower(detail)
	switch {
	case strings.Contains(lower, "rate limit"):
		return http.StatusTooManyRequests
	case strings.Contains(lower, "api key"):
		return http.StatusUnauthorized
	case strings.Contains(lower, "invalid"):
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}

func (a *Adapter) malformed(ep endpoint.Endpoint, address string, err error) error {
	return &ledger.ProviderError{
		Provider:   ProviderName,
		Network:    ep.Network,
		Address:    address,
		StatusCode: http.StatusOK,
		Message:    "malformed response",
		Err:        err,
	}
}
