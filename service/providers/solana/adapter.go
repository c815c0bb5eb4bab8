package solana

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/brojonat/chainfeed/service/endpoint"
	"github.com/brojonat/chainfeed/service/fetch"
	"github.com/brojonat/chainfeed/service/ledger"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/shopspring/decimal"
)

// ProviderName identifies this adapter in errors, logs and metrics.
const ProviderName = "solana"

// Networks returns the public Solana RPC endpoints. A credential, when
// configured, is sent as the "api-key" query parameter used by hosted RPCs.
func Networks() *endpoint.Registry {
	return endpoint.NewRegistry(ProviderName,
		endpoint.Endpoint{Network: "mainnet", BaseURL: "https://api.mainnet-beta.solana.com", Auth: endpoint.AuthQueryKey, KeyName: "api-key"},
		endpoint.Endpoint{Network: "devnet", BaseURL: "https://api.devnet.solana.com", Auth: endpoint.AuthQueryKey, KeyName: "api-key"},
		endpoint.Endpoint{Network: "testnet", BaseURL: "https://api.testnet.solana.com", Auth: endpoint.AuthQueryKey, KeyName: "api-key"},
	)
}

// Adapter fetches SOL balances and transfer history over JSON-RPC.
type Adapter struct {
	registry *endpoint.Registry
	req      *fetch.Requester
	paging   fetch.Paging
	clients  map[string]RPCClient
}

// New creates an Adapter with one RPC client per registered network.
// A nil factory uses the solana-go client.
func New(registry *endpoint.Registry, req *fetch.Requester, paging fetch.Paging, factory ClientFactory) *Adapter {
	if factory == nil {
		factory = NewRPCClient
	}
	clients := make(map[string]RPCClient)
	for _, name := range registry.Networks() {
		ep, _ := registry.Lookup(name)
		clients[name] = factory(ep)
	}
	return &Adapter{
		registry: registry,
		req:      req,
		paging:   paging.WithDefaults(),
		clients:  clients,
	}
}

func (a *Adapter) Name() string                  { return ProviderName }
func (a *Adapter) Endpoints() *endpoint.Registry { return a.registry }

// Balance returns the wallet's finalized SOL balance.
func (a *Adapter) Balance(ctx context.Context, ep endpoint.Endpoint, w ledger.Wallet) (*ledger.Balance, error) {
	client, account, err := a.prepare(ep, w)
	if err != nil {
		return nil, err
	}

	var lamports uint64
	err = a.req.Do(ctx, ep, w.Address, "getBalance", func(ctx context.Context) (int, error) {
		out, err := client.GetBalance(ctx, account, rpc.CommitmentFinalized)
		if err != nil {
			return statusOf(err), err
		}
		lamports = out.Value
		return 200, nil
	})
	if err != nil {
		return nil, err
	}

	return &ledger.Balance{
		CurrencySymbol: w.CurrencySymbol,
		Amount:         decimal.NewFromUint64(lamports).Shift(-Decimals),
		AccountType:    ledger.AccountTypeWallet,
	}, nil
}

// Transactions walks getSignaturesForAddress backwards with the "before"
// cursor and fetches each transaction. One that cannot be decoded, or that
// the node no longer serves, is kept with metadata only and produces no
// transfer.
func (a *Adapter) Transactions(ctx context.Context, ep endpoint.Endpoint, w ledger.Wallet) (*History, error) {
	client, account, err := a.prepare(ep, w)
	if err != nil {
		return nil, err
	}
	logger := a.req.Logger()

	history := &History{}
	limit := a.paging.PageSize
	if limit > 1000 {
		limit = 1000
	}

	pages, err := fetch.Paginate(ctx, a.paging.MaxPages, solana.Signature{}, func(ctx context.Context, before solana.Signature) (solana.Signature, bool, error) {
		opts := &rpc.GetSignaturesForAddressOpts{
			Limit:      &limit,
			Before:     before,
			Commitment: rpc.CommitmentFinalized,
		}

		var sigs []*rpc.TransactionSignature
		err := a.req.Do(ctx, ep, w.Address, "getSignaturesForAddress", func(ctx context.Context) (int, error) {
			out, err := client.GetSignaturesForAddress(ctx, account, opts)
			if err != nil {
				return statusOf(err), err
			}
			sigs = out
			return 200, nil
		})
		if err != nil {
			return before, false, err
		}

		for _, sig := range sigs {
			txn, err := a.transaction(ctx, client, ep, w, sig)
			if err != nil {
				return before, false, err
			}
			history.Transactions = append(history.Transactions, txn)
		}

		if len(sigs) < limit {
			return before, false, nil
		}
		return sigs[len(sigs)-1].Signature, true, nil
	})
	if err != nil {
		return nil, err
	}

	if m := a.req.Metrics(); m != nil {
		m.RecordPages(ProviderName, pages)
	}
	logger.DebugContext(ctx, "fetched solana history",
		"network", ep.Network,
		"address", w.Address,
		"signatures", len(history.Transactions),
		"pages", pages,
	)
	return history, nil
}

func (a *Adapter) transaction(ctx context.Context, client RPCClient, ep endpoint.Endpoint, w ledger.Wallet, sig *rpc.TransactionSignature) (Transaction, error) {
	if sig.Err != nil {
		return signatureToTransaction(sig), nil
	}

	maxVersion := uint64(0)
	var result *rpc.GetTransactionResult
	var missing bool
	err := a.req.Do(ctx, ep, w.Address, "getTransaction", func(ctx context.Context) (int, error) {
		out, err := client.GetTransaction(ctx, sig.Signature, &rpc.GetTransactionOpts{
			Encoding:                       solana.EncodingBase64,
			Commitment:                     rpc.CommitmentFinalized,
			MaxSupportedTransactionVersion: &maxVersion,
		})
		if errors.Is(err, rpc.ErrNotFound) {
			// pruned or not yet available on this node
			missing = true
			return 200, nil
		}
		if err != nil {
			return statusOf(err), err
		}
		result = out
		return 200, nil
	})
	if err != nil {
		return Transaction{}, err
	}
	if missing {
		txn := signatureToTransaction(sig)
		a.req.Logger().WarnContext(ctx, "transaction not found, using metadata only",
			"signature", txn.Signature,
		)
		return txn, nil
	}

	txn, err := parseTransaction(sig, result)
	if err != nil {
		a.req.Logger().WarnContext(ctx, "failed to parse transaction, using metadata only",
			"signature", txn.Signature,
			"error", err,
		)
	}
	return txn, nil
}

func (a *Adapter) prepare(ep endpoint.Endpoint, w ledger.Wallet) (RPCClient, solana.PublicKey, error) {
	client, ok := a.clients[ep.Network]
	if !ok {
		return nil, solana.PublicKey{}, &ledger.ConfigurationError{
			Provider: ProviderName,
			Network:  ep.Network,
			Reason:   "no RPC client for network",
		}
	}
	account, err := solana.PublicKeyFromBase58(w.Address)
	if err != nil {
		return nil, solana.PublicKey{}, &ledger.ProviderError{
			Provider:   ProviderName,
			Network:    ep.Network,
			Address:    w.Address,
			StatusCode: http.StatusBadRequest,
			Message:    fmt.Sprintf("invalid address: %v", err),
		}
	}
	return client, account, nil
}
