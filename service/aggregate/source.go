package aggregate

import (
	"context"

	"github.com/brojonat/chainfeed/service/endpoint"
	"github.com/brojonat/chainfeed/service/ledger"
	"github.com/brojonat/chainfeed/service/normalize"
)

// Raw is implemented by every provider's raw history type.
type Raw interface {
	Len() int
}

// Adapter is the capability every provider implements. R is the provider's
// raw history type.
type Adapter[R Raw] interface {
	Name() string
	Endpoints() *endpoint.Registry
	Balance(ctx context.Context, ep endpoint.Endpoint, w ledger.Wallet) (*ledger.Balance, error)
	Transactions(ctx context.Context, ep endpoint.Endpoint, w ledger.Wallet) (R, error)
}

// Normalizer converts one provider's raw history into canonical records.
type Normalizer[R Raw] func(raw R, network string, w ledger.Wallet) normalize.Result

// Source is an adapter bound to its normalizer, with the raw type erased so
// sources for different providers share one lookup table.
type Source interface {
	Provider() string
	Endpoints() *endpoint.Registry
	Balance(ctx context.Context, network string, w ledger.Wallet) (*ledger.Balance, error)
	Transactions(ctx context.Context, network string, w ledger.Wallet) (normalize.Result, error)
}

// Bind pairs an adapter with the normalizer for its raw type.
func Bind[R Raw](adapter Adapter[R], norm Normalizer[R]) Source {
	return &binding[R]{adapter: adapter, norm: norm}
}

type binding[R Raw] struct {
	adapter Adapter[R]
	norm    Normalizer[R]
}

func (b *binding[R]) Provider() string              { return b.adapter.Name() }
func (b *binding[R]) Endpoints() *endpoint.Registry { return b.adapter.Endpoints() }

func (b *binding[R]) Balance(ctx context.Context, network string, w ledger.Wallet) (*ledger.Balance, error) {
	ep, err := b.adapter.Endpoints().Lookup(network)
	if err != nil {
		return nil, err
	}
	return b.adapter.Balance(ctx, ep, w)
}

// Transactions resolves the network, fetches, and normalizes. A raw result
// with no entries is returned as an empty list without normalizing.
func (b *binding[R]) Transactions(ctx context.Context, network string, w ledger.Wallet) (normalize.Result, error) {
	ep, err := b.adapter.Endpoints().Lookup(network)
	if err != nil {
		return normalize.Result{}, err
	}
	raw, err := b.adapter.Transactions(ctx, ep, w)
	if err != nil {
		return normalize.Result{}, err
	}
	if raw.Len() == 0 {
		return normalize.Result{Transactions: []ledger.Transaction{}}, nil
	}
	return b.norm(raw, network, w), nil
}
