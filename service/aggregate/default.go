package aggregate

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/brojonat/chainfeed/service/config"
	"github.com/brojonat/chainfeed/service/endpoint"
	"github.com/brojonat/chainfeed/service/fetch"
	"github.com/brojonat/chainfeed/service/metrics"
	"github.com/brojonat/chainfeed/service/normalize"
	"github.com/brojonat/chainfeed/service/providers/esplora"
	"github.com/brojonat/chainfeed/service/providers/etherscan"
	"github.com/brojonat/chainfeed/service/providers/solana"
	"github.com/brojonat/chainfeed/service/providers/tron"
	"github.com/brojonat/chainfeed/service/providers/tzkt"
	"github.com/brojonat/chainfeed/service/providers/xrpl"
)

// Options carries the shared dependencies of the standard providers.
type Options struct {
	Logger     *slog.Logger
	Metrics    *metrics.Metrics
	HTTPClient *http.Client

	// BaseURLs overrides endpoint base URLs, keyed by provider then network.
	BaseURLs map[string]map[string]string
}

// New builds a Facade with the standard currency table: SOL, ETH, XTZ, XRP,
// BTC and TRX. Credentials come from cfg. Etherscan is skipped when no API
// key is configured unless cfg.RequireAllProviders is set, in which case a
// missing key is a ConfigurationError.
func New(cfg *config.Config, opts Options) (*Facade, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	paging := fetch.Paging{MaxPages: cfg.MaxPages, PageSize: cfg.PageSize}
	requester := func(provider string) *fetch.Requester {
		return fetch.New(provider, fetch.Options{
			Timeout:    cfg.ProviderTimeout,
			RPS:        cfg.ProviderRPS,
			HTTPClient: opts.HTTPClient,
			Metrics:    opts.Metrics,
			Logger:     opts.Logger,
		})
	}

	f := NewFacade(opts.Logger, opts.Metrics)
	var errs []error

	register := func(symbol string, registry *endpoint.Registry, bind func(*endpoint.Registry) Source) {
		for network, url := range opts.BaseURLs[registry.Provider()] {
			registry = registry.WithBaseURL(network, url)
		}
		if err := registry.Validate(); err != nil {
			errs = append(errs, err)
			return
		}
		f.Register(symbol, bind(registry))
	}

	solanaRegistry := solana.Networks().WithCredential(cfg.SolanaAPIKey)
	if cfg.SolanaMainnetRPCURL != "" {
		solanaRegistry = solanaRegistry.WithBaseURL("mainnet", cfg.SolanaMainnetRPCURL)
	}
	register("SOL", solanaRegistry, func(r *endpoint.Registry) Source {
		return Bind[*solana.History](solana.New(r, requester(solana.ProviderName), paging, nil), normalize.Solana)
	})

	if cfg.EtherscanAPIKey != "" || cfg.RequireAllProviders {
		register("ETH", etherscan.Networks().WithCredential(cfg.EtherscanAPIKey), func(r *endpoint.Registry) Source {
			return Bind[*etherscan.TxList](etherscan.New(r, requester(etherscan.ProviderName), paging), normalize.Etherscan)
		})
	} else {
		opts.Logger.Info("skipping ETH: ETHERSCAN_API_KEY is not set")
	}

	register("XTZ", tzkt.Networks(), func(r *endpoint.Registry) Source {
		return Bind[*tzkt.Operations](tzkt.New(r, requester(tzkt.ProviderName), paging), normalize.Tzkt)
	})

	register("XRP", xrpl.Networks(), func(r *endpoint.Registry) Source {
		return Bind[*xrpl.AccountTx](xrpl.New(r, requester(xrpl.ProviderName), paging), normalize.XRPL)
	})

	register("BTC", esplora.Networks(), func(r *endpoint.Registry) Source {
		return Bind[*esplora.TxPage](esplora.New(r, requester(esplora.ProviderName), paging), normalize.Esplora)
	})

	register("TRX", tron.Networks().WithCredential(cfg.TronGridAPIKey), func(r *endpoint.Registry) Source {
		return Bind[*tron.Transfers](tron.New(r, requester(tron.ProviderName), paging), normalize.Tron)
	})

	if len(errs) > 0 {
		if len(errs) == 1 {
			return nil, errs[0]
		}
		return nil, fmt.Errorf("failed to build providers: %w", errors.Join(errs...))
	}

	opts.Logger.Info("providers registered", "currencies", f.Currencies())
	return f, nil
}
