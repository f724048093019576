// Package bootstrap builds the shared components of the settlement monitor
// and the operator CLI from configuration.
package bootstrap

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/chainsafe/switchly-settlement/pkg/asset"
	"github.com/chainsafe/switchly-settlement/pkg/bridge"
	"github.com/chainsafe/switchly-settlement/pkg/chain"
	"github.com/chainsafe/switchly-settlement/pkg/chain/evm"
	"github.com/chainsafe/switchly-settlement/pkg/chain/ledger"
	"github.com/chainsafe/switchly-settlement/pkg/config"
	"github.com/chainsafe/switchly-settlement/pkg/memo"
	"github.com/chainsafe/switchly-settlement/pkg/quote"
	"github.com/chainsafe/switchly-settlement/pkg/settlement"
)

// Components are the configured collaborators shared by every entrypoint.
type Components struct {
	Registry *asset.Registry
	Bridge   *bridge.Client
	Pools    *bridge.Cache
	Actions  *bridge.ActionProbe
	Engine   *quote.Engine
	Matcher  memo.Matcher
	Chains   map[string]settlement.ChainProbes

	cfg     *config.Config
	logger  *zap.Logger
	closers []func()
}

// Build wires the components. Account-model chains are dialled eagerly so a
// bad RPC URL fails at startup.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Components, error) {
	registry, err := loadRegistry(cfg.Assets)
	if err != nil {
		return nil, err
	}

	fees, err := NewFeeEstimator(cfg.Fees, registry)
	if err != nil {
		return nil, err
	}

	client := bridge.NewClient(&cfg.Bridge, logger)
	c := &Components{
		Registry: registry,
		Bridge:   client,
		Pools:    bridge.NewCache(client, cfg.Bridge.PoolCacheTTL, logger),
		Actions:  bridge.NewActionProbe(client),
		Engine:   quote.NewEngine(fees),
		Matcher:  memo.NewMatcher(cfg.Memo.PrefixLen, cfg.Memo.SuffixLen),
		Chains:   make(map[string]settlement.ChainProbes, len(cfg.Chains)),
		cfg:      cfg,
		logger:   logger,
	}

	for _, key := range sortedKeys(cfg.Chains) {
		id := strings.ToUpper(key)
		probes, err := c.buildChain(ctx, id, cfg.Chains[key])
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("chain %s: %w", id, err)
		}
		c.Chains[id] = probes
		logger.Info("Chain probe configured",
			zap.String("chain", id),
			zap.String("kind", string(probes.Kind)),
		)
	}
	return c, nil
}

// NewCorrelator creates a settlement correlator over the configured chains.
func (c *Components) NewCorrelator(opts ...settlement.Option) *settlement.Correlator {
	return settlement.NewCorrelator(c.Chains, c.Actions, c.Registry, c.cfg.Settlement, c.logger, opts...)
}

// Close releases chain connections.
func (c *Components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}

func (c *Components) buildChain(ctx context.Context, id string, cfg config.ChainConfig) (settlement.ChainProbes, error) {
	switch chain.Kind(cfg.Kind) {
	case chain.KindAccount:
		native, err := c.Registry.Lookup(nativeTicker(id, cfg))
		if err != nil {
			return settlement.ChainProbes{}, err
		}
		client, err := evm.Dial(ctx, cfg.URL)
		if err != nil {
			return settlement.ChainProbes{}, err
		}
		c.closers = append(c.closers, client.Close)

		probe, err := evm.NewProbe(client, id, native, c.Matcher, cfg.PayoutLookback, c.logger,
			evm.WithTokens(c.chainAssets(native.Chain)...))
		if err != nil {
			return settlement.ChainProbes{}, err
		}
		cached, err := chain.NewFinalityCache(probe, cfg.FinalityCacheSize)
		if err != nil {
			return settlement.ChainProbes{}, err
		}
		return settlement.ChainProbes{Kind: chain.KindAccount, Probe: cached, Finder: probe}, nil

	case chain.KindLedger:
		probe := ledger.NewProbe(cfg.URL, id, c.Matcher, cfg.PayoutLimit, cfg.RequestTimeout, c.logger)
		cached, err := chain.NewFinalityCache(probe, cfg.FinalityCacheSize)
		if err != nil {
			return settlement.ChainProbes{}, err
		}
		return settlement.ChainProbes{Kind: chain.KindLedger, Probe: cached, Finder: probe}, nil

	default:
		return settlement.ChainProbes{}, fmt.Errorf("unsupported chain kind %q", cfg.Kind)
	}
}

// NewFeeEstimator selects the outbound fee estimator.
func NewFeeEstimator(cfg config.FeesConfig, registry *asset.Registry) (quote.FeeEstimator, error) {
	switch cfg.Estimator {
	case "", "pool":
		return quote.PoolFeeEstimator{Bridge: registry.Bridge()}, nil
	case "approximate":
		bridgePrice, err := decimal.NewFromString(cfg.BridgePriceUSD)
		if err != nil {
			return nil, fmt.Errorf("invalid fees.bridge_price_usd: %w", err)
		}
		prices := make(map[string]decimal.Decimal, len(cfg.PricesUSD))
		for ticker, raw := range cfg.PricesUSD {
			price, err := decimal.NewFromString(raw)
			if err != nil {
				return nil, fmt.Errorf("invalid fees.prices_usd.%s: %w", ticker, err)
			}
			prices[ticker] = price
		}
		return quote.NewApproximateFeeEstimator(registry.Bridge(), bridgePrice, prices), nil
	default:
		return nil, fmt.Errorf("unknown fee estimator %q", cfg.Estimator)
	}
}

func loadRegistry(cfg config.AssetsConfig) (*asset.Registry, error) {
	if cfg.File == "" {
		return asset.DefaultRegistry()
	}
	return asset.LoadRegistry(cfg.File)
}

// chainAssets returns the registered assets living on chainID.
func (c *Components) chainAssets(chainID string) []asset.Ref {
	var refs []asset.Ref
	for _, ref := range c.Registry.All() {
		if ref.Chain == chainID {
			refs = append(refs, ref)
		}
	}
	return refs
}

func nativeTicker(id string, cfg config.ChainConfig) string {
	if cfg.NativeAsset != "" {
		return cfg.NativeAsset
	}
	return id + "." + id
}

func sortedKeys(chains map[string]config.ChainConfig) []string {
	keys := make([]string, 0, len(chains))
	for key := range chains {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
