package quote

import (
	"github.com/shopspring/decimal"

	"github.com/chainsafe/switchly-settlement/pkg/asset"
)

// FeeEstimator converts the network's outbound fee into the output asset.
type FeeEstimator interface {
	// EstimateOutboundFee returns the fee in human units of to's asset.
	EstimateOutboundFee(network NetworkFees, to *PoolSnapshot) decimal.Decimal
}

// PoolFeeEstimator converts the outbound fee at the destination pool's live ratio.
type PoolFeeEstimator struct {
	Bridge asset.Ref
}

func (p PoolFeeEstimator) EstimateOutboundFee(network NetworkFees, to *PoolSnapshot) decimal.Decimal {
	scaled := network.Scaled()
	if !scaled.IsPositive() || to == nil {
		return decimal.Zero
	}
	if to.Asset.Ticker() == p.Bridge.Ticker() {
		return asset.ToHumanUnits(scaled, p.Bridge)
	}
	if !to.usable() {
		return decimal.Zero
	}
	fee := floorDiv(scaled.Mul(to.AssetDepth), to.BridgeDepth, 0)
	return asset.ToHumanUnits(fee, to.Asset)
}

// ApproximateFeeEstimator converts the outbound fee through a static table of
// approximate USD prices. Assets missing from the table fall back to Fallback.
type ApproximateFeeEstimator struct {
	Bridge         asset.Ref
	BridgePriceUSD decimal.Decimal
	PricesUSD      map[string]decimal.Decimal
	Fallback       FeeEstimator
}

// NewApproximateFeeEstimator builds an estimator from ticker keyed USD prices.
// The destination pool ratio is used for assets without a price.
func NewApproximateFeeEstimator(bridge asset.Ref, bridgePriceUSD decimal.Decimal, prices map[string]decimal.Decimal) *ApproximateFeeEstimator {
	normalized := make(map[string]decimal.Decimal, len(prices))
	for ticker, price := range prices {
		normalized[asset.NormalizeTicker(ticker)] = price
	}
	return &ApproximateFeeEstimator{
		Bridge:         bridge,
		BridgePriceUSD: bridgePriceUSD,
		PricesUSD:      normalized,
		Fallback:       PoolFeeEstimator{Bridge: bridge},
	}
}

func (a *ApproximateFeeEstimator) EstimateOutboundFee(network NetworkFees, to *PoolSnapshot) decimal.Decimal {
	scaled := network.Scaled()
	if !scaled.IsPositive() || to == nil {
		return decimal.Zero
	}
	feeBridge := asset.ToHumanUnits(scaled, a.Bridge)
	if to.Asset.Ticker() == a.Bridge.Ticker() {
		return feeBridge
	}

	price, ok := a.PricesUSD[to.Asset.Ticker()]
	if !ok || !price.IsPositive() || !a.BridgePriceUSD.IsPositive() {
		if a.Fallback == nil {
			return decimal.Zero
		}
		return a.Fallback.EstimateOutboundFee(network, to)
	}
	return floorDiv(feeBridge.Mul(a.BridgePriceUSD), price, outputPlaces(to.Asset))
}
