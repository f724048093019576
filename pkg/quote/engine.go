package quote

import (
	"github.com/shopspring/decimal"

	"github.com/chainsafe/switchly-settlement/pkg/asset"
)

// Engine computes two-leg quotes through the bridge asset.
type Engine struct {
	fees FeeEstimator
}

// NewEngine creates a quote engine using fees to price the outbound leg.
func NewEngine(fees FeeEstimator) *Engine {
	return &Engine{fees: fees}
}

// Quote prices swapping input (human units of from's asset) into to's asset.
// It returns nil when either pool is missing or empty or the input is not positive.
func (e *Engine) Quote(from, to *PoolSnapshot, input decimal.Decimal, network NetworkFees) *Quote {
	if !from.usable() || !to.usable() || !input.IsPositive() {
		return nil
	}

	x := asset.ToStandardUnits(input, from.Asset)
	if !x.IsPositive() {
		return nil
	}

	bridgeOut := floorDiv(x.Mul(from.BridgeDepth), from.AssetDepth, 0)
	assetOut := floorDiv(bridgeOut.Mul(to.AssetDepth), to.BridgeDepth, 0)

	denom := x.Add(from.AssetDepth)
	liqFee := floorDiv(x.Mul(x).Mul(to.AssetDepth), denom.Mul(denom), 0)

	var outbound decimal.Decimal
	if e.fees != nil {
		outbound = e.fees.EstimateOutboundFee(network, to)
	}

	places := outputPlaces(to.Asset)
	expected := asset.ToHumanUnits(assetOut, to.Asset)
	liqFeeHuman := asset.ToHumanUnits(liqFee, to.Asset)

	output := expected.Sub(liqFeeHuman).Sub(outbound).Truncate(places)
	if output.IsNegative() {
		output = decimal.Zero
	}

	return &Quote{
		From:           from.Asset.Ticker(),
		To:             to.Asset.Ticker(),
		InputAmount:    asset.ToHumanUnits(x, from.Asset),
		OutputAmount:   output,
		ExpectedOutput: expected,
		ExchangeRate:   floorDiv(output, input, asset.StandardDecimals),
		PriceImpactPct: priceImpact(assetOut, liqFee),
		LiquidityFee:   liqFeeHuman,
		OutboundFee:    outbound,
	}
}

// ExchangeRate reports the headline rate for one whole unit of from's asset.
func (e *Engine) ExchangeRate(from, to *PoolSnapshot, network NetworkFees) (decimal.Decimal, bool) {
	q := e.Quote(from, to, decimal.NewFromInt(1), network)
	if q == nil {
		return decimal.Zero, false
	}
	return q.ExchangeRate, true
}

// priceImpact compares the slippage-free output with the output after the
// liquidity fee. The outbound fee is flat and not part of the impact.
func priceImpact(expected, liqFee decimal.Decimal) decimal.Decimal {
	if !expected.IsPositive() || !liqFee.IsPositive() {
		return decimal.Zero
	}
	impact := floorDiv(liqFee.Mul(hundred), expected, 8)
	if impact.IsNegative() {
		return decimal.Zero
	}
	return impact
}
