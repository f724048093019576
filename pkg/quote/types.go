// Package quote prices cross-chain swaps from bridge pool snapshots.
package quote

import (
	"github.com/shopspring/decimal"

	"github.com/chainsafe/switchly-settlement/pkg/asset"
)

// PoolSnapshot is one asset<->bridge-asset pool as reported by the bridge network.
// Depths are in standardized units. Snapshots are replaced, never mutated.
type PoolSnapshot struct {
	Asset       asset.Ref       `json:"asset"`
	AssetDepth  decimal.Decimal `json:"asset_depth"`
	BridgeDepth decimal.Decimal `json:"bridge_depth"`
	Status      string          `json:"status,omitempty"`
}

func (p *PoolSnapshot) usable() bool {
	return p != nil && p.AssetDepth.IsPositive() && p.BridgeDepth.IsPositive()
}

// NetworkFees are the live fee parameters of the bridge network.
type NetworkFees struct {
	// OutboundFee is the base outbound fee in standardized bridge-asset units.
	OutboundFee decimal.Decimal `json:"outbound_fee"`
	// MultiplierBps scales OutboundFee, 10000 being 1x.
	MultiplierBps int64 `json:"multiplier_bps"`
}

// Scaled returns the outbound fee after the multiplier, in standardized bridge-asset units.
func (n NetworkFees) Scaled() decimal.Decimal {
	if !n.OutboundFee.IsPositive() || n.MultiplierBps <= 0 {
		return decimal.Zero
	}
	return floorDiv(n.OutboundFee.Mul(decimal.NewFromInt(n.MultiplierBps)), bpsDenominator, 0)
}

// Quote is the derived price of one swap. All amounts are human units;
// fees are denominated in the output asset.
type Quote struct {
	From           string          `json:"from"`
	To             string          `json:"to"`
	InputAmount    decimal.Decimal `json:"input_amount"`
	OutputAmount   decimal.Decimal `json:"output_amount"`
	ExpectedOutput decimal.Decimal `json:"expected_output"`
	ExchangeRate   decimal.Decimal `json:"exchange_rate"`
	PriceImpactPct decimal.Decimal `json:"price_impact_pct"`
	LiquidityFee   decimal.Decimal `json:"liquidity_fee"`
	OutboundFee    decimal.Decimal `json:"outbound_fee"`
}

// TotalFee is the liquidity fee plus the outbound fee.
func (q *Quote) TotalFee() decimal.Decimal {
	return q.LiquidityFee.Add(q.OutboundFee)
}

var (
	bpsDenominator = decimal.NewFromInt(10_000)
	hundred        = decimal.NewFromInt(100)
)

// floorDiv divides a by b keeping places decimals, dropping the rest.
// Callers guarantee b is non-zero.
func floorDiv(a, b decimal.Decimal, places int32) decimal.Decimal {
	q, _ := a.QuoRem(b, places)
	return q
}

func outputPlaces(ref asset.Ref) int32 {
	if ref.Decimals < asset.StandardDecimals {
		return ref.Decimals
	}
	return asset.StandardDecimals
}
