// Package swap holds the request and response types of the swap API.
package swap

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/chainsafe/switchly-settlement/pkg/quote"
)

// Pool is the public view of one bridge pool.
type Pool struct {
	Ticker        string          `json:"ticker"`
	PoolAsset     string          `json:"pool_asset"`
	Decimals      int32           `json:"decimals"`
	BalanceAsset  decimal.Decimal `json:"balance_asset"`
	BalanceBridge decimal.Decimal `json:"balance_bridge"`
	Status        string          `json:"status"`
	// Price is the pool price of one whole asset unit in the bridge asset.
	Price decimal.Decimal `json:"price"`
}

// PoolsResponse lists the pools of known assets.
type PoolsResponse struct {
	Bridge    string    `json:"bridge_asset"`
	Pools     []Pool    `json:"pools"`
	FetchedAt time.Time `json:"fetched_at"`
}

// QuoteRequest asks for the output of swapping Amount (human units) of From into To.
type QuoteRequest struct {
	From   string          `json:"from"`
	To     string          `json:"to"`
	Amount decimal.Decimal `json:"amount"`
}

// QuoteResponse carries a quote, or the reason none is available.
type QuoteResponse struct {
	Available bool         `json:"available"`
	Reason    string       `json:"reason,omitempty"`
	Quote     *quote.Quote `json:"quote,omitempty"`
}

// RateResponse is the headline exchange rate for one whole unit of From.
type RateResponse struct {
	From      string          `json:"from"`
	To        string          `json:"to"`
	Available bool            `json:"available"`
	Rate      decimal.Decimal `json:"rate"`
}

// MatchRequest checks whether a memo settles a source transaction.
type MatchRequest struct {
	Memo       string `json:"memo"`
	SourceHash string `json:"source_hash"`
}

// MatchResponse reports the memo match and the truncated display form of the hash.
type MatchResponse struct {
	Match     bool   `json:"match"`
	Kind      string `json:"kind,omitempty"`
	Truncated string `json:"truncated"`
}

// Reasons reported when no quote is available.
const (
	ReasonNoLiquidity = "no liquidity"
	ReasonBridgeAsset = "the bridge asset is not quoted through pools"
)
