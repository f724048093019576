// Package bridge reads the settlement network's public REST API: pool depths,
// fee parameters and the outbound queue of pending payouts.
package bridge

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/chainsafe/switchly-settlement/pkg/asset"
	"github.com/chainsafe/switchly-settlement/pkg/memo"
	"github.com/chainsafe/switchly-settlement/pkg/quote"
)

// Pool is one pool as reported by the network, depths in standardized units.
type Pool struct {
	Asset         string          `json:"asset"`
	BalanceAsset  decimal.Decimal `json:"balance_asset"`
	BalanceBridge decimal.Decimal `json:"balance_switch"`
	Status        string          `json:"status"`
}

// Snapshot converts the pool into the quote engine's input for ref.
func (p Pool) Snapshot(ref asset.Ref) *quote.PoolSnapshot {
	return &quote.PoolSnapshot{
		Asset:       ref,
		AssetDepth:  p.BalanceAsset,
		BridgeDepth: p.BalanceBridge,
		Status:      p.Status,
	}
}

// Coin is an asset amount in standardized units.
type Coin struct {
	Asset  string          `json:"asset"`
	Amount decimal.Decimal `json:"amount"`
}

// OutboundEntry is one pending payout in the network's outbound queue.
type OutboundEntry struct {
	Chain     string `json:"chain"`
	ToAddress string `json:"to_address"`
	Coin      Coin   `json:"coin"`
	Memo      string `json:"memo"`
	InHash    string `json:"in_hash"`
	OutHash   string `json:"out_hash,omitempty"`
	Height    int64  `json:"height,omitempty"`
}

// Network holds the live fee parameters.
type Network struct {
	NativeOutboundFee     decimal.Decimal `json:"native_outbound_fee_switch"`
	OutboundFeeMultiplier decimal.Decimal `json:"outbound_fee_multiplier"`
}

// Fees converts the parameters for the quote engine.
func (n Network) Fees() quote.NetworkFees {
	return quote.NetworkFees{
		OutboundFee:   n.NativeOutboundFee,
		MultiplierBps: n.OutboundFeeMultiplier.IntPart(),
	}
}

// ActionType classifies an outbound queue entry.
type ActionType string

const (
	ActionSwap       ActionType = "swap"
	ActionRefund     ActionType = "refund"
	ActionProcessing ActionType = "processing"
)

// ActionState is the settlement outcome signalled by a bridge action.
type ActionState string

const (
	ActionPending ActionState = "pending"
	ActionSuccess ActionState = "success"
	ActionFailed  ActionState = "failed"
)

// Action is the bridge network's handling of one inbound transaction.
type Action struct {
	InHash    string      `json:"in_hash"`
	OutHash   string      `json:"out_hash,omitempty"`
	Memo      string      `json:"memo"`
	Type      ActionType  `json:"type"`
	State     ActionState `json:"state"`
	Chain     string      `json:"chain,omitempty"`
	ToAddress string      `json:"to_address,omitempty"`
	Coin      *Coin       `json:"coin,omitempty"`
	// Synthesized is set when the action was inferred from a destination payout
	// rather than seen in the queue.
	Synthesized bool      `json:"synthesized,omitempty"`
	ObservedAt  time.Time `json:"observed_at"`
}

// Terminal reports whether the action will not change any more.
func (a *Action) Terminal() bool {
	return a != nil && (a.State == ActionSuccess || a.State == ActionFailed)
}

// Classify maps a queue entry to an action from its memo prefix.
func Classify(entry OutboundEntry) Action {
	action := Action{
		InHash:     memo.NormalizeHash(entry.InHash),
		OutHash:    entry.OutHash,
		Memo:       entry.Memo,
		Chain:      entry.Chain,
		ToAddress:  entry.ToAddress,
		ObservedAt: time.Now().UTC(),
	}
	if entry.Coin.Asset != "" {
		coin := entry.Coin
		action.Coin = &coin
	}

	prefix := strings.ToUpper(strings.TrimSpace(entry.Memo))
	switch {
	case strings.HasPrefix(prefix, string(memo.KindRefund)):
		action.Type, action.State = ActionRefund, ActionFailed
	case strings.HasPrefix(prefix, string(memo.KindOut)):
		action.Type, action.State = ActionSwap, ActionSuccess
	default:
		action.Type, action.State = ActionProcessing, ActionPending
	}
	return action
}

func classRank(a Action) int {
	switch a.Type {
	case ActionRefund:
		return 2
	case ActionSwap:
		return 1
	default:
		return 0
	}
}
