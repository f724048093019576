// Package settlement correlates the source deposit, the bridge action and the
// destination payout of one swap into a single settlement lifecycle.
package settlement

import (
	"github.com/chainsafe/switchly-settlement/pkg/bridge"
	"github.com/chainsafe/switchly-settlement/pkg/chain"
)

// State is the overall state of a settlement.
type State string

const (
	StateSent                State = "SENT"
	StateBridgeProcessing    State = "BRIDGE_PROCESSING"
	StateAwaitingDestination State = "AWAITING_DESTINATION"
	StateCompleted           State = "COMPLETED"
	StateFailed              State = "FAILED"
	StateTimeout             State = "TIMEOUT"
)

// Terminal reports whether polling stops in s.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateTimeout
}

// FailureReason says which observation made a settlement fail.
type FailureReason string

const (
	ReasonNone              FailureReason = ""
	ReasonSourceFailed      FailureReason = "source_failed"
	ReasonRefunded          FailureReason = "refunded"
	ReasonDestinationFailed FailureReason = "destination_failed"
)

// Derive computes the overall state from the latest three observations. A nil
// argument means not observed. Timeout is imposed by the session, never derived.
func Derive(source *chain.TxStatus, action *bridge.Action, target *chain.TxStatus) (State, FailureReason) {
	if source == nil {
		return StateSent, ReasonNone
	}

	switch source.State {
	case chain.TxFailed:
		return StateFailed, ReasonSourceFailed
	case chain.TxConfirmed:
	default:
		return StateSent, ReasonNone
	}

	if action == nil {
		return StateBridgeProcessing, ReasonNone
	}
	switch action.State {
	case bridge.ActionFailed:
		return StateFailed, ReasonRefunded
	case bridge.ActionSuccess:
	default:
		return StateBridgeProcessing, ReasonNone
	}

	if target == nil {
		return StateAwaitingDestination, ReasonNone
	}
	switch target.State {
	case chain.TxConfirmed:
		return StateCompleted, ReasonNone
	case chain.TxFailed:
		return StateFailed, ReasonDestinationFailed
	default:
		return StateAwaitingDestination, ReasonNone
	}
}
