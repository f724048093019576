package settlement

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/chainsafe/switchly-settlement/pkg/bridge"
	"github.com/chainsafe/switchly-settlement/pkg/chain"
)

var (
	// ErrSettlementTimeout is reported when no terminal state was reached in
	// time. The swap may still complete out of band.
	ErrSettlementTimeout = errors.New("settlement timed out")
	// ErrSessionNotFound is returned for unknown session ids.
	ErrSessionNotFound = errors.New("settlement session not found")
	// ErrTooManySessions is returned when the active session limit is reached.
	ErrTooManySessions = errors.New("too many active settlement sessions")
	// ErrUnknownChain is returned when a request names a chain without a probe.
	ErrUnknownChain = errors.New("chain is not configured")
	// ErrInvalidRequest is returned for malformed start requests.
	ErrInvalidRequest = errors.New("invalid settlement request")
)

// SettlementFailedError is the terminal failure of a settlement.
type SettlementFailedError struct {
	Reason     FailureReason
	SourceHash string
}

func (e *SettlementFailedError) Error() string {
	return fmt.Sprintf("settlement of %s failed: %s", e.SourceHash, e.Reason)
}

// Request starts tracking a submitted source transaction.
type Request struct {
	SourceChain string `json:"source_chain"`
	SourceHash  string `json:"source_hash"`
	DestChain   string `json:"dest_chain"`
	DestAddress string `json:"dest_address"`
	// Memo is the SWAP memo embedded in the source transaction, if known.
	Memo string `json:"memo,omitempty"`
}

// Status is an immutable snapshot of a settlement session.
type Status struct {
	ID        uuid.UUID       `json:"id"`
	Request   Request         `json:"request"`
	State     State           `json:"state"`
	Reason    FailureReason   `json:"failure_reason,omitempty"`
	Source    *chain.TxStatus `json:"source_tx,omitempty"`
	Action    *bridge.Action  `json:"bridge_action,omitempty"`
	Target    *chain.TxStatus `json:"target_tx,omitempty"`
	Polls     int             `json:"polls"`
	Cancelled bool            `json:"cancelled,omitempty"`
	StartedAt time.Time       `json:"started_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Terminal reports whether the snapshot is final.
func (s *Status) Terminal() bool {
	return s.State.Terminal()
}

// Active reports whether the session should still be polled.
func (s *Status) Active() bool {
	return !s.Terminal() && !s.Cancelled
}

// Err returns the session-ending error for failed and timed-out settlements.
func (s *Status) Err() error {
	switch s.State {
	case StateFailed:
		return &SettlementFailedError{Reason: s.Reason, SourceHash: s.Request.SourceHash}
	case StateTimeout:
		return ErrSettlementTimeout
	default:
		return nil
	}
}

func (s *Status) clone() *Status {
	out := *s
	return &out
}

func sortByStart(list []*Status) {
	slices.SortFunc(list, func(a, b *Status) int {
		return b.StartedAt.Compare(a.StartedAt)
	})
}
