// Package chain models transaction confirmation observations for the chains a
// swap touches. Concrete probes live in the evm and ledger subpackages.
package chain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Kind distinguishes how a chain is observed.
type Kind string

const (
	// KindAccount is an account-model chain observed over EVM JSON-RPC.
	KindAccount Kind = "account"
	// KindLedger is a ledger-model chain observed over a Horizon-style REST API.
	KindLedger Kind = "ledger"
)

// TxState is the confirmation state of one transaction.
type TxState string

const (
	TxPending   TxState = "pending"
	TxConfirmed TxState = "confirmed"
	TxFailed    TxState = "failed"
)

// Final reports whether the state can no longer change.
func (s TxState) Final() bool {
	return s == TxConfirmed || s == TxFailed
}

// TxStatus is one observation of a transaction. It is superseded by the next
// observation and never mutated once returned.
type TxStatus struct {
	Hash          string           `json:"hash"`
	Chain         string           `json:"chain"`
	Kind          Kind             `json:"kind"`
	State         TxState          `json:"state"`
	Confirmations *uint64          `json:"confirmations,omitempty"`
	Height        *uint64          `json:"height,omitempty"`
	Memo          string           `json:"memo,omitempty"`
	Amount        *decimal.Decimal `json:"amount,omitempty"`
	// Stale marks a status repeated from an earlier observation because the latest probe failed.
	Stale      bool      `json:"stale,omitempty"`
	ObservedAt time.Time `json:"observed_at"`
}

// Pending returns a pending observation for hash.
func Pending(chainID string, kind Kind, hash string) *TxStatus {
	return &TxStatus{
		Hash:       hash,
		Chain:      chainID,
		Kind:       kind,
		State:      TxPending,
		ObservedAt: time.Now().UTC(),
	}
}

// Probe reports the confirmation status of a transaction by hash.
type Probe interface {
	Probe(ctx context.Context, hash string) (*TxStatus, error)
}

// PayoutFinder locates the destination payout whose memo references sourceHash
// among recent transactions of address. It returns nil when none is found yet.
type PayoutFinder interface {
	FindPayout(ctx context.Context, address, sourceHash string) (*TxStatus, error)
}

// ProbeTransientError wraps a network or HTTP failure of a single probe attempt.
// It is retried with backoff and never ends a settlement by itself.
type ProbeTransientError struct {
	Probe string
	Err   error
}

func (e *ProbeTransientError) Error() string {
	return fmt.Sprintf("%s probe: %v", e.Probe, e.Err)
}

func (e *ProbeTransientError) Unwrap() error {
	return e.Err
}

// Transient wraps err as a ProbeTransientError.
func Transient(probe string, err error) error {
	if err == nil {
		return nil
	}
	return &ProbeTransientError{Probe: probe, Err: err}
}

// IsTransient reports whether err is a ProbeTransientError.
func IsTransient(err error) bool {
	var te *ProbeTransientError
	return errors.As(err, &te)
}

// HashKey normalizes a hash for map and cache keys.
func HashKey(hash string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(hash)), "0x")
}
