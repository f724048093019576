// Package memo parses, builds and correlates the ASCII memos attached to swap
// transactions: SWAP:<TICKER>:<ADDRESS> to initiate, OUT:<HASH> and
// REFUND:<HASH> when the bridge network settles.
package memo

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// Kind is the memo action prefix.
type Kind string

const (
	KindSwap   Kind = "SWAP"
	KindOut    Kind = "OUT"
	KindRefund Kind = "REFUND"
)

const (
	separator = ":"
	ellipsis  = "..."
)

// ErrInvalidMemo is returned for memos that do not follow the wire format.
var ErrInvalidMemo = errors.New("invalid memo")

// Memo is a parsed memo. Ticker and Address are set for SWAP, Hash for OUT and REFUND.
type Memo struct {
	Kind    Kind
	Ticker  string
	Address string
	Hash    string
}

// Parse decodes a memo. Prefixes are case-insensitive and the settlement hash is normalized.
func Parse(raw string) (Memo, error) {
	parts := strings.SplitN(strings.TrimSpace(raw), separator, 3)
	if len(parts) < 2 {
		return Memo{}, fmt.Errorf("%w: %q", ErrInvalidMemo, raw)
	}

	switch kind := Kind(strings.ToUpper(parts[0])); kind {
	case KindSwap:
		if len(parts) != 3 || parts[1] == "" || parts[2] == "" {
			return Memo{}, fmt.Errorf("%w: swap memo needs ticker and address", ErrInvalidMemo)
		}
		return Memo{Kind: kind, Ticker: strings.ToUpper(parts[1]), Address: parts[2]}, nil
	case KindOut, KindRefund:
		payload := strings.Join(parts[1:], separator)
		if NormalizeHash(payload) == "" {
			return Memo{}, fmt.Errorf("%w: empty hash", ErrInvalidMemo)
		}
		return Memo{Kind: kind, Hash: NormalizeHash(payload)}, nil
	default:
		return Memo{}, fmt.Errorf("%w: unknown prefix %q", ErrInvalidMemo, parts[0])
	}
}

// BuildSwap returns the outbound-initiation memo.
func BuildSwap(ticker, address string) string {
	return string(KindSwap) + separator + strings.ToUpper(ticker) + separator + address
}

// BuildOut returns the settlement memo referencing sourceHash.
func BuildOut(sourceHash string) string {
	return string(KindOut) + separator + NormalizeHash(sourceHash)
}

// BuildRefund returns the refund memo referencing sourceHash.
func BuildRefund(sourceHash string) string {
	return string(KindRefund) + separator + NormalizeHash(sourceHash)
}

// NormalizeHash upper-cases a hash and strips any 0x prefix.
func NormalizeHash(hash string) string {
	h := strings.TrimSpace(hash)
	if len(h) >= 2 && (h[:2] == "0x" || h[:2] == "0X") {
		h = h[2:]
	}
	return strings.ToUpper(h)
}

func isHex(s string) bool {
	if len(s)%2 == 1 {
		s = "0" + s
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
