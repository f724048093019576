// Package ledger observes transactions on ledger-model chains through a
// Horizon-style REST API.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/chainsafe/switchly-settlement/pkg/chain"
	"github.com/chainsafe/switchly-settlement/pkg/memo"
)

const (
	probeName      = "ledger"
	defaultLimit   = 50
	defaultTimeout = 10 * time.Second
	maxBodySize    = 4 << 20
)

var errNotFound = errors.New("not found")

// Probe reports transaction status and discovers payouts on one ledger chain.
type Probe struct {
	baseURL string
	chainID string
	limit   int
	matcher memo.Matcher
	client  *http.Client
	logger  *zap.Logger
}

// NewProbe creates a probe for the REST API at baseURL. limit bounds the
// number of recent account transactions inspected for payouts.
func NewProbe(baseURL, chainID string, matcher memo.Matcher, limit int, timeout time.Duration, logger *zap.Logger) *Probe {
	if limit <= 0 {
		limit = defaultLimit
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Probe{
		baseURL: strings.TrimRight(baseURL, "/"),
		chainID: chainID,
		limit:   limit,
		matcher: matcher,
		client:  &http.Client{Timeout: timeout},
		logger:  logger.With(zap.String("component", "ledger_probe"), zap.String("chain", chainID)),
	}
}

// Probe maps HTTP 404 to pending and the payload's success flag to confirmed or failed.
func (p *Probe) Probe(ctx context.Context, hash string) (*chain.TxStatus, error) {
	hash = normalizeHash(hash)
	if hash == "" {
		return nil, fmt.Errorf("empty transaction hash")
	}

	body, err := p.get(ctx, "/transactions/"+url.PathEscape(hash))
	if errors.Is(err, errNotFound) {
		return chain.Pending(p.chainID, chain.KindLedger, hash), nil
	}
	if err != nil {
		return nil, err
	}

	status, err := p.statusFromRecord(gjson.ParseBytes(body))
	if err != nil {
		return nil, chain.Transient(probeName, err)
	}
	return status, nil
}

// FindPayout inspects the most recent transactions of address for an OUT memo
// referencing sourceHash.
func (p *Probe) FindPayout(ctx context.Context, address, sourceHash string) (*chain.TxStatus, error) {
	if address == "" {
		return nil, fmt.Errorf("empty destination address")
	}

	path := fmt.Sprintf("/accounts/%s/transactions?order=desc&limit=%d", url.PathEscape(address), p.limit)
	body, err := p.get(ctx, path)
	if errors.Is(err, errNotFound) {
		// Unfunded accounts do not exist until the first payment lands.
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	records := gjson.GetBytes(body, "_embedded.records")
	if !records.IsArray() {
		return nil, chain.Transient(probeName, fmt.Errorf("account transactions payload has no records"))
	}

	var found *chain.TxStatus
	var parseErr error
	records.ForEach(func(_, record gjson.Result) bool {
		candidate := record.Get("memo").String()
		if candidate == "" || !p.matcher.Matches(candidate, sourceHash) {
			return true
		}
		found, parseErr = p.statusFromRecord(record)
		return false
	})
	if parseErr != nil {
		return nil, chain.Transient(probeName, parseErr)
	}
	if found != nil {
		p.logger.Info("Found destination payout",
			zap.String("source_tx", sourceHash),
			zap.String("payout_tx", found.Hash),
		)
	}
	return found, nil
}

func (p *Probe) statusFromRecord(record gjson.Result) (*chain.TxStatus, error) {
	hash := record.Get("hash").String()
	successful := record.Get("successful")
	if hash == "" || (successful.Type != gjson.True && successful.Type != gjson.False) {
		return nil, fmt.Errorf("malformed transaction record")
	}

	status := &chain.TxStatus{
		Hash:       hash,
		Chain:      p.chainID,
		Kind:       chain.KindLedger,
		State:      chain.TxFailed,
		Memo:       record.Get("memo").String(),
		ObservedAt: time.Now().UTC(),
	}
	if successful.Bool() {
		status.State = chain.TxConfirmed
	}
	if ledger := record.Get("ledger"); ledger.Exists() {
		height := ledger.Uint()
		status.Height = &height
	}
	return status, nil
}

func (p *Probe) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, chain.Transient(probeName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, errNotFound
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, chain.Transient(probeName, fmt.Errorf("failed to read response: %w", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, chain.Transient(probeName, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}
	if !gjson.ValidBytes(body) {
		return nil, chain.Transient(probeName, fmt.Errorf("invalid JSON payload"))
	}
	return body, nil
}

func normalizeHash(hash string) string {
	return chain.HashKey(hash)
}
