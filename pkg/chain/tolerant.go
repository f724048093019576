package chain

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/chainsafe/switchly-settlement/internal/metrics"
)

// Tolerant wraps a Probe so a failed attempt yields the last known status for
// the hash, or pending if there is none. One Tolerant serves one session.
type Tolerant struct {
	probe  Probe
	name   string
	chain  string
	kind   Kind
	logger *zap.Logger

	mu   sync.Mutex
	last map[string]TxStatus
}

// NewTolerant wraps probe. name labels metrics and logs.
func NewTolerant(probe Probe, name, chainID string, kind Kind, logger *zap.Logger) *Tolerant {
	return &Tolerant{
		probe:  probe,
		name:   name,
		chain:  chainID,
		kind:   kind,
		logger: logger,
		last:   make(map[string]TxStatus),
	}
}

// Probe never fails. On error the previous observation is returned with Stale set.
func (t *Tolerant) Probe(ctx context.Context, hash string) *TxStatus {
	start := time.Now()
	status, err := t.probe.Probe(ctx, hash)
	metrics.ProbeDuration.WithLabelValues(t.name).Observe(time.Since(start).Seconds())

	key := HashKey(hash)
	t.mu.Lock()
	defer t.mu.Unlock()

	if err != nil || status == nil {
		metrics.ProbeRequests.WithLabelValues(t.name, "error").Inc()
		t.logger.Warn("Probe failed, using last known status",
			zap.String("probe", t.name),
			zap.String("tx_hash", hash),
			zap.Error(err),
		)
		prev, ok := t.last[key]
		if !ok {
			prev = *Pending(t.chain, t.kind, hash)
		}
		prev.Stale = true
		return &prev
	}

	metrics.ProbeRequests.WithLabelValues(t.name, "ok").Inc()
	t.last[key] = *status
	out := *status
	return &out
}
