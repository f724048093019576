package bridge

import (
	"context"
	"time"

	"github.com/chainsafe/switchly-settlement/internal/metrics"
	"github.com/chainsafe/switchly-settlement/pkg/memo"
)

// QueueSource lists the outbound queue.
type QueueSource interface {
	OutboundQueue(ctx context.Context) ([]OutboundEntry, error)
}

// ActionProbe finds the bridge action for a source transaction.
type ActionProbe struct {
	queue QueueSource
}

// NewActionProbe creates a probe over queue.
func NewActionProbe(queue QueueSource) *ActionProbe {
	return &ActionProbe{queue: queue}
}

// FindAction returns the classified queue entry whose inbound hash equals
// sourceHash, or nil when none is queued. Absence is not a failure: the entry
// may not be queued yet or may already have been paid out.
func (p *ActionProbe) FindAction(ctx context.Context, sourceHash string) (*Action, error) {
	start := time.Now()
	entries, err := p.queue.OutboundQueue(ctx)
	metrics.ProbeDuration.WithLabelValues(probeName).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ProbeRequests.WithLabelValues(probeName, "error").Inc()
		return nil, err
	}
	metrics.ProbeRequests.WithLabelValues(probeName, "ok").Inc()

	want := memo.NormalizeHash(sourceHash)
	var found *Action
	for _, entry := range entries {
		if memo.NormalizeHash(entry.InHash) != want {
			continue
		}
		action := Classify(entry)
		if found == nil || classRank(action) > classRank(*found) {
			found = &action
		}
	}
	return found, nil
}
