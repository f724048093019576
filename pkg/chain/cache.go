package chain

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru"
)

const defaultFinalityCacheSize = 4096

// FinalityCache short-circuits probes for transactions already observed as
// confirmed or failed. Confirmation counts are those of the first final observation.
// It is safe for concurrent use by many sessions.
type FinalityCache struct {
	probe Probe
	cache *lru.Cache
}

// NewFinalityCache wraps probe with an LRU of final statuses.
func NewFinalityCache(probe Probe, size int) (*FinalityCache, error) {
	if size <= 0 {
		size = defaultFinalityCacheSize
	}
	cache, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("failed to create finality cache: %w", err)
	}
	return &FinalityCache{probe: probe, cache: cache}, nil
}

func (c *FinalityCache) Probe(ctx context.Context, hash string) (*TxStatus, error) {
	key := HashKey(hash)
	if v, ok := c.cache.Get(key); ok {
		status := v.(TxStatus)
		return &status, nil
	}

	status, err := c.probe.Probe(ctx, hash)
	if err != nil {
		return nil, err
	}
	if status != nil && status.State.Final() {
		c.cache.Add(key, *status)
	}
	return status, nil
}
