package bridge

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/chainsafe/switchly-settlement/internal/metrics"
)

const (
	defaultCacheTTL = 15 * time.Second
	// refreshTimeout bounds a shared refresh, which outlives the caller that started it.
	refreshTimeout = 30 * time.Second
)

// SnapshotSource fetches pools and network parameters.
type SnapshotSource interface {
	Pools(ctx context.Context) ([]Pool, error)
	Network(ctx context.Context) (*Network, error)
}

// Snapshot is an immutable view of pools and fees taken at FetchedAt.
type Snapshot struct {
	Pools     map[string]Pool
	Network   Network
	FetchedAt time.Time
}

// Pool looks up a pool by the network's asset identifier.
func (s *Snapshot) Pool(poolAsset string) (Pool, bool) {
	p, ok := s.Pools[strings.ToUpper(poolAsset)]
	return p, ok
}

// Cache serves pool snapshots shared by all requests. Snapshots are replaced
// wholesale, never modified, and concurrent refreshes collapse into one fetch.
type Cache struct {
	source SnapshotSource
	ttl    time.Duration
	now    func() time.Time
	logger *zap.Logger

	current atomic.Pointer[Snapshot]
	group   singleflight.Group
}

// NewCache creates a cache refreshing from source after ttl.
func NewCache(source SnapshotSource, ttl time.Duration, logger *zap.Logger) *Cache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Cache{
		source: source,
		ttl:    ttl,
		now:    time.Now,
		logger: logger.With(zap.String("component", "pool_cache")),
	}
}

// Snapshot returns a fresh snapshot, refreshing if the current one expired.
// When a refresh fails the previous snapshot is served if there is one.
func (c *Cache) Snapshot(ctx context.Context) (*Snapshot, error) {
	cur := c.current.Load()
	if cur != nil && c.now().Sub(cur.FetchedAt) < c.ttl {
		return cur, nil
	}

	ch := c.group.DoChan("snapshot", func() (any, error) {
		refreshCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()
		return c.refresh(refreshCtx)
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		res.Err = ctx.Err()
	}
	if res.Err != nil {
		if cur != nil {
			c.logger.Warn("Serving stale pool snapshot", zap.Time("fetched_at", cur.FetchedAt), zap.Error(res.Err))
			return cur, nil
		}
		return nil, res.Err
	}
	return res.Val.(*Snapshot), nil
}

func (c *Cache) refresh(ctx context.Context) (*Snapshot, error) {
	var (
		pools   []Pool
		network *Network
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		pools, err = c.source.Pools(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		network, err = c.source.Network(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		metrics.PoolCacheRefreshes.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to refresh pool snapshot: %w", err)
	}

	snap := &Snapshot{
		Pools:     make(map[string]Pool, len(pools)),
		Network:   *network,
		FetchedAt: c.now(),
	}
	for _, p := range pools {
		snap.Pools[strings.ToUpper(p.Asset)] = p
	}

	c.current.Store(snap)
	metrics.PoolCacheRefreshes.WithLabelValues("ok").Inc()
	c.logger.Debug("Pool snapshot refreshed", zap.Int("pools", len(pools)))
	return snap, nil
}
