package bridge

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chainsafe/switchly-settlement/pkg/asset"
)

func staticSource() *mockSource {
	return &mockSource{
		PoolsFunc: func(context.Context) ([]Pool, error) {
			return []Pool{
				{Asset: "btc.btc", BalanceAsset: decimal.NewFromInt(1000), BalanceBridge: decimal.NewFromInt(2000), Status: "Available"},
			}, nil
		},
		NetworkFunc: func(context.Context) (*Network, error) {
			return &Network{NativeOutboundFee: decimal.NewFromInt(10), OutboundFeeMultiplier: decimal.NewFromInt(10000)}, nil
		},
	}
}

func TestCache_SnapshotWithinTTL(t *testing.T) {
	src := staticSource()
	cache := NewCache(src, time.Minute, zap.NewNop())
	now := time.Unix(1_700_000_000, 0)
	cache.now = func() time.Time { return now }

	snap, err := cache.Snapshot(context.Background())
	require.NoError(t, err)
	pool, ok := snap.Pool("BTC.BTC")
	require.True(t, ok)
	assert.True(t, pool.BalanceAsset.Equal(decimal.NewFromInt(1000)))
	assert.Equal(t, int64(10000), snap.Network.Fees().MultiplierBps)

	now = now.Add(30 * time.Second)
	again, err := cache.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Same(t, snap, again)
	assert.Equal(t, int32(1), src.poolCalls.Load())

	now = now.Add(time.Minute)
	_, err = cache.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), src.poolCalls.Load())
}

func TestCache_ServesStaleOnError(t *testing.T) {
	src := staticSource()
	cache := NewCache(src, time.Second, zap.NewNop())
	now := time.Unix(1_700_000_000, 0)
	cache.now = func() time.Time { return now }

	first, err := cache.Snapshot(context.Background())
	require.NoError(t, err)

	src.PoolsFunc = func(context.Context) ([]Pool, error) { return nil, errors.New("unreachable") }
	now = now.Add(time.Hour)

	snap, err := cache.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Same(t, first, snap)
}

func TestCache_ErrorWithoutSnapshot(t *testing.T) {
	src := staticSource()
	src.NetworkFunc = func(context.Context) (*Network, error) { return nil, errors.New("down") }
	cache := NewCache(src, time.Second, zap.NewNop())

	snap, err := cache.Snapshot(context.Background())
	assert.Nil(t, snap)
	assert.Error(t, err)
}

func TestCache_ConcurrentRefreshCollapses(t *testing.T) {
	release := make(chan struct{})
	src := staticSource()
	inner := src.PoolsFunc
	src.PoolsFunc = func(ctx context.Context) ([]Pool, error) {
		<-release
		return inner(ctx)
	}
	cache := NewCache(src, time.Minute, zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := cache.Snapshot(context.Background())
			assert.NoError(t, err)
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), src.poolCalls.Load())
}

func TestCache_CancelledCallerDoesNotFailOthers(t *testing.T) {
	release := make(chan struct{})
	src := staticSource()
	inner := src.PoolsFunc
	src.PoolsFunc = func(ctx context.Context) ([]Pool, error) {
		<-release
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return inner(ctx)
	}
	cache := NewCache(src, time.Minute, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := cache.Snapshot(ctx)
		first <- err
	}()
	require.Eventually(t, func() bool { return src.poolCalls.Load() == 1 }, time.Second, time.Millisecond)

	second := make(chan error, 1)
	go func() {
		snap, err := cache.Snapshot(context.Background())
		if err == nil && snap == nil {
			err = errors.New("nil snapshot")
		}
		second <- err
	}()

	cancel()
	assert.ErrorIs(t, <-first, context.Canceled)

	close(release)
	require.NoError(t, <-second)
	assert.Equal(t, int32(1), src.poolCalls.Load())
}

func TestPool_Snapshot(t *testing.T) {
	ref := asset.Ref{Chain: "BTC", Symbol: "BTC", Decimals: 8}
	p := Pool{Asset: "BTC.BTC", BalanceAsset: decimal.NewFromInt(5), BalanceBridge: decimal.NewFromInt(7), Status: "Available"}

	snap := p.Snapshot(ref)
	assert.Equal(t, ref, snap.Asset)
	assert.True(t, snap.AssetDepth.Equal(decimal.NewFromInt(5)))
	assert.True(t, snap.BridgeDepth.Equal(decimal.NewFromInt(7)))
}
