package bridge

import (
	"context"
	"sync/atomic"
)

type mockQueue struct {
	OutboundQueueFunc func(ctx context.Context) ([]OutboundEntry, error)
}

func (m *mockQueue) OutboundQueue(ctx context.Context) ([]OutboundEntry, error) {
	return m.OutboundQueueFunc(ctx)
}

type mockSource struct {
	PoolsFunc   func(ctx context.Context) ([]Pool, error)
	NetworkFunc func(ctx context.Context) (*Network, error)

	poolCalls atomic.Int32
}

func (m *mockSource) Pools(ctx context.Context) ([]Pool, error) {
	m.poolCalls.Add(1)
	return m.PoolsFunc(ctx)
}

func (m *mockSource) Network(ctx context.Context) (*Network, error) {
	return m.NetworkFunc(ctx)
}
