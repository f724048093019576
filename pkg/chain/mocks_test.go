package chain

import (
	"context"
	"sync"
)

type mockProbe struct {
	mu        sync.Mutex
	calls     int
	ProbeFunc func(ctx context.Context, hash string) (*TxStatus, error)
}

func (m *mockProbe) Probe(ctx context.Context, hash string) (*TxStatus, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.ProbeFunc != nil {
		return m.ProbeFunc(ctx, hash)
	}
	return nil, nil
}

func (m *mockProbe) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
