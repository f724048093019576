package settlement

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/chainsafe/switchly-settlement/pkg/bridge"
	"github.com/chainsafe/switchly-settlement/pkg/chain"
)

type fakeTimer struct {
	at      time.Time
	f       func()
	stopped bool
	fired   bool
	sched   *fakeScheduler
}

func (t *fakeTimer) Stop() bool {
	t.sched.mu.Lock()
	defer t.sched.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

// fakeScheduler runs due callbacks synchronously from Advance.
type fakeScheduler struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (s *fakeScheduler) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

func (s *fakeScheduler) AfterFunc(d time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &fakeTimer{at: s.now.Add(d), f: f, sched: s}
	s.timers = append(s.timers, t)
	return t
}

func (s *fakeScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	target := s.now.Add(d)
	s.mu.Unlock()

	for {
		s.mu.Lock()
		pending := s.pendingLocked()
		sort.Slice(pending, func(i, j int) bool { return pending[i].at.Before(pending[j].at) })
		if len(pending) == 0 || pending[0].at.After(target) {
			s.now = target
			s.mu.Unlock()
			return
		}
		next := pending[0]
		next.fired = true
		s.now = next.at
		s.mu.Unlock()

		next.f()
	}
}

func (s *fakeScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pendingLocked())
}

func (s *fakeScheduler) pendingLocked() []*fakeTimer {
	var out []*fakeTimer
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			out = append(out, t)
		}
	}
	return out
}

type mockProbe struct {
	ProbeFunc func(ctx context.Context, hash string) (*chain.TxStatus, error)
	calls     atomic.Int32
}

func (m *mockProbe) Probe(ctx context.Context, hash string) (*chain.TxStatus, error) {
	m.calls.Add(1)
	return m.ProbeFunc(ctx, hash)
}

func (m *mockProbe) Calls() int {
	return int(m.calls.Load())
}

type mockFinder struct {
	FindPayoutFunc func(ctx context.Context, address, sourceHash string) (*chain.TxStatus, error)
	calls          atomic.Int32
}

func (m *mockFinder) FindPayout(ctx context.Context, address, sourceHash string) (*chain.TxStatus, error) {
	m.calls.Add(1)
	return m.FindPayoutFunc(ctx, address, sourceHash)
}

type mockActions struct {
	FindActionFunc func(ctx context.Context, sourceHash string) (*bridge.Action, error)
	calls          atomic.Int32
}

func (m *mockActions) FindAction(ctx context.Context, sourceHash string) (*bridge.Action, error) {
	m.calls.Add(1)
	return m.FindActionFunc(ctx, sourceHash)
}

func (m *mockActions) Calls() int {
	return int(m.calls.Load())
}

type mockStore struct {
	CreateSettlementFunc      func(ctx context.Context, st *Status) error
	UpdateSettlementFunc      func(ctx context.Context, st *Status) error
	GetSettlementFunc         func(ctx context.Context, id uuid.UUID) (*Status, error)
	ListSettlementsFunc       func(ctx context.Context, limit int) ([]*Status, error)
	ListActiveSettlementsFunc func(ctx context.Context) ([]*Status, error)
}

func (m *mockStore) CreateSettlement(ctx context.Context, st *Status) error {
	if m.CreateSettlementFunc == nil {
		return nil
	}
	return m.CreateSettlementFunc(ctx, st)
}

func (m *mockStore) UpdateSettlement(ctx context.Context, st *Status) error {
	if m.UpdateSettlementFunc == nil {
		return nil
	}
	return m.UpdateSettlementFunc(ctx, st)
}

func (m *mockStore) GetSettlement(ctx context.Context, id uuid.UUID) (*Status, error) {
	return m.GetSettlementFunc(ctx, id)
}

func (m *mockStore) ListSettlements(ctx context.Context, limit int) ([]*Status, error) {
	return m.ListSettlementsFunc(ctx, limit)
}

func (m *mockStore) ListActiveSettlements(ctx context.Context) ([]*Status, error) {
	return m.ListActiveSettlementsFunc(ctx)
}
