package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/chainsafe/switchly-settlement/pkg/bridge"
	"github.com/chainsafe/switchly-settlement/pkg/settlement"
	"github.com/chainsafe/switchly-settlement/pkg/swap"
)

type mockSnapshots struct {
	SnapshotFunc func(ctx context.Context) (*bridge.Snapshot, error)
}

func (m *mockSnapshots) Snapshot(ctx context.Context) (*bridge.Snapshot, error) {
	return m.SnapshotFunc(ctx)
}

type mockSettlements struct {
	TrackFunc  func(ctx context.Context, req settlement.Request) (*settlement.Status, error)
	GetFunc    func(ctx context.Context, id uuid.UUID) (*settlement.Status, error)
	ListFunc   func(ctx context.Context, limit int) ([]*settlement.Status, error)
	CancelFunc func(ctx context.Context, id uuid.UUID) (*settlement.Status, error)
}

func (m *mockSettlements) Track(ctx context.Context, req settlement.Request) (*settlement.Status, error) {
	return m.TrackFunc(ctx, req)
}

func (m *mockSettlements) Get(ctx context.Context, id uuid.UUID) (*settlement.Status, error) {
	return m.GetFunc(ctx, id)
}

func (m *mockSettlements) List(ctx context.Context, limit int) ([]*settlement.Status, error) {
	return m.ListFunc(ctx, limit)
}

func (m *mockSettlements) Cancel(ctx context.Context, id uuid.UUID) (*settlement.Status, error) {
	return m.CancelFunc(ctx, id)
}

// mockService is a testify mock of Service for the HTTP layer.
type mockService struct {
	mock.Mock
}

func (m *mockService) ListPools(ctx context.Context) (*swap.PoolsResponse, error) {
	args := m.Called(ctx)
	resp, _ := args.Get(0).(*swap.PoolsResponse)
	return resp, args.Error(1)
}

func (m *mockService) Quote(ctx context.Context, req *swap.QuoteRequest) (*swap.QuoteResponse, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*swap.QuoteResponse)
	return resp, args.Error(1)
}

func (m *mockService) Rate(ctx context.Context, from, to string) (*swap.RateResponse, error) {
	args := m.Called(ctx, from, to)
	resp, _ := args.Get(0).(*swap.RateResponse)
	return resp, args.Error(1)
}

func (m *mockService) MatchMemo(ctx context.Context, req *swap.MatchRequest) (*swap.MatchResponse, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*swap.MatchResponse)
	return resp, args.Error(1)
}

func (m *mockService) StartSettlement(ctx context.Context, req *settlement.Request) (*settlement.Status, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*settlement.Status)
	return resp, args.Error(1)
}

func (m *mockService) GetSettlement(ctx context.Context, id uuid.UUID) (*settlement.Status, error) {
	args := m.Called(ctx, id)
	resp, _ := args.Get(0).(*settlement.Status)
	return resp, args.Error(1)
}

func (m *mockService) ListSettlements(ctx context.Context, limit int) ([]*settlement.Status, error) {
	args := m.Called(ctx, limit)
	resp, _ := args.Get(0).([]*settlement.Status)
	return resp, args.Error(1)
}

func (m *mockService) CancelSettlement(ctx context.Context, id uuid.UUID) (*settlement.Status, error) {
	args := m.Called(ctx, id)
	resp, _ := args.Get(0).(*settlement.Status)
	return resp, args.Error(1)
}
