package evm

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

type mockClient struct {
	mu           sync.Mutex
	blockFetches int

	TransactionByHashFunc  func(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error)
	TransactionReceiptFunc func(ctx context.Context, hash common.Hash) (*types.Receipt, error)
	BlockNumberFunc        func(ctx context.Context) (uint64, error)
	BlockByNumberFunc      func(ctx context.Context, number *big.Int) (*types.Block, error)
}

func (m *mockClient) TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error) {
	if m.TransactionByHashFunc != nil {
		return m.TransactionByHashFunc(ctx, hash)
	}
	return nil, false, ethereum.NotFound
}

func (m *mockClient) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	if m.TransactionReceiptFunc != nil {
		return m.TransactionReceiptFunc(ctx, hash)
	}
	return nil, ethereum.NotFound
}

func (m *mockClient) BlockNumber(ctx context.Context) (uint64, error) {
	if m.BlockNumberFunc != nil {
		return m.BlockNumberFunc(ctx)
	}
	return 0, nil
}

func (m *mockClient) BlockByNumber(ctx context.Context, number *big.Int) (*types.Block, error) {
	m.mu.Lock()
	m.blockFetches++
	m.mu.Unlock()
	if m.BlockByNumberFunc != nil {
		return m.BlockByNumberFunc(ctx, number)
	}
	return types.NewBlockWithHeader(&types.Header{Number: number}), nil
}

func (m *mockClient) BlockFetches() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.blockFetches
}
