// Package evm observes transactions on account-model chains over JSON-RPC.
package evm

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	lru "github.com/hashicorp/golang-lru"
	"go.uber.org/zap"

	"github.com/chainsafe/switchly-settlement/pkg/asset"
	"github.com/chainsafe/switchly-settlement/pkg/chain"
	"github.com/chainsafe/switchly-settlement/pkg/memo"
)

const (
	probeName          = "evm"
	defaultLookback    = 64
	payoutCursorsLimit = 1024
)

var txHashPattern = regexp.MustCompile(`^(0x|0X)?[0-9a-fA-F]{64}$`)

// Client is the subset of ethclient.Client the probe needs.
type Client interface {
	TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	BlockNumber(ctx context.Context) (uint64, error)
	BlockByNumber(ctx context.Context, number *big.Int) (*types.Block, error)
}

// Dial connects to an account-model chain RPC endpoint.
func Dial(ctx context.Context, rpcURL string) (*ethclient.Client, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC %s: %w", rpcURL, err)
	}
	return client, nil
}

// Probe reports transaction status and discovers payouts on one EVM chain.
type Probe struct {
	client   Client
	chainID  string
	native   asset.Ref
	matcher  memo.Matcher
	lookback uint64
	logger   *zap.Logger

	// token contracts on this chain, keyed by contract address
	tokens map[common.Address]asset.Ref

	// last scanned block per (address, source hash), so repeated payout
	// searches only walk new blocks.
	cursors *lru.Cache
}

// Option configures a Probe.
type Option func(*Probe)

// WithTokens registers the contract assets of the chain so token payouts can
// be discovered and their amounts reported. Refs without a hex contract
// address are ignored.
func WithTokens(refs ...asset.Ref) Option {
	return func(p *Probe) {
		for _, ref := range refs {
			if ref.Native || !common.IsHexAddress(ref.ContractOrIssuer) {
				continue
			}
			p.tokens[common.HexToAddress(ref.ContractOrIssuer)] = ref
		}
	}
}

// NewProbe creates a probe. native is the chain's gas asset, used to report payout amounts.
func NewProbe(client Client, chainID string, native asset.Ref, matcher memo.Matcher, lookback uint64, logger *zap.Logger, opts ...Option) (*Probe, error) {
	if lookback == 0 {
		lookback = defaultLookback
	}
	cursors, err := lru.New(payoutCursorsLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to create payout cursor cache: %w", err)
	}
	p := &Probe{
		client:   client,
		chainID:  chainID,
		native:   native,
		matcher:  matcher,
		lookback: lookback,
		logger:   logger.With(zap.String("component", "evm_probe"), zap.String("chain", chainID)),
		tokens:   make(map[common.Address]asset.Ref),
		cursors:  cursors,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Probe maps a transaction to pending (unknown or no receipt yet), confirmed or failed.
func (p *Probe) Probe(ctx context.Context, hash string) (*chain.TxStatus, error) {
	if !txHashPattern.MatchString(hash) {
		return nil, fmt.Errorf("invalid transaction hash %q", hash)
	}
	txHash := common.HexToHash(hash)

	_, isPending, err := p.client.TransactionByHash(ctx, txHash)
	if errors.Is(err, ethereum.NotFound) || (err == nil && isPending) {
		return chain.Pending(p.chainID, chain.KindAccount, txHash.Hex()), nil
	}
	if err != nil {
		return nil, chain.Transient(probeName, fmt.Errorf("failed to get transaction: %w", err))
	}

	receipt, err := p.client.TransactionReceipt(ctx, txHash)
	if errors.Is(err, ethereum.NotFound) {
		return chain.Pending(p.chainID, chain.KindAccount, txHash.Hex()), nil
	}
	if err != nil {
		return nil, chain.Transient(probeName, fmt.Errorf("failed to get receipt: %w", err))
	}

	head, err := p.client.BlockNumber(ctx)
	if err != nil {
		return nil, chain.Transient(probeName, fmt.Errorf("failed to get latest block: %w", err))
	}

	return p.statusFromReceipt(txHash, receipt, head), nil
}

func (p *Probe) statusFromReceipt(txHash common.Hash, receipt *types.Receipt, head uint64) *chain.TxStatus {
	status := &chain.TxStatus{
		Hash:       txHash.Hex(),
		Chain:      p.chainID,
		Kind:       chain.KindAccount,
		State:      chain.TxFailed,
		ObservedAt: time.Now().UTC(),
	}
	if receipt.Status == types.ReceiptStatusSuccessful {
		status.State = chain.TxConfirmed
	}
	if receipt.BlockNumber != nil {
		height := receipt.BlockNumber.Uint64()
		var confirmations uint64
		if head >= height {
			confirmations = head - height
		}
		status.Height = &height
		status.Confirmations = &confirmations
	}
	return status
}
