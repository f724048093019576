package evm

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/chainsafe/switchly-settlement/pkg/asset"
	"github.com/chainsafe/switchly-settlement/pkg/chain"
	"github.com/chainsafe/switchly-settlement/pkg/memo"
)

// payoutABI covers the contract calls an outbound payout is made with: a
// plain ERC-20 transfer with the memo appended to the arguments, and the
// bridge router's transferOut.
const payoutABI = `[
	{"type":"function","name":"transfer","stateMutability":"nonpayable",
	 "inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],
	 "outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"transferOut","stateMutability":"payable",
	 "inputs":[{"name":"to","type":"address"},{"name":"asset","type":"address"},{"name":"amount","type":"uint256"},{"name":"memo","type":"string"}],
	 "outputs":[]}
]`

var (
	memoMarkers = [][]byte{[]byte(memo.KindOut + ":"), []byte(memo.KindRefund + ":")}
	payoutCalls = mustParseABI(payoutABI)
)

// erc20TransferArgsLen is the selector plus two static words.
const erc20TransferArgsLen = 4 + 2*32

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("invalid payout ABI: %v", err))
	}
	return parsed
}

// payout is a transaction paying the destination address.
type payout struct {
	memo   string
	amount *big.Int
	ref    asset.Ref
}

// FindPayout walks recent blocks for a transaction paying address whose memo
// references sourceHash. Native transfers, ERC-20 transfers of registered
// tokens and router transferOut calls are recognised.
func (p *Probe) FindPayout(ctx context.Context, address, sourceHash string) (*chain.TxStatus, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("invalid destination address %q", address)
	}
	to := common.HexToAddress(address)

	head, err := p.client.BlockNumber(ctx)
	if err != nil {
		return nil, chain.Transient(probeName, fmt.Errorf("failed to get latest block: %w", err))
	}

	from := uint64(0)
	if head > p.lookback {
		from = head - p.lookback
	}
	key := to.Hex() + "|" + chain.HashKey(sourceHash)
	if v, ok := p.cursors.Get(key); ok {
		if scanned := v.(uint64); scanned+1 > from {
			from = scanned + 1
		}
	}

	for n := from; n <= head; n++ {
		block, err := p.client.BlockByNumber(ctx, new(big.Int).SetUint64(n))
		if err != nil {
			return nil, chain.Transient(probeName, fmt.Errorf("failed to get block %d: %w", n, err))
		}
		for _, tx := range block.Transactions() {
			paid, ok := p.decodePayout(tx, to)
			if !ok || paid.memo == "" || !p.matcher.Matches(paid.memo, sourceHash) {
				continue
			}

			p.logger.Info("Found destination payout",
				zap.String("source_tx", sourceHash),
				zap.String("payout_tx", tx.Hash().Hex()),
				zap.String("asset", paid.ref.Ticker()),
				zap.Uint64("block", n),
			)
			return p.payoutStatus(ctx, tx, paid, head)
		}
		p.cursors.Add(key, n)
	}

	return nil, nil
}

// decodePayout reports whether tx pays to and how much of which asset.
func (p *Probe) decodePayout(tx *types.Transaction, to common.Address) (payout, bool) {
	if tx.To() == nil {
		return payout{}, false
	}
	data := tx.Data()
	if *tx.To() == to {
		return payout{memo: extractMemo(data), amount: tx.Value(), ref: p.native}, true
	}
	if len(data) < 4 {
		return payout{}, false
	}
	method, err := payoutCalls.MethodById(data[:4])
	if err != nil {
		return payout{}, false
	}

	switch method.Name {
	case "transfer":
		token, ok := p.tokens[*tx.To()]
		if !ok || len(data) < erc20TransferArgsLen {
			return payout{}, false
		}
		if common.BytesToAddress(data[4:36]) != to {
			return payout{}, false
		}
		return payout{
			memo:   extractMemo(data[erc20TransferArgsLen:]),
			amount: new(big.Int).SetBytes(data[36:68]),
			ref:    token,
		}, true

	case "transferOut":
		args, err := method.Inputs.Unpack(data[4:])
		if err != nil || len(args) != 4 {
			return payout{}, false
		}
		recipient, _ := args[0].(common.Address)
		assetAddr, _ := args[1].(common.Address)
		amount, _ := args[2].(*big.Int)
		payoutMemo, _ := args[3].(string)
		if recipient != to {
			return payout{}, false
		}
		ref := p.native
		if assetAddr != (common.Address{}) {
			token, ok := p.tokens[assetAddr]
			if !ok {
				return payout{}, false
			}
			ref = token
		}
		return payout{memo: strings.TrimSpace(payoutMemo), amount: amount, ref: ref}, true
	}
	return payout{}, false
}

func (p *Probe) payoutStatus(ctx context.Context, tx *types.Transaction, paid payout, head uint64) (*chain.TxStatus, error) {
	receipt, err := p.client.TransactionReceipt(ctx, tx.Hash())
	if err != nil {
		return nil, chain.Transient(probeName, fmt.Errorf("failed to get payout receipt: %w", err))
	}
	status := p.statusFromReceipt(tx.Hash(), receipt, head)
	status.Memo = paid.memo
	if paid.amount != nil && paid.amount.Sign() > 0 {
		amount := asset.ToHumanUnits(asset.FromNativeUnits(paid.amount, paid.ref), paid.ref)
		status.Amount = &amount
	}
	return status, nil
}

// extractMemo returns the printable memo embedded in calldata, either as the
// whole payload or appended after contract call arguments.
func extractMemo(data []byte) string {
	folded := asciiUpper(data)
	for _, marker := range memoMarkers {
		idx := bytes.Index(folded, marker)
		if idx < 0 {
			continue
		}
		end := idx
		for end < len(data) && data[end] >= 0x21 && data[end] <= 0x7e {
			end++
		}
		return strings.TrimSpace(string(data[idx:end]))
	}
	return ""
}

// asciiUpper folds a-z only, so indexes into the result are valid in data.
func asciiUpper(data []byte) []byte {
	folded := make([]byte, len(data))
	for i, b := range data {
		if 'a' <= b && b <= 'z' {
			b -= 'a' - 'A'
		}
		folded[i] = b
	}
	return folded
}
