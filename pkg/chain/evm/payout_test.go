package evm

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainsafe/switchly-settlement/pkg/chain"
	"github.com/chainsafe/switchly-settlement/pkg/memo"
)

const (
	destination = "0x00000000000000000000000000000000000000aa"
	sourceHash  = "ABCD1234567890ABCDEF0123456789ABCDEF0123456789ABCDEF01234567890F"
)

func blockWith(number int64, txs ...*types.Transaction) *types.Block {
	return types.NewBlockWithHeader(&types.Header{Number: big.NewInt(number)}).
		WithBody(types.Body{Transactions: txs})
}

func payoutTx(to string, data []byte) *types.Transaction {
	oneEth, _ := new(big.Int).SetString("1000000000000000000", 10)
	return types.NewTransaction(7, common.HexToAddress(to), oneEth, 21000, big.NewInt(1), data)
}

func TestFindPayout(t *testing.T) {
	matcher := memo.NewMatcher(8, 12)
	payout := payoutTx(destination, []byte(memo.BuildOut(matcher.Truncate(sourceHash))))
	unrelated := payoutTx(destination, []byte("OUT:FFFF"))
	elsewhere := payoutTx("0x00000000000000000000000000000000000000bb", []byte(memo.BuildOut(sourceHash)))

	client := &mockClient{
		BlockNumberFunc: func(context.Context) (uint64, error) { return 20, nil },
		BlockByNumberFunc: func(_ context.Context, number *big.Int) (*types.Block, error) {
			if number.Int64() == 18 {
				return blockWith(18, unrelated, elsewhere, payout), nil
			}
			return blockWith(number.Int64()), nil
		},
		TransactionReceiptFunc: func(_ context.Context, hash common.Hash) (*types.Receipt, error) {
			require.Equal(t, payout.Hash(), hash)
			return &types.Receipt{Status: types.ReceiptStatusSuccessful, BlockNumber: big.NewInt(18)}, nil
		},
	}
	p := newTestProbe(t, client)

	status, err := p.FindPayout(context.Background(), destination, "0x"+sourceHash)
	require.NoError(t, err)
	require.NotNil(t, status)
	assert.Equal(t, payout.Hash().Hex(), status.Hash)
	assert.Equal(t, chain.TxConfirmed, status.State)
	assert.EqualValues(t, 2, *status.Confirmations)
	require.NotNil(t, status.Amount)
	assert.Equal(t, "1", status.Amount.String())
	assert.Contains(t, status.Memo, "OUT:")
}

func TestFindPayout_NotFoundAdvancesCursor(t *testing.T) {
	head := uint64(100)
	client := &mockClient{
		BlockNumberFunc: func(context.Context) (uint64, error) { return head, nil },
	}
	p := newTestProbe(t, client)

	status, err := p.FindPayout(context.Background(), destination, sourceHash)
	require.NoError(t, err)
	assert.Nil(t, status)
	assert.Equal(t, 11, client.BlockFetches())

	head = 102
	_, err = p.FindPayout(context.Background(), destination, sourceHash)
	require.NoError(t, err)
	assert.Equal(t, 13, client.BlockFetches())
}

func TestFindPayout_InvalidAddress(t *testing.T) {
	p := newTestProbe(t, &mockClient{})

	_, err := p.FindPayout(context.Background(), "GABC", sourceHash)
	assert.Error(t, err)
}

func TestExtractMemo(t *testing.T) {
	assert.Equal(t, "OUT:ABCD", extractMemo([]byte("OUT:ABCD")))
	assert.Equal(t, "out:abcd", extractMemo(append([]byte{0xa9, 0x05, 0x9c, 0xbb, 0x00}, []byte("out:abcd\x00\x00")...)))
	assert.Equal(t, "REFUND:EF", extractMemo([]byte("REFUND:EF")))
	assert.Equal(t, "", extractMemo([]byte{0x01, 0x02}))
	assert.Equal(t, "", extractMemo(nil))

	outMemo := memo.BuildOut(sourceHash)
	calldata := erc20Transfer(destination, big.NewInt(1_000_000), outMemo)
	assert.Equal(t, outMemo, extractMemo(calldata))
}

func erc20Transfer(to string, amount *big.Int, payoutMemo string) []byte {
	data := append([]byte{}, payoutCalls.Methods["transfer"].ID...)
	data = append(data, common.LeftPadBytes(common.HexToAddress(to).Bytes(), 32)...)
	data = append(data, common.LeftPadBytes(amount.Bytes(), 32)...)
	return append(data, []byte(payoutMemo)...)
}

func contractCall(contract string, data []byte) *types.Transaction {
	return types.NewTransaction(9, common.HexToAddress(contract), big.NewInt(0), 90000, big.NewInt(1), data)
}

func clientWithBlock(t *testing.T, want *types.Transaction, txs ...*types.Transaction) *mockClient {
	return &mockClient{
		BlockNumberFunc: func(context.Context) (uint64, error) { return 20, nil },
		BlockByNumberFunc: func(_ context.Context, number *big.Int) (*types.Block, error) {
			if number.Int64() == 19 {
				return blockWith(19, txs...), nil
			}
			return blockWith(number.Int64()), nil
		},
		TransactionReceiptFunc: func(_ context.Context, hash common.Hash) (*types.Receipt, error) {
			require.Equal(t, want.Hash(), hash)
			return &types.Receipt{Status: types.ReceiptStatusSuccessful, BlockNumber: big.NewInt(19)}, nil
		},
	}
}

func TestFindPayout_TokenTransfer(t *testing.T) {
	outMemo := memo.BuildOut(sourceHash)
	payout := contractCall(usdcAsset.ContractOrIssuer, erc20Transfer(destination, big.NewInt(2_500_000), outMemo))
	otherRecipient := contractCall(usdcAsset.ContractOrIssuer,
		erc20Transfer("0x00000000000000000000000000000000000000bb", big.NewInt(1), outMemo))
	unknownToken := contractCall("0x00000000000000000000000000000000000000cc",
		erc20Transfer(destination, big.NewInt(1), outMemo))

	p := newTestProbe(t, clientWithBlock(t, payout, otherRecipient, unknownToken, payout))

	status, err := p.FindPayout(context.Background(), destination, sourceHash)
	require.NoError(t, err)
	require.NotNil(t, status)
	assert.Equal(t, payout.Hash().Hex(), status.Hash)
	assert.Equal(t, outMemo, status.Memo)
	require.NotNil(t, status.Amount)
	assert.Equal(t, "2.5", status.Amount.String())
}

func TestFindPayout_RouterTransferOut(t *testing.T) {
	outMemo := memo.BuildOut(sourceHash)
	amount, _ := new(big.Int).SetString("500000000000000000", 10)
	data, err := payoutCalls.Pack("transferOut", common.HexToAddress(destination), common.Address{}, amount, outMemo)
	require.NoError(t, err)
	payout := contractCall("0x00000000000000000000000000000000000000dd", data)

	p := newTestProbe(t, clientWithBlock(t, payout, payout))

	status, err := p.FindPayout(context.Background(), destination, "0x"+sourceHash)
	require.NoError(t, err)
	require.NotNil(t, status)
	assert.Equal(t, outMemo, status.Memo)
	require.NotNil(t, status.Amount)
	assert.Equal(t, "0.5", status.Amount.String())
}
