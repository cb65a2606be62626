package execution

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
)

func TestNewMessageZeroesFees(t *testing.T) {
	to := common.HexToAddress("0x01")
	from := common.HexToAddress("0x02")

	tests := []struct {
		name string
		tx   *types.Transaction
	}{
		{"legacy", types.NewTx(&types.LegacyTx{
			Nonce:    4,
			GasPrice: big.NewInt(30_000_000_000),
			Gas:      50_000,
			To:       &to,
			Value:    big.NewInt(9),
			Data:     []byte{0x01, 0x02},
		})},
		{"dynamic fee", types.NewTx(&types.DynamicFeeTx{
			ChainID:   big.NewInt(1),
			Nonce:     4,
			GasTipCap: big.NewInt(2_000_000_000),
			GasFeeCap: big.NewInt(30_000_000_000),
			Gas:       50_000,
			To:        &to,
			Value:     big.NewInt(9),
			Data:      []byte{0x01, 0x02},
		})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := newMessage(tt.tx, from)
			assert.Zero(t, msg.GasPrice.Sign())
			assert.Zero(t, msg.GasFeeCap.Sign())
			assert.Zero(t, msg.GasTipCap.Sign())
			assert.Nil(t, msg.BlobGasFeeCap)
			assert.Equal(t, from, msg.From)
			assert.Equal(t, &to, msg.To)
			assert.Equal(t, uint64(4), msg.Nonce)
			assert.Equal(t, uint64(50_000), msg.GasLimit)
			assert.Equal(t, big.NewInt(9), msg.Value)
			assert.Equal(t, []byte{0x01, 0x02}, msg.Data)
			assert.True(t, msg.SkipNonceChecks)
			assert.True(t, msg.SkipFromEOACheck)
		})
	}
}

func TestNewMessageZeroesBlobFeeCap(t *testing.T) {
	tx := types.NewTx(&types.BlobTx{
		ChainID:    uint256.NewInt(1),
		GasTipCap:  uint256.NewInt(1),
		GasFeeCap:  uint256.NewInt(30_000_000_000),
		Gas:        21_000,
		To:         common.HexToAddress("0x01"),
		Value:      uint256.NewInt(0),
		BlobFeeCap: uint256.NewInt(5_000_000_000),
		BlobHashes: []common.Hash{common.HexToHash("0x0100000000000000000000000000000000000000000000000000000000000001")},
	})

	msg := newMessage(tx, common.HexToAddress("0x02"))
	assert.Len(t, msg.BlobHashes, 1)
	if assert.NotNil(t, msg.BlobGasFeeCap) {
		assert.Zero(t, msg.BlobGasFeeCap.Sign())
	}
}

func TestBlockContextZeroesFees(t *testing.T) {
	header := &types.Header{
		Number:     big.NewInt(12),
		Difficulty: new(big.Int),
		BaseFee:    big.NewInt(7),
		MixDigest:  common.HexToHash("0x42"),
		GasLimit:   30_000_000,
		Time:       99,
	}
	blockCtx := newBlockContext(header, newAncestorHashes(context.Background(), header, nil))

	assert.Zero(t, blockCtx.BaseFee.Sign())
	assert.Zero(t, blockCtx.BlobBaseFee.Sign())
	if assert.NotNil(t, blockCtx.Random) {
		assert.Equal(t, header.MixDigest, *blockCtx.Random)
	}
	assert.Equal(t, uint64(99), blockCtx.Time)
	assert.Equal(t, common.Hash{}, blockCtx.GetHash(12), "current block has no hash yet")
	assert.Equal(t, common.Hash{}, blockCtx.GetHash(5), "no reader for older ancestors")
}
