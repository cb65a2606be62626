package execution

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/core/vm"

	"github.com/shadow-hq/shadowlogs/internal/chain"
)

// ancestorHashes serves BLOCKHASH. The parent comes from the header; older
// ancestors are fetched once from the host and cached for the block.
//
// vm.GetHashFunc cannot fail, so the first lookup error is kept and checked
// by the executor after each transaction.
type ancestorHashes struct {
	ctx    context.Context
	header *types.Header
	reader chain.HashReader

	mu     sync.Mutex
	cache  map[uint64]common.Hash
	failed error
}

func newAncestorHashes(ctx context.Context, header *types.Header, reader chain.HashReader) *ancestorHashes {
	return &ancestorHashes{
		ctx:    ctx,
		header: header,
		reader: reader,
		cache:  make(map[uint64]common.Hash),
	}
}

func (a *ancestorHashes) get(n uint64) common.Hash {
	number := a.header.Number.Uint64()
	if n >= number {
		return common.Hash{}
	}
	if n == number-1 {
		return a.header.ParentHash
	}
	if a.reader == nil {
		return common.Hash{}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if h, ok := a.cache[n]; ok {
		return h
	}
	h, err := a.reader.BlockHash(a.ctx, n)
	if err != nil {
		if a.failed == nil {
			a.failed = err
		}
		return common.Hash{}
	}
	a.cache[n] = h
	return h
}

func (a *ancestorHashes) err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.failed
}

// newBlockContext mirrors core.NewEVMBlockContext with fees zeroed, so
// replayed transactions are never rejected for their fee caps.
func newBlockContext(header *types.Header, hashes *ancestorHashes) vm.BlockContext {
	blockCtx := vm.BlockContext{
		CanTransfer: core.CanTransfer,
		Transfer:    core.Transfer,
		GetHash:     hashes.get,
		Coinbase:    header.Coinbase,
		GasLimit:    header.GasLimit,
		BlockNumber: new(big.Int).Set(header.Number),
		Time:        header.Time,
		Difficulty:  new(big.Int),
		BaseFee:     new(big.Int),
		BlobBaseFee: new(big.Int),
	}
	if header.Difficulty != nil {
		blockCtx.Difficulty.Set(header.Difficulty)
	}
	if blockCtx.Difficulty.Sign() == 0 {
		random := header.MixDigest
		blockCtx.Random = &random
	}
	return blockCtx
}

// newMessage converts a canonical transaction into a message from its
// recorded sender. Nonce and sender-code checks are skipped, and every fee
// field is zero: with NoBaseFee set, ApplyMessage then neither checks fee
// caps nor buys gas, so the shadow balance of the sender is never a reason
// to reject a transaction the canonical chain accepted.
func newMessage(tx *types.Transaction, from common.Address) *core.Message {
	msg := &core.Message{
		To:                    tx.To(),
		From:                  from,
		Nonce:                 tx.Nonce(),
		Value:                 tx.Value(),
		GasLimit:              tx.Gas(),
		GasPrice:              new(big.Int),
		GasFeeCap:             new(big.Int),
		GasTipCap:             new(big.Int),
		Data:                  tx.Data(),
		AccessList:            tx.AccessList(),
		BlobHashes:            tx.BlobHashes(),
		SetCodeAuthorizations: tx.SetCodeAuthorizations(),
		SkipNonceChecks:       true,
		SkipFromEOACheck:      true,
	}
	if len(msg.BlobHashes) > 0 {
		msg.BlobGasFeeCap = new(big.Int)
	}
	return msg
}
