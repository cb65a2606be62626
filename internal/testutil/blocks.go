package testutil

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/shadow-hq/shadowlogs/internal/chain"
)

// Call describes one transaction of a synthetic block.
//
// A call with GasFeeCap set becomes a dynamic-fee transaction, otherwise a
// legacy one priced at GasPrice (zero when nil).
type Call struct {
	From  common.Address
	To    common.Address
	Value *big.Int
	Data  []byte
	Gas   uint64
	Nonce uint64

	GasPrice  *big.Int
	GasFeeCap *big.Int
	GasTipCap *big.Int
}

// BlockSpec describes a synthetic block. Salt distinguishes sibling blocks
// at the same height so they hash differently.
type BlockSpec struct {
	Number     uint64
	ParentHash common.Hash
	Time       uint64
	Salt       []byte
	Calls      []Call
}

// TestChainID is the chain id of dynamic-fee fixture transactions.
var TestChainID = big.NewInt(1337)

// NewBlock builds an unsigned post-merge block and its sender list. The
// executor takes senders verbatim, so transactions carry no real signature.
//
// Transaction hashes are unique within a block: a sender's calls get
// strictly increasing nonces (Call.Nonce is a lower bound), and the sender
// address is written into the R signature value.
func NewBlock(spec BlockSpec) (*types.Block, []common.Address) {
	header := &types.Header{
		ParentHash: spec.ParentHash,
		Number:     new(big.Int).SetUint64(spec.Number),
		GasLimit:   30_000_000,
		Time:       spec.Time,
		Difficulty: new(big.Int),
		BaseFee:    big.NewInt(1_000_000_000),
		Extra:      spec.Salt,
		Coinbase:   common.HexToAddress("0xc0ffee"),
	}

	next := make(map[common.Address]uint64)
	txs := make([]*types.Transaction, 0, len(spec.Calls))
	senders := make([]common.Address, 0, len(spec.Calls))
	for _, c := range spec.Calls {
		nonce := max(c.Nonce, next[c.From])
		next[c.From] = nonce + 1
		txs = append(txs, newTx(c, nonce))
		senders = append(senders, c.From)
	}

	return types.NewBlockWithHeader(header).WithBody(types.Body{Transactions: txs}), senders
}

func newTx(c Call, nonce uint64) *types.Transaction {
	to := c.To
	gas := c.Gas
	if gas == 0 {
		gas = 200_000
	}
	r := new(big.Int).SetBytes(c.From.Bytes())

	if c.GasFeeCap != nil {
		tip := c.GasTipCap
		if tip == nil {
			tip = new(big.Int)
		}
		return types.NewTx(&types.DynamicFeeTx{
			ChainID:   TestChainID,
			Nonce:     nonce,
			GasTipCap: tip,
			GasFeeCap: c.GasFeeCap,
			Gas:       gas,
			To:        &to,
			Value:     c.Value,
			Data:      c.Data,
			V:         new(big.Int),
			R:         r,
			S:         new(big.Int),
		})
	}

	price := c.GasPrice
	if price == nil {
		price = new(big.Int)
	}
	return types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Gas:      gas,
		GasPrice: price,
		Value:    c.Value,
		Data:     c.Data,
		V:        big.NewInt(27),
		R:        r,
		S:        new(big.Int),
	})
}

// Committed wraps NewBlock into a chain.CommittedBlock reading from st.
func Committed(st *ChainState, spec BlockSpec) chain.CommittedBlock {
	block, senders := NewBlock(spec)
	return chain.CommittedBlock{
		Block:        block,
		Senders:      senders,
		State:        st.Database(),
		PreStateRoot: types.EmptyRootHash,
	}
}

// Reverted identifies b for a revert notification.
func Reverted(b chain.CommittedBlock) chain.RevertedBlock {
	return chain.RevertedBlock{Hash: b.Hash(), Number: b.Number()}
}
