package follower

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

var testChainID = big.NewInt(1337)

type fakeAccount struct {
	balance *big.Int
	nonce   uint64
	code    []byte
	storage map[common.Hash]common.Hash
}

// fakeClient is an in-memory node. Account state is the same at every
// block; queried block numbers are recorded.
type fakeClient struct {
	mu sync.Mutex

	chainID   *big.Int
	canonical []*types.Block
	byHash    map[common.Hash]*types.Block
	accounts  map[common.Address]*fakeAccount

	stateErr     error
	codeCalls    int
	stateNumbers []uint64
}

func newFakeClient() *fakeClient {
	c := &fakeClient{
		chainID:  testChainID,
		byHash:   map[common.Hash]*types.Block{},
		accounts: map[common.Address]*fakeAccount{},
	}
	genesis := types.NewBlockWithHeader(&types.Header{
		Number:     new(big.Int),
		Difficulty: new(big.Int),
		GasLimit:   30_000_000,
		BaseFee:    big.NewInt(1_000_000_000),
	})
	c.setCanonical(genesis)
	return c
}

// extend builds a child of parent on fork and registers it without making
// it canonical.
func (c *fakeClient) extend(parent *types.Block, fork byte, txs ...*types.Transaction) *types.Block {
	header := &types.Header{
		ParentHash: parent.Hash(),
		Number:     new(big.Int).Add(parent.Number(), common.Big1),
		Difficulty: new(big.Int),
		GasLimit:   30_000_000,
		BaseFee:    big.NewInt(1_000_000_000),
		Time:       parent.Time() + 12,
		Extra:      []byte{fork},
	}
	b := types.NewBlockWithHeader(header).WithBody(types.Body{Transactions: txs})

	c.mu.Lock()
	c.byHash[b.Hash()] = b
	c.mu.Unlock()
	return b
}

// setCanonical makes blocks canonical from their own numbers upward and
// drops anything canonical above the last one.
func (c *fakeClient) setCanonical(blocks ...*types.Block) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, b := range blocks {
		c.byHash[b.Hash()] = b
		n := int(b.NumberU64())
		if n < len(c.canonical) {
			c.canonical = c.canonical[:n]
		}
		c.canonical = append(c.canonical, b)
	}
}

// mine extends the canonical chain by n empty blocks.
func (c *fakeClient) mine(n int, fork byte) []*types.Block {
	var out []*types.Block
	for i := 0; i < n; i++ {
		b := c.extend(c.head(), fork)
		c.setCanonical(b)
		out = append(out, b)
	}
	return out
}

func (c *fakeClient) head() *types.Block {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.canonical[len(c.canonical)-1]
}

func (c *fakeClient) block(number uint64) *types.Block {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.canonical[number]
}

func (c *fakeClient) setAccount(addr common.Address, acct *fakeAccount) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accounts[addr] = acct
}

func (c *fakeClient) failState(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stateErr = err
}

func (c *fakeClient) ChainID(context.Context) (*big.Int, error) {
	return new(big.Int).Set(c.chainID), nil
}

func (c *fakeClient) HeaderByNumber(_ context.Context, number *big.Int) (*types.Header, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if number == nil {
		return c.canonical[len(c.canonical)-1].Header(), nil
	}
	if !number.IsUint64() || number.Uint64() >= uint64(len(c.canonical)) {
		return nil, ethereum.NotFound
	}
	return c.canonical[number.Uint64()].Header(), nil
}

func (c *fakeClient) HeaderByHash(_ context.Context, hash common.Hash) (*types.Header, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	b, ok := c.byHash[hash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return b.Header(), nil
}

func (c *fakeClient) BlockByHash(_ context.Context, hash common.Hash) (*types.Block, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	b, ok := c.byHash[hash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return b, nil
}

func (c *fakeClient) account(addr common.Address, number *big.Int) (*fakeAccount, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stateErr != nil {
		return nil, c.stateErr
	}
	c.stateNumbers = append(c.stateNumbers, number.Uint64())
	if a, ok := c.accounts[addr]; ok {
		return a, nil
	}
	return &fakeAccount{}, nil
}

func (c *fakeClient) BalanceAt(_ context.Context, addr common.Address, number *big.Int) (*big.Int, error) {
	a, err := c.account(addr, number)
	if err != nil {
		return nil, err
	}
	if a.balance == nil {
		return new(big.Int), nil
	}
	return new(big.Int).Set(a.balance), nil
}

func (c *fakeClient) NonceAt(_ context.Context, addr common.Address, number *big.Int) (uint64, error) {
	a, err := c.account(addr, number)
	if err != nil {
		return 0, err
	}
	return a.nonce, nil
}

func (c *fakeClient) CodeAt(_ context.Context, addr common.Address, number *big.Int) ([]byte, error) {
	a, err := c.account(addr, number)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.codeCalls++
	c.mu.Unlock()
	return common.CopyBytes(a.code), nil
}

func (c *fakeClient) StorageAt(_ context.Context, addr common.Address, key common.Hash, number *big.Int) ([]byte, error) {
	a, err := c.account(addr, number)
	if err != nil {
		return nil, err
	}
	v := a.storage[key]
	return v.Bytes(), nil
}

func (c *fakeClient) codeCallCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.codeCalls
}

// signedCall returns a transaction from key to to, signed for testChainID.
func signedCall(key *ecdsa.PrivateKey, nonce uint64, to common.Address) *types.Transaction {
	signer := types.LatestSignerForChainID(testChainID)
	return types.MustSignNewTx(key, signer, &types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Gas:      200_000,
		GasPrice: new(big.Int),
	})
}

func mustKey() *ecdsa.PrivateKey {
	key, err := crypto.GenerateKey()
	if err != nil {
		panic(err)
	}
	return key
}
