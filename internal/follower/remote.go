package follower

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/state"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/holiman/uint256"
	"golang.org/x/sync/errgroup"
)

// CodeCache caches contract code by hash across blocks.
type CodeCache = lru.Cache[common.Hash, []byte]

// NewCodeCache returns a CodeCache holding up to size entries.
func NewCodeCache(size int) (*CodeCache, error) {
	return lru.New[common.Hash, []byte](size)
}

// RemoteState is a state.Database whose readers fetch accounts, code and
// storage over RPC as of a fixed block. Trie access is delegated to an empty
// in-memory database, so StateDBs must be opened at types.EmptyRootHash.
type RemoteState struct {
	state.Database

	ctx    context.Context
	client Client
	number *big.Int
	codes  *CodeCache
}

// NewRemoteState serves the state after block number. ctx bounds every RPC
// call made by its readers.
func NewRemoteState(ctx context.Context, client Client, number uint64, codes *CodeCache) *RemoteState {
	return &RemoteState{
		Database: state.NewDatabaseForTesting(),
		ctx:      ctx,
		client:   client,
		number:   new(big.Int).SetUint64(number),
		codes:    codes,
	}
}

// Number returns the block the state is read at.
func (s *RemoteState) Number() uint64 {
	return s.number.Uint64()
}

// Reader returns an RPC-backed reader. root is only used for the trie
// fallback and should be types.EmptyRootHash.
func (s *RemoteState) Reader(root common.Hash) (state.Reader, error) {
	base, err := s.Database.Reader(root)
	if err != nil {
		return nil, err
	}
	return &remoteReader{Reader: base, state: s}, nil
}

type remoteReader struct {
	state.Reader
	state *RemoteState
}

// Account reports an account with no balance, nonce or code as absent.
func (r *remoteReader) Account(addr common.Address) (*types.StateAccount, error) {
	var (
		balance *big.Int
		nonce   uint64
		code    []byte
	)

	s := r.state
	g, ctx := errgroup.WithContext(s.ctx)
	g.Go(func() (err error) {
		balance, err = s.client.BalanceAt(ctx, addr, s.number)
		return s.wrap("eth_getBalance", addr, err)
	})
	g.Go(func() (err error) {
		nonce, err = s.client.NonceAt(ctx, addr, s.number)
		return s.wrap("eth_getTransactionCount", addr, err)
	})
	g.Go(func() (err error) {
		code, err = s.client.CodeAt(ctx, addr, s.number)
		return s.wrap("eth_getCode", addr, err)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if balance == nil {
		balance = new(big.Int)
	}
	if balance.Sign() == 0 && nonce == 0 && len(code) == 0 {
		return nil, nil
	}
	bal, overflow := uint256.FromBig(balance)
	if overflow {
		return nil, fmt.Errorf("balance of %s overflows 256 bits", addr.Hex())
	}

	codeHash := types.EmptyCodeHash
	if len(code) > 0 {
		codeHash = crypto.Keccak256Hash(code)
		s.codes.Add(codeHash, code)
	}
	return &types.StateAccount{
		Nonce:    nonce,
		Balance:  bal,
		Root:     types.EmptyRootHash,
		CodeHash: codeHash.Bytes(),
	}, nil
}

func (r *remoteReader) Storage(addr common.Address, slot common.Hash) (common.Hash, error) {
	s := r.state
	value, err := s.client.StorageAt(s.ctx, addr, slot, s.number)
	if err != nil {
		return common.Hash{}, s.wrap("eth_getStorageAt", addr, err)
	}
	return common.BytesToHash(value), nil
}

func (r *remoteReader) Code(addr common.Address, codeHash common.Hash) ([]byte, error) {
	s := r.state
	if code, ok := s.codes.Get(codeHash); ok {
		return code, nil
	}
	code, err := s.client.CodeAt(s.ctx, addr, s.number)
	if err != nil {
		return nil, s.wrap("eth_getCode", addr, err)
	}
	if got := crypto.Keccak256Hash(code); got != codeHash {
		return nil, fmt.Errorf("code of %s at block %d hashes to %s, want %s", addr.Hex(), s.number, got.Hex(), codeHash.Hex())
	}
	s.codes.Add(codeHash, code)
	return code, nil
}

func (r *remoteReader) CodeSize(addr common.Address, codeHash common.Hash) (int, error) {
	code, err := r.Code(addr, codeHash)
	return len(code), err
}

func (s *RemoteState) wrap(method string, addr common.Address, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s %s at block %d: %w", method, addr.Hex(), s.number, err)
}
