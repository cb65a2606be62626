package testutil

import (
	"bytes"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/state"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// Account seeds one account of a ChainState.
type Account struct {
	Balance *uint256.Int
	Nonce   uint64
	Code    []byte
	Storage map[common.Hash]common.Hash
}

// ChainState is an in-memory canonical state with injectable read failures.
// It stands in for the host node's state provider.
//
// Thread-safety: all methods are safe for concurrent use.
type ChainState struct {
	mu              sync.Mutex
	accounts        map[common.Address]*Account
	codes           map[common.Hash][]byte
	accountFailures map[common.Address]error
	storageFailures map[common.Address]error
	accountReads    int
}

// NewChainState returns an empty state.
func NewChainState() *ChainState {
	return &ChainState{
		accounts:        make(map[common.Address]*Account),
		codes:           make(map[common.Hash][]byte),
		accountFailures: make(map[common.Address]error),
		storageFailures: make(map[common.Address]error),
	}
}

// SetAccount replaces the account at addr.
func (s *ChainState) SetAccount(addr common.Address, acct Account) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a := acct
	if a.Balance == nil {
		a.Balance = new(uint256.Int)
	}
	a.Code = bytes.Clone(acct.Code)
	a.Storage = make(map[common.Hash]common.Hash, len(acct.Storage))
	for k, v := range acct.Storage {
		a.Storage[k] = v
	}
	if len(a.Code) > 0 {
		s.codes[crypto.Keccak256Hash(a.Code)] = a.Code
	}
	s.accounts[addr] = &a
}

// Fund creates or tops up an externally owned account.
func (s *ChainState) Fund(addr common.Address, balance *uint256.Int) {
	s.SetAccount(addr, Account{Balance: balance})
}

// SetStorage writes a single slot, creating the account if needed.
func (s *ChainState) SetStorage(addr common.Address, slot, value common.Hash) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[addr]
	if !ok {
		a = &Account{Balance: new(uint256.Int), Storage: make(map[common.Hash]common.Hash)}
		s.accounts[addr] = a
	}
	a.Storage[slot] = value
}

// FailAccount makes every account read of addr return err.
func (s *ChainState) FailAccount(addr common.Address, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accountFailures[addr] = err
}

// FailStorage makes every storage read under addr return err.
func (s *ChainState) FailStorage(addr common.Address, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.storageFailures[addr] = err
}

// AccountReads returns how many account reads were served.
func (s *ChainState) AccountReads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accountReads
}

// Reader returns a state.Reader over the current contents.
func (s *ChainState) Reader() state.Reader {
	return &memoryReader{s: s}
}

// Database returns a state.Database whose readers serve this state. Trie
// access is delegated to an empty in-memory database, so StateDBs must be
// opened at types.EmptyRootHash.
func (s *ChainState) Database() state.Database {
	return &memoryDatabase{Database: state.NewDatabaseForTesting(), s: s}
}

type memoryDatabase struct {
	state.Database
	s *ChainState
}

func (db *memoryDatabase) Reader(common.Hash) (state.Reader, error) {
	return db.s.Reader(), nil
}

// memoryReader embeds the interface so reader methods added upstream do not
// break the fake; only the ones StateDB uses are served.
type memoryReader struct {
	state.Reader
	s *ChainState
}

func (r *memoryReader) Account(addr common.Address) (*types.StateAccount, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if err := r.s.accountFailures[addr]; err != nil {
		return nil, err
	}
	r.s.accountReads++

	a, ok := r.s.accounts[addr]
	if !ok {
		return nil, nil
	}
	codeHash := types.EmptyCodeHash
	if len(a.Code) > 0 {
		codeHash = crypto.Keccak256Hash(a.Code)
	}
	return &types.StateAccount{
		Nonce:    a.Nonce,
		Balance:  new(uint256.Int).Set(a.Balance),
		Root:     types.EmptyRootHash,
		CodeHash: codeHash.Bytes(),
	}, nil
}

func (r *memoryReader) Storage(addr common.Address, slot common.Hash) (common.Hash, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if err := r.s.storageFailures[addr]; err != nil {
		return common.Hash{}, err
	}
	a, ok := r.s.accounts[addr]
	if !ok {
		return common.Hash{}, nil
	}
	return a.Storage[slot], nil
}

func (r *memoryReader) Code(_ common.Address, codeHash common.Hash) ([]byte, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return bytes.Clone(r.s.codes[codeHash]), nil
}

func (r *memoryReader) CodeSize(addr common.Address, codeHash common.Hash) (int, error) {
	code, err := r.Code(addr, codeHash)
	return len(code), err
}
