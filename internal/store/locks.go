package store

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// BlockLocks is a keyed mutex over block hashes. Writers for different
// hashes proceed independently; writers for the same hash are serialized.
// Entries are dropped once nobody holds or waits for them.
type BlockLocks struct {
	mu    sync.Mutex
	locks map[common.Hash]*blockLock
}

type blockLock struct {
	mu   sync.Mutex
	refs int
}

// NewBlockLocks returns an empty lock table.
func NewBlockLocks() *BlockLocks {
	return &BlockLocks{locks: make(map[common.Hash]*blockLock)}
}

// Lock acquires the lock for hash and returns its release function.
func (l *BlockLocks) Lock(hash common.Hash) (unlock func()) {
	l.mu.Lock()
	bl, ok := l.locks[hash]
	if !ok {
		bl = &blockLock{}
		l.locks[hash] = bl
	}
	bl.refs++
	l.mu.Unlock()

	bl.mu.Lock()

	return func() {
		bl.mu.Unlock()

		l.mu.Lock()
		bl.refs--
		if bl.refs == 0 {
			delete(l.locks, hash)
		}
		l.mu.Unlock()
	}
}

// Len returns the number of hashes currently held or awaited.
func (l *BlockLocks) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
