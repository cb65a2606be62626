package store

import (
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/shadow-hq/shadowlogs/internal/events"
	"github.com/shadow-hq/shadowlogs/internal/testutil"
)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, append([]Option{WithClock(testutil.NewStepClock().Now)}, opts...)...)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

var (
	addrA  = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	addrB  = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	topicX = common.HexToHash("0x01")
	topicY = common.HexToHash("0x02")
	topicZ = common.HexToHash("0x03")
)

// blockHash derives a distinct hash per (number, fork) pair.
func blockHash(number uint64, fork byte) common.Hash {
	var h common.Hash
	h[0] = fork
	h[31] = byte(number)
	h[30] = byte(number >> 8)
	return h
}

// createTestEvent creates an event with minimal required fields.
func createTestEvent(hash common.Hash, number uint64, txIndex, logIndex uint, addr common.Address, topics ...common.Hash) events.Event {
	if topics == nil {
		topics = []common.Hash{}
	}
	return events.Event{
		Address:             addr,
		Topics:              topics,
		Data:                []byte{byte(logIndex)},
		BlockHash:           hash,
		BlockNumber:         number,
		BlockTimestamp:      1_700_000_000 + number,
		TransactionHash:     common.BytesToHash([]byte{byte(number), byte(txIndex)}),
		TransactionIndex:    txIndex,
		LogIndex:            logIndex,
		TransactionLogIndex: 0,
	}
}
