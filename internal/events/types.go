package events

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
)

// MaxTopics is the number of indexed topic positions a log can carry.
const MaxTopics = 4

// Event is a log record emitted while re-executing a block with shadow bytecode.
//
// LogIndex counts every log emitted by successful transactions of the block in
// execution order. TransactionLogIndex restarts at zero for each transaction.
// Neither is required to match the canonical receipt indices.
type Event struct {
	Address             common.Address `json:"address"`
	Topics              []common.Hash  `json:"topics"`
	Data                hexutil.Bytes  `json:"data"`
	BlockHash           common.Hash    `json:"block_hash"`
	BlockNumber         uint64         `json:"block_number"`
	BlockTimestamp      uint64         `json:"block_timestamp"`
	TransactionHash     common.Hash    `json:"transaction_hash"`
	TransactionIndex    uint           `json:"transaction_index"`
	LogIndex            uint           `json:"log_index"`
	TransactionLogIndex uint           `json:"transaction_log_index"`
	Removed             bool           `json:"removed"`
}

// FromLog converts a log produced by the EVM. The caller supplies the block
// scoped and transaction scoped indices since the StateDB numbering is not
// authoritative for the shadow log space, and the header timestamp.
func FromLog(l *types.Log, timestamp uint64, logIndex, txLogIndex uint) Event {
	topics := make([]common.Hash, len(l.Topics))
	copy(topics, l.Topics)

	data := make([]byte, len(l.Data))
	copy(data, l.Data)

	return Event{
		Address:             l.Address,
		Topics:              topics,
		Data:                data,
		BlockHash:           l.BlockHash,
		BlockNumber:         l.BlockNumber,
		BlockTimestamp:      timestamp,
		TransactionHash:     l.TxHash,
		TransactionIndex:    l.TxIndex,
		LogIndex:            logIndex,
		TransactionLogIndex: txLogIndex,
	}
}

// Topic returns the topic at position i, or nil when the event has fewer topics.
func (e Event) Topic(i int) *common.Hash {
	if i < 0 || i >= len(e.Topics) {
		return nil
	}
	t := e.Topics[i]
	return &t
}

// Position is the ordering key used by every read path.
type Position struct {
	BlockNumber      uint64
	TransactionIndex uint
	LogIndex         uint
}

// Position returns the event's ordering key.
func (e Event) Position() Position {
	return Position{
		BlockNumber:      e.BlockNumber,
		TransactionIndex: e.TransactionIndex,
		LogIndex:         e.LogIndex,
	}
}

// Less reports whether p sorts before o.
func (p Position) Less(o Position) bool {
	if p.BlockNumber != o.BlockNumber {
		return p.BlockNumber < o.BlockNumber
	}
	if p.TransactionIndex != o.TransactionIndex {
		return p.TransactionIndex < o.TransactionIndex
	}
	return p.LogIndex < o.LogIndex
}

func (p Position) String() string {
	return fmt.Sprintf("%d/%d/%d", p.BlockNumber, p.TransactionIndex, p.LogIndex)
}
