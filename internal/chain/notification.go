// Package chain defines the ports through which a host node feeds block
// lifecycle notifications into the shadow pipeline.
package chain

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/state"
	"github.com/ethereum/go-ethereum/core/types"
)

// Kind classifies a notification by the segments it carries.
type Kind int

const (
	// ChainCommitted carries only newly canonical blocks.
	ChainCommitted Kind = iota + 1
	// ChainReverted carries only blocks that left the canonical chain.
	ChainReverted
	// ChainReorged carries both: the old branch is reverted, then the new
	// branch is committed.
	ChainReorged
)

func (k Kind) String() string {
	switch k {
	case ChainCommitted:
		return "committed"
	case ChainReverted:
		return "reverted"
	case ChainReorged:
		return "reorged"
	default:
		return "unknown"
	}
}

// HashReader resolves canonical block hashes for the BLOCKHASH opcode.
type HashReader interface {
	BlockHash(ctx context.Context, number uint64) (common.Hash, error)
}

// CommittedBlock is one block entering the canonical chain together with
// everything needed to re-execute it.
type CommittedBlock struct {
	Block *types.Block

	// Senders holds the recovered sender of each transaction, in order.
	Senders []common.Address

	// State and PreStateRoot locate the canonical state the block executes on.
	State        state.Database
	PreStateRoot common.Hash

	// Hashes resolves ancestors older than the parent. Optional.
	Hashes HashReader
}

// Hash returns the block hash.
func (b CommittedBlock) Hash() common.Hash {
	return b.Block.Hash()
}

// Number returns the block number.
func (b CommittedBlock) Number() uint64 {
	return b.Block.NumberU64()
}

// RevertedBlock identifies a block that left the canonical chain.
type RevertedBlock struct {
	Hash   common.Hash
	Number uint64
}

// Notification is one delivery from the host. Reverted blocks are handled
// before committed ones. Delivery is at least once.
type Notification struct {
	// ID correlates logs and the checkpoint. Assigned by the dispatcher when
	// empty.
	ID string

	Reverted  []RevertedBlock
	Committed []CommittedBlock
}

// Kind reports which segments n carries.
func (n *Notification) Kind() Kind {
	switch {
	case len(n.Committed) > 0 && len(n.Reverted) > 0:
		return ChainReorged
	case len(n.Reverted) > 0:
		return ChainReverted
	default:
		return ChainCommitted
	}
}

// Tip returns the highest committed block, or the lowest reverted block's
// parent position when nothing is committed.
func (n *Notification) Tip() (number uint64, hash common.Hash) {
	if len(n.Committed) > 0 {
		last := n.Committed[len(n.Committed)-1]
		return last.Number(), last.Hash()
	}
	if len(n.Reverted) > 0 {
		lowest := n.Reverted[0].Number
		for _, r := range n.Reverted[1:] {
			if r.Number < lowest {
				lowest = r.Number
			}
		}
		if lowest > 0 {
			lowest--
		}
		return lowest, common.Hash{}
	}
	return 0, common.Hash{}
}

// Delivery pairs a notification with its acknowledgement callback. Ack is
// invoked exactly once with nil on success or the processing error.
type Delivery struct {
	Notification *Notification
	Ack          func(error)
}

// Feed is a source of notifications.
type Feed interface {
	// Run produces deliveries on out until ctx is cancelled or the feed fails.
	Run(ctx context.Context, out chan<- *Delivery) error
}
