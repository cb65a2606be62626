package events

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// ErrInvalidRange is returned when a filter's lower bound exceeds its upper bound.
var ErrInvalidRange = errors.New("fromBlock is greater than toBlock")

// Filter selects events from the store.
//
// An empty Addresses slice matches every address. A nil entry in Topics is a
// wildcard for that position. Block bounds are inclusive; nil leaves the side
// open. A non-nil BlockHash pins the filter to that one block, so a reverted
// block never borrows the events of its sibling at the same height. Removed
// events are excluded unless IncludeRemoved is set, which only
// diagnostic callers do.
type Filter struct {
	Addresses      []common.Address
	Topics         [MaxTopics]*common.Hash
	FromBlock      *uint64
	ToBlock        *uint64
	BlockHash      *common.Hash
	IncludeRemoved bool
}

// Validate checks the filter shape.
func (f Filter) Validate() error {
	if f.FromBlock != nil && f.ToBlock != nil && *f.FromBlock > *f.ToBlock {
		return fmt.Errorf("%w: %d > %d", ErrInvalidRange, *f.FromBlock, *f.ToBlock)
	}
	return nil
}

// Matches reports whether e satisfies the filter. It mirrors the SQL the
// store compiles, and is used where events are held in memory.
func (f Filter) Matches(e Event) bool {
	if e.Removed && !f.IncludeRemoved {
		return false
	}
	if f.BlockHash != nil && e.BlockHash != *f.BlockHash {
		return false
	}
	if f.FromBlock != nil && e.BlockNumber < *f.FromBlock {
		return false
	}
	if f.ToBlock != nil && e.BlockNumber > *f.ToBlock {
		return false
	}
	if len(f.Addresses) > 0 {
		found := false
		for _, a := range f.Addresses {
			if a == e.Address {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	for i, want := range f.Topics {
		if want == nil {
			continue
		}
		got := e.Topic(i)
		if got == nil || *got != *want {
			return false
		}
	}
	return true
}

// BlockRange returns a filter bounded to [from, to].
func BlockRange(from, to uint64) Filter {
	return Filter{FromBlock: &from, ToBlock: &to}
}
