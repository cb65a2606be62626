package api

import "context"

// HeadSource reports the chain head the process has caught up to.
// Implemented by *follower.Follower.
type HeadSource interface {
	Head() (uint64, bool)
}

// BlockIndex is the block lookup the store provides.
type BlockIndex interface {
	LatestBlock(ctx context.Context) (uint64, bool, error)
}

// StoreResolver resolves latest from the followed head when there is one
// and from the highest stored block otherwise.
type StoreResolver struct {
	index BlockIndex
	head  HeadSource
}

// NewStoreResolver creates a resolver. head may be nil.
func NewStoreResolver(index BlockIndex, head HeadSource) *StoreResolver {
	return &StoreResolver{index: index, head: head}
}

func (r *StoreResolver) LatestBlock(ctx context.Context) (uint64, error) {
	if r.head != nil {
		if n, ok := r.head.Head(); ok {
			return n, nil
		}
	}
	n, _, err := r.index.LatestBlock(ctx)
	return n, err
}
