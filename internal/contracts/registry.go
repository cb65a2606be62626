package contracts

import (
	"bytes"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Registry is an immutable address to bytecode substitution table.
//
// A nil *Registry behaves like an empty one.
type Registry struct {
	codes  map[common.Address][]byte
	hashes map[common.Address]common.Hash
	byHash map[common.Hash][]byte
}

// New builds a registry from already decoded overrides. The byte slices are
// copied, and code hashes are computed once here.
func New(overrides map[common.Address][]byte) *Registry {
	r := &Registry{
		codes:  make(map[common.Address][]byte, len(overrides)),
		hashes: make(map[common.Address]common.Hash, len(overrides)),
		byHash: make(map[common.Hash][]byte, len(overrides)),
	}
	for addr, code := range overrides {
		c := bytes.Clone(code)
		if c == nil {
			c = []byte{}
		}
		h := crypto.Keccak256Hash(c)
		r.codes[addr] = c
		r.hashes[addr] = h
		r.byHash[h] = c
	}
	return r
}

// Lookup returns a copy of the override bytecode for addr.
func (r *Registry) Lookup(addr common.Address) ([]byte, bool) {
	if r == nil {
		return nil, false
	}
	code, ok := r.codes[addr]
	if !ok {
		return nil, false
	}
	return bytes.Clone(code), true
}

// CodeHash returns keccak256 of the override bytecode for addr.
func (r *Registry) CodeHash(addr common.Address) (common.Hash, bool) {
	if r == nil {
		return common.Hash{}, false
	}
	h, ok := r.hashes[addr]
	return h, ok
}

// CodeByHash resolves a hash against the override bytecodes only.
func (r *Registry) CodeByHash(hash common.Hash) ([]byte, bool) {
	if r == nil {
		return nil, false
	}
	code, ok := r.byHash[hash]
	if !ok {
		return nil, false
	}
	return bytes.Clone(code), true
}

// Contains reports whether addr is shadowed.
func (r *Registry) Contains(addr common.Address) bool {
	if r == nil {
		return false
	}
	_, ok := r.codes[addr]
	return ok
}

// Len returns the number of shadowed addresses.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.codes)
}

// Addresses returns the shadowed addresses in ascending byte order.
func (r *Registry) Addresses() []common.Address {
	if r == nil {
		return []common.Address{}
	}
	out := make([]common.Address, 0, len(r.codes))
	for addr := range r.codes {
		out = append(out, addr)
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i][:], out[j][:]) < 0
	})
	return out
}
