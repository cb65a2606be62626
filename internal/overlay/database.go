package overlay

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/state"

	"github.com/shadow-hq/shadowlogs/internal/contracts"
)

// Database hands out overlaid readers while delegating trie access to the
// embedded base database.
type Database struct {
	state.Database
	registry *contracts.Registry
}

// NewDatabase wraps base.
func NewDatabase(base state.Database, reg *contracts.Registry) *Database {
	return &Database{Database: base, registry: reg}
}

// Reader returns a new View over the base reader for root.
func (db *Database) Reader(root common.Hash) (state.Reader, error) {
	base, err := db.Database.Reader(root)
	if err != nil {
		return nil, err
	}
	return NewView(base, db.registry), nil
}
