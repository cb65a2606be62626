package engine

import (
	"github.com/google/uuid"
)

// IDGenerator assigns correlation ids to notifications that arrive without
// one. Implemented by UUIDv7Generator (production) and
// testutil.SequentialIDs (tests).
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 ids, so the checkpoint's
// notification id orders with the log lines around it.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
//
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}
