package testutil

import (
	"fmt"
	"sync"
)

// SequentialIDs generates "<prefix>-1", "<prefix>-2", ... for notification
// ids, so golden snapshots do not depend on UUID randomness.
//
// Thread-safety: safe for concurrent use via internal mutex.
type SequentialIDs struct {
	mu     sync.Mutex
	prefix string
	next   int
}

// NewSequentialIDs creates a generator. An empty prefix becomes "notification".
func NewSequentialIDs(prefix string) *SequentialIDs {
	if prefix == "" {
		prefix = "notification"
	}
	return &SequentialIDs{prefix: prefix}
}

// Generate returns the next id.
func (g *SequentialIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next++
	return fmt.Sprintf("%s-%d", g.prefix, g.next)
}
