package testutil

import (
	"sync"
	"time"
)

// StepClock is a wall clock for tests that starts at a fixed instant and
// advances by one second on every reading.
//
// Thread-safety: safe for concurrent use via internal mutex.
type StepClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewStepClock starts at 2024-01-01T00:00:00Z.
func NewStepClock() *StepClock {
	return &StepClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

// Now returns the current instant and advances the clock.
func (c *StepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(time.Second)
	return t
}
