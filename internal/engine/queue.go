package engine

import (
	"sync"

	"github.com/shadow-hq/shadowlogs/internal/chain"
)

// deliveryQueue is a thread-safe FIFO queue of notification deliveries.
//
// The queue is unbounded so a host feed never blocks on a slow block; the
// feed's own acknowledgement protocol provides backpressure.
//
// The queue uses a channel for signaling to enable context-aware waiting
// in the Run loop.
type deliveryQueue struct {
	mu     sync.Mutex
	items  []*chain.Delivery
	closed bool
	signal chan struct{} // buffered, size 1
}

func newDeliveryQueue() *deliveryQueue {
	return &deliveryQueue{
		items:  make([]*chain.Delivery, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds a delivery to the back of the queue.
// Returns false if the queue is closed.
func (q *deliveryQueue) Enqueue(d *chain.Delivery) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.items = append(q.items, d)

	// Non-blocking: the buffer of 1 coalesces signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue removes the front delivery without blocking.
func (q *deliveryQueue) TryDequeue() (*chain.Delivery, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil, false
	}

	d := q.items[0]

	// Release the slot so the delivery's block data can be collected.
	q.items[0] = nil
	if len(q.items) == 1 {
		q.items = q.items[:0]
	} else {
		q.items = q.items[1:]
	}

	return d, true
}

// Wait returns a channel that signals when deliveries may be available.
// It is closed when the queue is closed.
func (q *deliveryQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *deliveryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Closed reports whether Close has been called.
func (q *deliveryQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Close stops further enqueues and wakes any waiter.
func (q *deliveryQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}
