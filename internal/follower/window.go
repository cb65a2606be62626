package follower

import "github.com/ethereum/go-ethereum/common"

type entry struct {
	number uint64
	hash   common.Hash
}

// window holds the most recent canonical blocks the follower has emitted,
// contiguous and ascending by number.
type window struct {
	size    int
	entries []entry
}

func newWindow(size int) *window {
	return &window{size: size}
}

func (w *window) len() int {
	return len(w.entries)
}

func (w *window) tip() (entry, bool) {
	if len(w.entries) == 0 {
		return entry{}, false
	}
	return w.entries[len(w.entries)-1], true
}

func (w *window) lowest() uint64 {
	if len(w.entries) == 0 {
		return 0
	}
	return w.entries[0].number
}

func (w *window) hash(number uint64) (common.Hash, bool) {
	if len(w.entries) == 0 || number < w.entries[0].number {
		return common.Hash{}, false
	}
	i := number - w.entries[0].number
	if i >= uint64(len(w.entries)) {
		return common.Hash{}, false
	}
	return w.entries[i].hash, true
}

// above returns the entries numbered higher than number, highest first.
func (w *window) above(number uint64) []entry {
	var out []entry
	for i := len(w.entries) - 1; i >= 0 && w.entries[i].number > number; i-- {
		out = append(out, w.entries[i])
	}
	return out
}

// truncate drops every entry numbered higher than number.
func (w *window) truncate(number uint64) {
	for len(w.entries) > 0 && w.entries[len(w.entries)-1].number > number {
		w.entries = w.entries[:len(w.entries)-1]
	}
}

// push appends the next block. A block that does not extend the tip resets
// the window.
func (w *window) push(number uint64, hash common.Hash) {
	if t, ok := w.tip(); ok && t.number+1 != number {
		w.entries = w.entries[:0]
	}
	w.entries = append(w.entries, entry{number: number, hash: hash})
	if over := len(w.entries) - w.size; over > 0 {
		w.entries = append(w.entries[:0], w.entries[over:]...)
	}
}

func (w *window) reset(number uint64, hash common.Hash) {
	w.entries = append(w.entries[:0], entry{number: number, hash: hash})
}
