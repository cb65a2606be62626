package follower

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func h(n byte) common.Hash {
	return common.Hash{n}
}

func TestWindow_PushAndLookup(t *testing.T) {
	w := newWindow(3)
	_, ok := w.tip()
	assert.False(t, ok)

	for n := uint64(10); n <= 14; n++ {
		w.push(n, h(byte(n)))
	}

	assert.Equal(t, 3, w.len())
	assert.Equal(t, uint64(12), w.lowest())
	tip, ok := w.tip()
	require.True(t, ok)
	assert.Equal(t, entry{number: 14, hash: h(14)}, tip)

	got, ok := w.hash(13)
	require.True(t, ok)
	assert.Equal(t, h(13), got)

	_, ok = w.hash(11)
	assert.False(t, ok, "evicted")
	_, ok = w.hash(15)
	assert.False(t, ok)
}

func TestWindow_AboveAndTruncate(t *testing.T) {
	w := newWindow(10)
	for n := uint64(1); n <= 5; n++ {
		w.push(n, h(byte(n)))
	}

	above := w.above(3)
	assert.Equal(t, []entry{{5, h(5)}, {4, h(4)}}, above, "highest first")

	w.truncate(3)
	tip, _ := w.tip()
	assert.Equal(t, uint64(3), tip.number)
	assert.Empty(t, w.above(3))
}

func TestWindow_GapResets(t *testing.T) {
	w := newWindow(10)
	w.push(1, h(1))
	w.push(2, h(2))
	w.push(7, h(7))

	assert.Equal(t, 1, w.len())
	assert.Equal(t, uint64(7), w.lowest())
}

func TestWindow_Reset(t *testing.T) {
	w := newWindow(10)
	w.push(1, h(1))
	w.push(2, h(2))
	w.reset(40, h(40))

	assert.Equal(t, 1, w.len())
	got, ok := w.hash(40)
	require.True(t, ok)
	assert.Equal(t, h(40), got)
}
