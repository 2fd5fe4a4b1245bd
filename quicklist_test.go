package allocator

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuickSlotForSize(t *testing.T) {
	cases := []struct {
		size     uint32
		wantSlot int
		wantOK   bool
	}{
		{32, 0, true},
		{48, 1, true},
		{64, 2, true},
		{31, 0, false},
		{40, 0, false}, // not a multiple of 16 past minBlockSize
		{32 + 16*9, 9, true},
		{32 + 16*10, 0, false}, // past nQuick-1
	}
	for _, c := range cases {
		slot, ok := quickSlotForSize(c.size)
		assert.Equalf(t, c.wantOK, ok, "size=%d", c.size)
		if c.wantOK {
			assert.Equalf(t, c.wantSlot, slot, "size=%d", c.size)
		}
	}
}

func TestQuickListPushPopLIFO(t *testing.T) {
	var q quickList
	b1 := backingBlock(t, 32)
	b2 := backingBlock(t, 32)

	q.push(b1, 32)
	q.push(b2, 32)
	require.Equal(t, 2, q.length)

	_, size, flags := readHeader(b2)
	assert.Equal(t, uint32(32), size)
	assert.Equal(t, flagAllocated|flagInQuickList, flags)

	assert.Equal(t, b2, q.pop())
	assert.Equal(t, b1, q.pop())
	assert.Nil(t, q.pop())
	assert.Equal(t, 0, q.length)
}

func TestQuickListDrainOrderIsHeadFirst(t *testing.T) {
	var q quickList
	b1 := backingBlock(t, 32)
	b2 := backingBlock(t, 32)
	b3 := backingBlock(t, 32)
	q.push(b1, 32)
	q.push(b2, 32)
	q.push(b3, 32)

	var order []unsafe.Pointer
	q.drain(func(blockPtr unsafe.Pointer) { order = append(order, blockPtr) })
	assert.Equal(t, []unsafe.Pointer{b3, b2, b1}, order)
	assert.Equal(t, 0, q.length)
}
