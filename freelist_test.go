package allocator

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// backingBlock allocates a standalone buffer sized and aligned like a real
// heap block, for exercising free-list operations without a whole
// Allocator. It is never freed through the public API.
func backingBlock(t *testing.T, size uint32) unsafe.Pointer {
	t.Helper()
	require.True(t, size >= minBlockSize)
	buf := make([]byte, size+alignment) // slack for alignment
	addr := uintptr(unsafe.Pointer(&buf[0]))
	aligned := (addr + alignment - 1) &^ (alignment - 1)
	return unsafe.Pointer(aligned)
}

func TestFreeListInsertRemoveLIFO(t *testing.T) {
	var fl freeList
	fl.init()
	assert.True(t, fl.empty())

	b1 := backingBlock(t, 64)
	b2 := backingBlock(t, 64)
	b3 := backingBlock(t, 64)
	writeBlock(b1, 0, 64, 0)
	writeBlock(b2, 0, 64, 0)
	writeBlock(b3, 0, 64, 0)

	fl.insert(b1)
	fl.insert(b2)
	fl.insert(b3)

	var order []unsafe.Pointer
	fl.walk(func(blockPtr unsafe.Pointer) { order = append(order, blockPtr) })
	require.Equal(t, []unsafe.Pointer{b3, b2, b1}, order)

	fl.remove(b2)
	order = nil
	fl.walk(func(blockPtr unsafe.Pointer) { order = append(order, blockPtr) })
	assert.Equal(t, []unsafe.Pointer{b3, b1}, order)

	fl.remove(b3)
	fl.remove(b1)
	assert.True(t, fl.empty())
}

func TestFreeListFindReturnsFirstMatch(t *testing.T) {
	var fl freeList
	fl.init()

	small := backingBlock(t, 32)
	big := backingBlock(t, 128)
	writeBlock(small, 0, 32, 0)
	writeBlock(big, 0, 128, 0)

	fl.insert(small)
	fl.insert(big)

	found := fl.find(func(blockPtr unsafe.Pointer) bool {
		_, size, _ := readHeader(blockPtr)
		return size >= 100
	})
	assert.Equal(t, big, found)
}
