package allocator

import "unsafe"

// BlockInfo describes one block as seen by a heap walk, for diagnostic
// and testing use. It never exposes the raw pointer, only offsets
// relative to the heap's start, so callers can't accidentally feed it
// back into Free.
type BlockInfo struct {
	Offset      uint64
	PayloadSize uint32
	BlockSize   uint32
	Allocated   bool
	InQuickList bool
}

// Blocks walks the heap from the prologue's end to the epilogue and
// returns a description of every block in increasing address order. It
// is the supporting primitive behind cmd/heapstat's reporting and behind
// this package's own property tests.
func (a *Allocator) Blocks() []BlockInfo {
	var out []BlockInfo
	a.walkBlocks(func(blockPtr unsafe.Pointer, payloadSize, blockSize uint32, flags uint8) {
		out = append(out, BlockInfo{
			Offset:      uint64(p2u(blockPtr) - a.heapStart),
			PayloadSize: payloadSize,
			BlockSize:   blockSize,
			Allocated:   flags&flagAllocated != 0,
			InQuickList: flags&flagInQuickList != 0,
		})
	})
	return out
}
