package allocator

import "unsafe"

// PageSize is the granularity at which the page provider grows the heap.
const PageSize = 4096

// prologueSize is the fixed, never-freed sentinel block that terminates
// backward coalescing.
const prologueSize = 32

// epilogueSize is the always-allocated, header-only sentinel that
// terminates forward coalescing.
const epilogueSize = 8

// heapPaddingSize is the slack before the prologue so that its payload
// region starts 16-byte aligned.
const heapPaddingSize = 8

func u2p(addr uintptr) unsafe.Pointer { return unsafe.Pointer(addr) }
func p2u(p unsafe.Pointer) uintptr    { return uintptr(p) }

// bootstrap performs the one-time heap setup triggered by the first
// Allocate call: grows one page, lays down padding/prologue/epilogue, and
// inserts the resulting free block. Reports false (with errno set) if the
// provider cannot supply the first page.
func (a *Allocator) bootstrap() bool {
	for i := range a.freeLists {
		a.freeLists[i].init()
	}

	if _, ok := a.provider.Grow(); !ok {
		a.setErrno(ErrOutOfMemory)
		return false
	}

	heapStart := a.provider.Start()
	heapEnd := a.provider.End()

	prologuePtr := u2p(heapStart + heapPaddingSize)
	writeBlock(prologuePtr, 0, prologueSize, flagAllocated)

	a.prologueEnd = heapStart + heapPaddingSize + prologueSize
	a.heapStart = heapStart
	a.epilogueStart = heapEnd - epilogueSize

	freeBlockPtr := u2p(a.prologueEnd)
	freeBlockSize := uint32(a.epilogueStart - a.prologueEnd)
	writeBlock(freeBlockPtr, 0, freeBlockSize, 0)

	writeBlock(u2p(a.epilogueStart), 0, epilogueSize, flagAllocated)

	a.insertFree(freeBlockPtr, freeBlockSize)
	a.bootstrapped = true

	a.log.Debug().
		Uint64("heap_start", uint64(heapStart)).
		Uint64("free_block_size", uint64(freeBlockSize)).
		Msg("heap bootstrapped")
	return true
}

// extend acquires one more page from the provider, absorbs the previous
// epilogue into a new free block, writes a fresh epilogue, coalesces the
// new block with any trailing free neighbor, and inserts the result. It
// returns the resulting free block pointer, or nil (with errno set to
// out-of-memory) if the provider cannot grow.
func (a *Allocator) extend() unsafe.Pointer {
	oldEpilogueStart := a.epilogueStart

	if _, ok := a.provider.Grow(); !ok {
		a.setErrno(ErrOutOfMemory)
		return nil
	}

	newBlockPtr := u2p(oldEpilogueStart)
	newBlockSize := uint32(PageSize)
	writeBlock(newBlockPtr, 0, newBlockSize, 0)

	heapEnd := a.provider.End()
	a.epilogueStart = heapEnd - epilogueSize
	writeBlock(u2p(a.epilogueStart), 0, epilogueSize, flagAllocated)

	mergedPtr, mergedSize := a.coalesce(newBlockPtr, newBlockSize)
	a.insertFree(mergedPtr, mergedSize)

	a.log.Debug().
		Uint64("new_epilogue", uint64(a.epilogueStart)).
		Uint32("merged_block_size", mergedSize).
		Msg("heap extended")
	return mergedPtr
}

// split carves an allocation of need bytes out of blockPtr (currently
// already removed from its free list). If the remainder is too small to
// stand alone (< minBlockSize) the whole block is left intact as a
// splinter. Returns the block size the caller should mark allocated.
func (a *Allocator) split(blockPtr unsafe.Pointer, need uint32) uint32 {
	_, blockSize, _ := readHeader(blockPtr)
	rem := blockSize - need
	if rem < minBlockSize {
		return blockSize
	}

	remainderPtr := unsafe.Add(blockPtr, uintptr(need))
	writeBlock(remainderPtr, 0, rem, 0)
	a.insertFree(remainderPtr, rem)
	return need
}

// coalesce merges a free block (not yet in any list) with an immediately
// preceding and/or following free block, removing whichever neighbors
// participate from their current free lists. It returns the resulting
// block's address and size; neither is inserted into a free list by this
// function. The prologue and epilogue are always ALLOCATED, so the
// lookback/peek below would stop at them even without the bounds checks
// that guard each step.
func (a *Allocator) coalesce(blockPtr unsafe.Pointer, blockSize uint32) (unsafe.Pointer, uint32) {
	base := blockPtr
	size := blockSize

	if p2u(base) > a.prologueEnd {
		_, prevSize, prevFlags := peekWord(u2p(p2u(base) - footerSize))
		if prevFlags&flagAllocated == 0 && prevSize >= minBlockSize && prevSize%alignment == 0 {
			prevPtr := unsafe.Add(base, -uintptr(prevSize))
			a.freeLists[indexForSize(prevSize)].remove(prevPtr)
			base = prevPtr
			size += prevSize
		}
	}

	if p2u(base)+uintptr(size) < a.epilogueStart {
		nextPtr := unsafe.Add(base, uintptr(size))
		_, nextSize, nextFlags := peekWord(nextPtr)
		if nextFlags&flagAllocated == 0 && nextSize >= minBlockSize && nextSize%alignment == 0 {
			a.freeLists[indexForSize(nextSize)].remove(nextPtr)
			size += nextSize
		}
	}

	writeBlock(base, 0, size, 0)
	return base, size
}

// walkBlocks calls fn for every block from the prologue's end to the
// epilogue, in increasing address order.
func (a *Allocator) walkBlocks(fn func(blockPtr unsafe.Pointer, payloadSize, blockSize uint32, flags uint8)) {
	if !a.bootstrapped {
		return
	}
	ptr := u2p(a.prologueEnd)
	for p2u(ptr) < a.epilogueStart {
		payloadSize, blockSize, flags := readHeader(ptr)
		fn(ptr, payloadSize, blockSize, flags)
		ptr = unsafe.Add(ptr, uintptr(blockSize))
	}
}

// validatePointer implements the structural checks shared by Free and
// Reallocate: the payload pointer must fall within the live heap, be
// correctly aligned, and decode to a sane, currently-allocated, non-quick
// block. Ranges are derived from the recorded layout, never hard-coded.
func (a *Allocator) validatePointer(payloadPtr unsafe.Pointer) (blockPtr unsafe.Pointer, blockSize uint32, ok bool) {
	if !a.bootstrapped {
		return nil, 0, false
	}

	addr := p2u(payloadPtr)
	if addr < a.prologueEnd+headerSize || addr >= a.epilogueStart {
		return nil, 0, false
	}

	block := blockFromPayload(payloadPtr)
	if (p2u(block)-a.heapStart)%alignment != headerSize {
		return nil, 0, false
	}

	_, size, flags := readHeader(block)
	if size < minBlockSize || size%alignment != 0 {
		return nil, 0, false
	}
	if flags&flagAllocated == 0 || flags&flagInQuickList != 0 {
		return nil, 0, false
	}
	if p2u(block)+uintptr(size) > a.epilogueStart {
		return nil, 0, false
	}
	return block, size, true
}
