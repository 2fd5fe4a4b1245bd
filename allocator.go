package allocator

import (
	"unsafe"

	"github.com/rs/zerolog"
)

// defaultMaxHeapBytes bounds NewDefault's reservation. Non-goals exclude
// returning memory to the OS, so this is effectively the lifetime cap on
// total heap growth for an Allocator built with NewDefault.
const defaultMaxHeapBytes = 256 << 20

// Allocator is a single-threaded heap manager. It is not safe for
// concurrent use; callers needing concurrency must serialize externally.
type Allocator struct {
	provider PageProvider

	heapStart     uintptr
	prologueEnd   uintptr
	epilogueStart uintptr
	bootstrapped  bool

	freeLists  [nFree]freeList
	quickLists [nQuick]quickList

	currentPayload uint64
	peakPayload    uint64

	errno ErrCode
	abort AbortFunc
	log   zerolog.Logger
}

// New returns an Allocator that draws pages from p. The heap is not
// actually acquired until the first Allocate call (lazy bootstrap).
func New(p PageProvider) *Allocator {
	return &Allocator{
		provider: p,
		abort:    defaultAbort,
		log:      zerolog.Nop(),
	}
}

// NewDefault wires a production HeapProvider reserving defaultMaxHeapBytes
// and returns a ready-to-use Allocator.
func NewDefault() (*Allocator, error) {
	p, err := NewHeapProvider(defaultMaxHeapBytes)
	if err != nil {
		return nil, err
	}
	return New(p), nil
}

// SetLogger attaches a structured logger; the zero value logs nothing,
// matching the default of never tracing unless asked.
func (a *Allocator) SetLogger(l zerolog.Logger) { a.log = l }

// SetAbortFunc overrides what Free calls on structural corruption. Tests
// use this to observe an abort without terminating the process.
func (a *Allocator) SetAbortFunc(f AbortFunc) { a.abort = f }

// Allocate reserves at least size bytes and returns a pointer to a
// 16-byte-aligned payload region of that size, or nil. A zero-byte
// request silently returns nil without touching the error sink. A size
// whose aligned block size would overflow 32 bits returns nil with Errno
// set to ErrInvalidArgument; any other failure means the heap could not
// grow, and Errno reports ErrOutOfMemory.
func (a *Allocator) Allocate(size uint32) unsafe.Pointer {
	if size == 0 {
		return nil
	}

	if !a.bootstrapped {
		if !a.bootstrap() {
			return nil
		}
	}

	need, ok := alignRequest(size)
	if !ok {
		a.setErrno(ErrInvalidArgument)
		return nil
	}

	blockPtr := a.firstFit(need)
	for blockPtr == nil {
		if a.extend() == nil {
			return nil
		}
		blockPtr = a.firstFit(need)
	}

	_, blockSize, _ := readHeader(blockPtr)
	a.freeLists[indexForSize(blockSize)].remove(blockPtr)
	finalSize := a.split(blockPtr, need)
	writeBlock(blockPtr, size, finalSize, flagAllocated)
	a.recordAllocate(size)

	return payloadPtr(blockPtr)
}

// Free releases the block at ptr, which must have been returned by
// Allocate or Reallocate. A nil pointer is a no-op. Any pointer that
// fails structural validation (wrong range, wrong alignment, corrupt or
// already-free header) is a fatal error: Free calls the Allocator's
// AbortFunc rather than risk operating on a corrupted heap.
func (a *Allocator) Free(ptr unsafe.Pointer) {
	if ptr == nil {
		return
	}

	blockPtr, blockSize, ok := a.validatePointer(ptr)
	if !ok {
		a.log.Error().Msg("free: invalid or corrupt pointer")
		a.abort("free: invalid or corrupt pointer")
		return
	}

	payloadSize, _, _ := readHeader(blockPtr)
	a.recordFree(payloadSize)
	a.freeBlockOrQuick(blockPtr, blockSize)
}

// freeBlockOrQuick routes a validated, about-to-be-freed block to its
// quick list slot if one matches exactly, otherwise through coalesce into
// the main free lists.
func (a *Allocator) freeBlockOrQuick(blockPtr unsafe.Pointer, blockSize uint32) {
	if slot, ok := quickSlotForSize(blockSize); ok {
		q := &a.quickLists[slot]
		if q.length >= quickMax {
			a.flushQuickList(slot)
		}
		q.push(blockPtr, blockSize)
		return
	}

	writeBlock(blockPtr, 0, blockSize, 0)
	mergedPtr, mergedSize := a.coalesce(blockPtr, blockSize)
	a.insertFree(mergedPtr, mergedSize)
}

// flushQuickList drains quick list k entirely: every block it held is
// rewritten as free, coalesced with its neighbors, and inserted into the
// main free lists, head of the quick list first.
func (a *Allocator) flushQuickList(k int) {
	flushed := 0
	a.quickLists[k].drain(func(blockPtr unsafe.Pointer) {
		blockSize := quickSlotSize(k)
		writeBlock(blockPtr, 0, blockSize, 0)
		mergedPtr, mergedSize := a.coalesce(blockPtr, blockSize)
		a.insertFree(mergedPtr, mergedSize)
		flushed++
	})
	a.log.Debug().Int("quick_list", k).Int("flushed", flushed).Msg("quick list flushed")
}

// Reallocate resizes the block at ptr to size bytes, returning a pointer
// that may differ from ptr. A nil ptr behaves like Allocate(size). A
// size of zero frees ptr and returns nil. Any other failure returns nil:
// an invalid ptr sets Errno to ErrInvalidArgument (recoverable, unlike
// Free's abort); an out-of-memory growth sets ErrOutOfMemory.
func (a *Allocator) Reallocate(ptr unsafe.Pointer, size uint32) unsafe.Pointer {
	if ptr == nil {
		return a.Allocate(size)
	}
	if size == 0 {
		a.Free(ptr)
		return nil
	}

	blockPtr, oldBlockSize, ok := a.validatePointer(ptr)
	if !ok {
		a.setErrno(ErrInvalidArgument)
		return nil
	}

	newNeed, ok := alignRequest(size)
	if !ok {
		a.setErrno(ErrInvalidArgument)
		return nil
	}

	oldPayload, _, _ := readHeader(blockPtr)

	switch {
	case newNeed == oldBlockSize:
		writeBlock(blockPtr, size, oldBlockSize, flagAllocated)
		a.recordResize(oldPayload, size)
		return ptr

	case newNeed < oldBlockSize:
		rem := oldBlockSize - newNeed
		a.recordResize(oldPayload, size)
		if rem < minBlockSize {
			// Conservative choice for the shrink splinter: leave the
			// block at its original size, only the payload field moves.
			writeBlock(blockPtr, size, oldBlockSize, flagAllocated)
			return ptr
		}

		writeBlock(blockPtr, size, newNeed, flagAllocated)
		tailPtr := unsafe.Add(blockPtr, uintptr(newNeed))
		writeBlock(tailPtr, 0, rem, 0)
		mergedPtr, mergedSize := a.coalesce(tailPtr, rem)
		a.insertFree(mergedPtr, mergedSize)
		return ptr

	default: // newNeed > oldBlockSize
		newPtr := a.Allocate(size)
		if newPtr == nil {
			a.setErrno(ErrOutOfMemory)
			return nil
		}
		copyPayload(newPtr, ptr, oldPayload)
		a.Free(ptr)
		return newPtr
	}
}

func copyPayload(dst, src unsafe.Pointer, n uint32) {
	if n == 0 {
		return
	}
	copy(unsafe.Slice((*byte)(dst), n), unsafe.Slice((*byte)(src), n))
}

// Fragmentation walks the whole heap by block size and returns the ratio
// of bytes actually requested by users to bytes occupied by allocated
// blocks (header, footer and padding included). Quick-list blocks count:
// their ALLOCATED bit is set, and they're reached by the heap walk, not
// by inspecting the quick lists directly. Returns 0 if the heap is empty
// or nothing is allocated.
func (a *Allocator) Fragmentation() float64 {
	var sumPayload, sumBlock uint64
	a.walkBlocks(func(_ unsafe.Pointer, payloadSize, blockSize uint32, flags uint8) {
		if flags&flagAllocated != 0 {
			sumPayload += uint64(payloadSize)
			sumBlock += uint64(blockSize)
		}
	})
	if sumBlock == 0 {
		return 0
	}
	return float64(sumPayload) / float64(sumBlock)
}

// Utilization returns the ratio of peak payload ever allocated to total
// heap bytes acquired from the provider. It does not decay: a large
// allocation that is later freed still counts toward utilization.
func (a *Allocator) Utilization() float64 {
	if !a.bootstrapped {
		return 0
	}
	total := a.provider.End() - a.heapStart
	if total == 0 {
		return 0
	}
	return float64(a.peakPayload) / float64(total)
}
