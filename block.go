package allocator

import (
	"encoding/binary"
	"math"
	"unsafe"

	"github.com/cznic/mathutil"
)

// Block layout constants. Every size and address the allocator hands out
// is a multiple of alignment; header and footer are each one 64-bit word.
const (
	alignment    = 16
	headerSize   = 8
	footerSize   = 8
	minBlockSize = 32
)

// Flag bits packed into the low nibble of a decoded header/footer word.
const (
	flagAllocated  uint8 = 1 << 0
	flagInQuickList uint8 = 1 << 2
)

// headerMagic obfuscates every header/footer write. A stray write through a
// stale pointer that skips this XOR will almost certainly decode to an
// absurd payload or block size, which is how corruption gets caught.
const headerMagic uint64 = 0x5EED1E55_DEADC0DE

// encodeWord packs payload size, block size and flags into the 64-bit word
// stored (obfuscated) in a header or footer.
func encodeWord(payloadSize, blockSize uint32, flags uint8) uint64 {
	low := (blockSize &^ 0xF) | uint32(flags)
	return (uint64(payloadSize)<<32 | uint64(low)) ^ headerMagic
}

// decodeWord reverses encodeWord.
func decodeWord(word uint64) (payloadSize, blockSize uint32, flags uint8) {
	w := word ^ headerMagic
	payloadSize = uint32(w >> 32)
	low := uint32(w)
	blockSize = low &^ 0xF
	flags = uint8(low & 0xF)
	return
}

func wordView(ptr unsafe.Pointer) []byte {
	return unsafe.Slice((*byte)(ptr), 8)
}

func readWordAt(ptr unsafe.Pointer) uint64 {
	return binary.LittleEndian.Uint64(wordView(ptr))
}

func writeWordAt(ptr unsafe.Pointer, w uint64) {
	binary.LittleEndian.PutUint64(wordView(ptr), w)
}

// readHeader decodes the header word at the start of the block at blockPtr.
func readHeader(blockPtr unsafe.Pointer) (payloadSize, blockSize uint32, flags uint8) {
	return decodeWord(readWordAt(blockPtr))
}

// peekWord decodes whatever 64-bit word sits at ptr, with no assumption
// about whether it is a header or a footer. Used by coalesce's
// footer-lookback and header-peek, which don't yet know the neighbor's
// block size and so can't call footerPtr/readFooter.
func peekWord(ptr unsafe.Pointer) (payloadSize, blockSize uint32, flags uint8) {
	return decodeWord(readWordAt(ptr))
}

// writeHeader encodes and stores a header word at the start of blockPtr.
func writeHeader(blockPtr unsafe.Pointer, payloadSize, blockSize uint32, flags uint8) {
	writeWordAt(blockPtr, encodeWord(payloadSize, blockSize, flags))
}

// footerPtr returns the address of the footer word of a block of the given
// size starting at blockPtr.
func footerPtr(blockPtr unsafe.Pointer, blockSize uint32) unsafe.Pointer {
	return unsafe.Add(blockPtr, uintptr(blockSize)-footerSize)
}

func readFooter(blockPtr unsafe.Pointer, blockSize uint32) (payloadSize, decodedSize uint32, flags uint8) {
	return decodeWord(readWordAt(footerPtr(blockPtr, blockSize)))
}

func writeFooter(blockPtr unsafe.Pointer, payloadSize, blockSize uint32, flags uint8) {
	writeWordAt(footerPtr(blockPtr, blockSize), encodeWord(payloadSize, blockSize, flags))
}

// writeBlock stamps both header and footer of a block in one call; every
// block, allocated or free, carries both per the data model.
func writeBlock(blockPtr unsafe.Pointer, payloadSize, blockSize uint32, flags uint8) {
	writeHeader(blockPtr, payloadSize, blockSize, flags)
	writeFooter(blockPtr, payloadSize, blockSize, flags)
}

// payloadPtr returns the address of byte 8 of a block: where the user's
// data, or a free/quick-list link, begins.
func payloadPtr(blockPtr unsafe.Pointer) unsafe.Pointer {
	return unsafe.Add(blockPtr, headerSize)
}

// blockFromPayload is the inverse of payloadPtr.
func blockFromPayload(p unsafe.Pointer) unsafe.Pointer {
	return unsafe.Add(p, -headerSize)
}

// indexForSize returns the segregated free-list index serving blocks of the
// given size: class 0 holds exactly minBlockSize; class i>0 holds sizes in
// (minBlockSize·2^(i-1), minBlockSize·2^i]; the last class catches the rest.
func indexForSize(size uint32) int {
	if size <= minBlockSize {
		return 0
	}
	// i = ceil(log2(size/minBlockSize)), computed with BitLen to avoid floats.
	i := mathutil.BitLen(int((size - 1) >> 5))
	if i >= nFree {
		return nFree - 1
	}
	return i
}

// alignRequest computes the total block size needed to satisfy a payload
// request: header + footer + payload, rounded up to the alignment, and
// never smaller than minBlockSize. Reports false if the computation would
// overflow the 32-bit block-size field.
func alignRequest(payloadSize uint32) (blockSize uint32, ok bool) {
	sum := uint64(payloadSize) + 2*headerSize
	rounded := (sum + alignment - 1) &^ (alignment - 1)
	if rounded > math.MaxUint32 {
		return 0, false
	}
	if rounded < minBlockSize {
		rounded = minBlockSize
	}
	return uint32(rounded), true
}
