package allocator

import (
	"math"
	"testing"
	"unsafe"

	"github.com/cznic/mathutil"
	"github.com/stretchr/testify/require"
)

// These soak tests are adapted from an earlier bump-allocator package's
// test1/test2/test3: a seeded full-cycle PRNG (mathutil.FC32) drives a long sequence of
// allocations, writes a recognizable pattern into each, then verifies and
// frees them back in various orders. Here they drive Allocate/Free against
// unsafe.Pointer payloads instead of Malloc/Free against []byte slices, and
// the quota is sized to fit comfortably within a FixedHeapProvider instead
// of real OS memory.
const soakQuota = 1 << 20 // 1 MiB of requested payload per run

func newSoakAllocator(t *testing.T) *Allocator {
	t.Helper()
	p, err := NewFixedHeapProvider(8 << 20)
	require.NoError(t, err)
	return New(p)
}

func viewPayload(ptr unsafe.Pointer, n int) []byte {
	if n == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(ptr), n)
}

func soak(t *testing.T, maxSize int, freeInAllocationOrder bool) {
	t.Helper()
	a := newSoakAllocator(t)

	rng, err := mathutil.NewFC32(1, math.MaxInt16, true)
	require.NoError(t, err)
	rng.Seed(42)
	pos := rng.Pos()

	var ptrs []unsafe.Pointer
	var sizes []int
	rem := soakQuota
	for rem > 0 {
		size := rng.Next()%maxSize + 1
		rem -= size
		ptr := a.Allocate(uint32(size))
		require.NotNil(t, ptr, "allocate(%d) failed, errno=%s", size, a.Errno())
		ptrs = append(ptrs, ptr)
		sizes = append(sizes, size)

		b := viewPayload(ptr, size)
		for i := range b {
			b[i] = byte(rng.Next())
		}
	}

	rng.Seek(pos)
	for i, ptr := range ptrs {
		size := rng.Next()%maxSize + 1
		require.Equal(t, sizes[i], size)
		b := viewPayload(ptr, size)
		for j, got := range b {
			want := byte(rng.Next())
			require.Equalf(t, want, got, "mismatch at alloc %d byte %d", i, j)
		}
	}

	if freeInAllocationOrder {
		for _, ptr := range ptrs {
			a.Free(ptr)
		}
	} else {
		for i := len(ptrs) - 1; i >= 0; i-- {
			a.Free(ptrs[i])
		}
	}

	require.Equal(t, uint64(0), a.CurrentPayload())
}

func TestSoakSmallForward(t *testing.T)  { soak(t, 256, true) }
func TestSoakSmallReverse(t *testing.T)  { soak(t, 256, false) }
func TestSoakMediumForward(t *testing.T) { soak(t, 4096, true) }
func TestSoakMediumReverse(t *testing.T) { soak(t, 4096, false) }
