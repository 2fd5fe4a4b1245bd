package allocator

import (
	"unsafe"

	"github.com/pkg/errors"
)

// PageProvider is the external collaborator that extends a contiguous
// heap by one page and reports its current bounds. The allocator core
// never calls an OS primitive directly; it only ever talks to this
// interface.
type PageProvider interface {
	// Start returns the heap's fixed lower bound. Equal to End before the
	// first successful Grow.
	Start() uintptr
	// End returns the heap's current upper bound.
	End() uintptr
	// Grow extends the heap by exactly PageSize bytes and returns the
	// address at which the new page begins. ok is false if the provider
	// cannot supply another page.
	Grow() (addr uintptr, ok bool)
}

// FixedHeapProvider is a PageProvider backed by a single Go byte slice
// allocated once to its full reserved capacity. Because the slice is
// never reallocated, every address handed out remains valid for the
// provider's lifetime, which is what lets the allocator hand out raw
// unsafe.Pointer values that survive across calls. It is the provider
// used by this package's own tests, including the bounded-capacity cases
// that exercise out-of-memory behavior deterministically.
type FixedHeapProvider struct {
	region []byte
	start  uintptr
	end    uintptr
	limit  uintptr
}

// NewFixedHeapProvider reserves maxBytes, which must be a positive
// multiple of PageSize, and returns a provider ready to grow into it.
func NewFixedHeapProvider(maxBytes int) (*FixedHeapProvider, error) {
	if maxBytes <= 0 || maxBytes%PageSize != 0 {
		return nil, errors.Errorf("allocator: maxBytes must be a positive multiple of %d, got %d", PageSize, maxBytes)
	}

	region := make([]byte, maxBytes)
	start := uintptr(unsafe.Pointer(&region[0]))
	return &FixedHeapProvider{
		region: region,
		start:  start,
		end:    start,
		limit:  start + uintptr(maxBytes),
	}, nil
}

func (p *FixedHeapProvider) Start() uintptr { return p.start }
func (p *FixedHeapProvider) End() uintptr   { return p.end }

func (p *FixedHeapProvider) Grow() (uintptr, bool) {
	if p.end+PageSize > p.limit {
		return 0, false
	}
	addr := p.end
	p.end += PageSize
	return addr, true
}
