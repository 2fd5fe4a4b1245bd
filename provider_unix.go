// Copyright 2011 Evan Shaw. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE-MMAP-GO file.

//go:build unix

package allocator

import (
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// HeapProvider is the production PageProvider: it reserves maxBytes of
// anonymous, demand-paged memory up front with a single mmap call so that
// every address it ever hands out stays valid for the provider's
// lifetime, then advances a logical end pointer into that reservation one
// PageSize at a time. Reserving the whole region once and only ever
// advancing a logical end pointer means the heap never moves once any
// block inside it has been handed out.
type HeapProvider struct {
	region []byte
	start  uintptr
	end    uintptr
	limit  uintptr
}

// NewHeapProvider reserves maxBytes (a positive multiple of PageSize) of
// address space via mmap and returns a provider ready to grow into it.
func NewHeapProvider(maxBytes int) (*HeapProvider, error) {
	if maxBytes <= 0 || maxBytes%PageSize != 0 {
		return nil, errors.Errorf("allocator: maxBytes must be a positive multiple of %d, got %d", PageSize, maxBytes)
	}

	region, err := unix.Mmap(-1, 0, maxBytes, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, errors.Wrap(err, "allocator: mmap heap reservation")
	}

	start := uintptr(unsafe.Pointer(&region[0]))
	return &HeapProvider{
		region: region,
		start:  start,
		end:    start,
		limit:  start + uintptr(maxBytes),
	}, nil
}

func (h *HeapProvider) Start() uintptr { return h.start }
func (h *HeapProvider) End() uintptr   { return h.end }

func (h *HeapProvider) Grow() (uintptr, bool) {
	if h.end+PageSize > h.limit {
		return 0, false
	}
	addr := h.end
	h.end += PageSize
	return addr, true
}

// Close releases the reservation back to the OS. Not required before
// process exit; provided for long-lived processes that create and
// discard many Allocators.
func (h *HeapProvider) Close() error {
	if h.region == nil {
		return nil
	}
	err := unix.Munmap(h.region)
	h.region = nil
	return errors.Wrap(err, "allocator: munmap heap reservation")
}
