// Copyright 2011 Evan Shaw. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE-MMAP-GO file.

//go:build windows

package allocator

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/windows"
)

// HeapProvider is the production PageProvider on Windows. It reserves and
// commits maxBytes of memory in one VirtualAlloc call, the Windows
// analogue of an anonymous mmap reservation, so that every address it
// hands out stays valid for the provider's lifetime.
type HeapProvider struct {
	addr  uintptr
	start uintptr
	end   uintptr
	limit uintptr
}

// NewHeapProvider reserves maxBytes (a positive multiple of PageSize) via
// VirtualAlloc and returns a provider ready to grow into it.
func NewHeapProvider(maxBytes int) (*HeapProvider, error) {
	if maxBytes <= 0 || maxBytes%PageSize != 0 {
		return nil, errors.Errorf("allocator: maxBytes must be a positive multiple of %d, got %d", PageSize, maxBytes)
	}

	addr, err := windows.VirtualAlloc(0, uintptr(maxBytes), windows.MEM_COMMIT|windows.MEM_RESERVE, windows.PAGE_READWRITE)
	if err != nil {
		return nil, errors.Wrap(err, "allocator: VirtualAlloc heap reservation")
	}

	return &HeapProvider{
		addr:  addr,
		start: addr,
		end:   addr,
		limit: addr + uintptr(maxBytes),
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

// Close releases the reservation back to the OS.
func (h *HeapProvider) Close() error {
	if h.addr == 0 {
		return nil
	}
	err := windows.VirtualFree(h.addr, 0, windows.MEM_RELEASE)
	h.addr = 0
	return errors.Wrap(err, "allocator: VirtualFree heap reservation")
}
