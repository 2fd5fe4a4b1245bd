package allocator

// recordAllocate adds a newly allocated block's payload to the running
// total and raises the high-water mark if needed.
func (a *Allocator) recordAllocate(payloadSize uint32) {
	a.currentPayload += uint64(payloadSize)
	if a.currentPayload > a.peakPayload {
		a.peakPayload = a.currentPayload
	}
}

// recordFree subtracts a block's payload from the running total. It never
// touches peakPayload: the peak does not decay.
func (a *Allocator) recordFree(payloadSize uint32) {
	a.currentPayload -= uint64(payloadSize)
}

// recordResize adjusts the running total when Reallocate changes a block's
// recorded payload size in place, without a free/allocate pair.
func (a *Allocator) recordResize(oldPayload, newPayload uint32) {
	a.currentPayload = a.currentPayload - uint64(oldPayload) + uint64(newPayload)
	if a.currentPayload > a.peakPayload {
		a.peakPayload = a.currentPayload
	}
}

// CurrentPayload returns the sum of requested payload sizes of every block
// presently marked allocated, quick-list blocks included.
func (a *Allocator) CurrentPayload() uint64 { return a.currentPayload }

// PeakPayload returns the high-water mark of CurrentPayload over the
// Allocator's lifetime.
func (a *Allocator) PeakPayload() uint64 { return a.peakPayload }
