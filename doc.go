// Package allocator implements a user-space dynamic memory allocator over
// a contiguous, monotonically-growing heap acquired one page at a time
// from a PageProvider. It exposes Allocate, Free and Reallocate plus two
// observability functions, Fragmentation and Utilization.
//
// The heap layout, the segregated free lists, the quick lists, and the
// split/coalesce algebra that moves blocks between them are described in
// block.go, freelist.go, quicklist.go and heap.go. allocator.go is the
// public surface that orchestrates them.
//
// Concurrency
//
// An Allocator is single-threaded: it holds no locks and performs no
// atomic operations. Callers needing concurrent access must serialize
// their own calls.
package allocator
