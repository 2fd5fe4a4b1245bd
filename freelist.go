package allocator

import "unsafe"

// nFree is the number of segregated size-class free lists.
const nFree = 10

// freeLink is the doubly-linked node overlaid at payload offset (byte 8) of
// every block that lives in a free list, and also the shape of each list's
// sentinel. Circular lists with a self-referential sentinel mean insert and
// remove never need a nil check.
type freeLink struct {
	prev, next unsafe.Pointer
}

type freeList struct {
	sentinel freeLink
}

func (fl *freeList) self() unsafe.Pointer { return unsafe.Pointer(&fl.sentinel) }

func (fl *freeList) init() {
	s := fl.self()
	fl.sentinel.prev = s
	fl.sentinel.next = s
}

func (fl *freeList) empty() bool { return fl.sentinel.next == fl.self() }

func linkNode(p unsafe.Pointer) *freeLink { return (*freeLink)(p) }

// blockLink and linkToBlock translate between a block's own address and the
// address of its freeLink, which lives at the block's payload offset.
func blockLink(blockPtr unsafe.Pointer) unsafe.Pointer { return payloadPtr(blockPtr) }
func linkToBlock(linkPtr unsafe.Pointer) unsafe.Pointer { return blockFromPayload(linkPtr) }

// insert splices blockPtr at the head of the list (LIFO): the most recently
// freed or coalesced block is found first by firstFit.
func (fl *freeList) insert(blockPtr unsafe.Pointer) {
	s := fl.self()
	node := blockLink(blockPtr)
	n := linkNode(node)
	first := fl.sentinel.next
	n.prev = s
	n.next = first
	linkNode(first).prev = node
	fl.sentinel.next = node
}

// remove detaches blockPtr from whichever list it currently sits in.
func (fl *freeList) remove(blockPtr unsafe.Pointer) {
	node := blockLink(blockPtr)
	n := linkNode(node)
	linkNode(n.prev).next = n.next
	linkNode(n.next).prev = n.prev
}

// walk calls fn for every block currently in the list, head to tail.
func (fl *freeList) walk(fn func(blockPtr unsafe.Pointer)) {
	s := fl.self()
	for node := fl.sentinel.next; node != s; node = linkNode(node).next {
		fn(linkToBlock(node))
	}
}

// find returns the first block (head to tail) for which pred is true, or
// nil if none matches.
func (fl *freeList) find(pred func(blockPtr unsafe.Pointer) bool) unsafe.Pointer {
	s := fl.self()
	for node := fl.sentinel.next; node != s; node = linkNode(node).next {
		blockPtr := linkToBlock(node)
		if pred(blockPtr) {
			return blockPtr
		}
	}
	return nil
}

// insertFree chooses the right size class for blockPtr (of the given total
// size) and inserts it there.
func (a *Allocator) insertFree(blockPtr unsafe.Pointer, blockSize uint32) {
	a.freeLists[indexForSize(blockSize)].insert(blockPtr)
}

// firstFit scans free lists starting at the smallest class that could
// possibly satisfy need, returning the first block whose size is enough.
// Ties are broken by scan order: head of the smallest adequate list first.
func (a *Allocator) firstFit(need uint32) unsafe.Pointer {
	start := indexForSize(need)
	for i := start; i < nFree; i++ {
		if found := a.freeLists[i].find(func(blockPtr unsafe.Pointer) bool {
			_, blockSize, _ := readHeader(blockPtr)
			return blockSize >= need
		}); found != nil {
			return found
		}
	}
	return nil
}
