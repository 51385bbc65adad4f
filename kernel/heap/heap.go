// Package heap implements the kernel's heap allocator: a first-fit
// free-list allocator layered over a single contiguous span, with headers
// prepended to every allocation forming an address-ordered singly-linked
// list.
package heap

import (
	"unsafe"

	"novakernel/kernel"
	ksync "novakernel/kernel/sync"
)

// ErrOutOfMemory is returned when no free block satisfies a request.
var ErrOutOfMemory = &kernel.Error{Module: "heap", Message: "heap exhausted"}

// ErrZeroSizeAllocation is returned by Allocate(0); the original contract
// treats this as a caller error rather than a zero-length success.
var ErrZeroSizeAllocation = &kernel.Error{Module: "heap", Message: "allocate size must be non-zero"}

// minSplitRemainder is the smallest tail (beyond the requested payload and
// its own header) worth carving into a new free block. Smaller tails stay
// attached to the allocated block to avoid pathological fragmentation.
const minSplitRemainder = 32

// noNext marks the final block in the chain.
const noNext = ^uintptr(0)

// blockHeader is prepended to every block -- free or allocated -- in the
// heap's backing span. offset-based links (rather than Go pointers) let the
// list live entirely inside the arena, mirroring how a real heap threads its
// free list through raw memory instead of an out-of-band structure.
type blockHeader struct {
	size uintptr
	free bool
	next uintptr
}

// headerSize is the header's size rounded up to 16 bytes, so every payload
// that starts right after a header keeps the 16-byte alignment Allocate
// promises.
var headerSize = align16(unsafe.Sizeof(blockHeader{}))

// Allocator is a first-fit free-list heap over a single span established by
// Init. Per Design Notes §9 it is an explicit handle, not a package-level
// singleton.
type Allocator struct {
	mu ksync.Spinlock

	base       uintptr
	arena      []byte
	totalSize  uintptr
	usedMemory uintptr
}

// Init establishes a single free block spanning the region [start, start+size).
// start is carried only for address translation in Allocate/Free -- the
// region's actual storage is this Allocator's own arena, matching the
// hosted simulation model used by kernel/pmm.
func (a *Allocator) Init(start uintptr, size uintptr) {
	a.base = start
	a.arena = make([]byte, size)
	a.totalSize = size
	a.usedMemory = headerSize

	first := a.headerAt(0)
	first.size = size - headerSize
	first.free = true
	first.next = noNext
}

func (a *Allocator) headerAt(offset uintptr) *blockHeader {
	return (*blockHeader)(unsafe.Pointer(&a.arena[offset]))
}

func align16(n uintptr) uintptr {
	return (n + 15) &^ 15
}

// Allocate returns a 16-byte-aligned pointer to n usable bytes, or
// ErrOutOfMemory if no free block is large enough.
func (a *Allocator) Allocate(size uintptr) (uintptr, *kernel.Error) {
	if size == 0 {
		return 0, ErrZeroSizeAllocation
	}

	a.mu.Acquire()
	defer a.mu.Release()

	size = align16(size)

	offset, ok := a.findFreeBlock(size)
	if !ok {
		return 0, ErrOutOfMemory
	}

	a.maybeSplit(offset, size)

	block := a.headerAt(offset)
	block.free = false
	a.usedMemory += block.size

	return a.base + offset + headerSize, nil
}

func (a *Allocator) findFreeBlock(size uintptr) (uintptr, bool) {
	offset := uintptr(0)
	for {
		block := a.headerAt(offset)
		if block.free && block.size >= size {
			return offset, true
		}
		if block.next == noNext {
			return 0, false
		}
		offset = block.next
	}
}

func (a *Allocator) maybeSplit(offset, size uintptr) {
	block := a.headerAt(offset)
	if block.size < size+headerSize+minSplitRemainder {
		return
	}

	tailOffset := offset + headerSize + size
	tail := a.headerAt(tailOffset)
	tail.size = block.size - size - headerSize
	tail.free = true
	tail.next = block.next

	block.size = size
	block.next = tailOffset
	a.usedMemory += headerSize
}

// Free returns a previously-allocated block to the free list and coalesces
// any run of adjacent free blocks. Freeing an address not returned by
// Allocate, or already freed, is undefined behavior -- matching the original
// allocator's contract of preferring simplicity over defensive checks at
// this layer. Freeing the zero pointer is a no-op.
func (a *Allocator) Free(ptr uintptr) {
	if ptr == 0 {
		return
	}

	a.mu.Acquire()
	defer a.mu.Release()

	offset := ptr - a.base - headerSize
	block := a.headerAt(offset)
	block.free = true
	a.usedMemory -= block.size

	a.mergeFreeBlocks()
}

func (a *Allocator) mergeFreeBlocks() {
	offset := uintptr(0)
	for {
		block := a.headerAt(offset)
		if block.next == noNext {
			return
		}
		next := a.headerAt(block.next)
		if block.free && next.free {
			block.size += headerSize + next.size
			block.next = next.next
			a.usedMemory -= headerSize
		} else {
			offset = block.next
		}
	}
}

// Stats returns the total span size and the amount currently in use
// (including header overhead).
func (a *Allocator) Stats() (total, used uintptr) {
	a.mu.Acquire()
	defer a.mu.Release()
	return a.totalSize, a.usedMemory
}
