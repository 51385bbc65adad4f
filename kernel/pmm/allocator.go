package pmm

import (
	"novakernel/kernel"
	"novakernel/kernel/mem"
	ksync "novakernel/kernel/sync"
)

var (
	// ErrOutOfMemory is returned when no free frame remains.
	ErrOutOfMemory = &kernel.Error{Module: "pmm", Message: "out of physical memory"}
)

// Allocator implements a physical frame allocator that tracks frame
// reservations in a single bitmap spanning a configured arena. It uses a
// word-granular linear scan (first-fit) for allocation: the scan considers
// 64 frames at a time and only descends to bit granularity once a word with
// a free bit has been located.
//
// Allocator owns the simulated physical memory backing its frames (see
// SPEC_FULL.md "Hosted simulation model"): Init allocates a single []byte
// arena and frame addresses are real offsets into it, matching gopher-os's
// own test harnesses which stand up a real []byte and treat its address as
// if it were physical memory.
type Allocator struct {
	mu ksync.Spinlock

	base        uintptr
	totalFrames uint32
	freeFrames  uint32

	bitmap []uint64
	arena  []byte
}

// Init sets up a bitmap covering size/PageSize frames starting at physical
// address base. All frames start free: no frames are reserved for the
// allocator's own bookkeeping, since the bitmap lives in ordinary Go memory
// rather than inside the arena.
func (a *Allocator) Init(base uintptr, size uintptr) {
	a.base = base
	a.totalFrames = uint32(size / mem.PageSize)
	a.freeFrames = a.totalFrames
	a.bitmap = make([]uint64, (a.totalFrames+63)/64)
	a.arena = make([]byte, size)
}

// TotalFrames returns the number of frames managed by this allocator.
func (a *Allocator) TotalFrames() uint32 { return a.totalFrames }

// FreeFrames returns the number of frames currently unallocated.
func (a *Allocator) FreeFrames() uint32 {
	a.mu.Acquire()
	defer a.mu.Release()
	return a.freeFrames
}

// Base returns the configured base physical address for frame 0.
func (a *Allocator) Base() uintptr { return a.base }

// Bytes returns the arena-backed byte slice for a single page starting at
// frame's physical address. It is used by the VMM to read/write page table
// contents and by callers (e.g. shared memory) that need to access the
// bytes backing an allocated frame.
func (a *Allocator) Bytes(f Frame) []byte {
	off := uintptr(f) * mem.PageSize
	return a.arena[off : off+mem.PageSize]
}

// AllocFrame scans the bitmap word-by-word for the first clear bit, marks it
// allocated and returns the corresponding frame. It returns ErrOutOfMemory
// immediately, without scanning, when no frames are free.
func (a *Allocator) AllocFrame() (Frame, *kernel.Error) {
	a.mu.Acquire()
	defer a.mu.Release()

	if a.freeFrames == 0 {
		return InvalidFrame, ErrOutOfMemory
	}

	for wordIdx, word := range a.bitmap {
		if word == ^uint64(0) {
			continue
		}
		for bit := 0; bit < 64; bit++ {
			frameNum := uint32(wordIdx*64 + bit)
			if frameNum >= a.totalFrames {
				break
			}
			mask := uint64(1) << uint(bit)
			if word&mask == 0 {
				a.bitmap[wordIdx] |= mask
				a.freeFrames--
				return Frame(frameNum), nil
			}
		}
	}

	return InvalidFrame, ErrOutOfMemory
}

// FreeFrame clears the bit for the given frame. Freeing a frame outside the
// managed range, or a frame that is already free, is a silent, idempotent
// no-op.
func (a *Allocator) FreeFrame(f Frame) {
	a.mu.Acquire()
	defer a.mu.Release()

	if uint32(f) >= a.totalFrames {
		return
	}

	wordIdx, bit := uint32(f)/64, uint32(f)%64
	mask := uint64(1) << bit
	if a.bitmap[wordIdx]&mask == 0 {
		return
	}

	a.bitmap[wordIdx] &^= mask
	a.freeFrames++
}
