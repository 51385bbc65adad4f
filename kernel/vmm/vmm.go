package vmm

import (
	"reflect"
	"unsafe"

	"novakernel/kernel"
	ksync "novakernel/kernel/sync"

	"novakernel/kernel/mem"
	"novakernel/kernel/pmm"
)

var (
	// ErrUnmapped is returned when a virtual address has no mapping.
	ErrUnmapped = &kernel.Error{Module: "vmm", Message: "virtual address is not mapped"}

	// ErrHugePageSplitUnsupported is returned when an operation would
	// require splitting a huge (2 MiB) L2 entry into 4 KiB pages. Per
	// spec.md §6 this is a well-defined no-op, not an error surfaced to
	// the edge-case caller of UnmapPage, but MapPage over an existing
	// huge entry must still reject the request explicitly.
	ErrHugePageSplitUnsupported = &kernel.Error{Module: "vmm", Message: "splitting huge pages is not supported"}
)

// Manager owns a single four-level page table rooted at an L4 frame
// allocated from alloc. Per Design Notes §9, this is an explicit handle
// threaded through calls rather than a package-level singleton: callers that
// need multiple address spaces (none exist yet in this core, but nothing
// prevents it) simply construct more than one Manager sharing the same
// Allocator.
type Manager struct {
	mu   ksync.Spinlock
	alloc *pmm.Allocator
	root pmm.Frame

	// LoadCR3Fn is invoked by Activate with this Manager's root table
	// physical address. It stands in for the hardware page-table base
	// register write + TLB flush a real activate() performs; tests and
	// cmd/coredemo may override it to observe activation without a CPU.
	LoadCR3Fn func(rootPhysAddr uintptr)
}

// NewManager creates a Manager backed by the given physical frame allocator.
// Call Init before using it.
func NewManager(alloc *pmm.Allocator) *Manager {
	return &Manager{alloc: alloc, LoadCR3Fn: func(uintptr) {}}
}

// Init allocates the root (L4) table from the allocator, zeros it, and
// identity-maps the first identityMiB mebibytes of physical memory using
// 2 MiB huge entries at L2 -- the bootstrap window a real boot collaborator
// needs before it can install its own finer-grained mappings. The upper
// half of the address space (bit 47 set) is reserved for the kernel: every
// Manager built from this Init call starts with L4 entries 256-511 of its
// root table present (backed by freshly allocated, zeroed L3 tables) so
// that kernel mappings installed later are visible from any address space
// derived from this root.
func (m *Manager) Init(identityMiB uint64) *kernel.Error {
	root, err := m.alloc.AllocFrame()
	if err != nil {
		return err
	}
	m.root = root
	m.zeroFrame(root)

	// Reserve the upper half: pre-create L3 tables for every L4 entry in
	// [256, 512) so kernel mappings are structurally shared.
	rootEntries := m.entriesForFrame(root)
	for i := mem.PageTableEntries / 2; i < mem.PageTableEntries; i++ {
		l3Frame, err := m.alloc.AllocFrame()
		if err != nil {
			return err
		}
		m.zeroFrame(l3Frame)
		var e pageTableEntry
		e.SetFlags(FlagPresent | FlagRW)
		e.SetFrame(l3Frame, m.alloc.Base())
		rootEntries[i] = uint64(e)
	}

	bytesPerHuge := mem.HugePageSize
	pages := (identityMiB * uint64(mem.Mb)) / uint64(bytesPerHuge)
	for i := uint64(0); i < pages; i++ {
		va := uintptr(i) * bytesPerHuge
		frame := pmm.FrameFromAddress(m.alloc.Base(), va)
		if err := m.mapHuge(va, frame, FlagPresent|FlagRW); err != nil {
			return err
		}
	}

	return nil
}

// Activate installs this Manager's root table as the active page table by
// invoking LoadCR3Fn with the root's physical address.
func (m *Manager) Activate() {
	m.LoadCR3Fn(m.root.Address(m.alloc.Base()))
}

// RootPhysAddr returns the physical address of this Manager's L4 root table.
func (m *Manager) RootPhysAddr() uintptr {
	return m.root.Address(m.alloc.Base())
}

func (m *Manager) zeroFrame(f pmm.Frame) {
	b := m.alloc.Bytes(f)
	kernel.Memset(uintptr(unsafe.Pointer(&b[0])), 0, uintptr(len(b)))
}

// entriesForFrame overlays a []uint64 view of 512 page table entries on top
// of the raw bytes backing frame f. This mirrors gopher-os's own
// reflect.SliceHeader overlay trick (see BitmapAllocator.freeBitmap) applied
// to page table contents instead of a free-frame bitmap.
func (m *Manager) entriesForFrame(f pmm.Frame) []uint64 {
	b := m.alloc.Bytes(f)
	hdr := reflect.SliceHeader{
		Data: uintptr(unsafe.Pointer(&b[0])),
		Len:  mem.PageTableEntries,
		Cap:  mem.PageTableEntries,
	}
	return *(*[]uint64)(unsafe.Pointer(&hdr))
}
