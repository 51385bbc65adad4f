package vmm

import (
	"novakernel/kernel"
	"novakernel/kernel/pmm"
)

// MapPage ensures intermediate levels exist (allocating and zeroing them as
// needed) and installs an L1 entry mapping va to physAddr. If an entry
// already exists at the leaf it is left untouched -- MapPage never
// overwrites an existing mapping. Mapping over an address that currently
// falls inside an existing huge (2 MiB) L2 entry is rejected: splitting a
// huge page is not supported by this core.
func (m *Manager) MapPage(va, physAddr uintptr, writable bool) *kernel.Error {
	m.mu.Acquire()
	defer m.mu.Release()

	res, err := m.walk(va, true)
	if err != nil {
		return err
	}
	if res.terminatedHuge {
		return ErrHugePageSplitUnsupported
	}

	pte := res.entry()
	if pte.HasFlags(FlagPresent) {
		return nil
	}

	flags := FlagPresent
	if writable {
		flags |= FlagRW
	}
	pte.SetFlags(flags)
	frame := pmm.FrameFromAddress(m.alloc.Base(), physAddr)
	pte.SetFrame(frame, m.alloc.Base())
	res.setEntry(pte)

	return nil
}

// mapHuge installs a 2 MiB mapping from va (which must be 2 MiB aligned) to
// frame at L2, used by Init to build the bootstrap identity map.
func (m *Manager) mapHuge(va uintptr, frame pmm.Frame, flags PageTableEntryFlag) *kernel.Error {
	entries, idx, err := m.descendToL2(va, true)
	if err != nil {
		return err
	}

	var pte pageTableEntry
	pte.SetFlags(flags | FlagHugePage)
	pte.SetFrame(frame, m.alloc.Base())
	entries[idx] = uint64(pte)

	return nil
}

// UnmapPage zeroes the L1 entry for va. Unmapping an address that is not
// currently mapped, or that falls inside a huge page, is a no-op: UnmapPage
// never tears down huge entries installed by Init,
// since doing so would require supporting a split this core does not
// implement.
func (m *Manager) UnmapPage(va uintptr) *kernel.Error {
	m.mu.Acquire()
	defer m.mu.Release()

	res, err := m.walk(va, false)
	if err == ErrNoSuchMapping {
		return nil
	}
	if err != nil {
		return err
	}
	if res.terminatedHuge {
		return nil
	}

	res.setEntry(0)

	return nil
}

// Translate resolves a virtual address to its backing physical address,
// honoring huge (2 MiB) mappings. It returns ErrUnmapped if va has no
// mapping.
func (m *Manager) Translate(va uintptr) (uintptr, *kernel.Error) {
	m.mu.Acquire()
	defer m.mu.Release()

	frame, offset, err := m.walkFrame(va)
	if err != nil {
		if err == ErrNoSuchMapping {
			return 0, ErrUnmapped
		}
		return 0, err
	}

	return frame.Address(m.alloc.Base()) + offset, nil
}
