package vmm

import (
	"novakernel/kernel"
	"novakernel/kernel/pmm"
)

// ErrNoSuchMapping is returned by walk when an intermediate table entry
// along the path to va is not present and the caller did not ask for
// missing tables to be allocated on demand.
var ErrNoSuchMapping = &kernel.Error{Module: "vmm", Message: "no mapping for address"}

// walkResult describes the position reached by a page table walk: the level
// at which it stopped (2 for a huge page, 1 for a normal 4 KiB leaf), the
// entries slice for the table at that level, and the index of the relevant
// entry within it.
type walkResult struct {
	level          int
	entries        []uint64
	idx            int
	terminatedHuge bool
}

func (r walkResult) entry() pageTableEntry {
	return pageTableEntry(r.entries[r.idx])
}

func (r *walkResult) setEntry(pte pageTableEntry) {
	r.entries[r.idx] = uint64(pte)
}

// walk descends the page table hierarchy rooted at m.root looking for the
// entry governing va. It always walks L4 and L3. At L2 it stops and reports
// terminatedHuge if the entry there is present with FlagHugePage set;
// otherwise it continues to L1.
//
// When allocateMissing is true, any absent entry at L4, L3 or L2 gets a
// freshly allocated, zeroed next-level table on the fly, mirroring how the
// teacher's map() grows the hierarchy lazily instead of requiring every
// level to pre-exist.
func (m *Manager) walk(va uintptr, allocateMissing bool) (walkResult, *kernel.Error) {
	entries, l2idx, err := m.descendToL2(va, allocateMissing)
	if err != nil {
		return walkResult{}, err
	}

	l2pte := pageTableEntry(entries[l2idx])
	if l2pte.HasFlags(FlagPresent) && l2pte.HasFlags(FlagHugePage) {
		return walkResult{level: 2, entries: entries, idx: l2idx, terminatedHuge: true}, nil
	}

	if !l2pte.HasFlags(FlagPresent) {
		if !allocateMissing {
			return walkResult{level: 2, entries: entries, idx: l2idx}, ErrNoSuchMapping
		}
		childFrame, err := m.alloc.AllocFrame()
		if err != nil {
			return walkResult{}, err
		}
		m.zeroFrame(childFrame)
		l2pte.SetFlags(FlagPresent | FlagRW)
		l2pte.SetFrame(childFrame, m.alloc.Base())
		entries[l2idx] = uint64(l2pte)
	}

	l1entries := m.entriesForFrame(l2pte.Frame(m.alloc.Base()))
	l1idx := int(levelIndex(va, 3))
	return walkResult{level: 1, entries: l1entries, idx: l1idx}, nil
}

// descendToL2 walks L4 and L3, allocating intermediate tables on demand when
// allocateMissing is set, and returns the L2 table's entries slice along with
// the index within it governing va. It is shared by walk (which may continue
// on to L1) and mapHuge (which stops here to install a 2 MiB entry).
func (m *Manager) descendToL2(va uintptr, allocateMissing bool) ([]uint64, int, *kernel.Error) {
	entries := m.entriesForFrame(m.root)

	for level := 0; level <= 1; level++ {
		idx := int(levelIndex(va, level))
		pte := pageTableEntry(entries[idx])

		if !pte.HasFlags(FlagPresent) {
			if !allocateMissing {
				return nil, 0, ErrNoSuchMapping
			}
			childFrame, err := m.alloc.AllocFrame()
			if err != nil {
				return nil, 0, err
			}
			m.zeroFrame(childFrame)
			pte.SetFlags(FlagPresent | FlagRW)
			pte.SetFrame(childFrame, m.alloc.Base())
			entries[idx] = uint64(pte)
		}

		entries = m.entriesForFrame(pte.Frame(m.alloc.Base()))
	}

	return entries, int(levelIndex(va, 2)), nil
}

// walkFrame is a convenience used by Translate: it returns the frame backing
// va along with the byte offset within that frame, honoring huge pages.
func (m *Manager) walkFrame(va uintptr) (pmm.Frame, uintptr, *kernel.Error) {
	res, err := m.walk(va, false)
	if err != nil {
		return pmm.InvalidFrame, 0, err
	}
	pte := res.entry()
	if !pte.HasFlags(FlagPresent) {
		return pmm.InvalidFrame, 0, ErrUnmapped
	}
	if res.terminatedHuge {
		return pte.Frame(m.alloc.Base()), HugePageOffset(va), nil
	}
	return pte.Frame(m.alloc.Base()), PageOffset(va), nil
}
