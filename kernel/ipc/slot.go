package ipc

// ID identifies a live object (message queue or shared memory region) in a
// slotTable. It packs a slot index in the low 32 bits and a generation
// counter in the high 32 bits, so a reused slot index never aliases an id
// minted before it was freed -- the re-model Design Notes §9 calls for in
// place of the original's ad-hoc "id == slot_index + 1" scheme.
type ID uint64

func newID(index, generation uint32) ID {
	return ID(uint64(generation)<<32 | uint64(index))
}

func (id ID) index() uint32 {
	return uint32(id)
}

func (id ID) generation() uint32 {
	return uint32(id >> 32)
}

type slot[T any] struct {
	generation uint32
	occupied   bool
	value      T
}

// slotTable is a generational sparse table: freed slots are reused by
// insert before the table grows, but each reuse bumps the slot's
// generation so stale IDs fail lookups instead of silently resolving to
// whatever now occupies that index.
type slotTable[T any] struct {
	slots []slot[T]
	free  []uint32
}

func (t *slotTable[T]) insert(v T) ID {
	if n := len(t.free); n > 0 {
		idx := t.free[n-1]
		t.free = t.free[:n-1]
		s := &t.slots[idx]
		s.occupied = true
		s.value = v
		return newID(idx, s.generation)
	}

	idx := uint32(len(t.slots))
	t.slots = append(t.slots, slot[T]{occupied: true, value: v})
	return newID(idx, 0)
}

func (t *slotTable[T]) get(id ID) (*T, bool) {
	idx := id.index()
	if int(idx) >= len(t.slots) {
		return nil, false
	}
	s := &t.slots[idx]
	if !s.occupied || s.generation != id.generation() {
		return nil, false
	}
	return &s.value, true
}

func (t *slotTable[T]) remove(id ID) bool {
	idx := id.index()
	if int(idx) >= len(t.slots) {
		return false
	}
	s := &t.slots[idx]
	if !s.occupied || s.generation != id.generation() {
		return false
	}

	var zero T
	s.value = zero
	s.occupied = false
	s.generation++
	t.free = append(t.free, idx)
	return true
}
