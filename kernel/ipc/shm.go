package ipc

import (
	"novakernel/kernel"
	"novakernel/kernel/mem"
	"novakernel/kernel/pmm"
)

// MaxSharedMemorySize is the largest region size, in bytes, a single shm_create may request.
const MaxSharedMemorySize = 4 * 1024 * 1024

// shmWindowBase anchors the reserved virtual address window shared memory
// regions are carved from. Each region is given a MaxSharedMemorySize-sized
// slot indexed by its slotTable index, so distinct regions never overlap --
// the same "id-indexed slot" scheme the original design used, retained per
// Design Notes §9, but keyed on the stable slot index rather than a
// generational id that can change across reuse.
const shmWindowBase = uintptr(0x0000_7000_0000_0000)

type shmRegion struct {
	creatorPid int32
	sizeBytes  uintptr
	baseVA     uintptr
	attached   []int32
}

func alignUpPage(n uintptr) uintptr {
	return (n + mem.PageSize - 1) &^ (mem.PageSize - 1)
}

// CreateSHM allocates and maps a new shared memory region on behalf of
// creator. size_bytes is clamped to [1, MaxSharedMemorySize] and rounded up
// to a page. Each page is backed by a frame from the PMM and mapped into
// the kernel address space via the VMM; if any page in the loop fails, every
// frame and mapping established so far for this region is rolled back
// before returning.
func (m *Manager) CreateSHM(creator int32, sizeBytes uintptr) (ID, *kernel.Error) {
	m.mu.Acquire()
	defer m.mu.Release()

	if sizeBytes < 1 {
		sizeBytes = 1
	}
	if sizeBytes > MaxSharedMemorySize {
		sizeBytes = MaxSharedMemorySize
	}
	sizeBytes = alignUpPage(sizeBytes)

	id := m.shm.insert(shmRegion{creatorPid: creator, sizeBytes: sizeBytes})
	baseVA := shmWindowBase + uintptr(id.index())*MaxSharedMemorySize

	numPages := sizeBytes / mem.PageSize
	mappedVAs := make([]uintptr, 0, numPages)
	mappedFrames := make([]pmm.Frame, 0, numPages)

	for i := uintptr(0); i < numPages; i++ {
		va := baseVA + i*mem.PageSize

		frame, err := m.alloc.AllocFrame()
		if err != nil {
			m.rollbackSHM(mappedVAs, mappedFrames)
			m.shm.remove(id)
			return 0, err
		}

		pageBytes := m.alloc.Bytes(frame)
		for b := range pageBytes {
			pageBytes[b] = 0
		}

		if mapErr := m.vm.MapPage(va, frame.Address(m.alloc.Base()), true); mapErr != nil {
			m.alloc.FreeFrame(frame)
			m.rollbackSHM(mappedVAs, mappedFrames)
			m.shm.remove(id)
			return 0, mapErr
		}

		mappedVAs = append(mappedVAs, va)
		mappedFrames = append(mappedFrames, frame)
	}

	region, _ := m.shm.get(id)
	region.baseVA = baseVA
	region.attached = append(region.attached, creator)

	return id, nil
}

func (m *Manager) rollbackSHM(vas []uintptr, frames []pmm.Frame) {
	for i, va := range vas {
		m.vm.UnmapPage(va)
		m.alloc.FreeFrame(frames[i])
	}
}

// AttachSHM maps pid as an attacher of the region and returns its virtual
// base. Attaching an already-attached pid is idempotent: it returns the
// existing base without duplicating the pid in the attach list.
func (m *Manager) AttachSHM(id ID, pid int32) (uintptr, *kernel.Error) {
	m.mu.Acquire()
	defer m.mu.Release()

	region, ok := m.shm.get(id)
	if !ok {
		return 0, ErrNotFound
	}

	for _, p := range region.attached {
		if p == pid {
			return region.baseVA, nil
		}
	}

	region.attached = append(region.attached, pid)
	return region.baseVA, nil
}

// DetachSHM removes pid from the region's attach list.
func (m *Manager) DetachSHM(id ID, pid int32) *kernel.Error {
	m.mu.Acquire()
	defer m.mu.Release()

	region, ok := m.shm.get(id)
	if !ok {
		return ErrNotFound
	}

	for i, p := range region.attached {
		if p == pid {
			region.attached = append(region.attached[:i], region.attached[i+1:]...)
			return nil
		}
	}
	return ErrNotAttached
}

// DestroySHM unmaps every page of the region and releases every backing
// frame. It does not check for attached pids: destroying a region that
// still has attachers is tolerated, leaving those pids' view of the region
// stale, matching the original design's unilateral-reclamation behavior.
func (m *Manager) DestroySHM(id ID) *kernel.Error {
	m.mu.Acquire()
	defer m.mu.Release()

	region, ok := m.shm.get(id)
	if !ok {
		return ErrNotFound
	}

	numPages := region.sizeBytes / mem.PageSize
	for i := uintptr(0); i < numPages; i++ {
		va := region.baseVA + i*mem.PageSize

		physAddr, err := m.vm.Translate(va)
		if err != nil {
			continue
		}
		frame := pmm.FrameFromAddress(m.alloc.Base(), physAddr)
		m.alloc.FreeFrame(frame)
		m.vm.UnmapPage(va)
	}

	m.shm.remove(id)
	return nil
}
