// Package ipc implements the kernel's interprocess communication layer:
// named message queues and named shared memory regions, plus the wake_on
// primitive that unparks processes blocked on either.
package ipc

import (
	"unsafe"

	"novakernel/kernel"
	"novakernel/kernel/pmm"
	"novakernel/kernel/proc"
	"novakernel/kernel/sched"
	ksync "novakernel/kernel/sync"
	"novakernel/kernel/vmm"
)

const (
	// MaxMessageSize is the largest payload a single message may carry.
	MaxMessageSize = 1024
	// MaxMessagesPerQueue bounds a queue's FIFO depth.
	MaxMessagesPerQueue = 64
)

// Message is a single queued IPC message. Timestamp is the scheduler's tick
// count at the moment send() was called.
type Message struct {
	Sender    int32
	Timestamp uint64
	Data      []byte
}

type queue struct {
	ownerPid int32
	name     string
	messages []Message
	waiters  []*proc.Process
}

// Manager owns every live message queue and shared memory region, plus the
// subsystem handles (process table, scheduler, PMM, VMM) IPC operations
// couple with. Per Design Notes §9 this is an explicit handle rather than a
// package-level singleton.
type Manager struct {
	mu ksync.Spinlock

	table     *proc.Table
	scheduler *sched.Scheduler
	alloc     *pmm.Allocator
	vm        *vmm.Manager

	queues     slotTable[queue]
	queueNames map[string]ID

	shm slotTable[shmRegion]

	// blocked holds a resume channel per pid currently parked in
	// ReceiveMessage. This is the hosted stand-in for the platform's
	// register/stack swap: on real hardware, scheduler.Schedule's context
	// switch is what actually suspends and later resumes this call frame;
	// under `go test` there is no such mechanism, so a parked receiver's
	// goroutine blocks on this channel and whoever wakes it (SendMessage
	// or DestroyQueue, via WakeOn's callback) closes it.
	blocked map[int32]chan struct{}
}

// NewManager constructs an IPC manager wired to the given subsystem
// handles.
func NewManager(table *proc.Table, scheduler *sched.Scheduler, alloc *pmm.Allocator, vm *vmm.Manager) *Manager {
	return &Manager{
		table:      table,
		scheduler:  scheduler,
		alloc:      alloc,
		vm:         vm,
		queueNames: make(map[string]ID),
		blocked:    make(map[int32]chan struct{}),
	}
}

// CreateQueue registers a new named queue owned by owner. Names are unique
// across all live queues; a slot freed by a prior Destroy is reused before
// the table grows.
func (m *Manager) CreateQueue(owner int32, name string) (ID, *kernel.Error) {
	m.mu.Acquire()
	defer m.mu.Release()

	if _, exists := m.queueNames[name]; exists {
		return 0, ErrNameExists
	}

	id := m.queues.insert(queue{ownerPid: owner, name: name})
	m.queueNames[name] = id
	return id, nil
}

// OpenQueue looks up a live queue by name.
func (m *Manager) OpenQueue(name string) (ID, *kernel.Error) {
	m.mu.Acquire()
	defer m.mu.Release()

	id, ok := m.queueNames[name]
	if !ok {
		return 0, ErrNotFound
	}
	return id, nil
}

// DestroyQueue deletes the queue. Every receiver blocked on it is unparked
// via WakeOn *before* the queue's slot is released -- ordering the spec
// mandates so no waiter is left holding a waiting_on reference to a queue
// that no longer resolves through the table.
func (m *Manager) DestroyQueue(id ID) *kernel.Error {
	m.mu.Acquire()
	defer m.mu.Release()

	q, ok := m.queues.get(id)
	if !ok {
		return ErrNotFound
	}

	WakeOn(m.table, m.scheduler, proc.WaitMessageQueue, uint64(id), m.signalBlocked)

	delete(m.queueNames, q.name)
	m.queues.remove(id)
	return nil
}

// SendMessage appends data to the queue's FIFO in send order. If any
// receiver is blocked, the head of its wait list (FIFO by parking order) is
// unparked and re-added to the scheduler -- at most one receiver is woken
// per send.
func (m *Manager) SendMessage(id ID, sender int32, data []byte) *kernel.Error {
	m.mu.Acquire()
	defer m.mu.Release()

	q, ok := m.queues.get(id)
	if !ok {
		return ErrNotFound
	}
	if len(data) > MaxMessageSize {
		return ErrInvalidSize
	}
	if len(q.messages) >= MaxMessagesPerQueue {
		return ErrFull
	}

	payload := make([]byte, len(data))
	if len(data) > 0 {
		kernel.Memcopy(uintptr(unsafe.Pointer(&data[0])), uintptr(unsafe.Pointer(&payload[0])), uintptr(len(data)))
	}

	q.messages = append(q.messages, Message{
		Sender:    sender,
		Timestamp: m.scheduler.Ticks(),
		Data:      payload,
	})

	if len(q.waiters) > 0 {
		waiter := q.waiters[0]
		q.waiters = q.waiters[1:]

		waiter.State = proc.Ready
		waiter.WaitingOn = proc.WaitReason{}
		m.scheduler.Add(waiter)
		m.signalBlocked(waiter)
	}

	return nil
}

// signalBlocked closes and discards p's resume channel, if it is currently
// parked in ReceiveMessage.
func (m *Manager) signalBlocked(p *proc.Process) {
	ch, ok := m.blocked[p.Pid]
	if !ok {
		return
	}
	close(ch)
	delete(m.blocked, p.Pid)
}

// ReceiveMessage dequeues the head of the queue's FIFO. If the queue is
// empty and wait is false, it returns ErrNotReady immediately. If wait is
// true, the current process is parked (state->Waiting, waiting_on->queue,
// pushed onto the queue's wait list) and the scheduler is invoked; on
// resumption, a spurious wake returns ErrNotReady and a destroyed queue
// returns ErrQueueDestroyed.
func (m *Manager) ReceiveMessage(id ID, wait bool) (Message, *kernel.Error) {
	m.mu.Acquire()

	q, ok := m.queues.get(id)
	if !ok {
		m.mu.Release()
		return Message{}, ErrNotFound
	}

	if len(q.messages) == 0 {
		if !wait {
			m.mu.Release()
			return Message{}, ErrNotReady
		}

		current := m.table.Current()
		if current == nil {
			m.mu.Release()
			return Message{}, ErrNoCurrentProcess
		}

		current.State = proc.Waiting
		current.WaitingOn = proc.WaitReason{Kind: proc.WaitMessageQueue, QueueID: uint64(id)}
		q.waiters = append(q.waiters, current)

		resume := make(chan struct{})
		m.blocked[current.Pid] = resume

		m.mu.Release()
		m.scheduler.Schedule()
		<-resume
		m.mu.Acquire()

		q, ok = m.queues.get(id)
		if !ok {
			m.mu.Release()
			return Message{}, ErrQueueDestroyed
		}
		if len(q.messages) == 0 {
			m.mu.Release()
			return Message{}, ErrNotReady
		}
	}

	msg := q.messages[0]
	q.messages = q.messages[1:]

	m.mu.Release()
	return msg, nil
}
