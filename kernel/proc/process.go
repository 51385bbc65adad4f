// Package proc implements the kernel's process table: process records and
// the create/terminate/get/current/list operations over them.
package proc

import (
	"novakernel/kernel"
	ksync "novakernel/kernel/sync"
)

// State describes where a process record sits in its lifecycle.
type State int

const (
	Stopped State = iota
	Ready
	Running
	Waiting
	Zombie
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "Stopped"
	case Ready:
		return "Ready"
	case Running:
		return "Running"
	case Waiting:
		return "Waiting"
	case Zombie:
		return "Zombie"
	default:
		return "Unknown"
	}
}

// WaitKind identifies the class of resource a Waiting process is parked on.
type WaitKind int

const (
	// WaitNone means the process is not parked on anything.
	WaitNone WaitKind = iota
	// WaitMessageQueue means the process is blocked in a message queue receive.
	WaitMessageQueue
)

// WaitReason is a tagged union identifying the resource a process is parked
// on, replacing a raw pointer back-reference into an IPC object: kernel/proc
// has no dependency on kernel/ipc, so the resource is named by an opaque id
// the ipc package mints and interprets.
type WaitReason struct {
	Kind    WaitKind
	QueueID uint64
}

// NoPid is the reserved parent pid meaning "no parent".
const NoPid int32 = 0

// Process is a single process table record.
type Process struct {
	Pid  int32
	Ppid int32
	Name string

	State State

	Priority     int
	LastRun      uint64
	TotalRuntime uint64

	WaitingOn WaitReason
}

// Table owns the set of live process records, keyed by pid, plus the
// monotonic pid counter. Per Design Notes §9 this is an explicit handle
// rather than a package-level singleton.
type Table struct {
	mu         ksync.Spinlock
	processes  map[int32]*Process
	nextPid    int32
	currentPid int32

	// RemoveFromScheduler is invoked by Terminate before a record is
	// discarded, satisfying the table's obligation to strip the process
	// from any scheduler queue it occupies. It is injected rather than
	// imported directly, the same way gopher-os threads hardware
	// operations through function variables instead of direct calls.
	RemoveFromScheduler func(*Process)
}

// NewTable returns an empty process table. The first pid handed out by
// Create is 1; pid 0 is reserved to mean "no parent".
func NewTable() *Table {
	return &Table{
		processes: make(map[int32]*Process),
		nextPid:   1,
	}
}

// Create allocates a record with a fresh monotonically increasing pid and
// registers it in the table. New records start Stopped: they are not
// runnable until explicitly handed to a scheduler's Add.
func (t *Table) Create(name string, ppid int32) int32 {
	t.mu.Acquire()
	defer t.mu.Release()

	pid := t.nextPid
	t.nextPid++

	t.processes[pid] = &Process{
		Pid:   pid,
		Ppid:  ppid,
		Name:  name,
		State: Stopped,
	}

	return pid
}

// ErrNotFound is returned by Terminate for an unknown pid.
var ErrNotFound = &kernel.Error{Module: "proc", Message: "no such process"}

// Terminate removes pid from the scheduler (via RemoveFromScheduler, if
// set) and discards its record. It is a no-op error, not a panic, to
// terminate an unknown pid.
func (t *Table) Terminate(pid int32) *kernel.Error {
	t.mu.Acquire()
	defer t.mu.Release()

	p, ok := t.processes[pid]
	if !ok {
		return ErrNotFound
	}

	if t.RemoveFromScheduler != nil {
		t.RemoveFromScheduler(p)
	}

	delete(t.processes, pid)
	if t.currentPid == pid {
		t.currentPid = 0
	}

	return nil
}

// Get returns the record for pid, or nil if no such process exists.
func (t *Table) Get(pid int32) *Process {
	t.mu.Acquire()
	defer t.mu.Release()
	return t.processes[pid]
}

// SetCurrent records which pid is presently Running. The scheduler calls
// this as part of a context switch.
func (t *Table) SetCurrent(pid int32) {
	t.mu.Acquire()
	defer t.mu.Release()
	t.currentPid = pid
}

// Current returns the record for the process marked Running, or nil if
// none is.
func (t *Table) Current() *Process {
	t.mu.Acquire()
	defer t.mu.Release()
	return t.processes[t.currentPid]
}

// List returns every live process record. The order is unspecified: unlike
// the original intrusive "all processes" list, this table is backed by a
// map, per Design Notes §9.
func (t *Table) List() []*Process {
	t.mu.Acquire()
	defer t.mu.Release()

	out := make([]*Process, 0, len(t.processes))
	for _, p := range t.processes {
		out = append(out, p)
	}
	return out
}
