// Package sched implements the kernel's ready queue and its two selection
// policies: round-robin cursor rotation and strict priority scan.
package sched

import (
	"novakernel/kernel/proc"
	ksync "novakernel/kernel/sync"
)

// Policy selects how Scheduler.Schedule picks the next process to run.
type Policy int

const (
	RoundRobin Policy = iota
	Priority
)

const (
	// DefaultTimeSlice is the number of ticks granted to a process on
	// each schedule before tick() forces a reschedule.
	DefaultTimeSlice = 5

	// NonPreemptPriority is the priority at or above which a process is
	// "interactive" and is never preempted by tick().
	NonPreemptPriority = 9

	// MaxPriority is the highest priority value accepted by SetPriority;
	// higher requests are clamped.
	MaxPriority = 10
)

// SwitchFn performs the platform-specific half of a context switch: save
// callee-saved registers of from (nil on the very first schedule),
// restore those of to, and return on to's stack. The scheduler makes no
// assumption beyond that contract, mirroring how gopher-os injects
// activePDTFn/switchPDTFn instead of calling hardware directly.
type SwitchFn func(from, to *proc.Process)

// Scheduler holds the ready queue and drives preemption. Per Design Notes
// §9 it is an explicit handle rather than a package-level singleton.
type Scheduler struct {
	mu ksync.Spinlock

	table  *proc.Table
	policy Policy

	queue        []*proc.Process
	currentIndex int
	timeSlice    uint64
	ticks        uint64

	interruptsEnabled bool

	// SwitchFn is invoked by Schedule outside the scheduler's lock to
	// perform the actual context switch.
	SwitchFn SwitchFn
}

// NewScheduler creates a Scheduler over the given process table and wires
// itself as the table's RemoveFromScheduler callback, so Table.Terminate
// automatically strips a process from the ready queue before discarding it.
func NewScheduler(policy Policy, table *proc.Table) *Scheduler {
	s := &Scheduler{
		table:             table,
		policy:            policy,
		timeSlice:         DefaultTimeSlice,
		interruptsEnabled: true,
		SwitchFn:          func(*proc.Process, *proc.Process) {},
	}
	table.RemoveFromScheduler = s.Remove
	return s
}

// GetPolicy returns the scheduler's selection policy.
func (s *Scheduler) GetPolicy() Policy {
	return s.policy
}

// Ticks returns the number of timer ticks observed so far. IPC message
// timestamps are stamped from this counter, matching the original design's
// use of a single tick count as the kernel's only notion of time.
func (s *Scheduler) Ticks() uint64 {
	s.mu.Acquire()
	defer s.mu.Release()
	return s.ticks
}

// SetInterruptsEnabled models the hardware interrupt-enable flag a real
// tick() would check via pushfq; there being no CPU flags register in a
// hosted binary, it is an explicit boolean gate instead.
func (s *Scheduler) SetInterruptsEnabled(enabled bool) {
	s.mu.Acquire()
	defer s.mu.Release()
	s.interruptsEnabled = enabled
}

// InterruptsEnabled reports the current state of the interrupt-enable gate.
func (s *Scheduler) InterruptsEnabled() bool {
	s.mu.Acquire()
	defer s.mu.Release()
	return s.interruptsEnabled
}

// Add appends process to the ready queue and sets its state to Ready.
// Adding a process already present is a silent no-op.
func (s *Scheduler) Add(p *proc.Process) {
	s.mu.Acquire()
	defer s.mu.Release()

	for _, q := range s.queue {
		if q == p {
			return
		}
	}

	p.State = proc.Ready
	s.queue = append(s.queue, p)
}

// Remove extracts process from the ready queue, preserving the relative
// order of the remainder. It is a no-op if the process is not present.
func (s *Scheduler) Remove(p *proc.Process) {
	s.mu.Acquire()
	defer s.mu.Release()
	s.removeLocked(p)
}

func (s *Scheduler) removeLocked(p *proc.Process) {
	for i, q := range s.queue {
		if q != p {
			continue
		}
		if s.currentIndex >= i && s.currentIndex > 0 {
			s.currentIndex--
		}
		s.queue = append(s.queue[:i], s.queue[i+1:]...)
		return
	}
}

// SetPriority clamps and assigns a process's scheduling priority.
func (s *Scheduler) SetPriority(p *proc.Process, priority int) {
	if priority < 0 {
		priority = 0
	}
	if priority > MaxPriority {
		priority = MaxPriority
	}
	p.Priority = priority
}

// selectNext picks the next Ready process per the configured policy. The
// caller must hold s.mu.
func (s *Scheduler) selectNext() *proc.Process {
	if len(s.queue) == 0 {
		return nil
	}

	switch s.policy {
	case RoundRobin:
		return s.selectRoundRobinLocked()
	default:
		return s.selectPriorityLocked()
	}
}

func (s *Scheduler) selectRoundRobinLocked() *proc.Process {
	start := s.currentIndex
	n := len(s.queue)

	for {
		s.currentIndex = (s.currentIndex + 1) % n
		if s.queue[s.currentIndex].State == proc.Ready {
			return s.queue[s.currentIndex]
		}
		if s.currentIndex == start {
			return nil
		}
	}
}

func (s *Scheduler) selectPriorityLocked() *proc.Process {
	var selected *proc.Process
	highest := -1
	idx := 0

	for i, p := range s.queue {
		if p.State == proc.Ready && p.Priority > highest {
			highest = p.Priority
			selected = p
			idx = i
		}
	}

	if selected != nil {
		s.currentIndex = idx
	}
	return selected
}

// Schedule selects the next Ready process and performs a context switch to
// it. If the queue yields no candidate, or the candidate is already the
// running process, Schedule is a no-op.
func (s *Scheduler) Schedule() {
	s.mu.Acquire()

	next := s.selectNext()
	if next == nil {
		s.mu.Release()
		return
	}

	current := s.table.Current()
	if current == next {
		s.mu.Release()
		return
	}

	s.timeSlice = DefaultTimeSlice
	next.LastRun = s.ticks
	if current != nil && current.State == proc.Running {
		current.State = proc.Ready
	}
	next.State = proc.Running

	s.mu.Release()

	s.table.SetCurrent(next.Pid)
	s.SwitchFn(current, next)
}

// Tick is invoked from the timer interrupt. If interrupts were disabled on
// entry it returns immediately -- this avoids re-entrant scheduling from
// within a critical section. Otherwise it charges the running process a
// tick of runtime and, unless its priority makes it non-preemptible,
// decrements its time slice; reaching zero triggers Schedule.
func (s *Scheduler) Tick() {
	if !s.InterruptsEnabled() {
		return
	}

	current := s.table.Current()
	if current == nil {
		return
	}

	current.TotalRuntime++

	s.mu.Acquire()
	s.ticks++
	s.mu.Release()

	if current.Priority >= NonPreemptPriority {
		return
	}

	s.mu.Acquire()
	if s.timeSlice > 0 {
		s.timeSlice--
	}
	expired := s.timeSlice == 0
	s.mu.Release()

	if expired {
		s.Schedule()
	}
}
