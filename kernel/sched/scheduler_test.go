package sched

import (
	"testing"

	"novakernel/kernel/proc"
)

func newTestScheduler(policy Policy) (*Scheduler, *proc.Table) {
	tbl := proc.NewTable()
	s := NewScheduler(policy, tbl)
	return s, tbl
}

func TestAddIgnoresDuplicates(t *testing.T) {
	s, tbl := newTestScheduler(RoundRobin)
	pid := tbl.Create("a", proc.NoPid)
	p := tbl.Get(pid)

	s.Add(p)
	s.Add(p)

	s.mu.Acquire()
	n := len(s.queue)
	s.mu.Release()
	if n != 1 {
		t.Fatalf("expected duplicate Add to be a no-op; queue has %d entries", n)
	}
	if p.State != proc.Ready {
		t.Fatalf("expected Add to set state Ready; got %v", p.State)
	}
}

// TestRoundRobinFairness exercises spec.md §8 property #5: with N
// equal-priority Ready processes and no blocking, after k*N ticks each
// process has run approximately k times (max-min difference bounded by 1).
func TestRoundRobinFairness(t *testing.T) {
	s, tbl := newTestScheduler(RoundRobin)

	const n = 4
	const k = 10
	runs := map[int32]int{}

	var procs []*proc.Process
	for i := 0; i < n; i++ {
		pid := tbl.Create("p", proc.NoPid)
		p := tbl.Get(pid)
		procs = append(procs, p)
		s.Add(p)
	}

	s.Schedule() // select an initial running process

	for i := 0; i < k*n; i++ {
		cur := tbl.Current()
		if cur != nil {
			runs[cur.Pid]++
		}
		s.Schedule()
	}

	min, max := -1, -1
	for _, p := range procs {
		c := runs[p.Pid]
		if min == -1 || c < min {
			min = c
		}
		if max == -1 || c > max {
			max = c
		}
	}

	if max-min > 1 {
		t.Fatalf("expected round robin fairness within 1 run; got min=%d max=%d (%v)", min, max, runs)
	}
}

// TestPriorityStrictness exercises spec.md §8 property #6: if process A has
// priority > B and both Ready, A runs before B under the Priority policy.
func TestPriorityStrictness(t *testing.T) {
	s, tbl := newTestScheduler(Priority)

	lowPid := tbl.Create("low", proc.NoPid)
	low := tbl.Get(lowPid)
	low.Priority = 2
	s.Add(low)

	highPid := tbl.Create("high", proc.NoPid)
	high := tbl.Get(highPid)
	high.Priority = 7
	s.Add(high)

	s.Schedule()

	cur := tbl.Current()
	if cur == nil || cur.Pid != highPid {
		t.Fatalf("expected higher-priority process to run first; current=%v", cur)
	}
}

func TestPriorityTieBreakEarliestWins(t *testing.T) {
	s, tbl := newTestScheduler(Priority)

	firstPid := tbl.Create("first", proc.NoPid)
	first := tbl.Get(firstPid)
	first.Priority = 5
	s.Add(first)

	secondPid := tbl.Create("second", proc.NoPid)
	second := tbl.Get(secondPid)
	second.Priority = 5
	s.Add(second)

	s.Schedule()

	cur := tbl.Current()
	if cur == nil || cur.Pid != firstPid {
		t.Fatalf("expected earliest-queued process to win a priority tie; current=%v", cur)
	}
}

// TestNonPreemptibleAboveThreshold verifies a priority >= NonPreemptPriority
// process is not preempted by Tick even after its time slice would
// otherwise expire.
func TestNonPreemptibleAboveThreshold(t *testing.T) {
	s, tbl := newTestScheduler(RoundRobin)

	interactivePid := tbl.Create("interactive", proc.NoPid)
	interactive := tbl.Get(interactivePid)
	interactive.Priority = NonPreemptPriority

	otherPid := tbl.Create("other", proc.NoPid)
	other := tbl.Get(otherPid)

	// Round robin scans from one past the cursor (index 0), so the process
	// queued second is the one the first Schedule picks.
	s.Add(other)
	s.Add(interactive)

	s.Schedule()
	if tbl.Current().Pid != interactivePid {
		t.Fatalf("expected interactive process to be scheduled first")
	}

	for i := 0; i < DefaultTimeSlice*2; i++ {
		s.Tick()
	}

	if tbl.Current().Pid != interactivePid {
		t.Fatalf("expected non-preemptible process to remain running; current=%v", tbl.Current())
	}
}

// TestTickPreemptsAfterTimeSlice verifies a normal-priority process is
// preempted once its time slice is exhausted.
func TestTickPreemptsAfterTimeSlice(t *testing.T) {
	s, tbl := newTestScheduler(RoundRobin)

	aPid := tbl.Create("a", proc.NoPid)
	a := tbl.Get(aPid)
	s.Add(a)

	bPid := tbl.Create("b", proc.NoPid)
	b := tbl.Get(bPid)
	s.Add(b)

	s.Schedule()
	firstRunner := tbl.Current().Pid

	for i := 0; i < DefaultTimeSlice; i++ {
		s.Tick()
	}

	if tbl.Current().Pid == firstRunner {
		t.Fatalf("expected a reschedule after %d ticks", DefaultTimeSlice)
	}
}

func TestTickNoOpWhenInterruptsDisabled(t *testing.T) {
	s, tbl := newTestScheduler(RoundRobin)

	aPid := tbl.Create("a", proc.NoPid)
	a := tbl.Get(aPid)
	s.Add(a)
	bPid := tbl.Create("b", proc.NoPid)
	b := tbl.Get(bPid)
	s.Add(b)

	s.Schedule()
	running := tbl.Current().Pid

	s.SetInterruptsEnabled(false)
	for i := 0; i < DefaultTimeSlice*2; i++ {
		s.Tick()
	}

	if tbl.Current().Pid != running {
		t.Fatalf("expected Tick to be a no-op while interrupts are disabled")
	}
}

func TestRemoveExtractsPreservingOrder(t *testing.T) {
	s, tbl := newTestScheduler(RoundRobin)

	aPid := tbl.Create("a", proc.NoPid)
	a := tbl.Get(aPid)
	s.Add(a)
	bPid := tbl.Create("b", proc.NoPid)
	b := tbl.Get(bPid)
	s.Add(b)
	cPid := tbl.Create("c", proc.NoPid)
	c := tbl.Get(cPid)
	s.Add(c)

	s.Remove(b)

	s.mu.Acquire()
	order := make([]int32, len(s.queue))
	for i, p := range s.queue {
		order[i] = p.Pid
	}
	s.mu.Release()

	if len(order) != 2 || order[0] != aPid || order[1] != cPid {
		t.Fatalf("expected [a,c] preserved in order; got %v", order)
	}
}

func TestTerminateRemovesFromScheduler(t *testing.T) {
	s, tbl := newTestScheduler(RoundRobin)

	aPid := tbl.Create("a", proc.NoPid)
	s.Add(tbl.Get(aPid))

	if err := tbl.Terminate(aPid); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	s.mu.Acquire()
	n := len(s.queue)
	s.mu.Release()
	if n != 0 {
		t.Fatalf("expected scheduler queue to be empty after terminate; got %d entries", n)
	}
}
