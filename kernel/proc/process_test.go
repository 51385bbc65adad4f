package proc

import "testing"

func TestCreateAssignsMonotonicPids(t *testing.T) {
	tbl := NewTable()

	p1 := tbl.Create("init", NoPid)
	p2 := tbl.Create("shell", p1)

	if p1 != 1 {
		t.Fatalf("expected first pid to be 1; got %d", p1)
	}
	if p2 != 2 {
		t.Fatalf("expected second pid to be 2; got %d", p2)
	}

	shell := tbl.Get(p2)
	if shell == nil {
		t.Fatalf("expected to find created process")
	}
	if shell.Ppid != p1 {
		t.Fatalf("expected ppid %d; got %d", p1, shell.Ppid)
	}
	if shell.State != Stopped {
		t.Fatalf("expected newly created process to start Stopped; got %v", shell.State)
	}
}

func TestPidsAreNeverReused(t *testing.T) {
	tbl := NewTable()

	p1 := tbl.Create("a", NoPid)
	if err := tbl.Terminate(p1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p2 := tbl.Create("b", NoPid)
	if p2 == p1 {
		t.Fatalf("expected pid to never be reused; got %d twice", p1)
	}
}

func TestTerminateUnknownPid(t *testing.T) {
	tbl := NewTable()
	if err := tbl.Terminate(999); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound; got %v", err)
	}
}

func TestTerminateInvokesRemoveFromScheduler(t *testing.T) {
	tbl := NewTable()
	pid := tbl.Create("worker", NoPid)

	var removed *Process
	tbl.RemoveFromScheduler = func(p *Process) { removed = p }

	if err := tbl.Terminate(pid); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if removed == nil || removed.Pid != pid {
		t.Fatalf("expected RemoveFromScheduler to be called with terminated process")
	}
	if tbl.Get(pid) != nil {
		t.Fatalf("expected terminated process to be gone from the table")
	}
}

func TestCurrentTracksSetCurrent(t *testing.T) {
	tbl := NewTable()
	pid := tbl.Create("a", NoPid)

	if tbl.Current() != nil {
		t.Fatalf("expected no current process before SetCurrent")
	}

	tbl.SetCurrent(pid)
	cur := tbl.Current()
	if cur == nil || cur.Pid != pid {
		t.Fatalf("expected current process to be %d", pid)
	}
}

func TestListReturnsAllLiveProcesses(t *testing.T) {
	tbl := NewTable()
	a := tbl.Create("a", NoPid)
	b := tbl.Create("b", NoPid)

	procs := tbl.List()
	if len(procs) != 2 {
		t.Fatalf("expected 2 processes; got %d", len(procs))
	}

	seen := map[int32]bool{}
	for _, p := range procs {
		seen[p.Pid] = true
	}
	if !seen[a] || !seen[b] {
		t.Fatalf("expected both created pids in List() result")
	}
}
