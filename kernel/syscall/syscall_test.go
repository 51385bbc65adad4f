package syscall

import (
	"testing"

	"novakernel/kernel/ipc"
	"novakernel/kernel/mem"
	"novakernel/kernel/pmm"
	"novakernel/kernel/proc"
	"novakernel/kernel/sched"
	"novakernel/kernel/vmm"
)

func newTestDispatcher(t *testing.T, frames uint32) (*Dispatcher, int32) {
	t.Helper()

	var alloc pmm.Allocator
	alloc.Init(0, uintptr(frames)*mem.PageSize)

	vm := vmm.NewManager(&alloc)
	if err := vm.Init(0); err != nil {
		t.Fatalf("vmm Init failed: %v", err)
	}

	table := proc.NewTable()
	scheduler := sched.NewScheduler(sched.RoundRobin, table)
	m := ipc.NewManager(table, scheduler, &alloc, vm)

	pid := table.Create("caller", proc.NoPid)
	scheduler.Add(table.Get(pid))
	table.SetCurrent(pid)

	return NewDispatcher(m), pid
}

func TestMsgCreateSendReceiveRoundTrip(t *testing.T) {
	d, pid := newTestDispatcher(t, 512)

	created := d.Handle(MsgCreate, Context{CallerPid: pid, Name: "q"})
	if created.Value < 0 {
		t.Fatalf("msg_create failed: %+v", created)
	}
	id := uint64(created.Value)

	sent := d.Handle(MsgSend, Context{CallerPid: pid, ID: id, Data: []byte("hi")})
	if sent.Value != retOK {
		t.Fatalf("msg_send failed: %+v", sent)
	}

	received := d.Handle(MsgReceive, Context{CallerPid: pid, ID: id, Wait: false})
	if received.Value != retOK {
		t.Fatalf("msg_receive failed: %+v", received)
	}
	if string(received.Data) != "hi" {
		t.Fatalf("expected payload %q; got %q", "hi", received.Data)
	}
}

func TestMsgReceiveNonBlockingEmptyQueueFails(t *testing.T) {
	d, pid := newTestDispatcher(t, 512)

	created := d.Handle(MsgCreate, Context{CallerPid: pid, Name: "q"})
	id := uint64(created.Value)

	res := d.Handle(MsgReceive, Context{CallerPid: pid, ID: id, Wait: false})
	if res.Value != retFail {
		t.Fatalf("expected -1 on empty non-blocking receive; got %+v", res)
	}
}

func TestMsgOpenUnknownNameFails(t *testing.T) {
	d, pid := newTestDispatcher(t, 512)

	res := d.Handle(MsgOpen, Context{CallerPid: pid, Name: "nope"})
	if res.Value != retFail {
		t.Fatalf("expected -1 for unknown queue name; got %+v", res)
	}
}

func TestMsgDestroyThenOpenFails(t *testing.T) {
	d, pid := newTestDispatcher(t, 512)

	created := d.Handle(MsgCreate, Context{CallerPid: pid, Name: "q"})
	id := uint64(created.Value)

	destroyed := d.Handle(MsgDestroy, Context{CallerPid: pid, ID: id})
	if destroyed.Value != retOK {
		t.Fatalf("msg_destroy failed: %+v", destroyed)
	}

	if res := d.Handle(MsgOpen, Context{CallerPid: pid, Name: "q"}); res.Value != retFail {
		t.Fatalf("expected destroyed queue name to be unresolvable; got %+v", res)
	}
}

func TestShmCreateAttachHandshake(t *testing.T) {
	d, pid := newTestDispatcher(t, 4096)

	created := d.Handle(ShmCreate, Context{CallerPid: pid, Size: mem.PageSize})
	if created.Value < 0 {
		t.Fatalf("shm_create failed: %+v", created)
	}
	id := uint64(created.Value)

	attached := d.Handle(ShmAttach, Context{CallerPid: pid, ID: id})
	if attached.Value == 0 {
		t.Fatalf("shm_attach failed: %+v", attached)
	}

	detached := d.Handle(ShmDetach, Context{CallerPid: pid, ID: id})
	if detached.Value != retOK {
		t.Fatalf("shm_detach failed: %+v", detached)
	}

	if res := d.Handle(ShmDetach, Context{CallerPid: pid, ID: id}); res.Value != retFail {
		t.Fatalf("expected repeated detach to fail; got %+v", res)
	}
}

func TestShmAttachUnknownIDReturnsZero(t *testing.T) {
	d, pid := newTestDispatcher(t, 512)

	res := d.Handle(ShmAttach, Context{CallerPid: pid, ID: 999})
	if res.Value != 0 {
		t.Fatalf("expected shm_attach failure return of 0; got %+v", res)
	}
}

func TestUnknownSyscallNumberReturnsFail(t *testing.T) {
	d, pid := newTestDispatcher(t, 512)

	res := d.Handle(9999, Context{CallerPid: pid})
	if res.Value != retFail {
		t.Fatalf("expected -1 for unknown syscall number; got %+v", res)
	}
}
