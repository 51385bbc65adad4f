// Command coredemo wires the kernel core's subsystems together -- physical
// frame allocator, virtual memory manager, heap, process table, scheduler,
// and IPC layer -- and drives them through a handful of representative
// scenarios. It plays the role gopher-os's kmain.Kmain plays for the real
// kernel: the single place everything gets constructed and handed to each
// other, logged via kfmt as it runs. Unlike kmain it returns: there is no
// rt0 trampoline calling into this binary, so it simply demonstrates the
// core and exits.
package main

import (
	"time"

	"novakernel/kernel/heap"
	"novakernel/kernel/ipc"
	"novakernel/kernel/kfmt"
	"novakernel/kernel/mem"
	"novakernel/kernel/pmm"
	"novakernel/kernel/proc"
	"novakernel/kernel/sched"
	"novakernel/kernel/syscall"
	"novakernel/kernel/vmm"
)

func main() {
	var alloc pmm.Allocator
	alloc.Init(0, 8192*mem.PageSize)
	kfmt.Printf("pmm: %d frames available\n", alloc.FreeFrames())

	vm := vmm.NewManager(&alloc)
	if err := vm.Init(4); err != nil {
		kfmt.Panic(err)
	}
	vm.LoadCR3Fn = func(root uintptr) {
		kfmt.Printf("vmm: loading cr3 with root table at %16x\n", root)
	}
	vm.Activate()

	var h heap.Allocator
	h.Init(0, 64*1024)
	ptr, err := h.Allocate(256)
	if err != nil {
		kfmt.Panic(err)
	}
	total, used := h.Stats()
	kfmt.Printf("heap: allocated block at %16x (%d/%d bytes in use)\n", ptr, used, total)
	h.Free(ptr)

	table := proc.NewTable()
	scheduler := sched.NewScheduler(sched.Priority, table)
	ipcMgr := ipc.NewManager(table, scheduler, &alloc, vm)
	sysDispatch := syscall.NewDispatcher(ipcMgr)

	producer := table.Create("producer", proc.NoPid)
	consumer := table.Create("consumer", proc.NoPid)
	scheduler.Add(table.Get(producer))
	scheduler.Add(table.Get(consumer))
	scheduler.SetPriority(table.Get(producer), 5)
	scheduler.SetPriority(table.Get(consumer), 5)
	table.SetCurrent(consumer)

	kfmt.Printf("proc: created producer pid=%d consumer pid=%d\n", producer, consumer)

	runMessageQueueScenario(sysDispatch, table, producer, consumer)
	runSharedMemoryScenario(sysDispatch, producer, consumer)
	runDestroyWakesReceiverScenario(table, scheduler, ipcMgr)
}

// runMessageQueueScenario plays out S1: a consumer blocks on an empty
// queue's receive call until a producer sends into it. The blocking receive
// is driven from its own goroutine since this hosted binary has no real
// context switch to suspend it with -- see kernel/ipc's Manager.blocked.
func runMessageQueueScenario(d *syscall.Dispatcher, table *proc.Table, producer, consumer int32) {
	created := d.Handle(syscall.MsgCreate, syscall.Context{CallerPid: producer, Name: "mailbox"})
	if created.Value < 0 {
		kfmt.Printf("ipc: msg_create failed\n")
		return
	}
	id := uint64(created.Value)
	kfmt.Printf("ipc: created queue %16x\n", id)

	received := make(chan []byte, 1)
	go func() {
		res := d.Handle(syscall.MsgReceive, syscall.Context{CallerPid: consumer, ID: id, Wait: true})
		received <- res.Data
	}()

	for table.Get(consumer).State != proc.Waiting {
		time.Sleep(time.Millisecond)
	}
	kfmt.Printf("ipc: consumer parked waiting on queue %16x\n", id)

	sendRes := d.Handle(syscall.MsgSend, syscall.Context{CallerPid: producer, ID: id, Data: []byte("hello from producer")})
	if sendRes.Value != 0 {
		kfmt.Printf("ipc: msg_send failed\n")
		return
	}

	payload := <-received
	kfmt.Printf("ipc: consumer received %s\n", payload)
}

// runSharedMemoryScenario plays out the syscall side of S3: a creator makes
// a one-page region, both the creator and a second pid attach to it and log
// the base address each gets back, then the attacher detaches and the
// creator destroys the region. No bytes are written to or read from the
// region.
func runSharedMemoryScenario(d *syscall.Dispatcher, creator, attacher int32) {
	created := d.Handle(syscall.ShmCreate, syscall.Context{CallerPid: creator, Size: mem.PageSize})
	if created.Value < 0 {
		kfmt.Printf("ipc: shm_create failed\n")
		return
	}
	id := uint64(created.Value)

	base := d.Handle(syscall.ShmAttach, syscall.Context{CallerPid: creator, ID: id})
	kfmt.Printf("ipc: shm region %16x created by pid=%d, based at %16x\n", id, creator, base.Value)

	attached := d.Handle(syscall.ShmAttach, syscall.Context{CallerPid: attacher, ID: id})
	kfmt.Printf("ipc: pid=%d attached region %16x at %16x\n", attacher, id, attached.Value)

	d.Handle(syscall.ShmDetach, syscall.Context{CallerPid: attacher, ID: id})
	d.Handle(syscall.ShmDestroy, syscall.Context{CallerPid: creator, ID: id})
}

// runDestroyWakesReceiverScenario plays out S5: destroying a queue with a
// parked receiver unparks it immediately with a failure return rather than
// leaving it stuck forever.
func runDestroyWakesReceiverScenario(table *proc.Table, scheduler *sched.Scheduler, m *ipc.Manager) {
	owner := table.Create("owner", proc.NoPid)
	waiter := table.Create("waiter", proc.NoPid)
	scheduler.Add(table.Get(owner))
	scheduler.Add(table.Get(waiter))
	table.SetCurrent(waiter)

	id, err := m.CreateQueue(owner, "doomed")
	if err != nil {
		kfmt.Printf("ipc: create doomed queue failed: %s\n", err.Error())
		return
	}

	done := make(chan struct{})
	go func() {
		_, err := m.ReceiveMessage(id, true)
		if err != nil {
			kfmt.Printf("ipc: waiter unparked with error: %s\n", err.Error())
		}
		close(done)
	}()

	for table.Get(waiter).State != proc.Waiting {
		time.Sleep(time.Millisecond)
	}

	if err := m.DestroyQueue(id); err != nil {
		kfmt.Printf("ipc: destroy doomed queue failed: %s\n", err.Error())
		return
	}
	<-done
	kfmt.Printf("ipc: destroy unparked the blocked receiver\n")
}
