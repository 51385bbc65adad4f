package ipc

import (
	"novakernel/kernel/proc"
	"novakernel/kernel/sched"
)

// WakeOn walks the process table and, for every process with state=Waiting
// parked on the given resource (kind, queueID), resets it to Ready, clears
// waiting_on, and re-adds it to the scheduler. onWake, if non-nil, is called
// for each process woken -- IPC's Manager uses it to release the resume
// channel a blocked ReceiveMessage call is parked on. It is the single
// primitive used by queue destroy, and is general enough for any future
// resource that parks processes the same way.
func WakeOn(table *proc.Table, scheduler *sched.Scheduler, kind proc.WaitKind, resourceID uint64, onWake func(*proc.Process)) {
	for _, p := range table.List() {
		if p.State != proc.Waiting {
			continue
		}
		if p.WaitingOn.Kind != kind || p.WaitingOn.QueueID != resourceID {
			continue
		}

		p.State = proc.Ready
		p.WaitingOn = proc.WaitReason{}
		scheduler.Add(p)
		if onWake != nil {
			onWake(p)
		}
	}
}
