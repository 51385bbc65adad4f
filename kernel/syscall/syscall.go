// Package syscall implements the kernel's numeric syscall table (100-108):
// the external interface collaborators call into the IPC layer through.
// There is no real interrupt gate or register file in a hosted binary, so
// a syscall invocation is a Context value rather than a trapped CPU state,
// but the dispatch shape -- a number picks a handler, the handler marshals
// its own argument subset and calls straight into kernel/ipc -- mirrors the
// original's SyscallHandler::handle switch.
package syscall

import (
	"novakernel/kernel/ipc"
)

// Numbers identifies each syscall exactly as enumerated in the process-
// facing ABI.
const (
	MsgCreate  = 100
	MsgDestroy = 101
	MsgOpen    = 102
	MsgSend    = 103
	MsgReceive = 104
	ShmCreate  = 105
	ShmDestroy = 106
	ShmAttach  = 107
	ShmDetach  = 108
)

// ok/failure return values shared across handlers, matching the table's
// "0 / -1" and "id / -1" conventions.
const (
	retOK   = 0
	retFail = -1
)

// Context carries a single syscall's arguments. The original ABI packs
// these into registers (rdi, rsi, rdx, r10); here they are named fields
// since there is no register file to marshal through.
type Context struct {
	CallerPid int32
	Name      string
	ID        uint64
	Data      []byte
	Wait      bool
	Size      uintptr
}

// Result is a syscall's return value. Value mirrors the rax return
// register (an id, a base VA, or 0/-1). Data carries a received message's
// payload for msg_receive, standing in for a write through out_ptr since
// there is no user address space to write into here.
type Result struct {
	Value int64
	Data  []byte
}

// Dispatcher resolves syscall numbers to handlers bound to a live IPC
// manager. Per Design Notes §9 it is an explicit handle, not a singleton.
type Dispatcher struct {
	ipc *ipc.Manager
}

// NewDispatcher binds a Dispatcher to the given IPC manager.
func NewDispatcher(m *ipc.Manager) *Dispatcher {
	return &Dispatcher{ipc: m}
}

// Handle dispatches ctx to the handler registered for number. An unknown
// number returns -1, matching the original's default case.
func (d *Dispatcher) Handle(number uint32, ctx Context) Result {
	switch number {
	case MsgCreate:
		return d.sysMsgCreate(ctx)
	case MsgDestroy:
		return d.sysMsgDestroy(ctx)
	case MsgOpen:
		return d.sysMsgOpen(ctx)
	case MsgSend:
		return d.sysMsgSend(ctx)
	case MsgReceive:
		return d.sysMsgReceive(ctx)
	case ShmCreate:
		return d.sysShmCreate(ctx)
	case ShmDestroy:
		return d.sysShmDestroy(ctx)
	case ShmAttach:
		return d.sysShmAttach(ctx)
	case ShmDetach:
		return d.sysShmDetach(ctx)
	default:
		return Result{Value: retFail}
	}
}

func (d *Dispatcher) sysMsgCreate(ctx Context) Result {
	id, err := d.ipc.CreateQueue(ctx.CallerPid, ctx.Name)
	if err != nil {
		return Result{Value: retFail}
	}
	return Result{Value: int64(id)}
}

func (d *Dispatcher) sysMsgDestroy(ctx Context) Result {
	if err := d.ipc.DestroyQueue(ipc.ID(ctx.ID)); err != nil {
		return Result{Value: retFail}
	}
	return Result{Value: retOK}
}

func (d *Dispatcher) sysMsgOpen(ctx Context) Result {
	id, err := d.ipc.OpenQueue(ctx.Name)
	if err != nil {
		return Result{Value: retFail}
	}
	return Result{Value: int64(id)}
}

func (d *Dispatcher) sysMsgSend(ctx Context) Result {
	if err := d.ipc.SendMessage(ipc.ID(ctx.ID), ctx.CallerPid, ctx.Data); err != nil {
		return Result{Value: retFail}
	}
	return Result{Value: retOK}
}

func (d *Dispatcher) sysMsgReceive(ctx Context) Result {
	msg, err := d.ipc.ReceiveMessage(ipc.ID(ctx.ID), ctx.Wait)
	if err != nil {
		return Result{Value: retFail}
	}
	return Result{Value: retOK, Data: msg.Data}
}

func (d *Dispatcher) sysShmCreate(ctx Context) Result {
	id, err := d.ipc.CreateSHM(ctx.CallerPid, ctx.Size)
	if err != nil {
		return Result{Value: retFail}
	}
	return Result{Value: int64(id)}
}

func (d *Dispatcher) sysShmDestroy(ctx Context) Result {
	if err := d.ipc.DestroySHM(ipc.ID(ctx.ID)); err != nil {
		return Result{Value: retFail}
	}
	return Result{Value: retOK}
}

func (d *Dispatcher) sysShmAttach(ctx Context) Result {
	va, err := d.ipc.AttachSHM(ipc.ID(ctx.ID), ctx.CallerPid)
	if err != nil {
		// shm_attach's failure return is 0, not -1, per the syscall table.
		return Result{Value: 0}
	}
	return Result{Value: int64(va)}
}

func (d *Dispatcher) sysShmDetach(ctx Context) Result {
	if err := d.ipc.DetachSHM(ipc.ID(ctx.ID), ctx.CallerPid); err != nil {
		return Result{Value: retFail}
	}
	return Result{Value: retOK}
}
