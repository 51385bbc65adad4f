package ipc

import "novakernel/kernel"

var (
	ErrNameExists       = &kernel.Error{Module: "ipc", Message: "queue name already exists"}
	ErrNotFound         = &kernel.Error{Module: "ipc", Message: "no such object"}
	ErrFull             = &kernel.Error{Module: "ipc", Message: "queue is full"}
	ErrInvalidSize      = &kernel.Error{Module: "ipc", Message: "message exceeds MAX_MESSAGE_SIZE"}
	ErrNotReady         = &kernel.Error{Module: "ipc", Message: "queue is empty"}
	ErrQueueDestroyed   = &kernel.Error{Module: "ipc", Message: "queue destroyed while receiver was parked"}
	ErrNoCurrentProcess = &kernel.Error{Module: "ipc", Message: "no current process to park"}
	ErrNotAttached      = &kernel.Error{Module: "ipc", Message: "pid is not attached to this region"}
)
