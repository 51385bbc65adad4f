package kfmt

import "novakernel/kernel"

var errRuntimePanic = &kernel.Error{Module: "rt", Message: "unknown cause"}

// Panic logs the supplied error (if not nil) via Printf and then calls Go's
// panic so the caller's test or demo harness can observe it. Unlike the
// freestanding kernel this is adapted from, there is no CPU to halt here;
// Panic hands control back to the host Go runtime instead.
func Panic(e interface{}) {
	var err *kernel.Error

	switch t := e.(type) {
	case *kernel.Error:
		err = t
	case string:
		panicString(t)
		return
	case error:
		errRuntimePanic.Message = t.Error()
		err = errRuntimePanic
	}

	Printf("\n-----------------------------------\n")
	if err != nil {
		Printf("[%s] unrecoverable error: %s\n", err.Module, err.Message)
	}
	Printf("*** kernel panic ***\n")
	Printf("-----------------------------------\n")

	panic(err)
}

func panicString(msg string) {
	errRuntimePanic.Message = msg
	Panic(errRuntimePanic)
}
