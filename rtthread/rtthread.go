// Copyright 2026 by the tsch6 authors, see LICENSE file

// Package rtthread pins the goroutine driving the slot FSM to a realtime
// OS thread, since the slot FSM must meet hard per-slot deadlines on the
// order of tens of microseconds and the Go scheduler gives no such
// guarantee to an ordinary goroutine.
package rtthread

import (
	"runtime"
	"syscall"
	"unsafe"
)

const (
	fifoPolicy = 1 // fifo scheduling policy
	rrPolicy   = 2 // round-robin scheduling policy
)

// DefaultPriority is the round-robin priority used by Realtime, chosen in
// the lower-middle of the available range so the driver loop preempts
// ordinary goroutines without starving the kernel's own realtime tasks.
const DefaultPriority = 10

type schedParam struct {
	priority int
}

// Realtime locks the calling goroutine to its own kernel thread and raises
// that thread to round-robin realtime scheduling at DefaultPriority. The
// caller should invoke this once at the top of the goroutine that drives
// FSM.NewSlot/TimerFire/StartOfFrame/EndOfFrame.
func Realtime() error {
	runtime.LockOSThread()
	tid := syscall.Gettid()
	res, _, errno := syscall.RawSyscall(syscall.SYS_SCHED_SETSCHEDULER, uintptr(tid),
		uintptr(rrPolicy), uintptr(unsafe.Pointer(&schedParam{DefaultPriority})))
	if res == 0 {
		return nil
	}
	return errno
}
