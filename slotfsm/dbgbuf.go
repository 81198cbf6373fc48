package slotfsm

import (
	"fmt"
	"sync"
	"time"
)

// dbgEvent is one timestamped trace entry, adapted from the debug-event
// ring buffer pattern in rfm69/dbgbuf.go: push events as they happen, dump
// them later for postmortem analysis of a fatal-in-slot abort.
type dbgEvent struct {
	at  time.Time
	txt string
}

// dbgBuf is a small ring used by the fatal-in-slot recovery path to record
// what the FSM was doing right before an abort, and by cmd/tschsim to dump
// a trace of a simulated run.
type dbgBuf struct {
	mu     sync.Mutex
	events []dbgEvent
	cap    int
}

func newDbgBuf(capacity int) *dbgBuf {
	if capacity <= 0 {
		capacity = 256
	}
	return &dbgBuf{cap: capacity}
}

func (d *dbgBuf) push(format string, v ...interface{}) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, dbgEvent{at: time.Now(), txt: fmt.Sprintf(format, v...)})
	if len(d.events) > d.cap {
		d.events = d.events[len(d.events)-d.cap:]
	}
}

// Dump returns the buffered trace lines, oldest first, relative to the
// first event's timestamp.
func (d *dbgBuf) Dump() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.events) == 0 {
		return nil
	}
	t0 := d.events[0].at
	out := make([]string, len(d.events))
	for i, ev := range d.events {
		out[i] = fmt.Sprintf("%.6fs: %s", ev.at.Sub(t0).Seconds(), ev.txt)
	}
	return out
}
