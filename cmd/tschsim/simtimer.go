// Copyright 2026 by the tsch6 authors, see LICENSE file

package main

import "sync/atomic"

// simTimer is a software stand-in for the 32kHz slot timer, driven by the
// simulation's own tick loop rather than a real hardware counter. It
// satisfies slotfsm.Timer.
type simTimer struct {
	now     atomic.Uint32
	compare atomic.Uint32
	armed   atomic.Bool
}

func (t *simTimer) NowTicks() uint32 { return t.now.Load() }

func (t *simTimer) SetCompare(deadline uint32) {
	t.compare.Store(deadline)
	t.armed.Store(true)
}

// AdjustReference nudges the simulated clock by ticks, the same way a real
// 32kHz counter would be trimmed in response to an ACK time-correction IE.
func (t *simTimer) AdjustReference(ticks int16) {
	t.now.Add(uint32(int32(ticks)))
}

// Advance moves the simulated clock forward by ticks, returning true if the
// armed compare deadline was reached or passed (and disarming it).
func (t *simTimer) Advance(ticks uint32) bool {
	now := t.now.Add(ticks)
	if t.armed.Load() && now >= t.compare.Load() {
		t.armed.Store(false)
		return true
	}
	return false
}
