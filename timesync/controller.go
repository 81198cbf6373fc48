// Copyright 2026 by the tsch6 authors, see LICENSE file

// Package timesync implements component C6: acquiring synchronization from
// beacons, tracking the desync timeout, and adapting the Enhanced Beacon
// transmission period. The slot FSM (package slotfsm) owns the actual
// duty-cycle/correction statistics bookkeeping (§3 Stats block) and calls
// into this controller for the sync/desync state transitions it is
// responsible for.
package timesync

import (
	"sync/atomic"

	"github.com/tve/tsch6"
	"github.com/tve/tsch6/asn"
	"github.com/tve/tsch6/internal/critsec"
	"github.com/tve/tsch6/internal/tsch6log"
)

// Controller tracks this node's synchronization state.
type Controller struct {
	isSync atomic.Bool // single-word field, read lock-free per the design notes

	sec                    critsec.Section
	deSyncTimeoutRemaining uint32
	joinPriority           uint8
	ebPeriodTicks          uint32 // current adaptive EB period, in EBPeriodStep units
	hopper                 *asn.Hopper
	log                    tsch6log.Printf
}

// NewController returns a Controller starting unsynchronized with the EB
// period at its minimum.
func NewController(hopper *asn.Hopper, log tsch6log.Printf) *Controller {
	c := &Controller{
		hopper: hopper,
		log:    tsch6log.Tagged(log, "timesync"),
	}
	c.ebPeriodTicks = uint32(tsch6.EBPeriod / tsch6.EBPeriodStep)
	return c
}

// IsSync reports whether the node currently believes it is synchronized.
// Lock-free per the design's atomics recommendation.
func (c *Controller) IsSync() bool { return c.isSync.Load() }

// JoinPriority returns the join priority learned from the last accepted
// beacon (seeds initial DAGrank, per §4.6).
func (c *Controller) JoinPriority() uint8 {
	var jp uint8
	c.sec.Do(func() { jp = c.joinPriority })
	return jp
}

// Acquire transitions the node from unsynchronized to synchronized after
// decoding a valid beacon's Sync IE. This is the only transition permitted
// outside the FSM's normal slot flow (§4.6).
func (c *Controller) Acquire(joinPriority uint8) {
	c.sec.Do(func() {
		c.joinPriority = joinPriority
		c.deSyncTimeoutRemaining = tsch6.DesyncTimeout
	})
	c.isSync.Store(true)
	c.log("acquired sync, joinPriority=%d", joinPriority)
}

// RefreshSync resets the desync timeout after any successful synchronized
// exchange (§4.5: "Each successful sync refreshes deSyncTimeout").
func (c *Controller) RefreshSync() {
	c.sec.Do(func() { c.deSyncTimeoutRemaining = tsch6.DesyncTimeout })
}

// TickDesync decrements the desync countdown by one slot; if it reaches
// zero the node is demoted to unsynchronized and true is returned.
func (c *Controller) TickDesync() (desynced bool) {
	c.sec.Do(func() {
		if !c.isSync.Load() {
			return
		}
		if c.deSyncTimeoutRemaining == 0 {
			return
		}
		c.deSyncTimeoutRemaining--
		if c.deSyncTimeoutRemaining == 0 {
			desynced = true
		}
	})
	if desynced {
		c.isSync.Store(false)
		c.log("desynchronized")
	}
	return desynced
}

// EBListenChannel returns the channel an unsynchronized node should listen
// on at the given slot counter (§4.6, §4.1).
func (c *Controller) EBListenChannel(slotCounter uint64) uint8 {
	return c.hopper.EBChannel(slotCounter)
}

// AdvanceEBPeriod grows the adaptive beacon period by one step, up to the
// ceiling. The beacon scheduler calls it each time an EB falls due, so the
// period grows once per beacon rather than on a fixed EBPeriodTimer interval.
func (c *Controller) AdvanceEBPeriod() {
	max := uint32(tsch6.EBPeriodMax / tsch6.EBPeriodStep)
	c.sec.Do(func() {
		if c.ebPeriodTicks < max {
			c.ebPeriodTicks++
		}
	})
}

// ResetEBPeriod resets the beacon period to its minimum, called after a
// successful network event (§4.6).
func (c *Controller) ResetEBPeriod() {
	min := uint32(tsch6.EBPeriod / tsch6.EBPeriodStep)
	c.sec.Do(func() { c.ebPeriodTicks = min })
}

// EBPeriodSteps returns the current beacon period expressed in
// tsch6.EBPeriodStep units, for the beacon scheduler to convert to a
// concrete duration.
func (c *Controller) EBPeriodSteps() uint32 {
	var v uint32
	c.sec.Do(func() { v = c.ebPeriodTicks })
	return v
}
