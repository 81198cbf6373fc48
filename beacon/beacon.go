// Copyright 2026 by the tsch6 authors, see LICENSE file

// Package beacon implements component C7: periodic Enhanced Beacon
// transmission and the EB payload assembly (Sync, Slotframe-and-Link,
// Timeslot, and Channel-Hopping sub-IEs), plus the channel an
// unsynchronized node should listen on while acquiring sync.
package beacon

import (
	"time"

	"github.com/tve/tsch6"
	"github.com/tve/tsch6/asn"
	"github.com/tve/tsch6/ie"
	"github.com/tve/tsch6/timesync"
)

// ScheduleSummary is the information an Enhanced Beacon advertises about
// this node's local schedule, assembled from the node's schedule database
// by the caller (package node).
type ScheduleSummary struct {
	Slotframes      []ie.SlotframeEntry
	TimeslotTemplateID   uint8
	ChannelHoppingTemplateID uint8
}

// Scheduler drives periodic EB transmission for a synchronized node: it
// assembles the beacon payload and tracks when the next one is due,
// delegating the actual period adaptation to timesync.Controller.
type Scheduler struct {
	sync            *timesync.Controller
	hopper          *asn.Hopper
	myShortID       uint16
	joinPriority    uint8
	slotsSinceLastEB uint32
}

// NewScheduler returns a Scheduler for a node with the given short ID and
// join priority (this node's own rank-derived join priority, one more than
// its preferred parent's, per §4.6).
func NewScheduler(sync *timesync.Controller, hopper *asn.Hopper, myShortID uint16, joinPriority uint8) *Scheduler {
	return &Scheduler{sync: sync, hopper: hopper, myShortID: myShortID, joinPriority: joinPriority}
}

// SetJoinPriority updates the priority advertised in future beacons, e.g.
// after a rank recomputation changes the preferred parent.
func (s *Scheduler) SetJoinPriority(jp uint8) { s.joinPriority = jp }

// Due reports whether an EB should be sent this slot, and if so resets the
// elapsed-slot counter. One slot's worth of ticks is assumed to equal one
// call to Due, driven by the slot FSM's NewSlot handler.
func (s *Scheduler) Due() bool {
	s.slotsSinceLastEB++
	stepMillis := uint32(tsch6.EBPeriodStep / time.Millisecond)
	periodSlots := s.sync.EBPeriodSteps() * stepMillis / slotDurationMillis
	if periodSlots == 0 {
		periodSlots = 1
	}
	if s.slotsSinceLastEB < periodSlots {
		return false
	}
	s.slotsSinceLastEB = 0
	s.sync.AdvanceEBPeriod()
	return true
}

// slotDurationMillis matches the nominal 15ms slot used throughout this
// design, for converting the EB period (in milliseconds) into slot counts.
const slotDurationMillis = 15

// Assemble builds the Enhanced Beacon payload (an MLME payload IE
// containing the four sub-IEs) for transmission at the given ASN.
func (s *Scheduler) Assemble(now asn.ASN, summary ScheduleSummary) []byte {
	syncIE := ie.SyncIE{ASN: now, JoinPriority: s.joinPriority}.Encode()
	sfIE := ie.SlotframeAndLinkIE{Slotframes: summary.Slotframes}.Encode()
	tsIE := ie.TimeslotIE{TemplateID: summary.TimeslotTemplateID}.Encode()
	chIE := ie.ChannelHoppingIE{TemplateID: summary.ChannelHoppingTemplateID}.Encode()
	return ie.EncodeMLMEPayload(syncIE, sfIE, tsIE, chIE)
}

// Decode parses a received EB payload back into its constituent sub-IEs.
func Decode(payload []byte) (sync ie.SyncIE, sf ie.SlotframeAndLinkIE, ts ie.TimeslotIE, ch ie.ChannelHoppingIE, err error) {
	content, _, err := ie.DecodeMLMEPayload(payload)
	if err != nil {
		return sync, sf, ts, ch, err
	}
	err = ie.IterateSubIEs(content, func(subID uint8, sub []byte) error {
		raw := ie.EncodeSubIE(subID, sub, len(sub) > 255 || subID == ie.SubChannelHopping)
		switch subID {
		case ie.SubSyncIE:
			sync, _, err = ie.DecodeSyncIE(raw)
		case ie.SubSlotframeAndLink:
			sf, _, err = ie.DecodeSlotframeAndLinkIE(raw)
		case ie.SubTimeslot:
			ts, _, err = ie.DecodeTimeslotIE(raw)
		case ie.SubChannelHopping:
			ch, _, err = ie.DecodeChannelHoppingIE(raw)
		}
		return err
	})
	return sync, sf, ts, ch, err
}

// EBListenChannel returns the channel an unsynchronized node should listen
// on at the given slot counter, delegating to the timesync controller's
// configured hopper.
func (s *Scheduler) EBListenChannel(slotCounter uint64) uint8 {
	return s.sync.EBListenChannel(slotCounter)
}
