// Copyright 2026 by the tsch6 authors, see LICENSE file

// Package node wires components C1-C7 and their external collaborators
// into one owned context struct, the assembled unit cmd/tschsim drives.
package node

import (
	"github.com/tve/tsch6"
	"github.com/tve/tsch6/asn"
	"github.com/tve/tsch6/beacon"
	"github.com/tve/tsch6/internal/tsch6log"
	"github.com/tve/tsch6/macstats"
	"github.com/tve/tsch6/neighbors"
	"github.com/tve/tsch6/rank"
	"github.com/tve/tsch6/slotfsm"
	"github.com/tve/tsch6/timesync"
	"github.com/tve/tsch6/topology"
)

// Config wires a Node to its hardware/test collaborators.
type Config struct {
	Schedule        slotfsm.Schedule
	EBSlotOffset    uint16 // slot offset reserved for this node's own EB transmissions
	Radio           slotfsm.Radio
	Timer           slotfsm.Timer
	IDManager       slotfsm.IDManager
	Topology        *topology.AllowList
	SlotframeLength uint16
	Hopper          *asn.Hopper
	NeighborTableSize int
	Log             tsch6log.Printf

	// OnRxData, if set, is invoked with the payload of any successfully
	// received data frame, before the ACK (if one is requested) is sent.
	OnRxData func(src uint16, payload []byte)
}

// Node is the fully wired link-layer context for one mesh node.
type Node struct {
	cfg       Config
	neighbors *neighbors.Table
	rank      *rank.Selector
	sync      *timesync.Controller
	beaconSched *beacon.Scheduler
	fsm       *slotfsm.FSM
	blacklist *macstats.BlacklistUpdater
	log       tsch6log.Printf

	scheduleSummary beacon.ScheduleSummary
	ebDueThisSlot   bool
}

// New assembles a Node from cfg.
func New(cfg Config) *Node {
	size := cfg.NeighborTableSize
	if size <= 0 {
		size = tsch6.DefaultNeighborTableSize
	}
	n := &Node{cfg: cfg, log: tsch6log.Tagged(cfg.Log, "node")}

	n.neighbors = neighbors.New(size, cfg.IDManager.IsDAGRoot, cfg.Log)
	n.rank = rank.NewSelector(n.neighbors, cfg.IDManager.IsDAGRoot, cfg.Log)
	n.neighbors.SetRouteChangeCallback(n.rank.Recompute)

	n.sync = timesync.NewController(cfg.Hopper, cfg.Log)
	n.beaconSched = beacon.NewScheduler(n.sync, cfg.Hopper, cfg.IDManager.MyShortID(), 0)
	n.blacklist = macstats.NewBlacklistUpdater()

	n.fsm = slotfsm.New(slotfsm.Config{
		Schedule:        n,
		Radio:           cfg.Radio,
		Timer:           cfg.Timer,
		IDManager:       cfg.IDManager,
		Neighbors:       n.neighbors,
		Sync:            n.sync,
		Hopper:          cfg.Hopper,
		SlotframeLength: cfg.SlotframeLength,
		Log:             cfg.Log,
		Topology:        cfg.Topology,
		OnRxData:        cfg.OnRxData,
		OnBeacon:        n.handleBeacon,
	})

	return n
}

// SetScheduleSummary installs the slotframe/timeslot/channel-hopping
// summary this node advertises in its own Enhanced Beacons.
func (n *Node) SetScheduleSummary(s beacon.ScheduleSummary) { n.scheduleSummary = s }

// GetSchedule implements slotfsm.Schedule: it delegates to the configured
// schedule, except at EBSlotOffset on a slot where a beacon transmission
// is due, which it turns into a broadcast TX cell.
func (n *Node) GetSchedule(slotOffset uint16) (slotfsm.Cell, error) {
	if n.ebDueThisSlot && slotOffset == n.cfg.EBSlotOffset {
		return slotfsm.Cell{Type: slotfsm.CellTX, Neighbor: tsch6.BroadcastID}, nil
	}
	return n.cfg.Schedule.GetSchedule(slotOffset)
}

// handleBeacon processes an Enhanced Beacon heard while unsynchronized:
// acquire sync and seed this node's join priority. The sender's advertised
// rank is not passed to the neighbor table.
func (n *Node) handleBeacon(payload []byte) {
	sync, _, _, _, err := beacon.Decode(payload)
	if err != nil {
		return
	}
	n.sync.Acquire(sync.JoinPriority)
	n.beaconSched.SetJoinPriority(sync.JoinPriority + 1)
}

// Tick advances the node by one slot: assembling and enqueueing an
// Enhanced Beacon if due, then driving the slot FSM's NewSlot. It is the
// entry point driven once per slot boundary, typically from a goroutine
// pinned realtime via package rtthread.
func (n *Node) Tick() slotfsm.Cell {
	n.ebDueThisSlot = n.sync.IsSync() && n.beaconSched.Due()
	if n.ebDueThisSlot {
		payload := n.beaconSched.Assemble(n.fsm.ASN().Advance(), n.scheduleSummary)
		if _, err := n.fsm.EnqueueTX(tsch6.BroadcastID, payload, true); err != nil {
			n.ebDueThisSlot = false
		}
		n.recomputeBlacklists()
	} else if !n.sync.IsSync() {
		// Unsynchronized nodes run the configured schedule like
		// synchronized ones; no beacon-listen cell or slow-hopping EB
		// channel is substituted here.
	}
	return n.fsm.NewSlot()
}

// recomputeBlacklists re-derives each known neighbor's currentBlacklist mask
// from its aggregate PRR, run once per EB period rather than every slot.
// For every TX cell this node's schedule holds toward a neighbor, the
// neighbor's overall numTxACK/numTx ratio is sampled against the channel
// that cell hops to this ASN (§4.3, §6 neighbors_updateCurrentBlacklist).
func (n *Node) recomputeBlacklists() {
	for _, e := range n.neighbors.Snapshot() {
		if !e.Used || e.NumTx == 0 {
			continue
		}
		prr := float64(e.NumTxACK) / float64(e.NumTx)
		var samples []macstats.ChannelPRR
		for slotOffset := uint16(0); slotOffset < n.cfg.SlotframeLength; slotOffset++ {
			cell, err := n.cfg.Schedule.GetSchedule(slotOffset)
			if err != nil || cell.Type != slotfsm.CellTX || cell.Neighbor != e.ShortID {
				continue
			}
			ch := n.cfg.Hopper.Channel(n.fsm.ASN(), cell.ChannelOffset)
			samples = append(samples, macstats.ChannelPRR{Channel: ch, PRR: prr})
		}
		if len(samples) == 0 {
			continue
		}
		if err := n.blacklist.Update(n.neighbors, e.ShortID, samples); err != nil {
			n.log("blacklist: update for %#04x failed: %v", e.ShortID, err)
		}
	}
}

// TimerFire, StartOfFrame and EndOfFrame pass directly through to the
// underlying slot FSM; see slotfsm.FSM for the semantics.
func (n *Node) TimerFire()                                    { n.fsm.TimerFire() }
func (n *Node) StartOfFrame(capturedTime uint32)               { n.fsm.StartOfFrame(capturedTime) }
func (n *Node) EndOfFrame(ok bool, rx []byte, rssi int8)        { n.fsm.EndOfFrame(ok, rx, rssi) }

// EnqueueTX stages a data frame for the next TX cell toward dest.
func (n *Node) EnqueueTX(dest uint16, payload []byte, noAck bool) (dsn uint8, err error) {
	return n.fsm.EnqueueTX(dest, payload, noAck)
}

// MyDAGrank returns this node's current DAG rank.
func (n *Node) MyDAGrank() uint16 { return n.rank.MyDAGrank() }

// PreferredParent returns this node's preferred parent's short ID, or
// tsch6.BroadcastID if none.
func (n *Node) PreferredParent() uint16 { return n.rank.GetPreferredParent() }

// IsSync reports whether this node currently believes it is synchronized.
func (n *Node) IsSync() bool { return n.sync.IsSync() }

// Stats returns a copy of the FSM's duty-cycle/correction statistics.
func (n *Node) Stats() slotfsm.Stats { return n.fsm.Stats() }

// Trace returns the FSM's fatal-in-slot / lifecycle trace.
func (n *Node) Trace() []string { return n.fsm.Trace() }

// Neighbors returns the node's neighbor table for inspection or telemetry.
func (n *Node) Neighbors() *neighbors.Table { return n.neighbors }

// ASN returns the node's current absolute slot number.
func (n *Node) ASN() asn.ASN { return n.fsm.ASN() }
