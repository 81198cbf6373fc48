// Copyright 2026 by the tsch6 authors, see LICENSE file

// Package slotfsm implements component C5: the 26-state slot finite-state
// machine that sequences every radio and timer event inside one TSCH slot,
// plus the external-collaborator interfaces it consumes (§6): the radio
// driver, the 32kHz slot timer, the schedule, the ID manager, and the
// packet-buffer pool.
package slotfsm

import "fmt"

// CellType enumerates what a schedule cell asks the FSM to do this slot.
type CellType uint8

const (
	CellOff CellType = iota
	CellTX
	CellRX
	CellTXRX
	CellSerialRX // beacon listen
)

func (c CellType) String() string {
	switch c {
	case CellOff:
		return "OFF"
	case CellTX:
		return "TX"
	case CellRX:
		return "RX"
	case CellTXRX:
		return "TXRX"
	case CellSerialRX:
		return "SERIALRX"
	default:
		return fmt.Sprintf("CellType(%d)", c)
	}
}

// CellOptions are the per-cell option bits (§3).
type CellOptions uint8

const (
	OptTX CellOptions = 1 << iota
	OptRX
	OptShared
	OptTimekeeping
)

// Cell is one schedule entry (§3).
type Cell struct {
	Type          CellType
	ChannelOffset uint8
	Neighbor      uint16
	Options       CellOptions
}

// Schedule is the external schedule interface (§6): getSchedule(slotOffset).
type Schedule interface {
	GetSchedule(slotOffset uint16) (Cell, error)
}

// Owner identifies which module currently holds a packet buffer.
type Owner uint8

const (
	OwnerFree Owner = iota
	OwnerFSM
	OwnerNeighbors
	OwnerQueue
)

func (o Owner) String() string {
	switch o {
	case OwnerFree:
		return "free"
	case OwnerFSM:
		return "fsm"
	case OwnerNeighbors:
		return "neighbors"
	case OwnerQueue:
		return "queue"
	default:
		return "unknown"
	}
}

// Packet is the payload-carrying buffer the FSM borrows for one slot
// (OpenQueueEntry in the design).
type Packet struct {
	Owner   Owner
	Payload []byte
	DSN     uint8
	Dest    uint16
	NoAck   bool // frame requests no ACK (broadcast or explicitly unacked)
}

// PacketHandle is a linear handle onto a Packet: Transfer moves ownership
// and invalidates the original handle, so a stale handle used afterwards is
// a nil-pointer fault rather than silent double-ownership.
type PacketHandle struct {
	p *Packet
}

// NewPacketHandle wraps p, initially owned by owner.
func NewPacketHandle(p *Packet, owner Owner) *PacketHandle {
	p.Owner = owner
	return &PacketHandle{p: p}
}

// Packet returns the underlying packet, or nil if this handle was already
// transferred away.
func (h *PacketHandle) Packet() *Packet {
	if h == nil {
		return nil
	}
	return h.p
}

// Transfer moves ownership of the underlying packet to newOwner and
// invalidates h, returning a fresh handle for the new owner.
func (h *PacketHandle) Transfer(newOwner Owner) *PacketHandle {
	if h == nil || h.p == nil {
		return nil
	}
	p := h.p
	p.Owner = newOwner
	h.p = nil
	return &PacketHandle{p: p}
}

// PacketPool is the external packet-buffer pool interface (§6).
type PacketPool interface {
	Alloc() (*PacketHandle, error)
	Free(h *PacketHandle)
}

// IDManager is the external ID-manager interface (§6).
type IDManager interface {
	MyShortID() uint16
	IsDAGRoot() bool
}

// RadioEvent identifies why the FSM's end-of-frame callback fired.
type RadioEvent uint8

const (
	EventOK RadioEvent = iota
	EventCRCError
	EventNoSignal // listening window expired with no SFD
)

// Radio is the external radio-driver interface (§6): load/send/receive
// buffers, arm SFD/end-of-frame callbacks, timestamp capture, channel and
// power set. The FSM calls these synchronously to arm the next operation;
// the radio later calls back into the FSM's StartOfFrame/EndOfFrame.
type Radio interface {
	SetFrequency(channel uint8)
	SetTXPower(power uint8)
	LoadTX(frame []byte) error
	TXEnable() error // arms transmit; radio will call StartOfFrame then EndOfFrame
	RXEnable() error // arms receive; radio will call StartOfFrame then EndOfFrame
	Off()
}

// Timer is the external 32kHz slot-timer interface (§6): set-compare, fires
// once.
type Timer interface {
	NowTicks() uint32
	SetCompare(deadlineTicks uint32)

	// AdjustReference nudges the timer's free-running reference by ticks
	// (positive advances it, negative rewinds it) and must persist across
	// slots until the next adjustment. The TX side applies the ACK
	// time-correction IE here (§4.5) so that every subsequent armRelative
	// deadline is computed against the time source's notion of "now"
	// instead of drifting further apart each slot.
	AdjustReference(ticks int16)
}
