package slotfsm

import (
	"github.com/tve/tsch6"
	"github.com/tve/tsch6/asn"
	"github.com/tve/tsch6/internal/critsec"
	"github.com/tve/tsch6/internal/errkind"
	"github.com/tve/tsch6/internal/tsch6log"
	"github.com/tve/tsch6/neighbors"
	"github.com/tve/tsch6/timesync"
	"github.com/tve/tsch6/topology"
)

// Config wires the FSM to its external collaborators (§6) and to the
// components it feeds (§4.3, §4.6).
type Config struct {
	Schedule        Schedule
	Radio           Radio
	Timer           Timer
	IDManager       IDManager
	Neighbors       *neighbors.Table
	Sync            *timesync.Controller
	Hopper          *asn.Hopper
	SlotframeLength uint16
	Log             tsch6log.Printf

	// Pool allocates the packet buffer EnqueueTX stages for the FSM to
	// send; a nil Pool gets a small FixedPool of its own (§6).
	Pool PacketPool

	// Topology, if set, is consulted before acting on a received frame's
	// source; a nil Topology accepts every peer.
	Topology *topology.AllowList

	// OnRxData, if set, is invoked with the payload of any unicast/broadcast
	// data frame successfully received this slot, before the ACK (if one is
	// requested) is sent.
	OnRxData func(src uint16, payload []byte)

	// OnBeacon, if set, is invoked with the raw MLME payload IE of an
	// Enhanced Beacon heard while unsynchronized (§4.6).
	OnBeacon func(payload []byte)
}

// FSM is the slot finite-state machine (component C5).
type FSM struct {
	sched           Schedule
	radio           Radio
	timer           Timer
	idMgr           IDManager
	neighbors       *neighbors.Table
	sync            *timesync.Controller
	hopper          *asn.Hopper
	slotframeLength uint16
	log             tsch6log.Printf
	topo            *topology.AllowList
	onRxData        func(src uint16, payload []byte)
	onBeacon        func(payload []byte)
	pool            PacketPool

	mu critsec.Section

	state   State
	curASN  asn.ASN
	curCell Cell
	curFreq uint8

	pendingTX  *PacketHandle // staged by EnqueueTX, consumed by the next TX cell
	txAttempts uint8
	txDSN      uint8

	rxSyncCapturedTime uint32 // rt captured time of the data frame's SFD
	rxFrame            DataFrame
	rxAckBlacklist      uint16

	nextDSN uint8

	stats Stats
	dbg   *dbgBuf
}

// New returns an FSM in the Sleep state.
func New(cfg Config) *FSM {
	pool := cfg.Pool
	if pool == nil {
		pool = NewFixedPool(defaultPoolSize)
	}
	return &FSM{
		sched:           cfg.Schedule,
		radio:           cfg.Radio,
		timer:           cfg.Timer,
		idMgr:           cfg.IDManager,
		neighbors:       cfg.Neighbors,
		sync:            cfg.Sync,
		hopper:          cfg.Hopper,
		slotframeLength: cfg.SlotframeLength,
		log:             tsch6log.Tagged(cfg.Log, "slotfsm"),
		topo:            cfg.Topology,
		onRxData:        cfg.OnRxData,
		onBeacon:        cfg.OnBeacon,
		pool:            pool,
		state:           Sleep,
		dbg:             newDbgBuf(256),
	}
}

// State returns the FSM's current state.
func (f *FSM) State() State {
	var s State
	f.mu.Do(func() { s = f.state })
	return s
}

// ASN returns the FSM's current absolute slot number.
func (f *FSM) ASN() asn.ASN {
	var a asn.ASN
	f.mu.Do(func() { a = f.curASN })
	return a
}

// Stats returns a copy of the current statistics block.
func (f *FSM) Stats() Stats {
	var s Stats
	f.mu.Do(func() { s = f.stats })
	return s
}

// Trace returns the buffered fatal-in-slot / lifecycle trace.
func (f *FSM) Trace() []string { return f.dbg.Dump() }

// EnqueueTX stages a frame to be sent the next time the schedule calls for
// a TX cell toward dest. Only one frame may be staged at a time; returns
// the DSN assigned to the frame.
func (f *FSM) EnqueueTX(dest uint16, payload []byte, noAck bool) (dsn uint8, err error) {
	f.mu.Do(func() {
		if f.pendingTX != nil {
			err = errkind.New(errkind.Resource, "slotfsm: EnqueueTX: a frame is already staged")
			return
		}
		h, allocErr := f.pool.Alloc()
		if allocErr != nil {
			err = allocErr
			return
		}
		dsn = f.nextDSN
		f.nextDSN++
		p := h.Packet()
		p.Payload, p.Dest, p.DSN, p.NoAck = payload, dest, dsn, noAck
		f.pendingTX = h
	})
	return dsn, err
}

// NewSlot advances the ASN by one slot, consults the schedule, and either
// sleeps through an OFF cell or begins the TX/RX/beacon-listen sequence for
// this slot. It is the entry point driven by the 32kHz slot timer.
func (f *FSM) NewSlot() Cell {
	var cell Cell
	f.mu.Do(func() {
		if f.state != Sleep {
			f.dbg.push("protocol error: state %s at slot boundary, forcing recovery", f.state)
			f.log("ERR_NOT_SLEEP_AT_BOUNDARY: state=%s", f.state)
			f.abortLocked()
		}

		f.curASN = f.curASN.Advance()
		f.stats.NumTicsTotal += SlotDurationTicks
		if f.stats.NumTicsTotal > tsch6.DutyCycleWindowLimit {
			f.stats.NumTicsOn >>= 1
			f.stats.NumTicsTotal >>= 1
		}

		if f.sync != nil && f.sync.TickDesync() {
			f.stats.NumDeSync++
		}

		slotOffset := f.curASN.SlotOffset(f.slotframeLength)
		var err error
		cell, err = f.sched.GetSchedule(slotOffset)
		if err != nil {
			f.log("protocol: schedule lookup for offset %d failed: %v", slotOffset, err)
			cell = Cell{Type: CellOff}
		}
		f.curCell = cell

		switch cell.Type {
		case CellOff:
			f.state = Sleep
		case CellSerialRX:
			f.enterBeaconListenLocked()
		case CellTX:
			f.enterTXLocked()
		case CellRX, CellTXRX:
			f.enterRXLocked()
		default:
			f.state = Sleep
		}
	})
	return cell
}

// abortLocked implements the fatal-in-slot policy (§4.5, §7): return any
// borrowed packet buffer, turn off the radio, and force Sleep. Must be
// called with the lock held.
func (f *FSM) abortLocked() {
	f.radio.Off()
	if f.pendingTX != nil {
		p := f.pendingTX.Packet()
		f.dbg.push("abort: dropping staged TX to %#04x dsn=%d", p.Dest, p.DSN)
		f.pool.Free(f.pendingTX)
		f.pendingTX = nil
	}
	f.txAttempts = 0
	f.state = Sleep
}

func (f *FSM) armRelative(ticks int) {
	now := f.timer.NowTicks()
	f.timer.SetCompare(now + uint32(ticks))
}

// --- TX subpath (tt1..tt8) -------------------------------------------------

func (f *FSM) enterTXLocked() {
	f.curFreq = f.hopper.Channel(f.curASN, f.curCell.ChannelOffset)
	f.radio.SetFrequency(f.curFreq)
	f.radio.SetTXPower(tsch6.TxPower)

	if f.pendingTX == nil || f.pendingTX.Packet().Dest != f.curCell.Neighbor {
		// nothing queued for this peer this slot
		f.state = Sleep
		return
	}
	txPkt := f.pendingTX.Packet()
	f.txAttempts = 0
	f.txDSN = txPkt.DSN

	if f.neighbors != nil {
		f.neighbors.OnTxData(txPkt.Dest, f.txDSN) // child side, before the slot
	}

	f.state = TxDataOffset
	f.armRelative(TsTxOffset - delayTx - maxTxDataPrepare) // tt1
}

func (f *FSM) timerFireTXLocked() {
	switch f.state {
	case TxDataOffset: // tt2: load the frame, schedule "go"
		p := f.pendingTX.Packet()
		frame := DataFrame{Dst: p.Dest, Src: f.idMgr.MyShortID(), DSN: p.DSN, NoAck: p.NoAck, Payload: p.Payload}
		if err := f.radio.LoadTX(frame.Encode()); err != nil {
			f.log("timing: LoadTX failed: %v", err)
			f.abortLocked()
			return
		}
		f.state = TxDataReady
		f.armRelative(TsTxOffset - delayTx) // tt3 "go"

	case TxDataReady: // tt3: go
		if err := f.radio.TXEnable(); err != nil {
			f.log("timing: TXEnable failed: %v", err)
			f.abortLocked()
			return
		}
		f.state = TxDataDelay
		f.armRelative(wdRadioTx) // watchdog until SFD

	case TxDataDelay: // watchdog: SFD never arrived
		f.log("timing: ERR_WDRADIOTX_OVERFLOWS waiting for TX SFD")
		f.failTxAttemptLocked()

	case RxAckOffset: // tt5: arm the ACK receiver
		f.radio.SetFrequency(f.curFreq)
		if err := f.radio.RXEnable(); err != nil {
			f.log("timing: RXEnable for ACK failed: %v", err)
			f.abortLocked()
			return
		}
		f.state = RxAckListen
		f.armRelative(TsShortGT * 2) // listening window

	case RxAckListen: // watchdog: no ACK heard
		f.failTxAttemptLocked()

	case RxAck: // watchdog: ACK SFD seen but never completed
		f.log("timing: ERR_WDACKDURATION_OVERFLOWS")
		f.failTxAttemptLocked()

	default:
		f.protocolErrorLocked("timerFire")
	}
}

// failTxAttemptLocked records a failed attempt and, since in-slot retries
// are not part of this design (retransmission is an upper-layer/6top
// concern), returns to Sleep.
func (f *FSM) failTxAttemptLocked() {
	f.txAttempts++
	p := f.pendingTX.Packet()
	if f.neighbors != nil {
		f.neighbors.IndicateTx(p.Dest, f.txAttempts, false, f.curASN)
	}
	f.pool.Free(f.pendingTX)
	f.pendingTX = nil
	f.txAttempts = 0
	f.radio.Off()
	f.state = Sleep
}

func (f *FSM) startOfFrameTXLocked(capturedTime uint32) {
	switch f.state {
	case TxDataDelay:
		f.state = TxData
		f.armRelative(wdDataDuration)
	case RxAckListen:
		f.state = RxAck
		f.armRelative(wdAckDuration)
	default:
		f.protocolErrorLocked("startOfFrame")
	}
}

func (f *FSM) endOfFrameTXLocked(ok bool, rx []byte) {
	switch f.state {
	case TxData:
		f.txAttempts++
		p := f.pendingTX.Packet()
		if p.Dest == tsch6.BroadcastID {
			f.pool.Free(f.pendingTX)
			f.pendingTX = nil
			f.state = Sleep
			return
		}
		if p.NoAck {
			if f.neighbors != nil {
				f.neighbors.IndicateTx(p.Dest, f.txAttempts, false, f.curASN)
			}
			f.pool.Free(f.pendingTX)
			f.pendingTX = nil
			f.state = Sleep
			return
		}
		f.state = RxAckOffset
		f.armRelative(TsTxAckDelay - TsShortGT - delayRx - maxRxAckPrepare) // tt5

	case RxAck:
		if !ok {
			f.failTxAttemptLocked()
			return
		}
		ack, err := DecodeAckFrame(rx)
		if err != nil {
			f.log("protocol: malformed ACK: %v", err)
			f.failTxAttemptLocked()
			return
		}
		p := f.pendingTX.Packet()
		if f.neighbors != nil {
			f.neighbors.IndicateTx(p.Dest, f.txAttempts, true, f.curASN)
			if ack.Blacklist != nil {
				f.neighbors.OnRxAck(p.Dest, p.DSN, *ack.Blacklist)
			}
		}
		if f.curCell.Options&OptTimekeeping != 0 {
			f.applyTimeCorrectionLocked(ack.CorrectionTicks)
		}
		f.radio.Off()
		f.pool.Free(f.pendingTX)
		f.pendingTX = nil
		f.state = Sleep

	default:
		f.protocolErrorLocked("endOfFrame")
	}
}

// --- RX subpath (rt1..rt8) -------------------------------------------------

func (f *FSM) enterRXLocked() {
	f.curFreq = f.hopper.Channel(f.curASN, f.curCell.ChannelOffset)
	f.radio.SetFrequency(f.curFreq)
	f.state = RxDataOffset
	f.armRelative(TsTxOffset - TsLongGT) // rt1: start of the guard window
}

func (f *FSM) timerFireRXLocked() {
	switch f.state {
	case RxDataOffset: // rt2: arm the receiver
		if err := f.radio.RXEnable(); err != nil {
			f.log("timing: RXEnable failed: %v", err)
			f.abortLocked()
			return
		}
		f.state = RxDataListen
		f.armRelative(2 * TsLongGT) // end of guard window

	case RxDataListen: // watchdog: nobody transmitted this slot
		f.radio.Off()
		f.state = Sleep

	case RxData: // watchdog: frame never completed
		f.log("timing: ERR_WDDATADURATION_OVERFLOWS")
		f.radio.Off()
		f.state = Sleep

	case TxAckOffset: // rt5: load the ACK, schedule "go"
		ack := f.buildAckLocked()
		if err := f.radio.LoadTX(ack.Encode()); err != nil {
			f.log("timing: LoadTX ack failed: %v", err)
			f.abortLocked()
			return
		}
		f.state = TxAckReady
		f.armRelative(TsTxAckDelay - delayTx) // "go"

	case TxAckReady: // "go"
		if err := f.radio.TXEnable(); err != nil {
			f.log("timing: TXEnable ack failed: %v", err)
			f.abortLocked()
			return
		}
		f.state = TxAckDelay
		f.armRelative(wdRadioTx)

	case TxAckDelay: // watchdog: ACK SFD never fired
		f.log("timing: ERR_WDRADIOTX_OVERFLOWS sending ACK")
		f.radio.Off()
		f.state = Sleep

	case TxAck: // watchdog: ACK TX never completed
		f.log("timing: ERR_WDACKDURATION_OVERFLOWS sending ACK")
		f.radio.Off()
		f.state = Sleep

	default:
		f.protocolErrorLocked("timerFire")
	}
}

func (f *FSM) startOfFrameRXLocked(capturedTime uint32) {
	switch f.state {
	case RxDataListen:
		f.rxSyncCapturedTime = capturedTime
		f.state = RxData
		f.armRelative(wdDataDuration)
	case TxAckDelay:
		f.state = TxAck
		f.armRelative(wdAckDuration)
	default:
		f.protocolErrorLocked("startOfFrame")
	}
}

func (f *FSM) endOfFrameRXLocked(ok bool, rx []byte, rssi int8) {
	switch f.state {
	case RxData:
		if !ok {
			f.log("timing: CRC error on received data frame")
			f.radio.Off()
			f.state = Sleep
			return
		}
		frame, err := DecodeDataFrame(rx)
		if err != nil {
			f.log("protocol: malformed data frame: %v", err)
			f.radio.Off()
			f.state = Sleep
			return
		}
		if f.topo != nil && !f.topo.IsAcceptable(frame.Src) {
			f.dbg.push("rejecting frame from %#04x: not in topology allow-list", frame.Src)
			f.radio.Off()
			f.state = Sleep
			return
		}
		f.rxFrame = frame
		if f.neighbors != nil {
			f.neighbors.IndicateRx(frame.Src, rssi, f.curASN)
		}
		if f.onRxData != nil {
			f.onRxData(frame.Src, frame.Payload)
		}
		if frame.NoAck {
			f.radio.Off()
			f.state = Sleep
			return
		}
		if f.neighbors != nil {
			f.rxAckBlacklist, _ = f.neighbors.OnRxData(frame.Src, frame.DSN)
		}
		f.state = TxAckOffset
		f.armRelative(TsTxAckDelay - delayTx - maxTxAckPrepare) // rt5

	case TxAck:
		f.radio.Off()
		f.state = Sleep

	default:
		f.protocolErrorLocked("endOfFrame")
	}
}

func (f *FSM) buildAckLocked() AckFrame {
	// Time correction: expected capture time is TsTxOffset ticks after the
	// slot's reference point; the correction sent back is
	// expectedCaptureTime - actualCaptureTime, in ticks (§4.5).
	correction := int16(TsTxOffset) - int16(f.rxSyncCapturedTime)
	bl := f.rxAckBlacklist
	return AckFrame{
		Dst:             f.rxFrame.Src,
		Src:             f.idMgr.MyShortID(),
		DSN:             f.rxFrame.DSN,
		CorrectionTicks: correction,
		Blacklist:       &bl,
	}
}

// --- beacon listen (unsynchronized path, §4.6) -----------------------------

func (f *FSM) enterBeaconListenLocked() {
	f.curFreq = f.hopper.Channel(f.curASN, f.curCell.ChannelOffset)
	f.radio.SetFrequency(f.curFreq)
	if err := f.radio.RXEnable(); err != nil {
		f.log("timing: RXEnable for beacon listen failed: %v", err)
		f.abortLocked()
		return
	}
	f.state = SyncListen
	f.armRelative(SlotDurationTicks)
}

func (f *FSM) timerFireSyncLocked() {
	switch f.state {
	case SyncListen: // nothing heard this slot
		f.radio.Off()
		f.state = Sleep
	default:
		f.protocolErrorLocked("timerFire")
	}
}

func (f *FSM) startOfFrameSyncLocked(capturedTime uint32) {
	if f.state != SyncListen {
		f.protocolErrorLocked("startOfFrame")
		return
	}
	f.rxSyncCapturedTime = capturedTime
	f.state = SyncRX
	f.armRelative(wdDataDuration)
}

func (f *FSM) endOfFrameSyncLocked(ok bool, rx []byte) {
	if f.state != SyncRX {
		f.protocolErrorLocked("endOfFrame")
		return
	}
	f.state = SyncProc
	defer func() { f.state = Sleep }()
	f.radio.Off()
	if !ok {
		return
	}
	if f.onBeacon != nil {
		f.onBeacon(rx)
	}
}

func (f *FSM) applyTimeCorrectionLocked(ticks int16) {
	f.stats.recordCorrection(ticks)
	clipped := ticks
	if clipped > tsch6.LimitLargeTimeCorrection {
		clipped = tsch6.LimitLargeTimeCorrection
		f.log("timing: ERR_LARGE_TIMECORRECTION clipped %d to %d", ticks, clipped)
	} else if clipped < -tsch6.LimitLargeTimeCorrection {
		clipped = -tsch6.LimitLargeTimeCorrection
		f.log("timing: ERR_LARGE_TIMECORRECTION clipped %d to %d", ticks, clipped)
	}
	f.timer.AdjustReference(clipped)
	if f.sync != nil {
		f.sync.RefreshSync()
	}
	f.stats.NumSyncAck++
}

func (f *FSM) protocolErrorLocked(event string) {
	f.dbg.push("ERR_WRONG_STATE: event=%s state=%s", event, f.state)
	f.log("protocol: unexpected %s in state %s", event, f.state)
	f.abortLocked()
}

// TimerFire handles a scheduled deadline expiring.
func (f *FSM) TimerFire() {
	f.mu.Do(func() {
		switch {
		case f.state == SyncListen:
			f.timerFireSyncLocked()
		case f.isTXStateLocked():
			f.timerFireTXLocked()
		case f.isRXStateLocked():
			f.timerFireRXLocked()
		case f.state == Sleep:
			// Stray timer after an abort; ignore.
		default:
			f.protocolErrorLocked("timerFire")
		}
	})
}

// StartOfFrame handles the radio's SFD-detected callback.
func (f *FSM) StartOfFrame(capturedTime uint32) {
	f.mu.Do(func() {
		switch {
		case f.state == SyncListen:
			f.startOfFrameSyncLocked(capturedTime)
		case f.isTXStateLocked():
			f.startOfFrameTXLocked(capturedTime)
		case f.isRXStateLocked():
			f.startOfFrameRXLocked(capturedTime)
		default:
			f.protocolErrorLocked("startOfFrame")
		}
	})
}

// EndOfFrame handles the radio's end-of-frame callback. ok is false on a
// CRC error or an aborted reception; rssi is only meaningful for a
// successful RX.
func (f *FSM) EndOfFrame(ok bool, rx []byte, rssi int8) {
	f.mu.Do(func() {
		switch {
		case f.state == SyncProc || f.state == SyncRX:
			f.endOfFrameSyncLocked(ok, rx)
		case f.isTXStateLocked():
			f.endOfFrameTXLocked(ok, rx)
		case f.isRXStateLocked():
			f.endOfFrameRXLocked(ok, rx, rssi)
		default:
			f.protocolErrorLocked("endOfFrame")
		}
	})
}

func (f *FSM) isTXStateLocked() bool {
	switch f.state {
	case TxDataOffset, TxDataPrepare, TxDataReady, TxDataDelay, TxData,
		RxAckOffset, RxAckPrepare, RxAckReady, RxAckListen, RxAck, TxProc:
		return true
	}
	return false
}

func (f *FSM) isRXStateLocked() bool {
	switch f.state {
	case RxDataOffset, RxDataPrepare, RxDataReady, RxDataListen, RxData,
		TxAckOffset, TxAckPrepare, TxAckReady, TxAckDelay, TxAck, RxProc:
		return true
	}
	return false
}
