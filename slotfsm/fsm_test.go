package slotfsm

import (
	"testing"

	"github.com/tve/tsch6/asn"
	"github.com/tve/tsch6/neighbors"
)

type fakeRadio struct {
	calls   []string
	loaded  []byte
	freq    uint8
	on      bool
}

func (r *fakeRadio) SetFrequency(ch uint8) { r.freq = ch; r.calls = append(r.calls, "setfreq") }
func (r *fakeRadio) SetTXPower(p uint8)    { r.calls = append(r.calls, "settxpower") }
func (r *fakeRadio) LoadTX(frame []byte) error {
	r.loaded = frame
	r.calls = append(r.calls, "loadtx")
	return nil
}
func (r *fakeRadio) TXEnable() error { r.on = true; r.calls = append(r.calls, "txenable"); return nil }
func (r *fakeRadio) RXEnable() error { r.on = true; r.calls = append(r.calls, "rxenable"); return nil }
func (r *fakeRadio) Off()            { r.on = false; r.calls = append(r.calls, "off") }

type fakeTimer struct {
	now     uint32
	compare uint32
}

func (t *fakeTimer) NowTicks() uint32            { return t.now }
func (t *fakeTimer) SetCompare(deadline uint32)  { t.compare = deadline }
func (t *fakeTimer) AdjustReference(ticks int16) { t.now = uint32(int64(t.now) + int64(ticks)) }

type fakeSchedule struct {
	cells map[uint16]Cell
}

func (s *fakeSchedule) GetSchedule(slotOffset uint16) (Cell, error) {
	if c, ok := s.cells[slotOffset]; ok {
		return c, nil
	}
	return Cell{Type: CellOff}, nil
}

type fakeIDManager struct {
	id       uint16
	isRoot   bool
}

func (m *fakeIDManager) MyShortID() uint16 { return m.id }
func (m *fakeIDManager) IsDAGRoot() bool   { return m.isRoot }

func TestNewSlotAdvancesASNAndSleepsOnOffCell(t *testing.T) {
	f := New(Config{
		Schedule:        &fakeSchedule{cells: map[uint16]Cell{}},
		Radio:           &fakeRadio{},
		Timer:           &fakeTimer{},
		IDManager:       &fakeIDManager{id: 0x1},
		SlotframeLength: 1,
	})
	cell := f.NewSlot()
	if cell.Type != CellOff {
		t.Fatalf("got cell type %v want CellOff", cell.Type)
	}
	if f.State() != Sleep {
		t.Fatalf("got state %v want Sleep", f.State())
	}
	if f.ASN() != asn.ASN(1) {
		t.Fatalf("got ASN %v want 1", f.ASN())
	}
}

// TestProtocolErrorAtBoundaryForcesAbort verifies that finding the FSM not
// in Sleep at the start of a new slot is treated as a recoverable error:
// it is traced and the FSM is forced back into Sleep.
func TestProtocolErrorAtBoundaryForcesAbort(t *testing.T) {
	f := New(Config{
		Schedule:        &fakeSchedule{cells: map[uint16]Cell{}},
		Radio:           &fakeRadio{},
		Timer:           &fakeTimer{},
		IDManager:       &fakeIDManager{id: 0x1},
		SlotframeLength: 1,
	})
	f.state = TxData // simulate a stuck slot left over from a prior bug
	f.NewSlot()
	if f.State() != Sleep {
		t.Fatalf("got state %v want Sleep after recovery", f.State())
	}
	trace := f.Trace()
	if len(trace) == 0 {
		t.Fatal("expected a trace entry recording the protocol error")
	}
}

func newHappyPathFSM(t *testing.T) (*FSM, *fakeRadio, *fakeTimer, *neighbors.Table) {
	t.Helper()
	hopper := asn.NewHopper(asn.DefaultTemplate, nil, 0)
	table := neighbors.New(4, nil, nil)
	if err := table.IndicateRx(0x2, -70, asn.ASN(0)); err != nil {
		t.Fatalf("seeding neighbor: %v", err)
	}
	radio := &fakeRadio{}
	timer := &fakeTimer{}
	f := New(Config{
		Schedule:        &fakeSchedule{cells: map[uint16]Cell{0: {Type: CellTX, Neighbor: 0x2}}},
		Radio:           radio,
		Timer:           timer,
		IDManager:       &fakeIDManager{id: 0x1},
		Neighbors:       table,
		Hopper:          hopper,
		SlotframeLength: 1,
	})
	return f, radio, timer, table
}

// TestTXHappyPathAcksUpdateNeighborStats drives a full TX/ACK exchange
// through the FSM's four entry points and checks that the neighbor table
// reflects a successful transmission.
func TestTXHappyPathAcksUpdateNeighborStats(t *testing.T) {
	f, radio, _, table := newHappyPathFSM(t)

	dsn, err := f.EnqueueTX(0x2, []byte("hello"), false)
	if err != nil {
		t.Fatalf("EnqueueTX: %v", err)
	}

	f.NewSlot()
	if f.State() != TxDataOffset {
		t.Fatalf("got state %v want TxDataOffset", f.State())
	}

	f.TimerFire() // tt2: load frame
	if f.State() != TxDataReady {
		t.Fatalf("got state %v want TxDataReady", f.State())
	}
	if len(radio.loaded) == 0 {
		t.Fatal("expected a frame to be loaded into the radio")
	}

	f.TimerFire() // tt3: go
	if f.State() != TxDataDelay {
		t.Fatalf("got state %v want TxDataDelay", f.State())
	}

	f.StartOfFrame(0)
	if f.State() != TxData {
		t.Fatalf("got state %v want TxData", f.State())
	}

	f.EndOfFrame(true, nil, 0)
	if f.State() != RxAckOffset {
		t.Fatalf("got state %v want RxAckOffset", f.State())
	}

	f.TimerFire() // tt5: arm ACK receiver
	if f.State() != RxAckListen {
		t.Fatalf("got state %v want RxAckListen", f.State())
	}

	f.StartOfFrame(0)
	if f.State() != RxAck {
		t.Fatalf("got state %v want RxAck", f.State())
	}

	ack := AckFrame{Dst: 0x1, Src: 0x2, DSN: dsn, CorrectionTicks: 3}
	f.EndOfFrame(true, ack.Encode(), 0)

	if f.State() != Sleep {
		t.Fatalf("got state %v want Sleep", f.State())
	}
	e, ok := table.Get(0x2)
	if !ok {
		t.Fatal("neighbor 0x2 disappeared")
	}
	if e.NumTxACK != 1 {
		t.Fatalf("got NumTxACK=%d want 1", e.NumTxACK)
	}
	if e.NumTx == 0 {
		t.Fatal("expected NumTx to be incremented")
	}
}

// TestTXMissingAckFailsAttemptAndSleeps exercises the watchdog path when no
// ACK is heard: the listening window watchdog should fire and return the
// FSM to Sleep without a panic, recording a failed (unacked) attempt.
func TestTXMissingAckFailsAttemptAndSleeps(t *testing.T) {
	f, _, _, table := newHappyPathFSM(t)

	_, err := f.EnqueueTX(0x2, []byte("hello"), false)
	if err != nil {
		t.Fatalf("EnqueueTX: %v", err)
	}

	f.NewSlot()
	f.TimerFire() // tt2
	f.TimerFire() // tt3
	f.StartOfFrame(0)
	f.EndOfFrame(true, nil, 0) // data sent ok
	f.TimerFire()              // tt5: arm ACK receiver -> RxAckListen
	f.TimerFire()              // watchdog: no ACK heard

	if f.State() != Sleep {
		t.Fatalf("got state %v want Sleep", f.State())
	}
	e, _ := table.Get(0x2)
	if e.NumTxACK != 0 {
		t.Fatalf("got NumTxACK=%d want 0 (no ack heard)", e.NumTxACK)
	}
	if e.NumTx == 0 {
		t.Fatal("expected the failed attempt to still be counted")
	}
}

// TestRXHappyPathDeliversPayloadAndAcks drives the receive-side state
// sequence and checks the payload callback fires and an ACK is sent back.
func TestRXHappyPathDeliversPayloadAndAcks(t *testing.T) {
	hopper := asn.NewHopper(asn.DefaultTemplate, nil, 0)
	table := neighbors.New(4, nil, nil)
	radio := &fakeRadio{}

	var gotSrc uint16
	var gotPayload []byte
	f := New(Config{
		Schedule:        &fakeSchedule{cells: map[uint16]Cell{0: {Type: CellRX}}},
		Radio:           radio,
		Timer:           &fakeTimer{},
		IDManager:       &fakeIDManager{id: 0x1},
		Neighbors:       table,
		Hopper:          hopper,
		SlotframeLength: 1,
		OnRxData: func(src uint16, payload []byte) {
			gotSrc, gotPayload = src, payload
		},
	})

	f.NewSlot()
	if f.State() != RxDataOffset {
		t.Fatalf("got state %v want RxDataOffset", f.State())
	}
	f.TimerFire() // rt2: arm receiver
	if f.State() != RxDataListen {
		t.Fatalf("got state %v want RxDataListen", f.State())
	}
	f.StartOfFrame(5)
	if f.State() != RxData {
		t.Fatalf("got state %v want RxData", f.State())
	}

	frame := DataFrame{Dst: 0x1, Src: 0x2, DSN: 7, Payload: []byte("hi there")}
	f.EndOfFrame(true, frame.Encode(), -60)

	if f.State() != TxAckOffset {
		t.Fatalf("got state %v want TxAckOffset", f.State())
	}
	if gotSrc != 0x2 || string(gotPayload) != "hi there" {
		t.Fatalf("got src=%#x payload=%q", gotSrc, gotPayload)
	}

	f.TimerFire() // rt5: load ack
	if f.State() != TxAckReady {
		t.Fatalf("got state %v want TxAckReady", f.State())
	}
	if len(radio.loaded) == 0 {
		t.Fatal("expected an ACK frame to be loaded")
	}

	f.TimerFire() // go
	if f.State() != TxAckDelay {
		t.Fatalf("got state %v want TxAckDelay", f.State())
	}
	f.StartOfFrame(0)
	if f.State() != TxAck {
		t.Fatalf("got state %v want TxAck", f.State())
	}
	f.EndOfFrame(true, nil, 0)
	if f.State() != Sleep {
		t.Fatalf("got state %v want Sleep", f.State())
	}

	e, ok := table.Get(0x2)
	if !ok || e.NumRx != 1 {
		t.Fatalf("expected neighbor 0x2 to show NumRx=1, got %+v ok=%v", e, ok)
	}
}
