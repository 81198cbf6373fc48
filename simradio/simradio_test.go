package simradio

import (
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu      sync.Mutex
	done    chan struct{}
	sofCalls int
	eofOK    []bool
	eofRx    [][]byte
	eofRSSI  []int8
}

func newRecorder() *recorder { return &recorder{done: make(chan struct{}, 8)} }

func (r *recorder) StartOfFrame(capturedTime uint32) {
	r.mu.Lock()
	r.sofCalls++
	r.mu.Unlock()
}

func (r *recorder) EndOfFrame(ok bool, rx []byte, rssi int8) {
	r.mu.Lock()
	r.eofOK = append(r.eofOK, ok)
	r.eofRx = append(r.eofRx, rx)
	r.eofRSSI = append(r.eofRSSI, rssi)
	r.mu.Unlock()
	r.done <- struct{}{}
}

func (r *recorder) waitEndOfFrame(t *testing.T) {
	t.Helper()
	select {
	case <-r.done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for EndOfFrame")
	}
}

func (r *recorder) snapshot() (sofCalls int, eofOK []bool, eofRx [][]byte, eofRSSI []int8) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sofCalls, append([]bool(nil), r.eofOK...), append([][]byte(nil), r.eofRx...), append([]int8(nil), r.eofRSSI...)
}

func TestTXDeliversToListeningRadioOnSameFrequency(t *testing.T) {
	m := NewMedium()
	txSink, rxSink := newRecorder(), newRecorder()
	tx := m.NewRadio(txSink, -60)
	rx := m.NewRadio(rxSink, -60)

	tx.SetFrequency(20)
	rx.SetFrequency(20)
	if err := rx.RXEnable(); err != nil {
		t.Fatalf("RXEnable: %v", err)
	}
	if err := tx.LoadTX([]byte("payload")); err != nil {
		t.Fatalf("LoadTX: %v", err)
	}
	if err := tx.TXEnable(); err != nil {
		t.Fatalf("TXEnable: %v", err)
	}

	txSink.waitEndOfFrame(t)
	rxSink.waitEndOfFrame(t)

	if sof, eofOK, _, _ := txSink.snapshot(); sof != 1 || len(eofOK) != 1 || !eofOK[0] {
		t.Fatalf("sender sink not notified correctly: sof=%d eofOK=%v", sof, eofOK)
	}
	sof, eofOK, eofRx, eofRSSI := rxSink.snapshot()
	if sof != 1 || len(eofOK) != 1 || !eofOK[0] {
		t.Fatalf("receiver sink not notified correctly: sof=%d eofOK=%v", sof, eofOK)
	}
	if string(eofRx[0]) != "payload" {
		t.Fatalf("got payload %q want %q", eofRx[0], "payload")
	}
	if eofRSSI[0] != -60 {
		t.Fatalf("got rssi %d want -60", eofRSSI[0])
	}
}

func TestTXNotDeliveredOnDifferentFrequency(t *testing.T) {
	m := NewMedium()
	txSink, rxSink := newRecorder(), newRecorder()
	tx := m.NewRadio(txSink, -60)
	rx := m.NewRadio(rxSink, -60)

	tx.SetFrequency(20)
	rx.SetFrequency(21)
	rx.RXEnable()
	tx.LoadTX([]byte("payload"))
	tx.TXEnable()

	txSink.waitEndOfFrame(t) // the sender's own SOF/EOF always fire

	if sof, _, _, _ := rxSink.snapshot(); sof != 0 {
		t.Fatalf("expected no delivery across frequencies, got %d calls", sof)
	}
}

func TestTXNotDeliveredWhenListenerOff(t *testing.T) {
	m := NewMedium()
	txSink, rxSink := newRecorder(), newRecorder()
	tx := m.NewRadio(txSink, -60)
	rx := m.NewRadio(rxSink, -60)

	tx.SetFrequency(20)
	rx.SetFrequency(20)
	rx.Off()
	tx.LoadTX([]byte("payload"))
	tx.TXEnable()

	txSink.waitEndOfFrame(t)

	if sof, _, _, _ := rxSink.snapshot(); sof != 0 {
		t.Fatalf("expected no delivery to an off radio, got %d calls", sof)
	}
}
