// Copyright 2026 by the tsch6 authors, see LICENSE file

// Package simradio is a software-simulated slotfsm.Radio for a shared
// medium of two or more nodes, used by cmd/tschsim and by tests that need
// more than one FSM exchanging real frames without real radio hardware.
// It mirrors the asynchronous callback contract real radio drivers in this
// corpus use (TXEnable/RXEnable arm the transfer and return immediately;
// StartOfFrame/EndOfFrame fire later from a separate goroutine, standing in
// for an IRQ handler) but delivers frames in-process instead of over SPI.
package simradio

import "sync"

const (
	modeOff = iota
	modeRX
)

// FrameSink receives a radio's SFD and end-of-frame events; *slotfsm.FSM
// satisfies this.
type FrameSink interface {
	StartOfFrame(capturedTime uint32)
	EndOfFrame(ok bool, rx []byte, rssi int8)
}

// Medium is a shared broadcast domain: every Radio registered on it can
// hear every other Radio tuned to the same frequency while in RX mode.
type Medium struct {
	mu     sync.Mutex
	radios []*Radio
}

// NewMedium returns an empty shared medium.
func NewMedium() *Medium { return &Medium{} }

// Radio is one node's simulated transceiver on a Medium.
type Radio struct {
	medium *Medium
	sink   FrameSink
	rssi   int8 // RSSI reported to a listener hearing this radio's TX

	mu    sync.Mutex
	mode  int
	freq  uint8
	tx    []byte
}

// NewRadio registers a new Radio on medium, delivering events to sink. rssi
// is the signal strength this radio appears at to any listener (a crude
// stand-in for a real path-loss model).
func (m *Medium) NewRadio(sink FrameSink, rssi int8) *Radio {
	r := &Radio{medium: m, sink: sink, rssi: rssi}
	m.mu.Lock()
	m.radios = append(m.radios, r)
	m.mu.Unlock()
	return r
}

// SetSink installs sink after construction, for callers that must create
// the radio before its eventual sink exists (e.g. a *slotfsm.FSM or
// *node.Node that in turn needs the radio in its own constructor).
func (r *Radio) SetSink(sink FrameSink) {
	r.mu.Lock()
	r.sink = sink
	r.mu.Unlock()
}

// SetFrequency implements slotfsm.Radio.
func (r *Radio) SetFrequency(channel uint8) {
	r.mu.Lock()
	r.freq = channel
	r.mu.Unlock()
}

// SetTXPower implements slotfsm.Radio; power has no effect in the ideal
// shared medium model.
func (r *Radio) SetTXPower(power uint8) {}

// LoadTX implements slotfsm.Radio.
func (r *Radio) LoadTX(frame []byte) error {
	r.mu.Lock()
	r.tx = append([]byte(nil), frame...)
	r.mu.Unlock()
	return nil
}

// TXEnable arms the transmit and returns immediately; delivery to every
// other radio on the medium currently in RX mode at the same frequency,
// and the StartOfFrame/EndOfFrame callbacks into this radio's own sink,
// happen on a separate goroutine. This mirrors a real radio driver, whose
// TXEnable only starts the SPI transfer and whose IRQ-driven callbacks
// fire later from a different goroutine (see package hwradio) — a sink
// that is itself a *slotfsm.FSM relies on this to avoid re-entering its
// own critical section from within the very call that armed the radio.
func (r *Radio) TXEnable() error {
	r.mu.Lock()
	frame, freq, txSink := r.tx, r.freq, r.sink
	r.mu.Unlock()

	go func() {
		if txSink != nil {
			txSink.StartOfFrame(0)
		}

		r.medium.mu.Lock()
		type listener struct {
			sink FrameSink
			rssi int8
		}
		listeners := make([]listener, 0, len(r.medium.radios))
		for _, other := range r.medium.radios {
			if other == r {
				continue
			}
			other.mu.Lock()
			if other.mode == modeRX && other.freq == freq {
				listeners = append(listeners, listener{other.sink, r.rssi})
			}
			other.mu.Unlock()
		}
		r.medium.mu.Unlock()

		for _, l := range listeners {
			if l.sink != nil {
				l.sink.StartOfFrame(0)
				l.sink.EndOfFrame(true, frame, l.rssi)
			}
		}

		if txSink != nil {
			txSink.EndOfFrame(true, nil, 0)
		}
	}()
	return nil
}

// RXEnable implements slotfsm.Radio: arms this radio to receive any TX
// delivered to it on the current frequency.
func (r *Radio) RXEnable() error {
	r.mu.Lock()
	r.mode = modeRX
	r.mu.Unlock()
	return nil
}

// Off implements slotfsm.Radio.
func (r *Radio) Off() {
	r.mu.Lock()
	r.mode = modeOff
	r.mu.Unlock()
}
