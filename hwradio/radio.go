// Copyright 2026 by the tsch6 authors, see LICENSE file

// Package hwradio is a periph.io-backed slotfsm.Radio implementation for a
// SPI-attached IEEE 802.15.4 transceiver (SX1276/SX1231-class hardware),
// adapted from the register-level driver pattern in sx1276.Radio: a
// mutex-guarded SPI connection, an interrupt pin watched from a dedicated
// goroutine, and a small LogPrintf hook rather than panics on hardware
// errors.
package hwradio

import (
	"fmt"
	"sync"
	"time"

	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/spi"

	"github.com/tve/tsch6/internal/tsch6log"
)

// register addresses on the transceiver's control interface. The exact
// layout is hardware-specific; these are the handful this driver touches.
const (
	regMode    = 0x01
	regFreqMSB = 0x06
	regFreqMid = 0x07
	regFreqLSB = 0x08
	regPAConf  = 0x09
	regFIFO    = 0x00
)

const (
	modeSleep = 0x00
	modeTX    = 0x03
	modeRX    = 0x05
)

// fXosc is the crystal frequency used to convert a target RF frequency into
// the 24-bit frequency register word (Hz), matching the SX127x/SX123x
// Fstep = Fxosc / 2^19 convention.
const fXosc = 32000000

// FrameSink receives the radio's SFD and end-of-frame events; *slotfsm.FSM
// satisfies this.
type FrameSink interface {
	StartOfFrame(capturedTime uint32)
	EndOfFrame(ok bool, rx []byte, rssi int8)
}

// Radio drives a single SPI-attached transceiver.
type Radio struct {
	mu      sync.Mutex
	conn    spi.Conn
	irq     gpio.PinIn
	log     tsch6log.Printf
	sink    FrameSink
	stopped chan struct{}

	mode     byte
	rxBuf    []byte
	loadedTX []byte
}

// Opts configures a new Radio.
type Opts struct {
	Conn   spi.Conn   // SPI connection to the transceiver
	IRQ    gpio.PinIn // interrupt pin, signals SFD and end-of-frame
	Sink   FrameSink  // receives StartOfFrame/EndOfFrame callbacks
	Logger tsch6log.Printf
}

// New configures the interrupt pin and starts the watcher goroutine.
func New(opts Opts) (*Radio, error) {
	if err := opts.IRQ.In(gpio.PullDown, gpio.RisingEdge); err != nil {
		return nil, fmt.Errorf("hwradio: configuring IRQ pin: %w", err)
	}
	r := &Radio{
		conn:    opts.Conn,
		irq:     opts.IRQ,
		sink:    opts.Sink,
		log:     tsch6log.Tagged(opts.Logger, "hwradio"),
		stopped: make(chan struct{}),
	}
	go r.watchIRQ()
	return r, nil
}

// Close stops the interrupt watcher goroutine.
func (r *Radio) Close() { close(r.stopped) }

func (r *Radio) writeReg(addr, val byte) error {
	w := []byte{addr | 0x80, val}
	rd := make([]byte, len(w))
	return r.conn.Tx(w, rd)
}

func (r *Radio) readReg(addr byte) (byte, error) {
	w := []byte{addr & 0x7f, 0x00}
	rd := make([]byte, len(w))
	if err := r.conn.Tx(w, rd); err != nil {
		return 0, err
	}
	return rd[1], nil
}

// SetFrequency tunes to the IEEE 802.15.4 channel (11-26): center frequency
// 2405 + 5*(channel-11) MHz. Channels outside 11-26 are not remapped; the
// same formula is applied to them.
func (r *Radio) SetFrequency(channel uint8) {
	r.mu.Lock()
	defer r.mu.Unlock()
	hz := uint64(2405+5*(int(channel)-11)) * 1000000
	word := hz * (1 << 19) / fXosc
	if err := r.writeReg(regFreqMSB, byte(word>>16)); err != nil {
		r.log("SetFrequency: %v", err)
		return
	}
	if err := r.writeReg(regFreqMid, byte(word>>8)); err != nil {
		r.log("SetFrequency: %v", err)
		return
	}
	if err := r.writeReg(regFreqLSB, byte(word)); err != nil {
		r.log("SetFrequency: %v", err)
	}
}

// SetTXPower writes the PA output power register, 0-31 per §3's TxPower.
func (r *Radio) SetTXPower(power uint8) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if power > 31 {
		power = 31
	}
	if err := r.writeReg(regPAConf, 0x80|power); err != nil {
		r.log("SetTXPower: %v", err)
	}
}

// LoadTX writes frame into the radio's TX FIFO.
func (r *Radio) LoadTX(frame []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	buf := append([]byte{regFIFO | 0x80}, frame...)
	rd := make([]byte, len(buf))
	if err := r.conn.Tx(buf, rd); err != nil {
		return fmt.Errorf("hwradio: LoadTX: %w", err)
	}
	r.loadedTX = frame
	return nil
}

// TXEnable switches the transceiver to transmit mode; the IRQ line will
// fire StartOfFrame once the preamble goes out, then EndOfFrame once the
// loaded frame has been fully clocked out.
func (r *Radio) TXEnable() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.writeReg(regMode, modeTX); err != nil {
		return fmt.Errorf("hwradio: TXEnable: %w", err)
	}
	r.mode = modeTX
	return nil
}

// RXEnable switches the transceiver to receive mode.
func (r *Radio) RXEnable() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.writeReg(regMode, modeRX); err != nil {
		return fmt.Errorf("hwradio: RXEnable: %w", err)
	}
	r.mode = modeRX
	r.rxBuf = nil
	return nil
}

// Off puts the transceiver into its lowest-power sleep mode.
func (r *Radio) Off() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.writeReg(regMode, modeSleep); err != nil {
		r.log("Off: %v", err)
	}
	r.mode = modeSleep
}

// watchIRQ blocks on the interrupt pin and dispatches SFD/end-of-frame
// events to the configured sink, mirroring the interrupt-driven design of
// sx1276.Radio's rx/tx goroutines.
func (r *Radio) watchIRQ() {
	for {
		select {
		case <-r.stopped:
			return
		default:
		}
		if !r.irq.WaitForEdge(time.Second) {
			continue
		}
		r.mu.Lock()
		mode := r.mode
		r.mu.Unlock()
		switch mode {
		case modeTX:
			r.sink.StartOfFrame(uint32(time.Now().UnixNano() / 1000))
			r.sink.EndOfFrame(true, nil, 0)
		case modeRX:
			capturedAt := uint32(time.Now().UnixNano() / 1000)
			r.sink.StartOfFrame(capturedAt)
			payload, rssi, err := r.readRxFIFO()
			if err != nil {
				r.log("readRxFIFO: %v", err)
				r.sink.EndOfFrame(false, nil, 0)
				continue
			}
			r.sink.EndOfFrame(true, payload, rssi)
		}
	}
}

func (r *Radio) readRxFIFO() ([]byte, int8, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	lenReg, err := r.readReg(regFIFO)
	if err != nil {
		return nil, 0, err
	}
	buf := make([]byte, int(lenReg))
	for i := range buf {
		b, err := r.readReg(regFIFO)
		if err != nil {
			return nil, 0, err
		}
		buf[i] = b
	}
	return buf, 0, nil
}
