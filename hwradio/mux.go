// Copyright 2026 by the tsch6 authors, see LICENSE file

package hwradio

import (
	"errors"
	"sync"

	"periph.io/x/periph/conn"
	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/spi"
)

// muxConn is an SPI connection to one of two devices sharing a single chip
// select line through an external demux, adapted from spimux.Conn: the
// Tx method sets the demux select pin before every transaction. Used by
// the dual-radio hardware configuration, where a data radio and a
// dedicated EB-listen radio share one SPI bus.
type muxConn struct {
	mu     *sync.Mutex
	conn   *spi.Conn
	port   spi.Port
	selPin gpio.PinIO
	sel    gpio.Level
}

// NewMux returns the two connections for a shared SPI bus: dataConn
// selects the data radio (select pin Low), ebConn selects the EB-listen
// radio (select pin High).
func NewMux(port spi.PortCloser, selPin gpio.PinIO) (dataConn, ebConn *muxConn) {
	mu := sync.Mutex{}
	var shared spi.Conn
	return &muxConn{&mu, &shared, port, selPin, gpio.Low},
		&muxConn{&mu, &shared, port, selPin, gpio.High}
}

func (c *muxConn) DevParams(maxHz int64, mode spi.Mode, bits int) (spi.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if *c.conn == nil {
		conn, err := c.port.DevParams(maxHz, mode, bits)
		if err != nil {
			return nil, err
		}
		*c.conn = conn
	}
	return c, nil
}

func (c *muxConn) Tx(w, r []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selPin.Out(c.sel)
	return (*c.conn).Tx(w, r)
}

func (c *muxConn) Close() error { return nil }

func (c *muxConn) Duplex() conn.Duplex { return conn.Full }

func (c *muxConn) TxPackets(p []spi.Packet) error {
	return errors.New("hwradio: TxPackets is not implemented on a muxed connection")
}

func (c *muxConn) LimitSpeed(maxHz int64) error {
	return errors.New("hwradio: LimitSpeed is not implemented on a muxed connection")
}

var _ spi.Conn = &muxConn{}
var _ spi.PortCloser = &muxConn{}
