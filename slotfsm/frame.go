package slotfsm

import (
	"fmt"

	"github.com/tve/tsch6/ie"
)

// Wire layout of the frames this layer exchanges. These are plain MAC
// header fields (not Information Elements); the only IEs on the wire are
// the ACK's time-correction header IE and, for beacons, the MLME payload IE
// assembled by package beacon.

// DataFrame is the header+payload of a unicast or broadcast data frame.
type DataFrame struct {
	Dst     uint16
	Src     uint16
	DSN     uint8
	NoAck   bool
	Payload []byte
}

const dataFrameHeaderLen = 6

// Encode serializes the frame: dst(2) src(2) dsn(1) flags(1) payload...,
// little-endian.
func (f DataFrame) Encode() []byte {
	buf := make([]byte, dataFrameHeaderLen+len(f.Payload))
	buf[0] = byte(f.Dst)
	buf[1] = byte(f.Dst >> 8)
	buf[2] = byte(f.Src)
	buf[3] = byte(f.Src >> 8)
	buf[4] = f.DSN
	if f.NoAck {
		buf[5] = 0x01
	}
	copy(buf[dataFrameHeaderLen:], f.Payload)
	return buf
}

// DecodeDataFrame parses a DataFrame from buf.
func DecodeDataFrame(buf []byte) (DataFrame, error) {
	if len(buf) < dataFrameHeaderLen {
		return DataFrame{}, fmt.Errorf("slotfsm: data frame too short: %d bytes", len(buf))
	}
	return DataFrame{
		Dst:     uint16(buf[0]) | uint16(buf[1])<<8,
		Src:     uint16(buf[2]) | uint16(buf[3])<<8,
		DSN:     buf[4],
		NoAck:   buf[5]&0x01 != 0,
		Payload: append([]byte(nil), buf[dataFrameHeaderLen:]...),
	}, nil
}

// AckFrame is the header+IE content of an acknowledgment frame: the
// ACK/NACK time-correction header IE (§4.2), plus an optional piggybacked
// blacklist channel mask (§4.3).
type AckFrame struct {
	Dst             uint16
	Src             uint16
	DSN             uint8
	CorrectionTicks int16
	Blacklist       *uint16
}

const ackFrameHeaderLen = 6

// Encode serializes the frame: dst(2) src(2) dsn(1) flags(1) + time
// correction header IE + optional 2-byte blacklist.
func (f AckFrame) Encode() []byte {
	buf := make([]byte, ackFrameHeaderLen)
	buf[0] = byte(f.Dst)
	buf[1] = byte(f.Dst >> 8)
	buf[2] = byte(f.Src)
	buf[3] = byte(f.Src >> 8)
	buf[4] = f.DSN
	if f.Blacklist != nil {
		buf[5] = 0x01
	}
	buf = append(buf, ie.EncodeTimeCorrection(f.CorrectionTicks)...)
	if f.Blacklist != nil {
		b := *f.Blacklist
		buf = append(buf, byte(b), byte(b>>8))
	}
	return buf
}

// DecodeAckFrame parses an AckFrame from buf.
func DecodeAckFrame(buf []byte) (AckFrame, error) {
	if len(buf) < ackFrameHeaderLen {
		return AckFrame{}, fmt.Errorf("slotfsm: ack frame too short: %d bytes", len(buf))
	}
	f := AckFrame{
		Dst: uint16(buf[0]) | uint16(buf[1])<<8,
		Src: uint16(buf[2]) | uint16(buf[3])<<8,
		DSN: buf[4],
	}
	hasBlacklist := buf[5]&0x01 != 0
	rest := buf[ackFrameHeaderLen:]
	corr, n, err := ie.DecodeTimeCorrection(rest)
	if err != nil {
		return AckFrame{}, fmt.Errorf("slotfsm: ack frame: %w", err)
	}
	f.CorrectionTicks = corr
	rest = rest[n:]
	if hasBlacklist {
		if len(rest) < 2 {
			return AckFrame{}, fmt.Errorf("slotfsm: ack frame: truncated blacklist")
		}
		b := uint16(rest[0]) | uint16(rest[1])<<8
		f.Blacklist = &b
	}
	return f, nil
}
