// Copyright 2026 by the tsch6 authors, see LICENSE file

// Package asn implements the absolute slot number counter and the ASN-driven
// channel hopping algorithm (component C1 of the TSCH link layer): a 40-bit
// monotonic slot counter plus the (ASN, channelOffset) -> physical channel
// mapping used by every TX/RX cell, and the slower hopping sequence an
// unsynchronized node uses while listening for beacons.
package asn

import "fmt"

// NumTemplateEntries is the size of the per-slot channel hopping template.
const NumTemplateEntries = 16

// ASN is the 40-bit absolute slot number: the count of elapsed slots since
// network genesis. It wraps only in theory (>1000 years at 15ms/slot).
type ASN uint64

const mask40 = (uint64(1) << 40) - 1

// Advance returns the ASN incremented by one slot, wrapping at 2^40.
func (a ASN) Advance() ASN {
	return ASN((uint64(a) + 1) & mask40)
}

// SlotOffset returns ASN mod slotframeLength, the index into the schedule.
func (a ASN) SlotOffset(slotframeLength uint16) uint16 {
	if slotframeLength == 0 {
		return 0
	}
	return uint16(uint64(a) % uint64(slotframeLength))
}

// DiffSlots returns the number of slots elapsed from earlier to a, assuming
// a is not older than earlier (mod 2^40). Used for desync/timeout accounting.
func (a ASN) DiffSlots(earlier ASN) uint64 {
	return (uint64(a) - uint64(earlier)) & mask40
}

// Bytes serializes the ASN into the wire representation used by the Sync IE:
// 5 little-endian bytes, {bytes0and1, bytes2and3, byte4}.
func (a ASN) Bytes() [5]byte {
	v := uint64(a) & mask40
	return [5]byte{
		byte(v),
		byte(v >> 8),
		byte(v >> 16),
		byte(v >> 24),
		byte(v >> 32),
	}
}

// FromBytes is the inverse of Bytes; it is a bijection with the ASN value
// space (values above 2^40-1 cannot be represented and are masked away).
func FromBytes(b [5]byte) ASN {
	v := uint64(b[0]) | uint64(b[1])<<8 | uint64(b[2])<<16 | uint64(b[3])<<24 | uint64(b[4])<<32
	return ASN(v & mask40)
}

func (a ASN) String() string {
	return fmt.Sprintf("%#010x", uint64(a))
}

// Template is the 16-entry channel hopping template mapping a hop index to a
// physical IEEE 802.15.4 channel number (11-26).
type Template [NumTemplateEntries]uint8

// DefaultTemplate is the sequence used throughout the test scenarios in this
// spec; integrators may supply their own via NewHopper.
var DefaultTemplate = Template{16, 17, 23, 18, 26, 15, 25, 22, 19, 11, 12, 13, 24, 14, 20, 21}

// Hopper maps (ASN, channelOffset) to a physical channel for data cells, and
// separately walks a slow-hopping EB listen template for unsynchronized
// nodes.
type Hopper struct {
	template   Template
	ebTemplate []uint8 // chTemplateEB, arbitrary length N_EB
	ebPeriod   uint32  // EB_SLOWHOPPING_PERIOD, in slots
}

// DefaultEBSlowHoppingPeriod is EB_SLOWHOPPING_PERIOD from the design: an
// unsynchronized node changes its listen channel every 500 slots.
const DefaultEBSlowHoppingPeriod = 500

// NewHopper builds a Hopper from a 16-entry data template and a (possibly
// shorter) EB listen template. ebPeriod of 0 defaults to
// DefaultEBSlowHoppingPeriod.
func NewHopper(template Template, ebTemplate []uint8, ebPeriod uint32) *Hopper {
	if ebPeriod == 0 {
		ebPeriod = DefaultEBSlowHoppingPeriod
	}
	cp := make([]uint8, len(ebTemplate))
	copy(cp, ebTemplate)
	return &Hopper{template: template, ebTemplate: cp, ebPeriod: ebPeriod}
}

// Channel returns chTemplate[(ASN + channelOffset) mod 16].
func (h *Hopper) Channel(a ASN, channelOffset uint8) uint8 {
	idx := (uint64(a) + uint64(channelOffset)) % NumTemplateEntries
	return h.template[idx]
}

// EBChannel returns the listen channel an unsynchronized node should be on
// at the given slot counter, stepping through chTemplateEB every ebPeriod
// slots so that it eventually coincides with a beacon sender's channel.
func (h *Hopper) EBChannel(slotCounter uint64) uint8 {
	if len(h.ebTemplate) == 0 {
		return SynchronizingChannel
	}
	idx := (slotCounter / uint64(h.ebPeriod)) % uint64(len(h.ebTemplate))
	return h.ebTemplate[idx]
}

// SynchronizingChannel is the fixed channel used when no EB template has
// been configured (SYNCHRONIZING_CHANNEL = 25 from §6).
const SynchronizingChannel = 25
