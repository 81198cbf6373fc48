// Copyright 2026 by the tsch6 authors, see LICENSE file

// Package ie implements component C2: encode/decode for the IEEE 802.15.4e
// Header and Payload Information Elements used by this link layer, plus the
// MLME sub-IEs carried inside an Enhanced Beacon's payload IE (Sync,
// Slotframe-and-Link, Timeslot, Channel-Hopping) and the ACK/NACK
// time-correction header IE.
//
// All multi-byte fields are little-endian on the wire; offsets into the
// buffer are byte-exact and independent of host alignment.
package ie

import "fmt"

// Header IE element IDs recognized by this layer.
const (
	ElementTimeCorrection = 0x1E // ACK/NACK time correction header IE
)

// Payload IE group IDs.
const (
	GroupMLME = 0x01
)

// MLME sub-IE sub-IDs.
const (
	SubSyncIE           = 0x1A
	SubSlotframeAndLink = 0x1B
	SubTimeslot         = 0x1C
	SubChannelHopping   = 0x09
)

// EncodeHeaderIE encodes a Header IE: 16-bit little-endian descriptor with
// length[6:0], elementID[14:7], type bit (bit 15) cleared, followed by
// content.
func EncodeHeaderIE(elementID uint8, content []byte) []byte {
	length := len(content)
	desc := uint16(length&0x7F) | uint16(elementID&0xFF)<<7
	// type bit 15 = 0 for header IE
	buf := make([]byte, 2+length)
	buf[0] = byte(desc)
	buf[1] = byte(desc >> 8)
	copy(buf[2:], content)
	return buf
}

// DecodeHeaderIE parses one Header IE from the front of buf and returns the
// elementID, its content, and the number of bytes consumed.
func DecodeHeaderIE(buf []byte) (elementID uint8, content []byte, consumed int, err error) {
	if len(buf) < 2 {
		return 0, nil, 0, fmt.Errorf("ie: header IE too short: %d bytes", len(buf))
	}
	desc := uint16(buf[0]) | uint16(buf[1])<<8
	if desc&0x8000 != 0 {
		return 0, nil, 0, fmt.Errorf("ie: descriptor %#04x is not a header IE (type bit set)", desc)
	}
	length := int(desc & 0x7F)
	elementID = uint8((desc >> 7) & 0xFF)
	if len(buf) < 2+length {
		return 0, nil, 0, fmt.Errorf("ie: header IE truncated: need %d have %d", 2+length, len(buf))
	}
	content = buf[2 : 2+length]
	return elementID, content, 2 + length, nil
}

// EncodePayloadIE encodes a Payload IE: 16-bit little-endian descriptor with
// length[10:0], groupID[14:11], type bit (bit 15) set, followed by content.
func EncodePayloadIE(groupID uint8, content []byte) []byte {
	length := len(content)
	desc := uint16(0x8000) | uint16(groupID&0x0F)<<11 | uint16(length&0x7FF)
	buf := make([]byte, 2+length)
	buf[0] = byte(desc)
	buf[1] = byte(desc >> 8)
	copy(buf[2:], content)
	return buf
}

// DecodePayloadIE parses one Payload IE from the front of buf.
func DecodePayloadIE(buf []byte) (groupID uint8, content []byte, consumed int, err error) {
	if len(buf) < 2 {
		return 0, nil, 0, fmt.Errorf("ie: payload IE too short: %d bytes", len(buf))
	}
	desc := uint16(buf[0]) | uint16(buf[1])<<8
	if desc&0x8000 == 0 {
		return 0, nil, 0, fmt.Errorf("ie: descriptor %#04x is not a payload IE (type bit clear)", desc)
	}
	length := int(desc & 0x7FF)
	groupID = uint8((desc >> 11) & 0x0F)
	if len(buf) < 2+length {
		return 0, nil, 0, fmt.Errorf("ie: payload IE truncated: need %d have %d", 2+length, len(buf))
	}
	content = buf[2 : 2+length]
	return groupID, content, 2 + length, nil
}

// EncodeSubIE encodes one MLME sub-IE descriptor+content. long selects the
// long form (11-bit length, 4-bit subID) vs the short form (8-bit length,
// 7-bit subID); callers must pick long when the content exceeds 255 bytes.
// The long form keeps only the low 4 bits of subID.
func EncodeSubIE(subID uint8, content []byte, long bool) []byte {
	length := len(content)
	var desc uint16
	if long {
		desc = uint16(0x8000) | uint16(subID&0x0F)<<11 | uint16(length&0x7FF)
	} else {
		desc = uint16(subID&0x7F)<<8 | uint16(length&0xFF)
	}
	buf := make([]byte, 2+length)
	buf[0] = byte(desc)
	buf[1] = byte(desc >> 8)
	copy(buf[2:], content)
	return buf
}

// DecodeSubIE parses one MLME sub-IE from the front of buf.
func DecodeSubIE(buf []byte) (subID uint8, content []byte, consumed int, err error) {
	if len(buf) < 2 {
		return 0, nil, 0, fmt.Errorf("ie: sub-IE too short: %d bytes", len(buf))
	}
	desc := uint16(buf[0]) | uint16(buf[1])<<8
	var length int
	if desc&0x8000 != 0 {
		length = int(desc & 0x7FF)
		subID = uint8((desc >> 11) & 0x0F)
	} else {
		length = int(desc & 0xFF)
		subID = uint8((desc >> 8) & 0x7F)
	}
	if len(buf) < 2+length {
		return 0, nil, 0, fmt.Errorf("ie: sub-IE truncated: need %d have %d", 2+length, len(buf))
	}
	content = buf[2 : 2+length]
	return subID, content, 2 + length, nil
}

// IterateSubIEs walks every sub-IE packed back-to-back in buf, calling fn
// with each subID and its content. A malformed trailing sub-IE is reported
// as an error but sub-IEs already seen are not undone; an unrecognized subID
// is the caller's decision to skip, matching the "unexpected IE elements are
// skipped" error policy.
func IterateSubIEs(buf []byte, fn func(subID uint8, content []byte) error) error {
	for len(buf) > 0 {
		subID, content, n, err := DecodeSubIE(buf)
		if err != nil {
			return err
		}
		if err := fn(subID, content); err != nil {
			return err
		}
		buf = buf[n:]
	}
	return nil
}
