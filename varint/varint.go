// Copyright 2026 by the tsch6 authors, see LICENSE file

// Package varint is a signed, self-terminating varint codec, adapted from
// the JeeLabs-derived sensor-sample encoding in github.com/tve/devices's own
// varint package: macstats reuses it to compact a Stats snapshot into a
// small debug blob instead of a fixed-width struct dump.
package varint

// Encode packs values into a byte stream: each int is zigzag-mapped to an
// unsigned word, then emitted 7 bits at a time, most-significant chunk
// first, with the high bit of the last byte of each value set as a
// terminator.
//
// Reference: http://jeelabs.org/article/1620c/
func Encode(values []int) []byte {
	out := make([]byte, 0, len(values))
	for _, v := range values {
		if v == 0 {
			out = append(out, 0x80)
			continue
		}
		u := uint64(v << 1)
		if v < 0 {
			u = ^u
		}
		var tmp [10]byte
		i := 9
		for ; u != 0; u >>= 7 {
			tmp[i] = byte(u & 0x7f)
			i--
		}
		tmp[9] |= 0x80
		out = append(out, tmp[i+1:]...)
	}
	return out
}

// Decode is the inverse of Encode.
func Decode(buf []byte) []int {
	out := make([]int, 0, len(buf))
	val := 0
	for _, b := range buf {
		val = (val << 7) | int(b&0x7f)
		if b&0x80 == 0 {
			continue
		}
		if val&1 == 0 {
			val = int(uint64(val) >> 1)
		} else {
			val = int(^(uint64(val) >> 1))
		}
		out = append(out, val)
		val = 0
	}
	return out
}
