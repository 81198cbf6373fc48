// Copyright 2026 by the tsch6 authors, see LICENSE file

// Package macstats compactly serializes a slotfsm.Stats block for a
// host-side debug dump, reusing the signed varint codec the teacher corpus
// uses for its own sensor sample streams, and implements the blacklist
// update policy left unspecified by the design: a channel is added to a
// neighbor's current blacklist once its rolling packet-reception-ratio
// estimate falls below a configurable floor.
package macstats

import (
	"fmt"

	"github.com/tve/tsch6/neighbors"
	"github.com/tve/tsch6/slotfsm"
	"github.com/tve/tsch6/varint"
)

// Encode packs a Stats snapshot into a compact varint byte stream, one
// field per int in source-declaration order.
func Encode(s slotfsm.Stats) []byte {
	return varint.Encode([]int{
		int(s.NumSyncPkt),
		int(s.NumSyncAck),
		int(s.MinCorrection),
		int(s.MaxCorrection),
		int(s.NumDeSync),
		int(s.NumTicsOn),
		int(s.NumTicsTotal),
	})
}

const numStatsFields = 7

// Decode is the inverse of Encode.
func Decode(buf []byte) (slotfsm.Stats, error) {
	vals := varint.Decode(buf)
	if len(vals) != numStatsFields {
		return slotfsm.Stats{}, fmt.Errorf("macstats: got %d fields want %d", len(vals), numStatsFields)
	}
	return slotfsm.Stats{
		NumSyncPkt:    uint32(vals[0]),
		NumSyncAck:    uint32(vals[1]),
		MinCorrection: int16(vals[2]),
		MaxCorrection: int16(vals[3]),
		NumDeSync:     uint32(vals[4]),
		NumTicsOn:     uint32(vals[5]),
		NumTicsTotal:  uint32(vals[6]),
	}, nil
}

// ChannelPRR is a neighbor's rolling packet-reception-ratio estimate for one
// physical channel, updated by the caller from ACK/NACK outcomes observed
// on that channel.
type ChannelPRR struct {
	Channel uint8
	PRR     float64 // 0..1
}

// DefaultPRRFloor is the threshold below which a channel is considered bad
// enough to blacklist.
const DefaultPRRFloor = 0.5

// BlacklistUpdater recomputes a neighbor's currentBlacklist bit mask from
// per-channel PRR samples against a configurable floor.
type BlacklistUpdater struct {
	Floor float64
}

// NewBlacklistUpdater returns an updater using DefaultPRRFloor.
func NewBlacklistUpdater() *BlacklistUpdater {
	return &BlacklistUpdater{Floor: DefaultPRRFloor}
}

// Update computes the new 16-bit channel mask (bit i set means channel i is
// blacklisted) from the given samples and writes it into the neighbor
// table entry for addr.
func (u *BlacklistUpdater) Update(table *neighbors.Table, addr neighbors.ShortID, samples []ChannelPRR) error {
	floor := u.Floor
	if floor == 0 {
		floor = DefaultPRRFloor
	}
	var mask uint16
	for _, s := range samples {
		if s.Channel >= 16 {
			continue
		}
		if s.PRR < floor {
			mask |= 1 << s.Channel
		}
	}
	return table.SetCurrentBlacklist(addr, mask)
}
