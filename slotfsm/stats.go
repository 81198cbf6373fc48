package slotfsm

import "github.com/tve/tsch6"

// Stats is the §3 Stats block.
type Stats struct {
	NumSyncPkt    uint32
	NumSyncAck    uint32
	MinCorrection int16
	MaxCorrection int16
	NumDeSync     uint32
	NumTicsOn     uint32
	NumTicsTotal  uint32
}

// recordCorrection folds a correction sample into the min/max tracking.
func (s *Stats) recordCorrection(ticks int16) {
	if s.MinCorrection == 0 && s.MaxCorrection == 0 && s.NumSyncPkt == 0 {
		s.MinCorrection, s.MaxCorrection = ticks, ticks
	} else {
		if ticks < s.MinCorrection {
			s.MinCorrection = ticks
		}
		if ticks > s.MaxCorrection {
			s.MaxCorrection = ticks
		}
	}
	s.NumSyncPkt++
}

// addTicsOn folds ticks of on-air time into the duty-cycle accounting,
// halving both counters in place once numTicsTotal exceeds the ceiling, to
// preserve the duty-cycle ratio (§3).
func (s *Stats) addTicsOn(ticks uint32) {
	s.NumTicsOn += ticks
	if s.NumTicsTotal > tsch6.DutyCycleWindowLimit {
		s.NumTicsOn >>= 1
		s.NumTicsTotal >>= 1
	}
}
