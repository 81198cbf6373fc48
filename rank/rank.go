// Copyright 2026 by the tsch6 authors, see LICENSE file

// Package rank implements component C4: DAG rank computation and preferred
// parent selection over a neighbors.Table.
package rank

import (
	"sync/atomic"

	"github.com/tve/tsch6"
	"github.com/tve/tsch6/internal/tsch6log"
	"github.com/tve/tsch6/neighbors"
)

// Selector recomputes this node's DAGrank and preferred parent from a
// neighbors.Table. Wire Recompute as the table's route-change callback so
// it fires on every EB reception, neighbor removal, or DAG-root change.
type Selector struct {
	myDAGrank atomic.Uint32 // single-word field per the design's atomics note
	table     *neighbors.Table
	isDAGRoot func() bool
	log       tsch6log.Printf
}

// NewSelector returns a Selector starting with myDAGrank = tsch6.MaxDAGRank.
func NewSelector(table *neighbors.Table, isDAGRoot func() bool, log tsch6log.Printf) *Selector {
	if isDAGRoot == nil {
		isDAGRoot = func() bool { return false }
	}
	s := &Selector{table: table, isDAGRoot: isDAGRoot, log: tsch6log.Tagged(log, "rank")}
	s.myDAGrank.Store(tsch6.MaxDAGRank)
	return s
}

// MyDAGrank returns this node's current DAGrank.
func (s *Selector) MyDAGrank() uint16 { return uint16(s.myDAGrank.Load()) }

// DAGRootChanged notifies the selector that the node's DAG-root status may
// have changed, triggering a recomputation.
func (s *Selector) DAGRootChanged() { s.Recompute() }

// Recompute implements §4.4's six-step algorithm. It is safe to call from
// any goroutine.
func (s *Selector) Recompute() {
	if s.isDAGRoot() {
		s.myDAGrank.Store(tsch6.MinHopRankIncrease)
		return
	}

	prevIdx, hadPrev := s.table.ClearAllParentPreference()
	s.myDAGrank.Store(tsch6.MaxDAGRank)

	rows := s.table.Snapshot()
	bestIdx := -1
	var bestTentative uint32 = tsch6.MaxDAGRank

	for i, e := range rows {
		if !e.Used {
			continue
		}
		totalRx := uint32(e.NumRx) + uint32(e.NumTxACK)
		var rankIncrease uint32
		if totalRx == 0 {
			rankIncrease = 2 * tsch6.DefaultLinkCost * tsch6.MinHopRankIncrease
		} else {
			// Computed in a wider integer (uint64) to avoid truncation before
			// reducing back to the rank's uint32 domain.
			wide := uint64(e.NumTx) * 2 * uint64(tsch6.MinHopRankIncrease) / uint64(totalRx)
			rankIncrease = uint32(wide)
		}
		tentative := uint32(e.DAGrank) + rankIncrease

		if tentative < bestTentative && tentative < tsch6.MaxDAGRank {
			bestTentative = tentative
			bestIdx = i
		}
	}

	if bestIdx >= 0 {
		s.myDAGrank.Store(bestTentative)
		s.table.SetPreferred(bestIdx)
	}

	changed := (bestIdx >= 0 && (!hadPrev || bestIdx != prevIdx)) || (bestIdx < 0 && hadPrev)
	if changed {
		s.log("preferred parent changed: prevIdx=%d hadPrev=%v newIdx=%d", prevIdx, hadPrev, bestIdx)
	}
}

// GetPreferredParent returns the preferred parent's short ID, or
// tsch6.BroadcastID if none is preferred and the table is empty. If no
// neighbor is marked preferred but at least one is used, the lowest-rank
// used neighbor is returned as a fallback without performing a rank
// recomputation.
func (s *Selector) GetPreferredParent() uint16 {
	rows := s.table.Snapshot()
	for _, e := range rows {
		if e.IsPreferred() {
			return e.ShortID
		}
	}
	bestIdx := -1
	var bestRank uint32 = tsch6.MaxDAGRank + 1
	for i, e := range rows {
		if e.Used && uint32(e.DAGrank) < bestRank {
			bestRank = uint32(e.DAGrank)
			bestIdx = i
		}
	}
	if bestIdx < 0 {
		return tsch6.BroadcastID
	}
	return rows[bestIdx].ShortID
}
