// Copyright 2026 by the tsch6 authors, see LICENSE file

// Package neighbors implements component C3: the bounded neighbor table
// with link statistics, rank, stability hysteresis, and the per-neighbor
// blacklist exchange protocol that piggybacks a channel mask on ACKs.
//
// Every table mutation is bracketed by a critsec.Section because the slot
// FSM drives indicateRx/indicateTx/blacklist updates partly from interrupt
// context, per §5 of the design.
package neighbors

import (
	"fmt"

	"github.com/tve/tsch6"
	"github.com/tve/tsch6/asn"
	"github.com/tve/tsch6/internal/critsec"
	"github.com/tve/tsch6/internal/errkind"
	"github.com/tve/tsch6/internal/tsch6log"
)

// ShortID is a node's 16-bit short address.
type ShortID = uint16

// BlacklistSlot is one cached {dsn, channelMap} entry in a neighbor's
// two-slot blacklist cache.
type BlacklistSlot struct {
	Valid      bool
	DSN        uint8
	ChannelMap uint16
}

// Entry is one neighbor table row (§3 Neighbor entry). used=false implies
// every other field is zeroed, per the invariant.
type Entry struct {
	Used                   bool
	ShortID                ShortID
	DAGrank                uint16
	ParentPreference       uint8 // 0 or tsch6.ParentPreferenceMax
	StableNeighbor         bool
	SwitchStabilityCounter uint8
	RSSI                   int8
	NumRx                  uint8
	NumTx                  uint8
	NumTxACK               uint8
	NumWraps               uint32
	LastHeardASN           asn.ASN
	CurrentBlacklist       uint16
	UsedBlacklists         [tsch6.NumBlacklistSlots]BlacklistSlot
	OldestBlacklistIdx     uint8
}

// IsPreferred reports whether this entry is the preferred parent.
func (e Entry) IsPreferred() bool { return e.Used && e.ParentPreference == tsch6.ParentPreferenceMax }

// Table is the fixed-capacity neighbor table. The zero value is not usable;
// construct with New.
type Table struct {
	sec       critsec.Section
	rows      []Entry
	isDAGRoot func() bool
	onChange  func() // invoked after an event that can change routing
	log       tsch6log.Printf
}

// New returns a Table with the given fixed capacity.
func New(capacity int, isDAGRoot func() bool, log tsch6log.Printf) *Table {
	if isDAGRoot == nil {
		isDAGRoot = func() bool { return false }
	}
	return &Table{
		rows:      make([]Entry, capacity),
		isDAGRoot: isDAGRoot,
		log:       tsch6log.Tagged(log, "neighbors"),
	}
}

// SetRouteChangeCallback registers the function invoked whenever an event
// occurs that could change routing (EB received, neighbor removed), so the
// rank/parent-selector component can recompute. Must be called before the
// table is used concurrently.
func (t *Table) SetRouteChangeCallback(fn func()) {
	t.sec.Do(func() { t.onChange = fn })
}

func (t *Table) notifyRouteChange() {
	if t.onChange != nil {
		t.onChange()
	}
}

// Capacity returns the table's fixed row capacity.
func (t *Table) Capacity() int { return len(t.rows) }

// Snapshot returns a copy of every row, indexed identically to the table's
// internal storage so callers (notably rank.Recompute) can refer back to a
// row by its stable index.
func (t *Table) Snapshot() []Entry {
	var out []Entry
	t.sec.Do(func() {
		out = make([]Entry, len(t.rows))
		copy(out, t.rows)
	})
	return out
}

// Get returns a copy of the row for addr, if present.
func (t *Table) Get(addr ShortID) (Entry, bool) {
	var e Entry
	var ok bool
	t.sec.Do(func() {
		if i := t.indexOfLocked(addr); i >= 0 {
			e, ok = t.rows[i], true
		}
	})
	return e, ok
}

func (t *Table) indexOfLocked(addr ShortID) int {
	for i := range t.rows {
		if t.rows[i].Used && t.rows[i].ShortID == addr {
			return i
		}
	}
	return -1
}

func (t *Table) freeRowLocked() int {
	for i := range t.rows {
		if !t.rows[i].Used {
			return i
		}
	}
	return -1
}

// ClearAllParentPreference clears parentPreference on every row and returns
// the index that was previously preferred, if any. Used by rank.Recompute
// as the first step of a recomputation cycle.
func (t *Table) ClearAllParentPreference() (prevIdx int, ok bool) {
	prevIdx = -1
	t.sec.Do(func() {
		for i := range t.rows {
			if t.rows[i].Used && t.rows[i].ParentPreference == tsch6.ParentPreferenceMax {
				prevIdx, ok = i, true
			}
			t.rows[i].ParentPreference = 0
		}
	})
	return prevIdx, ok
}

// SetPreferred marks row idx as the preferred parent: parentPreference=MAX,
// stableNeighbor=true, switchStabilityCounter reset.
func (t *Table) SetPreferred(idx int) error {
	var err error
	t.sec.Do(func() {
		if idx < 0 || idx >= len(t.rows) || !t.rows[idx].Used {
			err = errkind.New(errkind.Protocol, "neighbors: SetPreferred: invalid index")
			return
		}
		t.rows[idx].ParentPreference = tsch6.ParentPreferenceMax
		t.rows[idx].StableNeighbor = true
		t.rows[idx].SwitchStabilityCounter = 0
	})
	return err
}

// SetDAGrank overwrites row idx's DAGrank directly (used when seeding this
// node's own rank bookkeeping is not what's wanted -- this sets a
// neighbor's advertised rank, e.g. after IndicateRxEB's clamp decision).
func (t *Table) SetDAGrank(idx int, rank uint16) error {
	var err error
	t.sec.Do(func() {
		if idx < 0 || idx >= len(t.rows) || !t.rows[idx].Used {
			err = errkind.New(errkind.Protocol, "neighbors: SetDAGrank: invalid index")
			return
		}
		t.rows[idx].DAGrank = rank
	})
	return err
}

const defaultNeighborDAGrank = tsch6.MinHopRankIncrease

// IndicateRx updates or inserts a neighbor entry after reception of a data
// frame from src.
func (t *Table) IndicateRx(src ShortID, rssi int8, asnTs asn.ASN) error {
	var insertedPromotedToPreferred bool
	var full bool
	t.sec.Do(func() {
		if i := t.indexOfLocked(src); i >= 0 {
			t.rows[i].NumRx++
			t.rows[i].RSSI = rssi
			t.rows[i].LastHeardASN = asnTs
			t.updateStabilityLocked(i, rssi)
			return
		}
		i := t.freeRowLocked()
		if i < 0 {
			full = true
			return
		}
		t.rows[i] = Entry{
			Used:           true,
			ShortID:        src,
			DAGrank:        defaultNeighborDAGrank,
			StableNeighbor: true,
			RSSI:           rssi,
			NumRx:          1,
			LastHeardASN:   asnTs,
		}
		t.rows[i].CurrentBlacklist = tsch6.DefaultBlacklist
		if !t.hasPreferredLocked() && !t.isDAGRoot() {
			t.rows[i].ParentPreference = tsch6.ParentPreferenceMax
			insertedPromotedToPreferred = true
		}
	})
	if full {
		t.log("ERR_NEIGHBORS_FULL: dropping indicateRx from %#04x", src)
		return errkind.New(errkind.Resource, fmt.Sprintf("neighbors: table full, dropped %#04x", src))
	}
	if insertedPromotedToPreferred {
		t.notifyRouteChange()
	}
	return nil
}

func (t *Table) hasPreferredLocked() bool {
	for i := range t.rows {
		if t.rows[i].Used && t.rows[i].ParentPreference == tsch6.ParentPreferenceMax {
			return true
		}
	}
	return false
}

// updateStabilityLocked implements the stability hysteresis described in
// §4.3. Must be called with the section held.
func (t *Table) updateStabilityLocked(i int, rssi int8) {
	e := &t.rows[i]
	if !e.StableNeighbor {
		if rssi > tsch6.BadNeighborMaxRSSI {
			e.SwitchStabilityCounter++
			if e.SwitchStabilityCounter >= tsch6.SwitchStabilityThreshold {
				e.StableNeighbor = true
				e.SwitchStabilityCounter = 0
			}
		} else {
			e.SwitchStabilityCounter = 0
		}
		return
	}
	if rssi < tsch6.GoodNeighborMinRSSI {
		e.SwitchStabilityCounter++
		if e.SwitchStabilityCounter >= tsch6.SwitchStabilityThreshold {
			e.StableNeighbor = false
			e.SwitchStabilityCounter = 0
		}
	} else {
		e.SwitchStabilityCounter = 0
	}
}

// IndicateTx updates a neighbor entry's TX statistics after one or more
// transmission attempts to dest.
func (t *Table) IndicateTx(dest ShortID, attempts uint8, finallyAcked bool, asnTs asn.ASN) error {
	var notFound bool
	t.sec.Do(func() {
		i := t.indexOfLocked(dest)
		if i < 0 {
			notFound = true
			return
		}
		e := &t.rows[i]
		if int(e.NumTx)+int(attempts) > tsch6.TxStatsWindow {
			e.NumTx >>= 1
			e.NumTxACK >>= 1
			e.NumWraps++
		}
		e.NumTx += attempts
		if finallyAcked {
			e.NumTxACK++
			e.LastHeardASN = asnTs
		}
	})
	if notFound {
		return errkind.New(errkind.Protocol, fmt.Sprintf("neighbors: indicateTx: unknown neighbor %#04x", dest))
	}
	return nil
}

// IndicateRxEB updates a known neighbor's advertised DAGrank from a received
// Enhanced Beacon, clamping implausible jumps, then triggers a rank
// recomputation via the route-change callback.
func (t *Table) IndicateRxEB(src ShortID, ebRank uint16) error {
	// Scenario 6: DefaultLinkCost=1, MinHopRankIncrease=256 -> clamp=1024.
	clamp := uint16(4 * tsch6.DefaultLinkCost * tsch6.MinHopRankIncrease)
	var found bool
	var suspicious bool
	var newRank uint16
	t.sec.Do(func() {
		i := t.indexOfLocked(src)
		if i < 0 {
			return
		}
		found = true
		stored := t.rows[i].DAGrank
		if ebRank > stored && ebRank-stored > clamp {
			newRank = stored + clamp
			suspicious = true
		} else {
			newRank = ebRank
		}
		t.rows[i].DAGrank = newRank
	})
	if !found {
		return nil
	}
	if suspicious {
		t.log("ERR_LARGE_DAGRANK: src=%#04x ebRank=%d clampedTo=%d", src, ebRank, newRank)
	}
	t.notifyRouteChange()
	return nil
}

// RemoveOld removes every entry whose lastHeardASN is older than
// tsch6.DesyncTimeout slots relative to now, returning the removed short
// IDs. Triggers a rank recomputation if anything was removed.
func (t *Table) RemoveOld(now asn.ASN) []ShortID {
	var removed []ShortID
	t.sec.Do(func() {
		for i := range t.rows {
			if !t.rows[i].Used {
				continue
			}
			if now.DiffSlots(t.rows[i].LastHeardASN) > tsch6.DesyncTimeout {
				removed = append(removed, t.rows[i].ShortID)
				t.rows[i] = Entry{}
			}
		}
	})
	if len(removed) > 0 {
		t.notifyRouteChange()
	}
	return removed
}
