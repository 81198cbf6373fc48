package neighbors

import (
	"fmt"

	"github.com/tve/tsch6/internal/errkind"
)

// OnTxData records DSN d as in-flight to dest before sending a data frame
// (child side). If neither cached slot already has dsn=d, the oldest slot's
// dsn field is overwritten, leaving channelMap intact so a retransmission of
// the same DSN reuses the cached blacklist instead of clobbering it.
func (t *Table) OnTxData(dest ShortID, d uint8) error {
	var notFound bool
	t.sec.Do(func() {
		i := t.indexOfLocked(dest)
		if i < 0 {
			notFound = true
			return
		}
		e := &t.rows[i]
		for _, s := range e.UsedBlacklists {
			if s.Valid && s.DSN == d {
				return
			}
		}
		oi := e.OldestBlacklistIdx
		e.UsedBlacklists[oi].Valid = true
		e.UsedBlacklists[oi].DSN = d
	})
	if notFound {
		return errkind.New(errkind.Protocol, fmt.Sprintf("neighbors: OnTxData: unknown neighbor %#04x", dest))
	}
	return nil
}

// OnRxData records reception of a data frame with DSN d from src (parent
// side): if a slot already caches dsn=d, its channelMap is refreshed to the
// neighbor's currentBlacklist; otherwise the oldest slot is replaced with
// {d, currentBlacklist} and oldestBlacklistIdx flips. Returns the blacklist
// mask that should be embedded in the ACK.
func (t *Table) OnRxData(src ShortID, d uint8) (blacklistToAck uint16, err error) {
	var notFound bool
	t.sec.Do(func() {
		i := t.indexOfLocked(src)
		if i < 0 {
			notFound = true
			return
		}
		e := &t.rows[i]
		for idx := range e.UsedBlacklists {
			if e.UsedBlacklists[idx].Valid && e.UsedBlacklists[idx].DSN == d {
				e.UsedBlacklists[idx].ChannelMap = e.CurrentBlacklist
				blacklistToAck = e.CurrentBlacklist
				return
			}
		}
		oi := e.OldestBlacklistIdx
		e.UsedBlacklists[oi] = BlacklistSlot{Valid: true, DSN: d, ChannelMap: e.CurrentBlacklist}
		e.OldestBlacklistIdx = 1 - oi
		blacklistToAck = e.CurrentBlacklist
	})
	if notFound {
		return 0, errkind.New(errkind.Protocol, fmt.Sprintf("neighbors: OnRxData: unknown neighbor %#04x", src))
	}
	return blacklistToAck, nil
}

// OnRxAck records a blacklist b piggybacked on an ACK for DSN d (child
// side). The slot with dsn=d must already exist (created by OnTxData); its
// channelMap is overwritten and oldestBlacklistIdx flips. A missing slot is
// ERR_WRONG_DSN.
func (t *Table) OnRxAck(src ShortID, d uint8, b uint16) error {
	var notFound, wrongDSN bool
	t.sec.Do(func() {
		i := t.indexOfLocked(src)
		if i < 0 {
			notFound = true
			return
		}
		e := &t.rows[i]
		for idx := range e.UsedBlacklists {
			if e.UsedBlacklists[idx].Valid && e.UsedBlacklists[idx].DSN == d {
				e.UsedBlacklists[idx].ChannelMap = b
				e.OldestBlacklistIdx = 1 - e.OldestBlacklistIdx
				return
			}
		}
		wrongDSN = true
	})
	if notFound {
		return errkind.New(errkind.Protocol, fmt.Sprintf("neighbors: OnRxAck: unknown neighbor %#04x", src))
	}
	if wrongDSN {
		t.log("ERR_WRONG_DSN: src=%#04x dsn=%d", src, d)
		return errkind.New(errkind.Protocol, fmt.Sprintf("neighbors: ERR_WRONG_DSN src=%#04x dsn=%d", src, d))
	}
	return nil
}

// GetUsedBlacklist returns the oldest or newest cached channelMap for addr.
func (t *Table) GetUsedBlacklist(addr ShortID, oldest bool) (uint16, bool) {
	var mask uint16
	var ok bool
	t.sec.Do(func() {
		i := t.indexOfLocked(addr)
		if i < 0 {
			return
		}
		e := &t.rows[i]
		idx := e.OldestBlacklistIdx
		if !oldest {
			idx = 1 - idx
		}
		if e.UsedBlacklists[idx].Valid {
			mask, ok = e.UsedBlacklists[idx].ChannelMap, true
		}
	})
	return mask, ok
}

// GetCurrentBlacklist returns the locally maintained channel mask for addr.
func (t *Table) GetCurrentBlacklist(addr ShortID) (uint16, bool) {
	var mask uint16
	var ok bool
	t.sec.Do(func() {
		i := t.indexOfLocked(addr)
		if i < 0 {
			return
		}
		mask, ok = t.rows[i].CurrentBlacklist, true
	})
	return mask, ok
}

// SetCurrentBlacklist overwrites the locally maintained channel mask for
// addr; used by the PRR-threshold policy in package macstats/the node's
// blacklist updater.
func (t *Table) SetCurrentBlacklist(addr ShortID, mask uint16) error {
	var notFound bool
	t.sec.Do(func() {
		i := t.indexOfLocked(addr)
		if i < 0 {
			notFound = true
			return
		}
		t.rows[i].CurrentBlacklist = mask
	})
	if notFound {
		return errkind.New(errkind.Protocol, fmt.Sprintf("neighbors: SetCurrentBlacklist: unknown neighbor %#04x", addr))
	}
	return nil
}
