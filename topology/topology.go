// Copyright 2026 by the tsch6 authors, see LICENSE file

// Package topology implements a runtime-configurable peer allow-list. The
// slot FSM consults it before acting on a frame's source
// address, standing in for the build-time FORCETOPOLOGY switch of the
// original firmware: by default every peer is acceptable, matching open
// network operation, but a deployment can restrict acceptance to an
// explicit set for bench testing or a fixed lab topology.
package topology

import "sync"

// AllowList is a concurrency-safe set of acceptable peer short IDs. The
// zero value accepts every peer.
type AllowList struct {
	mu      sync.RWMutex
	enabled bool
	ids     map[uint16]struct{}
}

// New returns an AllowList that accepts every peer until Set is called.
func New() *AllowList {
	return &AllowList{}
}

// Set restricts acceptance to exactly the given short IDs. Calling Set with
// a nil or empty slice re-enables accept-all.
func (a *AllowList) Set(ids []uint16) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(ids) == 0 {
		a.enabled = false
		a.ids = nil
		return
	}
	a.enabled = true
	a.ids = make(map[uint16]struct{}, len(ids))
	for _, id := range ids {
		a.ids[id] = struct{}{}
	}
}

// Clear reverts to accept-all.
func (a *AllowList) Clear() { a.Set(nil) }

// IsAcceptable reports whether shortID may be processed, mirroring
// topology_isAcceptablePacket.
func (a *AllowList) IsAcceptable(shortID uint16) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if !a.enabled {
		return true
	}
	_, ok := a.ids[shortID]
	return ok
}
