// Copyright 2026 by the tsch6 authors, see LICENSE file

package slotfsm

import (
	"sync"

	"github.com/tve/tsch6"
	"github.com/tve/tsch6/internal/errkind"
)

// FixedPool is a fixed-capacity PacketPool: a small number of pre-allocated
// Packet buffers (OpenQueueEntry in the design), each either free or held by
// exactly one owner's PacketHandle at a time.
type FixedPool struct {
	mu   sync.Mutex
	bufs []Packet
	used []bool
}

// NewFixedPool returns a pool with room for capacity in-flight packets.
func NewFixedPool(capacity int) *FixedPool {
	return &FixedPool{bufs: make([]Packet, capacity), used: make([]bool, capacity)}
}

// Alloc hands out a free buffer, owned by OwnerFSM, or a resource error if
// the pool is exhausted.
func (fp *FixedPool) Alloc() (*PacketHandle, error) {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	for i := range fp.bufs {
		if !fp.used[i] {
			fp.used[i] = true
			fp.bufs[i] = Packet{}
			return NewPacketHandle(&fp.bufs[i], OwnerFSM), nil
		}
	}
	return nil, errkind.New(errkind.Resource, "slotfsm: packet pool exhausted")
}

// Free returns h's buffer to the pool and invalidates h. A nil handle, or
// one already transferred away, is a no-op.
func (fp *FixedPool) Free(h *PacketHandle) {
	p := h.Packet()
	if p == nil {
		return
	}
	h.Transfer(OwnerFree)
	fp.mu.Lock()
	defer fp.mu.Unlock()
	for i := range fp.bufs {
		if &fp.bufs[i] == p {
			fp.used[i] = false
			return
		}
	}
}

var _ PacketPool = (*FixedPool)(nil)

// defaultPoolSize is used when Config.Pool is left nil.
const defaultPoolSize = tsch6.DefaultPacketPoolSize
