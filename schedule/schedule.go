// Copyright 2026 by the tsch6 authors, see LICENSE file

// Package schedule provides the slot FSM's Schedule collaborator: a
// fixed-cell lookup by slot offset, ported from the ext_schedule.c pattern
// of a per-node static schedule keyed by the node's own short address.
package schedule

import "github.com/tve/tsch6/slotfsm"

// StaticTable is a directly-indexed schedule: entry i holds the cell for
// slot offset i. Set grows the table as needed; offsets beyond it are
// CellOff.
type StaticTable struct {
	cells []slotfsm.Cell
}

// NewStaticTable returns a StaticTable of the given slotframe length, every
// cell initially CellOff.
func NewStaticTable(slotframeLength uint16) *StaticTable {
	return &StaticTable{cells: make([]slotfsm.Cell, slotframeLength)}
}

// Set installs cell at slotOffset.
func (s *StaticTable) Set(slotOffset uint16, cell slotfsm.Cell) {
	if int(slotOffset) >= len(s.cells) {
		grown := make([]slotfsm.Cell, slotOffset+1)
		copy(grown, s.cells)
		s.cells = grown
	}
	s.cells[slotOffset] = cell
}

// GetSchedule implements slotfsm.Schedule.
func (s *StaticTable) GetSchedule(slotOffset uint16) (slotfsm.Cell, error) {
	if int(slotOffset) >= len(s.cells) {
		return slotfsm.Cell{Type: slotfsm.CellOff}, nil
	}
	return s.cells[slotOffset], nil
}

// Len returns the number of slot offsets the table currently holds.
func (s *StaticTable) Len() uint16 { return uint16(len(s.cells)) }

// ThreeNodeChainTables returns the static schedules for the three-node
// relay topology of the reference bring-up network, directly mirroring
// ext_schedule.c's hard-coded case statements: node b transmits to node a
// on slots 0 and 2, and receives from node c on slot 1; node c transmits
// to node b on slot 1.
func ThreeNodeChainTables() (a, b, c *StaticTable) {
	const slotframeLength = 3

	a = NewStaticTable(slotframeLength)
	a.Set(0, slotfsm.Cell{Type: slotfsm.CellRX, Neighbor: 0x89a5, ChannelOffset: 0})
	a.Set(2, slotfsm.Cell{Type: slotfsm.CellRX, Neighbor: 0x89a5, ChannelOffset: 0})

	b = NewStaticTable(slotframeLength)
	b.Set(0, slotfsm.Cell{Type: slotfsm.CellTX, Neighbor: 0x5a53, ChannelOffset: 0})
	b.Set(1, slotfsm.Cell{Type: slotfsm.CellRX, Neighbor: 0x6e29, ChannelOffset: 0})
	b.Set(2, slotfsm.Cell{Type: slotfsm.CellTX, Neighbor: 0x5a53, ChannelOffset: 0})

	c = NewStaticTable(slotframeLength)
	c.Set(1, slotfsm.Cell{Type: slotfsm.CellTX, Neighbor: 0x89a5, ChannelOffset: 0})

	return a, b, c
}
