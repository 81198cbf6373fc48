package schedule

import (
	"testing"

	"github.com/tve/tsch6/slotfsm"
)

func TestStaticTableDefaultsToOff(t *testing.T) {
	s := NewStaticTable(4)
	cell, err := s.GetSchedule(1)
	if err != nil {
		t.Fatalf("GetSchedule: %v", err)
	}
	if cell.Type != slotfsm.CellOff {
		t.Fatalf("got %v want CellOff", cell.Type)
	}
}

func TestStaticTableOutOfRangeIsOff(t *testing.T) {
	s := NewStaticTable(2)
	cell, err := s.GetSchedule(99)
	if err != nil {
		t.Fatalf("GetSchedule: %v", err)
	}
	if cell.Type != slotfsm.CellOff {
		t.Fatalf("got %v want CellOff", cell.Type)
	}
}

func TestStaticTableSetAndGet(t *testing.T) {
	s := NewStaticTable(3)
	s.Set(1, slotfsm.Cell{Type: slotfsm.CellTX, Neighbor: 0x1234})
	cell, err := s.GetSchedule(1)
	if err != nil {
		t.Fatalf("GetSchedule: %v", err)
	}
	if cell.Type != slotfsm.CellTX || cell.Neighbor != 0x1234 {
		t.Fatalf("got %+v", cell)
	}
}

func TestThreeNodeChainTablesMirrorExtSchedule(t *testing.T) {
	a, b, c := ThreeNodeChainTables()

	cases := []struct {
		name  string
		table *StaticTable
		slot  uint16
		want  slotfsm.CellType
		peer  uint16
	}{
		{"a slot0 rx from b", a, 0, slotfsm.CellRX, 0x89a5},
		{"a slot2 rx from b", a, 2, slotfsm.CellRX, 0x89a5},
		{"b slot0 tx to a", b, 0, slotfsm.CellTX, 0x5a53},
		{"b slot1 rx from c", b, 1, slotfsm.CellRX, 0x6e29},
		{"b slot2 tx to a", b, 2, slotfsm.CellTX, 0x5a53},
		{"c slot1 tx to b", c, 1, slotfsm.CellTX, 0x89a5},
	}
	for _, tc := range cases {
		cell, err := tc.table.GetSchedule(tc.slot)
		if err != nil {
			t.Fatalf("%s: GetSchedule: %v", tc.name, err)
		}
		if cell.Type != tc.want || cell.Neighbor != tc.peer {
			t.Errorf("%s: got type=%v neighbor=%#04x want type=%v neighbor=%#04x",
				tc.name, cell.Type, cell.Neighbor, tc.want, tc.peer)
		}
	}
}
