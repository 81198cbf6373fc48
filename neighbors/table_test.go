package neighbors

import (
	"testing"

	"github.com/tve/tsch6/asn"
)

func newTestTable(capacity int, isDAGRoot bool) *Table {
	return New(capacity, func() bool { return isDAGRoot }, nil)
}

func TestIndicateRxInsertsAndPromotesFirstNeighbor(t *testing.T) {
	tbl := newTestTable(4, false)
	if err := tbl.IndicateRx(0x1111, -60, 10); err != nil {
		t.Fatal(err)
	}
	e, ok := tbl.Get(0x1111)
	if !ok {
		t.Fatal("expected neighbor present")
	}
	if !e.IsPreferred() {
		t.Fatalf("expected first neighbor to be promoted to preferred, got %+v", e)
	}
	if e.NumRx != 1 || e.StableNeighbor != true || e.DAGrank != defaultNeighborDAGrank {
		t.Fatalf("unexpected defaults: %+v", e)
	}
}

func TestIndicateRxDAGRootNeverAutopromotes(t *testing.T) {
	tbl := newTestTable(4, true)
	tbl.IndicateRx(0x1111, -60, 10)
	e, _ := tbl.Get(0x1111)
	if e.IsPreferred() {
		t.Fatal("DAG root should not auto-promote a preferred parent")
	}
}

func TestIndicateRxTableFullDropsWithError(t *testing.T) {
	tbl := newTestTable(2, false)
	tbl.IndicateRx(1, -60, 1)
	tbl.IndicateRx(2, -60, 1)
	if err := tbl.IndicateRx(3, -60, 1); err == nil {
		t.Fatal("expected error when table is full")
	}
	if _, ok := tbl.Get(3); ok {
		t.Fatal("neighbor 3 should not have been inserted")
	}
}

func TestIndicateTxOverflowHalvesAndWraps(t *testing.T) {
	tbl := newTestTable(4, false)
	tbl.IndicateRx(0x42, -60, 1)
	// Drive numTx close to the window ceiling.
	for i := 0; i < 60; i++ {
		tbl.IndicateTx(0x42, 5, true, asn.ASN(i))
	}
	e, _ := tbl.Get(0x42)
	if e.NumTx < e.NumTxACK {
		t.Fatalf("invariant violated: numTx=%d < numTxACK=%d", e.NumTx, e.NumTxACK)
	}
	if e.NumWraps == 0 {
		t.Fatal("expected at least one wrap after 300 attempts")
	}
}

func TestIndicateTxUnknownNeighborErrors(t *testing.T) {
	tbl := newTestTable(4, false)
	if err := tbl.IndicateTx(0x99, 1, true, 0); err == nil {
		t.Fatal("expected error for unknown neighbor")
	}
}

func TestIndicateRxEBClampsSuspiciousJump(t *testing.T) {
	tbl := newTestTable(4, false)
	tbl.IndicateRx(0x1, -60, 1)
	// Force the stored rank to a known value matching Scenario 6.
	e, _ := tbl.Get(0x1)
	idx := -1
	for i, row := range tbl.Snapshot() {
		if row.ShortID == e.ShortID {
			idx = i
		}
	}
	tbl.SetDAGrank(idx, 256)

	var notified bool
	tbl.SetRouteChangeCallback(func() { notified = true })

	if err := tbl.IndicateRxEB(0x1, 0xFFFF); err != nil {
		t.Fatal(err)
	}
	got, _ := tbl.Get(0x1)
	if got.DAGrank != 1280 {
		t.Fatalf("got DAGrank=%d want 1280 (scenario 6)", got.DAGrank)
	}
	if !notified {
		t.Fatal("expected route-change notification")
	}
}

func TestIndicateRxEBAcceptsPlausibleRank(t *testing.T) {
	tbl := newTestTable(4, false)
	tbl.IndicateRx(0x1, -60, 1)
	if err := tbl.IndicateRxEB(0x1, 300); err != nil {
		t.Fatal(err)
	}
	got, _ := tbl.Get(0x1)
	if got.DAGrank != 300 {
		t.Fatalf("got %d want 300", got.DAGrank)
	}
}

func TestRemoveOldEvictsStaleEntries(t *testing.T) {
	tbl := newTestTable(4, false)
	tbl.IndicateRx(0x1, -60, 0)
	var notified bool
	tbl.SetRouteChangeCallback(func() { notified = true })

	removed := tbl.RemoveOld(asn.ASN(900)) // > DesyncTimeout (800) slots later
	if len(removed) != 1 || removed[0] != 0x1 {
		t.Fatalf("got %v", removed)
	}
	if _, ok := tbl.Get(0x1); ok {
		t.Fatal("expected neighbor removed")
	}
	if !notified {
		t.Fatal("expected route-change notification")
	}
}

func TestStabilityHysteresis(t *testing.T) {
	tbl := newTestTable(4, false)
	tbl.IndicateRx(0x1, -60, 0) // stable by default on insert
	for i := 0; i < 3; i++ {
		tbl.IndicateRx(0x1, -95, asn.ASN(i+1)) // below GoodNeighborMinRSSI
	}
	e, _ := tbl.Get(0x1)
	if e.StableNeighbor {
		t.Fatal("expected neighbor to have been demoted to unstable")
	}
	for i := 0; i < 3; i++ {
		tbl.IndicateRx(0x1, -70, asn.ASN(i+10)) // above BadNeighborMaxRSSI
	}
	e, _ = tbl.Get(0x1)
	if !e.StableNeighbor {
		t.Fatal("expected neighbor to have been promoted back to stable")
	}
}

func TestStabilityHysteresisResetsOnContradiction(t *testing.T) {
	tbl := newTestTable(4, false)
	tbl.IndicateRx(0x1, -60, 0)
	tbl.IndicateRx(0x1, -95, 1)
	tbl.IndicateRx(0x1, -95, 2)
	tbl.IndicateRx(0x1, -70, 3) // contradicts the trend, resets counter
	tbl.IndicateRx(0x1, -95, 4)
	e, _ := tbl.Get(0x1)
	if !e.StableNeighbor {
		t.Fatal("should still be stable: the contradicting sample reset the counter")
	}
}

// Scenario 3: blacklist exchange, including DSN-reuse on retransmission.
func TestBlacklistExchangeScenario(t *testing.T) {
	child := newTestTable(4, false)
	parent := newTestTable(4, false)
	child.IndicateRx(0x2, -60, 0)  // child's view of parent
	parent.IndicateRx(0x1, -60, 0) // parent's view of child
	parent.SetCurrentBlacklist(0x1, 0x00AB)

	// Child is about to TX DSN=7.
	if err := child.OnTxData(0x2, 7); err != nil {
		t.Fatal(err)
	}

	// Parent receives DATA DSN=7, caches it, computes the ACK blacklist.
	ackMask, err := parent.OnRxData(0x1, 7)
	if err != nil {
		t.Fatal(err)
	}
	if ackMask != 0x00AB {
		t.Fatalf("got ack mask %#x want 0x00ab", ackMask)
	}

	// Child receives the ACK, stores the map against dsn=7.
	if err := child.OnRxAck(0x2, 7, ackMask); err != nil {
		t.Fatal(err)
	}
	got, ok := child.GetUsedBlacklist(0x2, false)
	if !ok || got != 0x00AB {
		t.Fatalf("got %#x ok=%v want 0x00ab", got, ok)
	}

	// Retransmission of the same DSN must reuse the slot, not overwrite the map.
	if err := child.OnTxData(0x2, 7); err != nil {
		t.Fatal(err)
	}
	got2, _ := child.GetUsedBlacklist(0x2, false)
	if got2 != 0x00AB {
		t.Fatalf("retransmission clobbered cached map: got %#x", got2)
	}
}

func TestOnRxAckWrongDSNErrors(t *testing.T) {
	child := newTestTable(4, false)
	child.IndicateRx(0x2, -60, 0)
	child.OnTxData(0x2, 7)
	if err := child.OnRxAck(0x2, 9, 0x1234); err == nil {
		t.Fatal("expected ERR_WRONG_DSN")
	}
}

func TestDefaultBlacklistOnInsert(t *testing.T) {
	tbl := newTestTable(4, false)
	tbl.IndicateRx(0x1, -60, 0)
	mask, ok := tbl.GetCurrentBlacklist(0x1)
	if !ok || mask != 0xFF00 {
		t.Fatalf("got %#x ok=%v want 0xff00", mask, ok)
	}
}
