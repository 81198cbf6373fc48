package rank

import (
	"testing"

	"github.com/tve/tsch6"
	"github.com/tve/tsch6/neighbors"
)

// Scenario 2 from the design's testable properties: numTx=10, numRx=4,
// numTxACK=6, neighbor.DAGrank=MINHOPRANKINCREASE=256 -> totalRx=10,
// rankIncrease=(10*2*256)/10=512, tentativeDAGrank=768; as the only
// neighbor it becomes myDAGrank and the preferred parent.
func TestRecomputeScenario(t *testing.T) {
	tbl := neighbors.New(4, func() bool { return false }, nil)
	tbl.IndicateRx(0x1, -60, 0) // insert, numRx=1
	tbl.IndicateRx(0x1, -60, 1) // numRx=2
	tbl.IndicateRx(0x1, -60, 2) // numRx=3
	tbl.IndicateRx(0x1, -60, 3) // numRx=4

	tbl.IndicateTx(0x1, 4, false, 4) // numTx=4, numTxACK=0
	for i := 0; i < 6; i++ {
		tbl.IndicateTx(0x1, 1, true, 10) // numTx+=1 (->10), numTxACK+=1 (->6)
	}

	e, ok := tbl.Get(0x1)
	if !ok {
		t.Fatal("neighbor missing")
	}
	if e.NumRx != 4 || e.NumTx != 10 || e.NumTxACK != 6 {
		t.Fatalf("setup wrong: %+v", e)
	}
	if e.DAGrank != tsch6.MinHopRankIncrease {
		t.Fatalf("expected default DAGrank=%d, got %d", tsch6.MinHopRankIncrease, e.DAGrank)
	}

	sel := NewSelector(tbl, func() bool { return false }, nil)
	tbl.SetRouteChangeCallback(sel.Recompute)
	sel.Recompute()

	if sel.MyDAGrank() != 768 {
		t.Fatalf("got myDAGrank=%d want 768", sel.MyDAGrank())
	}
	if got := sel.GetPreferredParent(); got != 0x1 {
		t.Fatalf("got preferred=%#04x want 0x1", got)
	}
}

func TestDAGRootAlwaysMinRank(t *testing.T) {
	tbl := neighbors.New(4, func() bool { return true }, nil)
	sel := NewSelector(tbl, func() bool { return true }, nil)
	sel.Recompute()
	if sel.MyDAGrank() != tsch6.MinHopRankIncrease {
		t.Fatalf("got %d want %d", sel.MyDAGrank(), tsch6.MinHopRankIncrease)
	}
}

func TestNoQualifyingCandidateLeavesMaxRank(t *testing.T) {
	tbl := neighbors.New(4, func() bool { return false }, nil)
	tbl.IndicateRx(0x1, -60, 0)
	tbl.SetDAGrank(0, tsch6.MaxDAGRank) // only neighbor already at the ceiling

	sel := NewSelector(tbl, func() bool { return false }, nil)
	sel.Recompute()

	if sel.MyDAGrank() != tsch6.MaxDAGRank {
		t.Fatalf("got %d want %d", sel.MyDAGrank(), tsch6.MaxDAGRank)
	}
	if got := sel.GetPreferredParent(); got != 0x1 {
		t.Fatalf("expected fallback to lowest-rank used neighbor, got %#04x", got)
	}
}

func TestGetPreferredParentBroadcastWhenEmpty(t *testing.T) {
	tbl := neighbors.New(4, func() bool { return false }, nil)
	sel := NewSelector(tbl, func() bool { return false }, nil)
	if got := sel.GetPreferredParent(); got != tsch6.BroadcastID {
		t.Fatalf("got %#04x want broadcast", got)
	}
}

func TestAtMostOnePreferredAfterRecompute(t *testing.T) {
	tbl := neighbors.New(4, func() bool { return false }, nil)
	tbl.IndicateRx(0x1, -60, 0)
	tbl.IndicateRx(0x2, -60, 0)
	tbl.IndicateRx(0x3, -60, 0)

	sel := NewSelector(tbl, func() bool { return false }, nil)
	sel.Recompute()

	count := 0
	for _, e := range tbl.Snapshot() {
		if e.IsPreferred() {
			count++
		}
	}
	if count > 1 {
		t.Fatalf("got %d preferred neighbors, want at most 1", count)
	}
}
