package beacon

import (
	"testing"

	"github.com/tve/tsch6/asn"
	"github.com/tve/tsch6/ie"
	"github.com/tve/tsch6/timesync"
)

func TestAssembleDecodeRoundTrip(t *testing.T) {
	hopper := asn.NewHopper(asn.DefaultTemplate, []uint8{11, 12}, 5)
	sync := timesync.NewController(hopper, nil)
	s := NewScheduler(sync, hopper, 0x89a5, 1)

	summary := ScheduleSummary{
		Slotframes: []ie.SlotframeEntry{
			{Handle: 0, Links: []ie.Link{{Timeslot: 0, ChannelOffset: 0, Options: 0x01}}},
		},
		TimeslotTemplateID:       1,
		ChannelHoppingTemplateID: 1,
	}
	payload := s.Assemble(asn.ASN(42), summary)

	gotSync, gotSF, gotTS, gotCH, err := Decode(payload)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if gotSync.ASN != asn.ASN(42) || gotSync.JoinPriority != 1 {
		t.Fatalf("got sync %+v", gotSync)
	}
	if len(gotSF.Slotframes) != 1 || len(gotSF.Slotframes[0].Links) != 1 {
		t.Fatalf("got slotframes %+v", gotSF)
	}
	if gotTS.TemplateID != 1 || gotTS.Durations != nil {
		t.Fatalf("got timeslot %+v", gotTS)
	}
	if gotCH.TemplateID != 1 {
		t.Fatalf("got channel hopping %+v", gotCH)
	}
}

func TestDueFiresAfterPeriodElapsesAndAdaptsPeriod(t *testing.T) {
	hopper := asn.NewHopper(asn.DefaultTemplate, nil, 0)
	sync := timesync.NewController(hopper, nil)
	s := NewScheduler(sync, hopper, 0x1, 0)

	firstPeriodSlots := sync.EBPeriodSteps() * 100 / slotDurationMillis // EBPeriodStep is 100ms
	fired := false
	for i := uint32(0); i < firstPeriodSlots+1; i++ {
		if s.Due() {
			fired = true
			break
		}
	}
	if !fired {
		t.Fatal("expected Due() to fire within one EB period")
	}
}

func TestEBListenChannelDelegates(t *testing.T) {
	hopper := asn.NewHopper(asn.DefaultTemplate, []uint8{13, 14}, 5)
	sync := timesync.NewController(hopper, nil)
	s := NewScheduler(sync, hopper, 0x1, 0)
	if got := s.EBListenChannel(0); got != 13 {
		t.Fatalf("got %d want 13", got)
	}
}
