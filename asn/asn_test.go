package asn

import "testing"

func TestAdvanceWraps(t *testing.T) {
	a := ASN(mask40)
	if got := a.Advance(); got != 0 {
		t.Fatalf("Advance at wrap got %v want 0", got)
	}
}

func TestAdvanceSequence(t *testing.T) {
	a := ASN(100)
	for i := 0; i < 10; i++ {
		a = a.Advance()
	}
	if a != 110 {
		t.Fatalf("got %v want 110", a)
	}
}

func TestSlotOffset(t *testing.T) {
	cases := map[string]struct {
		asn   ASN
		sfLen uint16
		want  uint16
	}{
		"zero":     {0, 101, 0},
		"exact":    {101, 101, 0},
		"mid":      {250, 101, 250 % 101},
		"wraplike": {65535, 37, 65535 % 37},
	}
	for n, tc := range cases {
		if got := tc.asn.SlotOffset(tc.sfLen); got != tc.want {
			t.Fatalf("%s: got %d want %d", n, got, tc.want)
		}
	}
}

func TestBytesRoundTrip(t *testing.T) {
	vals := []ASN{0, 1, 255, 65536, ASN(mask40), ASN(mask40) - 1, 0x1122334455}
	for _, v := range vals {
		b := v.Bytes()
		got := FromBytes(b)
		if got != v&ASN(mask40) {
			t.Fatalf("roundtrip %v got %v", v, got)
		}
	}
}

func TestDiffSlots(t *testing.T) {
	if d := ASN(110).DiffSlots(ASN(100)); d != 10 {
		t.Fatalf("got %d want 10", d)
	}
}

// Scenario 1 from the design's testable properties.
func TestChannelSelectionScenario(t *testing.T) {
	tmpl := Template{5, 6, 12, 7, 15, 4, 14, 11, 8, 0, 1, 2, 13, 3, 9, 10}
	h := NewHopper(tmpl, nil, 0)
	if got := h.Channel(0, 3); got != 7 {
		t.Fatalf("ASN=0 chOff=3: got %d want 7", got)
	}
	if got := h.Channel(17, 0); got != 6 {
		t.Fatalf("ASN=17 chOff=0: got %d want 6", got)
	}
}

func TestEBChannelStepsEveryPeriod(t *testing.T) {
	h := NewHopper(DefaultTemplate, []uint8{11, 12, 13, 14}, 10)
	if h.EBChannel(0) != 11 {
		t.Fatalf("slot 0 expected first EB channel")
	}
	if h.EBChannel(9) != 11 {
		t.Fatalf("slot 9 still within first period")
	}
	if h.EBChannel(10) != 12 {
		t.Fatalf("slot 10 should have advanced to second EB channel")
	}
	if h.EBChannel(40) != 11 {
		t.Fatalf("slot 40 should have wrapped back to first EB channel")
	}
}

func TestEBChannelFallsBackToSynchronizingChannel(t *testing.T) {
	h := NewHopper(DefaultTemplate, nil, 0)
	if got := h.EBChannel(123); got != SynchronizingChannel {
		t.Fatalf("got %d want %d", got, SynchronizingChannel)
	}
}
