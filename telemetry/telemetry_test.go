package telemetry

import (
	"encoding/json"
	"testing"
)

func TestReportMarshalsStatsFields(t *testing.T) {
	r := Report{
		ASN:             42,
		Sync:            true,
		DAGrank:         256,
		PreferredParent: 0x89a5,
		Stats: statsJSON{
			NumSyncPkt: 3,
			NumDeSync:  1,
		},
	}
	buf, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var back Report
	if err := json.Unmarshal(buf, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if back != r {
		t.Fatalf("got %+v want %+v", back, r)
	}
}

func TestLogLoggerForwardsToPrintf(t *testing.T) {
	var got string
	l := logLogger{p: func(format string, v ...interface{}) { got = format }}
	n, err := l.Write([]byte("hello"))
	if err != nil || n != len("hello") {
		t.Fatalf("Write: n=%d err=%v", n, err)
	}
	if got != "%s" {
		t.Fatalf("expected Write to forward via a %%s format, got %q", got)
	}
}
