package protocol

import (
	"testing"
	"time"
)

func TestNewTraceID(t *testing.T) {
	now := time.Unix(0x5759e988, 0)
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		traceID, err := NewTraceID(now)
		if err != nil {
			t.Fatalf("NewTraceID: %v", err)
		}
		if !ValidTraceID(traceID) {
			t.Fatalf("generated invalid trace id %q", traceID)
		}
		if traceID[:11] != "1-5759e988-" {
			t.Errorf("expected time prefix 1-5759e988-, got %q", traceID)
		}
		if seen[traceID] {
			t.Errorf("duplicate trace id %q", traceID)
		}
		seen[traceID] = true

		created, err := TraceIDTime(traceID)
		if err != nil || !created.Equal(now) {
			t.Errorf("expected creation time %v, got %v (%v)", now, created, err)
		}
	}
}

func TestNewSegmentID(t *testing.T) {
	segmentID, err := NewSegmentID()
	if err != nil {
		t.Fatalf("NewSegmentID: %v", err)
	}
	if !ValidSegmentID(segmentID) {
		t.Errorf("generated invalid segment id %q", segmentID)
	}
}

func TestValidIDs(t *testing.T) {
	traceIDs := map[string]bool{
		"1-5759e988-bd862e3fe1be46a994272793":  true,
		"1-5759E988-BD862E3FE1BE46A994272793":  true,
		"2-5759e988-bd862e3fe1be46a994272793":  false,
		"1-5759e988-bd862e3fe1be46a99427279":   false,
		"1-5759e988xbd862e3fe1be46a994272793":  false,
		"1-5759e98g-bd862e3fe1be46a994272793":  false,
		"1-5759e988-bd862e3fe1be46a9942727930": false,
		"":                                     false,
	}
	for input, want := range traceIDs {
		if got := ValidTraceID(input); got != want {
			t.Errorf("ValidTraceID(%q) = %v, want %v", input, got, want)
		}
	}

	segmentIDs := map[string]bool{
		"53995c3f42cd8ad8":  true,
		"53995c3f42cd8ad":   false,
		"53995c3f42cd8adz":  false,
		"53995c3f42cd8ad8a": false,
	}
	for input, want := range segmentIDs {
		if got := ValidSegmentID(input); got != want {
			t.Errorf("ValidSegmentID(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestBeginSubsegment(t *testing.T) {
	now := time.Now()
	parent, err := BeginSegment("root", now)
	if err != nil {
		t.Fatalf("BeginSegment: %v", err)
	}
	child, err := BeginSubsegment("child", parent, now)
	if err != nil {
		t.Fatalf("BeginSubsegment: %v", err)
	}
	if child.TraceID != parent.TraceID || child.ParentID != parent.ID || child.Type != SubsegmentType {
		t.Errorf("unexpected subsegment %+v", child)
	}

	_, err = BeginSubsegment("orphan", nil, now)
	if err == nil {
		t.Errorf("expected error for nil parent")
	}
}
