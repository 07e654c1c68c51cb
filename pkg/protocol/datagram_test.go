package protocol

import (
	"errors"
	"strings"
	"testing"
	"time"
)

const (
	testTraceID   = "1-5759e988-bd862e3fe1be46a994272793"
	testSegmentID = "defdfd9912dc5a56"
	testParentID  = "53995c3f42cd8ad8"
)

func TestDecodeDatagram(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantKind DecodeErrorKind
		wantErr  bool
		check    func(t *testing.T, s *Segment)
	}{
		{
			name:  "complete segment",
			input: Header + `{"trace_id":"` + testTraceID + `","id":"` + testSegmentID + `","name":"api","start_time":1461096053.37518,"end_time":1461096053.4042,"http":{"response":{"status":200}}}`,
			check: func(t *testing.T, s *Segment) {
				if s.TraceID() != testTraceID || s.ID() != testSegmentID || s.Name() != "api" {
					t.Errorf("unexpected identity fields: %s %s %s", s.TraceID(), s.ID(), s.Name())
				}
				end, present := s.EndTime()
				if !present || end != 1461096053.4042 {
					t.Errorf("expected end_time 1461096053.4042, got %v (present=%v)", end, present)
				}
				raw, found := s.Extra("http")
				if !found || !strings.Contains(string(raw), `"status":200`) {
					t.Errorf("expected http field to pass through, got %q", raw)
				}
			},
		},
		{
			name:  "in progress segment",
			input: Header + `{"trace_id":"` + testTraceID + `","id":"` + testSegmentID + `","name":"api","start_time":10,"in_progress":true}`,
			check: func(t *testing.T, s *Segment) {
				if !s.InProgress() {
					t.Errorf("expected in_progress")
				}
				if _, present := s.EndTime(); present {
					t.Errorf("expected no end_time")
				}
			},
		},
		{
			name:  "independent subsegment",
			input: Header + `{"trace_id":"` + testTraceID + `","id":"` + testSegmentID + `","parent_id":"` + testParentID + `","type":"subsegment","name":"db","start_time":10,"end_time":11}`,
			check: func(t *testing.T, s *Segment) {
				if !s.IsSubsegment() || s.ParentID() != testParentID {
					t.Errorf("expected subsegment of %s, got type %q parent %q", testParentID, s.Type(), s.ParentID())
				}
			},
		},
		{
			name:  "long name passes through",
			input: Header + `{"trace_id":"` + testTraceID + `","id":"` + testSegmentID + `","name":"` + strings.Repeat("n", 300) + `","start_time":10,"end_time":11}`,
			check: func(t *testing.T, s *Segment) {
				if len(s.Name()) != 300 {
					t.Errorf("expected name length 300, got %d", len(s.Name()))
				}
			},
		},
		{name: "empty datagram", input: "", wantErr: true, wantKind: MalformedHeader},
		{name: "no header newline", input: `{"format": "json", "version": 1}`, wantErr: true, wantKind: MalformedHeader},
		{name: "header not json", input: "hello\n{}", wantErr: true, wantKind: MalformedHeader},
		{name: "wrong format", input: `{"format": "xml", "version": 1}` + "\n{}", wantErr: true, wantKind: MalformedHeader},
		{name: "wrong version", input: `{"format": "json", "version": 2}` + "\n{}", wantErr: true, wantKind: MalformedHeader},
		{name: "missing version", input: `{"format": "json"}` + "\n{}", wantErr: true, wantKind: MalformedHeader},
		{name: "oversized header line", input: `{"format": "json", "version": 1, "pad": "` + strings.Repeat("x", 300) + `"}` + "\n{}", wantErr: true, wantKind: MalformedHeader},
		{name: "header only", input: Header, wantErr: true, wantKind: TruncatedPayload},
		{name: "cut off document", input: Header + `{"trace_id":"` + testTraceID + `","id":"def`, wantErr: true, wantKind: TruncatedPayload},
		{name: "document not an object", input: Header + `[1,2,3]`, wantErr: true, wantKind: InvalidEncoding},
		{name: "document garbage", input: Header + `{"a" 1}`, wantErr: true, wantKind: InvalidEncoding},
		{name: "null document", input: Header + `null`, wantErr: true, wantKind: InvalidEncoding},
		{name: "missing trace id", input: Header + `{"id":"` + testSegmentID + `","name":"a","start_time":1,"end_time":2}`, wantErr: true, wantKind: InvalidEncoding},
		{name: "bad segment id", input: Header + `{"trace_id":"` + testTraceID + `","id":"xyz","name":"a","start_time":1,"end_time":2}`, wantErr: true, wantKind: InvalidEncoding},
		{name: "missing name", input: Header + `{"trace_id":"` + testTraceID + `","id":"` + testSegmentID + `","start_time":1,"end_time":2}`, wantErr: true, wantKind: InvalidEncoding},
		{name: "missing start", input: Header + `{"trace_id":"` + testTraceID + `","id":"` + testSegmentID + `","name":"a","end_time":2}`, wantErr: true, wantKind: InvalidEncoding},
		{name: "no end and not in progress", input: Header + `{"trace_id":"` + testTraceID + `","id":"` + testSegmentID + `","name":"a","start_time":1}`, wantErr: true, wantKind: InvalidEncoding},
		{name: "end before start", input: Header + `{"trace_id":"` + testTraceID + `","id":"` + testSegmentID + `","name":"a","start_time":5,"end_time":2}`, wantErr: true, wantKind: InvalidEncoding},
		{name: "name wrong type", input: Header + `{"trace_id":"` + testTraceID + `","id":"` + testSegmentID + `","name":7,"start_time":1,"end_time":2}`, wantErr: true, wantKind: InvalidEncoding},
		{name: "subsegment without parent", input: Header + `{"trace_id":"` + testTraceID + `","id":"` + testSegmentID + `","type":"subsegment","name":"a","start_time":1,"end_time":2}`, wantErr: true, wantKind: InvalidEncoding},
		{name: "unknown type", input: Header + `{"trace_id":"` + testTraceID + `","id":"` + testSegmentID + `","type":"span","name":"a","start_time":1,"end_time":2}`, wantErr: true, wantKind: InvalidEncoding},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			segment, err := DecodeDatagram([]byte(tt.input))
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got segment %+v", segment)
				}
				var decodeErr *DecodeError
				if !errors.As(err, &decodeErr) {
					t.Fatalf("expected *DecodeError, got %T: %v", err, err)
				}
				if decodeErr.Kind != tt.wantKind {
					t.Errorf("expected kind %s, got %s (%v)", tt.wantKind, decodeErr.Kind, err)
				}
				if segment != nil {
					t.Errorf("expected nil segment on error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			tt.check(t, segment)
		})
	}
}

func TestDecodeDatagram_RoundTrip(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 125000000, time.UTC)
	doc, err := BeginSegment("checkout", start)
	if err != nil {
		t.Fatalf("BeginSegment: %v", err)
	}
	doc.Annotations = map[string]any{"customer": "abc"}
	doc.End(start.Add(1500 * time.Millisecond))

	datagram, err := EncodeDatagram(doc)
	if err != nil {
		t.Fatalf("EncodeDatagram: %v", err)
	}
	segment, err := DecodeDatagram(datagram)
	if err != nil {
		t.Fatalf("DecodeDatagram: %v", err)
	}

	if segment.TraceID() != doc.TraceID || segment.ID() != doc.ID || segment.Name() != doc.Name {
		t.Errorf("identity mismatch: got %s/%s/%s", segment.TraceID(), segment.ID(), segment.Name())
	}
	if segment.StartTime() != doc.StartTime {
		t.Errorf("start_time mismatch: got %v want %v", segment.StartTime(), doc.StartTime)
	}
	end, _ := segment.EndTime()
	if end != doc.EndTime {
		t.Errorf("end_time mismatch: got %v want %v", end, doc.EndTime)
	}
	if !SecondsToTime(segment.StartTime()).Equal(start) {
		t.Errorf("start time did not survive epoch conversion: %v", SecondsToTime(segment.StartTime()))
	}

	reencoded, err := segment.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	again, err := DecodeDocument(reencoded)
	if err != nil {
		t.Fatalf("DecodeDocument of re-encoded segment: %v", err)
	}
	if again.TraceID() != segment.TraceID() || again.StartTime() != segment.StartTime() {
		t.Errorf("re-encoded segment differs")
	}
	if _, found := again.Extra("annotations"); !found {
		t.Errorf("annotations lost in re-encode")
	}
}

func TestDecodeDatagram_MalformedDoesNotAffectNext(t *testing.T) {
	good := Header + `{"trace_id":"` + testTraceID + `","id":"` + testSegmentID + `","name":"a","start_time":1,"end_time":2}`
	inputs := []string{Header + `{"trace_id":`, good, "garbage", good}

	var decoded int
	for _, input := range inputs {
		segment, err := DecodeDatagram([]byte(input))
		if err == nil && segment != nil {
			decoded++
		}
	}
	if decoded != 2 {
		t.Errorf("expected 2 decoded segments, got %d", decoded)
	}
}

func TestSegmentRawIsCopy(t *testing.T) {
	input := []byte(Header + `{"trace_id":"` + testTraceID + `","id":"` + testSegmentID + `","name":"a","start_time":1,"end_time":2}`)
	segment, err := DecodeDatagram(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := range input {
		input[i] = 'x'
	}
	if segment.Name() != "a" || !strings.HasPrefix(segment.DocumentString(), "{") {
		t.Errorf("segment shares memory with input buffer")
	}
	raw := segment.Raw()
	raw[0] = '['
	if segment.DocumentString()[0] != '{' {
		t.Errorf("Raw returned internal slice")
	}
}

func TestTruncateName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  int
	}{
		{"short", "abc", 3},
		{"exact", strings.Repeat("a", MaxNameLen), MaxNameLen},
		{"long ascii", strings.Repeat("a", MaxNameLen+50), MaxNameLen},
		{"long multibyte", strings.Repeat("é", MaxNameLen+1), MaxNameLen},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TruncateName(tt.input)
			if n := len([]rune(got)); n != tt.want {
				t.Errorf("expected %d runes, got %d", tt.want, n)
			}
		})
	}
}

func TestDefaultDaemonAddress(t *testing.T) {
	t.Setenv("AWS_XRAY_DAEMON_ADDRESS", "10.0.0.5:3000")
	host, port := DefaultDaemonAddress()
	if host != "10.0.0.5" || port != 3000 {
		t.Errorf("expected 10.0.0.5:3000, got %s:%d", host, port)
	}

	t.Setenv("AWS_XRAY_DAEMON_ADDRESS", "not an address")
	host, port = DefaultDaemonAddress()
	if host != DefaultDaemonHost || port != DefaultDaemonPort {
		t.Errorf("expected fallback, got %s:%d", host, port)
	}
}
