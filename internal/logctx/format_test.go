package logctx

import (
	"encoding/json"
	"segmentd/internal/global"
	"strings"
	"testing"
	"time"
)

func TestEventFormat(t *testing.T) {
	ts := time.Date(2026, 1, 31, 12, 34, 56, 120000000, time.UTC)
	const stamp = "[2026-01-31T12:34:56.120000000Z]"

	tests := []struct {
		name  string
		event Event
		want  string
	}{
		{"full", Event{Timestamp: ts, Severity: global.InfoLog, Tags: []string{global.NSDaemon, global.NSUpload}, Message: "batch 3 uploaded"},
			stamp + " [Collector/Uploader] [Info] batch 3 uploaded"},
		{"no message", Event{Timestamp: ts, Severity: global.WarnLog, Tags: []string{global.NSDaemon}},
			stamp + " [Collector] [Warn]"},
		{"no tags", Event{Timestamp: ts, Severity: global.ErrorLog, Message: "bind failed"},
			stamp + " [Error] bind failed"},
		{"message only", Event{Message: "bare"}, "bare"},
		{"empty", Event{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.event.Format(); got != tt.want {
				t.Errorf("\ngot  %q\nwant %q", got, tt.want)
			}
		})
	}
}

func TestPadTimestamp(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
		want string
	}{
		{"utc", time.Date(2026, 1, 31, 12, 34, 56, 4832, time.UTC), "2026-01-31T12:34:56.000004832Z"},
		{"whole second", time.Date(2026, 1, 31, 12, 34, 56, 0, time.UTC), "2026-01-31T12:34:56.000000000Z"},
		{"east offset", time.Date(2026, 1, 31, 12, 34, 56, 987654321, time.FixedZone("", 2*3600)), "2026-01-31T12:34:56.987654321+02:00"},
		{"west offset", time.Date(2026, 1, 31, 12, 34, 56, 765, time.FixedZone("", -8*3600)), "2026-01-31T12:34:56.000000765-08:00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := padTimestamp(tt.in); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEventFormatJSON(t *testing.T) {
	event := Event{
		Timestamp: time.Date(2026, 1, 31, 12, 34, 56, 0, time.UTC),
		Severity:  global.ErrorLog,
		Tags:      []string{global.NSDaemon, global.NSUpload},
		Message:   "batch 4 discarded\n",
	}

	line := event.FormatJSON()
	if strings.Contains(string(line), "\n") {
		t.Errorf("line contains a newline: %s", line)
	}

	var decoded Event
	if err := json.Unmarshal(line, &decoded); err != nil {
		t.Fatalf("not valid JSON: %v", err)
	}
	if decoded.Message != "batch 4 discarded" || decoded.Severity != global.ErrorLog || len(decoded.Tags) != 2 {
		t.Errorf("decoded = %+v", decoded)
	}
	if !decoded.Timestamp.Equal(event.Timestamp) {
		t.Errorf("timestamp = %v", decoded.Timestamp)
	}
}
