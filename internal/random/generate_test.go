package random

import (
	"encoding/hex"
	"testing"
	"time"
)

func TestHex(t *testing.T) {
	tests := []struct {
		name        string
		bytes       int
		expectLen   int
		expectError bool
	}{
		{name: "segment id size", bytes: 8, expectLen: 16},
		{name: "trace id random part", bytes: 12, expectLen: 24},
		{name: "zero length rejected", bytes: 0, expectError: true},
		{name: "negative length rejected", bytes: -3, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Hex(tt.bytes)
			if (err != nil) != tt.expectError {
				t.Fatalf("Hex(%d) error = %v, expectError %v", tt.bytes, err, tt.expectError)
			}
			if tt.expectError {
				return
			}
			if len(got) != tt.expectLen {
				t.Errorf("Hex(%d) length = %d, want %d", tt.bytes, len(got), tt.expectLen)
			}
			if _, err := hex.DecodeString(got); err != nil {
				t.Errorf("Hex(%d) produced non-hex output %q", tt.bytes, got)
			}
		})
	}
}

func TestNumberInRange(t *testing.T) {
	tests := []struct {
		name        string
		min, max    int64
		expectError bool
	}{
		{name: "Valid range", min: 1, max: 10},
		{name: "Single value range", min: 5, max: 5},
		{name: "Negative range", min: -10, max: -1},
		{name: "Invalid range", min: 10, max: 1, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i := 0; i < 50; i++ {
				got, err := NumberInRange(tt.min, tt.max)
				if (err != nil) != tt.expectError {
					t.Fatalf("NumberInRange() error = %v, expectError %v", err, tt.expectError)
				}
				if tt.expectError {
					return
				}
				if got < tt.min || got > tt.max {
					t.Fatalf("NumberInRange() = %d, outside [%d, %d]", got, tt.min, tt.max)
				}
			}
		})
	}
}

func TestDuration(t *testing.T) {
	if got := Duration(0); got != 0 {
		t.Errorf("Duration(0) = %v, want 0", got)
	}
	if got := Duration(-time.Second); got != 0 {
		t.Errorf("Duration(-1s) = %v, want 0", got)
	}
	for i := 0; i < 100; i++ {
		got := Duration(time.Second)
		if got < 0 || got > time.Second {
			t.Fatalf("Duration(1s) = %v, outside [0, 1s]", got)
		}
	}
}
