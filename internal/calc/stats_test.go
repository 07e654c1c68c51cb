package calc

import (
	"math"
	"testing"
)

func TestTrimmedMean(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		trim   float64
		want   float64
	}{
		{"empty", nil, 0.1, 0},
		{"single", []float64{42}, 0.1, 42},
		{"no trim", []float64{1, 2, 3, 4}, 0, 2.5},
		{"outliers dropped", []float64{100, 1, 2, 3, 4, 5, 6, 7, 8, -50}, 0.1, 4.5},
		{"negative trim is none", []float64{1, 2, 9}, -1, 4},
		{"oversized trim keeps median", []float64{1, 5, 9}, 0.9, 5},
		{"two values never trimmed away", []float64{10, 20}, 0.5, 15},
		{"unsorted input", []float64{9, 1, 5, 3, 7}, 0.2, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TrimmedMean(tt.values, tt.trim)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("TrimmedMean(%v, %v) = %v, want %v", tt.values, tt.trim, got, tt.want)
			}
		})
	}
}

func TestTrimmedMean_InputUntouched(t *testing.T) {
	values := []float64{3, 1, 2}
	TrimmedMean(values, 0.3)
	if values[0] != 3 || values[1] != 1 || values[2] != 2 {
		t.Errorf("input reordered: %v", values)
	}
}

func TestLinearFit(t *testing.T) {
	tests := []struct {
		name      string
		values    []float64
		wantMean  float64
		wantSlope float64
		wantOK    bool
	}{
		{"rising line", []float64{1, 3, 5, 7}, 4, 2, true},
		{"flat", []float64{6, 6, 6}, 6, 0, true},
		{"falling", []float64{30, 20, 10}, 20, -10, true},
		{"single", []float64{5}, 0, 0, false},
		{"empty", nil, 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mean, slope, ok := LinearFit(tt.values)
			if ok != tt.wantOK || math.Abs(mean-tt.wantMean) > 1e-9 || math.Abs(slope-tt.wantSlope) > 1e-9 {
				t.Errorf("LinearFit(%v) = (%v, %v, %v), want (%v, %v, %v)",
					tt.values, mean, slope, ok, tt.wantMean, tt.wantSlope, tt.wantOK)
			}
		})
	}
}
