package metrics

import (
	"segmentd/internal/global"
	"testing"
	"time"
)

func depth(ns []string, value uint64, at time.Time) Metric {
	return Metric{
		Name:        "depth",
		Description: "Queue depth",
		Namespace:   ns,
		Type:        Gauge,
		Timestamp:   at,
		Value:       MetricValue{Raw: value, Unit: "count", Interval: time.Second},
	}
}

func TestNewTimeSlice(t *testing.T) {
	registry := New()
	base := time.Unix(1700000000, 0)

	first := registry.NewTimeSlice(base.Add(400*time.Millisecond), time.Second)
	if !first.Equal(base) {
		t.Errorf("slice key = %v, want %v", first, base)
	}
	again := registry.NewTimeSlice(base.Add(900*time.Millisecond), time.Second)
	if !again.Equal(first) || registry.Slices() != 1 {
		t.Errorf("same interval opened a second slice (%d slices)", registry.Slices())
	}

	// Out of order creation still yields sorted slices
	registry.NewTimeSlice(base.Add(5*time.Second), time.Second)
	registry.NewTimeSlice(base.Add(2*time.Second), time.Second)
	if registry.Slices() != 3 {
		t.Fatalf("slices = %d", registry.Slices())
	}
	for i := 1; i < len(registry.slices); i++ {
		if !registry.slices[i-1].at.Before(registry.slices[i].at) {
			t.Fatalf("slices out of order at %d", i)
		}
	}
}

func TestAdd(t *testing.T) {
	registry := New()
	base := time.Unix(1700000000, 0)
	ns := []string{global.NSDaemon, global.NSQueue}
	slice := registry.NewTimeSlice(base, time.Second)

	registry.Add(slice, []Metric{depth(ns, 3, base)})
	registry.Add(slice, []Metric{depth(ns, 9, base)})
	// Unknown slice is ignored
	registry.Add(base.Add(time.Hour), []Metric{depth(ns, 1, base)})

	results := registry.Search("depth", nil, time.Time{}, time.Time{})
	if len(results) != 1 {
		t.Fatalf("results = %d, want 1", len(results))
	}
	if results[0].Value.Raw.(uint64) != 9 {
		t.Errorf("value = %v, want latest sample 9", results[0].Value.Raw)
	}
}

func TestPrune(t *testing.T) {
	registry := New()
	base := time.Unix(1700000000, 0)
	for i := 0; i < 10; i++ {
		at := base.Add(time.Duration(i) * time.Second)
		slice := registry.NewTimeSlice(at, time.Second)
		registry.Add(slice, []Metric{depth([]string{global.NSDaemon}, uint64(i), at)})
	}

	registry.Prune(base.Add(9*time.Second), 3*time.Second)
	if registry.Slices() != 4 {
		t.Fatalf("slices after prune = %d, want 4", registry.Slices())
	}
	results := registry.Search("depth", nil, time.Time{}, time.Time{})
	if len(results) != 4 || results[0].Value.Raw.(uint64) != 6 {
		t.Errorf("oldest kept sample = %v", results[0].Value.Raw)
	}

	// Nothing old enough
	registry.Prune(base.Add(9*time.Second), time.Hour)
	if registry.Slices() != 4 {
		t.Errorf("slices = %d, want 4", registry.Slices())
	}

	registry.Prune(base.Add(time.Hour), time.Second)
	if registry.Slices() != 0 {
		t.Errorf("slices = %d, want 0", registry.Slices())
	}
}
