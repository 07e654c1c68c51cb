package metrics

import (
	"math"
	"segmentd/internal/global"
	"testing"
	"time"
)

// Four slices: decode queue depth, two listener counters and an uploader gauge
func populated(t *testing.T) (registry *Registry, base time.Time) {
	t.Helper()
	registry = New()
	base = time.Unix(1700000000, 0)

	queueNS := []string{global.NSDaemon, global.NSmProc, global.NSQueue}
	listenerNS := []string{global.NSDaemon, global.NSmInput, "0", global.NSWorker}
	uploadNS := []string{global.NSDaemon, global.NSUpload}

	depths := []uint64{10, 20, 5, 15}
	for i, value := range depths {
		at := base.Add(time.Duration(i) * time.Second)
		slice := registry.NewTimeSlice(at, time.Second)
		collection := []Metric{depth(queueNS, value, at)}
		if i%2 == 0 {
			collection = append(collection, Metric{
				Name:        "datagrams_received",
				Description: "Datagrams read from the socket",
				Namespace:   listenerNS,
				Type:        Counter,
				Timestamp:   at,
				Value:       MetricValue{Raw: uint64(100 * (i + 1)), Unit: "count", Interval: time.Second},
			})
		}
		if i == 3 {
			collection = append(collection, Metric{
				Name:        "inflight",
				Description: "Batches being uploaded",
				Namespace:   uploadNS,
				Type:        Gauge,
				Timestamp:   at,
				Value:       MetricValue{Raw: float64(1.5), Unit: "count", Interval: time.Second},
			})
		}
		registry.Add(slice, collection)
	}
	return
}

func TestSearch(t *testing.T) {
	registry, base := populated(t)

	tests := []struct {
		name      string
		metric    string
		namespace []string
		start     time.Time
		end       time.Time
		want      int
	}{
		{"everything", "", nil, time.Time{}, time.Time{}, 7},
		{"by name", "depth", nil, time.Time{}, time.Time{}, 4},
		{"by namespace", "", []string{global.NSDaemon, global.NSmInput}, time.Time{}, time.Time{}, 2},
		{"namespace component must match whole", "", []string{global.NSDaemon, "Up"}, time.Time{}, time.Time{}, 0},
		{"window", "depth", nil, base.Add(time.Second), base.Add(2 * time.Second), 2},
		{"open end", "", nil, base.Add(3 * time.Second), time.Time{}, 2},
		{"unknown", "missing", nil, time.Time{}, time.Time{}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := registry.Search(tt.metric, tt.namespace, tt.start, tt.end)
			if len(got) != tt.want {
				t.Errorf("Search = %d results, want %d", len(got), tt.want)
			}
		})
	}

	ordered := registry.Search("depth", nil, time.Time{}, time.Time{})
	for i := 1; i < len(ordered); i++ {
		if ordered[i].Timestamp.Before(ordered[i-1].Timestamp) {
			t.Fatal("results not ordered oldest first")
		}
	}
}

func TestDiscover(t *testing.T) {
	registry, _ := populated(t)

	tests := []struct {
		name        string
		metric      string
		description string
		namespace   []string
		unit        string
		kind        MetricType
		want        []string
	}{
		{"all series", "", "", nil, "", "", []string{"datagrams_received", "depth", "inflight"}},
		{"substring name", "gram", "", nil, "", "", []string{"datagrams_received"}},
		{"description", "", "Batches", nil, "", "", []string{"inflight"}},
		{"type", "", "", nil, "", Gauge, []string{"depth", "inflight"}},
		{"unit", "", "", nil, "ns", "", nil},
		{"namespace", "", "", []string{global.NSDaemon, global.NSUpload}, "", "", []string{"inflight"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := registry.Discover(tt.metric, tt.description, tt.namespace, tt.unit, tt.kind)
			if len(got) != len(tt.want) {
				t.Fatalf("Discover = %d series, want %d", len(got), len(tt.want))
			}
			for i, metric := range got {
				if metric.Name != tt.want[i] {
					t.Errorf("series %d = %s, want %s", i, metric.Name, tt.want[i])
				}
				if metric.Value.Raw != nil || !metric.Timestamp.IsZero() {
					t.Errorf("series %s carries sample data", metric.Name)
				}
			}
		})
	}
}

func TestAggregate(t *testing.T) {
	registry, base := populated(t)
	queueNS := []string{global.NSDaemon, global.NSmProc, global.NSQueue}

	tests := []struct {
		name string
		agg  string
		want float64
	}{
		{"sum", "sum", 50},
		{"avg", "avg", 12.5},
		{"default is avg", "", 12.5},
		{"min", "min", 5},
		{"max", "max", 20},
		{"count", "count", 4},
		{"last", "last", 15},
		{"trimmed mean", "trimmed_mean", 12.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := registry.Aggregate(tt.agg, "depth", queueNS, time.Time{}, time.Time{})
			if err != nil {
				t.Fatalf("Aggregate: %v", err)
			}
			got := result.Value.Raw.(float64)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("%s = %v, want %v", tt.agg, got, tt.want)
			}
			if result.Type != Summary || result.Value.Unit != "count" {
				t.Errorf("result = %+v", result)
			}
		})
	}

	result, err := registry.Aggregate("sum", "depth", queueNS, base, base.Add(3*time.Second))
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if result.Value.Interval != 4*time.Second {
		t.Errorf("interval = %v, want 4s", result.Value.Interval)
	}

	errorCases := []struct {
		name   string
		agg    string
		metric string
	}{
		{"no name", "sum", ""},
		{"no samples", "sum", "missing"},
		{"unknown aggregation", "median", "depth"},
	}
	for _, tt := range errorCases {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := registry.Aggregate(tt.agg, tt.metric, nil, time.Time{}, time.Time{}); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestAggregate_MixedNamespaces(t *testing.T) {
	registry := New()
	base := time.Unix(1700000000, 0)
	slice := registry.NewTimeSlice(base, time.Second)
	registry.Add(slice, []Metric{
		depth([]string{global.NSDaemon, global.NSmProc, global.NSQueue}, 1, base),
		depth([]string{global.NSDaemon, global.NSUpload, global.NSQueue}, 2, base),
	})

	if _, err := registry.Aggregate("sum", "depth", []string{global.NSDaemon}, time.Time{}, time.Time{}); err == nil {
		t.Fatal("expected namespace error")
	}
}
