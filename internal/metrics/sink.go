package metrics

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Destination for pipeline counters. Components receive one from their owner
// instead of reaching for package level state.
type Sink interface {
	Add(name string, delta uint64)
	Set(name string, value uint64)
}

// Sink that records nothing
type Discard struct{}

func (Discard) Add(string, uint64) {}
func (Discard) Set(string, uint64) {}

// Named monotonic counters and gauges, safe for concurrent use
type Counters struct {
	Namespace []string

	mu       sync.RWMutex
	values   map[string]*atomic.Uint64
	gauges   map[string]bool
	reported map[string]uint64 // Counter totals at the last CollectMetrics
}

func NewCounters(namespace []string) (new *Counters) {
	new = &Counters{
		Namespace: namespace,
		values:    make(map[string]*atomic.Uint64),
		gauges:    make(map[string]bool),
		reported:  make(map[string]uint64),
	}
	return
}

func (counters *Counters) slot(name string, gauge bool) (value *atomic.Uint64) {
	counters.mu.RLock()
	value = counters.values[name]
	counters.mu.RUnlock()
	if value != nil {
		return
	}

	counters.mu.Lock()
	defer counters.mu.Unlock()
	value = counters.values[name]
	if value == nil {
		value = &atomic.Uint64{}
		counters.values[name] = value
		counters.gauges[name] = gauge
	}
	return
}

func (counters *Counters) Add(name string, delta uint64) {
	counters.slot(name, false).Add(delta)
}

func (counters *Counters) Set(name string, value uint64) {
	counters.slot(name, true).Store(value)
}

// Current value; zero for names never recorded
func (counters *Counters) Get(name string) (value uint64) {
	counters.mu.RLock()
	defer counters.mu.RUnlock()
	if slot, ok := counters.values[name]; ok {
		value = slot.Load()
	}
	return
}

// Whether name was recorded through Set
func (counters *Counters) IsGauge(name string) (gauge bool) {
	counters.mu.RLock()
	defer counters.mu.RUnlock()
	gauge = counters.gauges[name]
	return
}

// Point in time copy of every value
func (counters *Counters) Snapshot() (snapshot map[string]uint64) {
	counters.mu.RLock()
	defer counters.mu.RUnlock()
	snapshot = make(map[string]uint64, len(counters.values))
	for name, value := range counters.values {
		snapshot[name] = value.Load()
	}
	return
}

// Sorted names of every recorded value
func (counters *Counters) Names() (names []string) {
	counters.mu.RLock()
	defer counters.mu.RUnlock()
	names = make([]string, 0, len(counters.values))
	for name := range counters.values {
		names = append(names, name)
	}
	sort.Strings(names)
	return
}

// Counters are reported as the increase since the previous collection, gauges as their current value
func (counters *Counters) CollectMetrics(interval time.Duration) (collection []Metric) {
	recordTime := time.Now()

	counters.mu.Lock()
	defer counters.mu.Unlock()

	names := make([]string, 0, len(counters.values))
	for name := range counters.values {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		current := counters.values[name].Load()

		metric := Metric{
			Name:      name,
			Namespace: counters.Namespace,
			Timestamp: recordTime,
			Value: MetricValue{
				Unit:     "count",
				Interval: interval,
			},
		}
		if counters.gauges[name] {
			metric.Type = Gauge
			metric.Description = "Current value of " + name
			metric.Value.Raw = current
		} else {
			metric.Type = Counter
			metric.Description = "Increase of " + name + " in the interval"
			metric.Value.Raw = current - counters.reported[name]
			counters.reported[name] = current
		}
		collection = append(collection, metric)
	}
	return
}
