// Time sliced storage for pipeline metrics, queried by the autoscaler and the metric servers
package metrics

import (
	"sort"
	"strings"
	"time"
)

func New() (new *Registry) {
	new = &Registry{}
	return
}

// Index of the first slice at or after t
func (registry *Registry) lowerBound(t time.Time) int {
	return sort.Search(len(registry.slices), func(i int) bool {
		return !registry.slices[i].at.Before(t)
	})
}

// Returns the slice for exactly t, or nil
func (registry *Registry) lookup(t time.Time) (found *slice) {
	i := registry.lowerBound(t)
	if i < len(registry.slices) && registry.slices[i].at.Equal(t) {
		found = registry.slices[i]
	}
	return
}

// Opens (or reuses) the slice for now rounded down to interval and returns its key
func (registry *Registry) NewTimeSlice(now time.Time, interval time.Duration) (timeSlice time.Time) {
	timeSlice = now.Truncate(interval)

	registry.mu.Lock()
	defer registry.mu.Unlock()

	i := registry.lowerBound(timeSlice)
	if i < len(registry.slices) && registry.slices[i].at.Equal(timeSlice) {
		return
	}

	registry.slices = append(registry.slices, nil)
	copy(registry.slices[i+1:], registry.slices[i:])
	registry.slices[i] = &slice{at: timeSlice, series: make(map[seriesKey]Metric)}
	return
}

// Stores metrics in an open slice. Unknown slices are ignored. A later sample replaces an earlier one of the same series.
func (registry *Registry) Add(timeSlice time.Time, metrics []Metric) {
	registry.mu.Lock()
	defer registry.mu.Unlock()

	target := registry.lookup(timeSlice)
	if target == nil {
		return
	}
	for _, metric := range metrics {
		key := seriesKey{namespace: strings.Join(metric.Namespace, "/"), name: metric.Name}
		target.series[key] = metric
	}
}

// Drops slices older than maxAge relative to now
func (registry *Registry) Prune(now time.Time, maxAge time.Duration) {
	registry.mu.Lock()
	defer registry.mu.Unlock()

	keep := registry.lowerBound(now.Add(-maxAge))
	if keep == 0 {
		return
	}
	remaining := copy(registry.slices, registry.slices[keep:])
	clear(registry.slices[remaining:])
	registry.slices = registry.slices[:remaining]
}

// Number of slices held
func (registry *Registry) Slices() (count int) {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	count = len(registry.slices)
	return
}
