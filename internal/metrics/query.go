package metrics

import (
	"sort"
	"strings"
	"time"
)

// Component-wise prefix match. An empty query matches everything.
func hasNamespacePrefix(namespace string, query []string) (matches bool) {
	if len(query) == 0 {
		matches = true
		return
	}
	components := strings.Split(namespace, "/")
	if len(components) < len(query) {
		return
	}
	for i, part := range query {
		if components[i] != part {
			return
		}
	}
	matches = true
	return
}

// Keys of a slice ordered by namespace then name
func sortedKeys(series map[seriesKey]Metric) (keys []seriesKey) {
	keys = make([]seriesKey, 0, len(series))
	for key := range series {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].namespace != keys[j].namespace {
			return keys[i].namespace < keys[j].namespace
		}
		return keys[i].name < keys[j].name
	})
	return
}

// Samples oldest first. Empty name or prefix match all; zero start/end leave the window open.
func (registry *Registry) Search(name string, namespacePrefix []string, start, end time.Time) (results []Metric) {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	first := 0
	if !start.IsZero() {
		first = registry.lowerBound(start)
	}
	for _, current := range registry.slices[first:] {
		if !end.IsZero() && current.at.After(end) {
			break
		}
		for _, key := range sortedKeys(current.series) {
			if name != "" && key.name != name {
				continue
			}
			if !hasNamespacePrefix(key.namespace, namespacePrefix) {
				continue
			}
			results = append(results, current.series[key])
		}
	}
	return
}

// Distinct series across all slices, without values or timestamps.
// name and description are substring filters, unit and type exact. Empty filters match all.
func (registry *Registry) Discover(name, description string, namespacePrefix []string, unit string, metricType MetricType) (results []Metric) {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	type identity struct {
		key   seriesKey
		kind  MetricType
		unit  string
		label string
	}
	seen := make(map[identity]bool)

	for _, current := range registry.slices {
		for key, metric := range current.series {
			if name != "" && !strings.Contains(metric.Name, name) {
				continue
			}
			if description != "" && !strings.Contains(metric.Description, description) {
				continue
			}
			if unit != "" && metric.Value.Unit != unit {
				continue
			}
			if metricType != "" && metric.Type != metricType {
				continue
			}
			if !hasNamespacePrefix(key.namespace, namespacePrefix) {
				continue
			}

			id := identity{key: key, kind: metric.Type, unit: metric.Value.Unit}
			if seen[id] {
				continue
			}
			seen[id] = true

			results = append(results, Metric{
				Name:        metric.Name,
				Description: metric.Description,
				Namespace:   metric.Namespace,
				Type:        metric.Type,
				Value:       MetricValue{Unit: metric.Value.Unit},
			})
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Name != results[j].Name {
			return results[i].Name < results[j].Name
		}
		return strings.Join(results[i].Namespace, "/") < strings.Join(results[j].Namespace, "/")
	})
	return
}
