package metrics

import (
	"sync"
	"time"
)

// Time sliced metric store. Slices are kept sorted oldest first.
type Registry struct {
	mu     sync.RWMutex
	slices []*slice
}

// Every sample collected in one interval, one per namespace+name
type slice struct {
	at     time.Time
	series map[seriesKey]Metric
}

type seriesKey struct {
	namespace string // components joined with "/"
	name      string
}

type MetricType string

const (
	Counter MetricType = "counter" // delta since the previous collection
	Gauge   MetricType = "gauge"   // point in time reading
	Summary MetricType = "summary" // derived (avg/min/max/percent)
)

type Metric struct {
	Name        string // e.g. segments_decoded, queue_depth
	Description string
	Namespace   []string // e.g. Collector/Proc/0/Worker
	Value       MetricValue
	Type        MetricType
	Timestamp   time.Time // collection time
}

type MetricValue struct {
	Raw      interface{}   // uint64 or float64
	Unit     string        // ns, bytes, count, percent
	Interval time.Duration // window the value covers
}

// JSON form served by the query server
type JMetric struct {
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Namespace   string       `json:"namespace"`
	Value       JMetricValue `json:"value"`
	Type        string       `json:"type"`
	Timestamp   string       `json:"timestamp"`
}

type JMetricValue struct {
	Raw      string `json:"raw"`
	Unit     string `json:"unit"`
	Interval string `json:"interval"`
}
