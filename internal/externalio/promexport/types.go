package promexport

import (
	"segmentd/internal/metrics"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Source of pipeline counter values
type Snapshotter interface {
	Snapshot() map[string]uint64
	IsGauge(name string) bool
}

// Exposes pipeline counters as Prometheus metrics on collection
type Exporter struct {
	namespace string
	source    Snapshotter
	mu        sync.Mutex
	descs     map[string]*prometheus.Desc
	Registry  *prometheus.Registry
}

var _ Snapshotter = (*metrics.Counters)(nil)
