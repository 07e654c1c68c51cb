package metrics

import (
	"segmentd/internal/collector/shared"
	"segmentd/internal/metrics"
	"time"
)

// Periodically snapshots every pipeline component into Registry
type Gatherer struct {
	Mgrs      shared.Managers
	Registry  *metrics.Registry
	Interval  time.Duration // one time slice per interval
	Retention time.Duration // slices older than this are pruned
}
