package scaling

import (
	"segmentd/internal/collector/shared"
	"segmentd/internal/metrics"
	"time"
)

type Instance struct {
	PollInterval time.Duration
	MetricStore  *metrics.Registry
	Managers     shared.Managers
}

// Number of poll intervals of history a decision needs
const pastNIntervals int = 5
