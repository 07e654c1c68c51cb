package server

import (
	"context"
	"segmentd/internal/metrics"
	"time"
)

// Registry query functions served over HTTP
type DataSearcher func(name string, namespacePrefix []string, start, end time.Time) []metrics.Metric
type Discoverer func(name, description string, namespacePrefix []string, unit string, metricType metrics.MetricType) []metrics.Metric
type AggSearcher func(aggType, name string, namespacePrefix []string, start, end time.Time) (metrics.Metric, error)

type queryHandlers struct {
	ctx       context.Context
	search    DataSearcher
	discover  Discoverer
	aggregate AggSearcher
}

// Error body for every non-2xx JSON response
type Jerror struct {
	Msg string `json:"error"`
}

// Routes net/http server errors into the context logger
type httpLogWriter struct {
	ctx context.Context
}
