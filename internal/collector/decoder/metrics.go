package decoder

import (
	"segmentd/internal/metrics"
	"sync/atomic"
	"time"
)

type MetricStorage struct {
	BusyNs  atomic.Uint64 // sum of ns spent decoding and handing off
	Valid   atomic.Uint64 // datagrams that decoded into a segment
	Invalid atomic.Uint64 // datagrams rejected by the decoder
	SumNs   atomic.Uint64 // sum of elapsed ns for all ops
	MaxNs   atomic.Uint64 // max observed op duration
}

func (instance *Instance) CollectMetrics(interval time.Duration) (collection []metrics.Metric) {
	// Read and clear
	busyNs := instance.Metrics.BusyNs.Swap(0)
	valid := instance.Metrics.Valid.Swap(0)
	invalid := instance.Metrics.Invalid.Swap(0)
	sumNs := instance.Metrics.SumNs.Swap(0)
	maxNs := instance.Metrics.MaxNs.Swap(0)

	recordTime := time.Now()

	busyPct := (float64(busyNs) / float64(interval.Nanoseconds())) * 100

	var avgNs uint64
	if total := valid + invalid; total > 0 {
		avgNs = sumNs / total
	}

	collection = []metrics.Metric{
		{
			Name:        "busy_time_percent",
			Description: "Total time spent doing anything in the interval",
			Namespace:   instance.Namespace,
			Value:       metrics.MetricValue{Raw: busyPct, Unit: "%", Interval: interval},
			Type:        metrics.Summary,
			Timestamp:   recordTime,
		},
		{
			Name:        "valid_segments_total",
			Description: "Total datagrams decoded into segments in the interval",
			Namespace:   instance.Namespace,
			Value:       metrics.MetricValue{Raw: valid, Unit: "count", Interval: interval},
			Type:        metrics.Counter,
			Timestamp:   recordTime,
		},
		{
			Name:        "invalid_datagrams_total",
			Description: "Total datagrams that failed to decode in the interval",
			Namespace:   instance.Namespace,
			Value:       metrics.MetricValue{Raw: invalid, Unit: "count", Interval: interval},
			Type:        metrics.Counter,
			Timestamp:   recordTime,
		},
		{
			Name:        "elapsed_time_avg_ns",
			Description: "Average time spent processing datagrams in the interval",
			Namespace:   instance.Namespace,
			Value:       metrics.MetricValue{Raw: avgNs, Unit: "ns", Interval: interval},
			Type:        metrics.Summary,
			Timestamp:   recordTime,
		},
		{
			Name:        "elapsed_time_max_ns",
			Description: "Maximum (seen) time spent processing datagrams in the interval",
			Namespace:   instance.Namespace,
			Value:       metrics.MetricValue{Raw: maxNs, Unit: "ns", Interval: interval},
			Type:        metrics.Summary,
			Timestamp:   recordTime,
		},
	}
	return
}
