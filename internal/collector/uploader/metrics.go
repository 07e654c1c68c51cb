package uploader

import (
	"segmentd/internal/metrics"
	"sync/atomic"
	"time"
)

type MetricStorage struct {
	InFlight atomic.Uint64 // sends currently holding a concurrency slot
	Sends    atomic.Uint64 // backend calls made
	SendNs   atomic.Uint64 // sum of ns spent in backend calls
}

func (instance *Instance) CollectMetrics(interval time.Duration) (collection []metrics.Metric) {
	sends := instance.Metrics.Sends.Swap(0)
	sendNs := instance.Metrics.SendNs.Swap(0)
	inFlight := instance.Metrics.InFlight.Load()

	recordTime := time.Now()

	var avgNs uint64
	if sends > 0 {
		avgNs = sendNs / sends
	}

	// Share of the available send slots in use over the interval
	busyPct := (float64(sendNs) / float64(interval.Nanoseconds()*int64(instance.cfg.Concurrency))) * 100

	collection = []metrics.Metric{
		{
			Name:        "busy_time_percent",
			Description: "Share of upload concurrency spent in backend calls in the interval",
			Namespace:   instance.Namespace,
			Value:       metrics.MetricValue{Raw: busyPct, Unit: "%", Interval: interval},
			Type:        metrics.Summary,
			Timestamp:   recordTime,
		},
		{
			Name:        "in_flight_sends",
			Description: "Backend calls in progress",
			Namespace:   instance.Namespace,
			Value:       metrics.MetricValue{Raw: inFlight, Unit: "count", Interval: interval},
			Type:        metrics.Gauge,
			Timestamp:   recordTime,
		},
		{
			Name:        "sends_total",
			Description: "Backend calls made in the interval",
			Namespace:   instance.Namespace,
			Value:       metrics.MetricValue{Raw: sends, Unit: "count", Interval: interval},
			Type:        metrics.Counter,
			Timestamp:   recordTime,
		},
		{
			Name:        "send_time_avg_ns",
			Description: "Average backend call duration in the interval",
			Namespace:   instance.Namespace,
			Value:       metrics.MetricValue{Raw: avgNs, Unit: "ns", Interval: interval},
			Type:        metrics.Summary,
			Timestamp:   recordTime,
		},
	}
	return
}
