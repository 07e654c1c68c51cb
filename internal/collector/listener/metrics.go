package listener

import (
	"segmentd/internal/metrics"
	"sync/atomic"
	"time"
)

type MetricStorage struct {
	BusyNs   atomic.Uint64 // sum of ns spent doing anything
	Received atomic.Uint64 // datagrams read off the socket
	Queued   atomic.Uint64 // datagrams handed to the decode queue
	Invalid  atomic.Uint64 // oversize or bad source
	Dropped  atomic.Uint64 // lost to a full queue (either policy)
	SumNs    atomic.Uint64 // sum of elapsed ns for all ops
	MaxNs    atomic.Uint64 // max observed op duration
}

func (instance *Instance) CollectMetrics(interval time.Duration) (collection []metrics.Metric) {
	// Read and clear
	busyNs := instance.Metrics.BusyNs.Swap(0)
	received := instance.Metrics.Received.Swap(0)
	queued := instance.Metrics.Queued.Swap(0)
	invalid := instance.Metrics.Invalid.Swap(0)
	dropped := instance.Metrics.Dropped.Swap(0)
	sumNs := instance.Metrics.SumNs.Swap(0)
	maxNs := instance.Metrics.MaxNs.Swap(0)

	recordTime := time.Now()

	busyPct := (float64(busyNs) / float64(interval.Nanoseconds())) * 100

	var avgNs uint64
	if received > 0 {
		avgNs = sumNs / received
	}

	counter := func(name, description string, value uint64) metrics.Metric {
		return metrics.Metric{
			Name:        name,
			Description: description,
			Namespace:   instance.Namespace,
			Value:       metrics.MetricValue{Raw: value, Unit: "count", Interval: interval},
			Type:        metrics.Counter,
			Timestamp:   recordTime,
		}
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
		counter("received_datagrams", "Datagrams read from the socket in the interval", received),
		counter("queued_datagrams", "Datagrams queued for decoding in the interval", queued),
		counter("invalid_datagrams", "Datagrams rejected before queueing in the interval", invalid),
		counter("dropped_datagrams", "Datagrams lost to a full decode queue in the interval", dropped),
		{
			Name:        "elapsed_time_avg_ns",
			Description: "Average time spent handling a datagram in the interval",
			Namespace:   instance.Namespace,
			Value:       metrics.MetricValue{Raw: avgNs, Unit: "ns", Interval: interval},
			Type:        metrics.Summary,
			Timestamp:   recordTime,
		},
		{
			Name:        "elapsed_time_max_ns",
			Description: "Maximum (seen) time spent handling a datagram in the interval",
			Namespace:   instance.Namespace,
			Value:       metrics.MetricValue{Raw: maxNs, Unit: "ns", Interval: interval},
			Type:        metrics.Summary,
			Timestamp:   recordTime,
		},
	}
	return
}
