package mpmc

import (
	"segmentd/internal/metrics"
	"sync/atomic"
	"time"
)

type MetricStorage struct {
	Depth     atomic.Uint64 // Current items in queue
	Bytes     atomic.Uint64 // Current byte size of queued items (producer reported)
	PeakDepth atomic.Uint64 // Highest depth seen in the interval

	PushAttempts   atomic.Uint64 // every Push call
	PushSuccess    atomic.Uint64 // CAS success
	PushCASRetries atomic.Uint64 // seq==pos but CAS lost
	PushFull       atomic.Uint64 // rejected, no free cell
	PushSeqAhead   atomic.Uint64 // cell not yet released by a consumer
	Evicted        atomic.Uint64 // oldest elements removed to admit new ones

	PopAttempts    atomic.Uint64 // every Pop/TryPop loop
	PopSuccess     atomic.Uint64 // CAS success
	PopCASRetries  atomic.Uint64 // CAS lost
	PopEmpty       atomic.Uint64 // found nothing to read
	PopWaitSignals atomic.Uint64 // woken by a producer
	PopSeqBehind   atomic.Uint64 // another consumer ahead
}

func (container *Queue[T]) CollectMetrics(interval time.Duration) (collection []metrics.Metric) {
	queues := []*QueueInst[T]{container.ActiveWrite.Load()}
	readQueue := container.ActiveRead.Load()
	if readQueue != queues[0] {
		queues = append(queues, readQueue)
	}

	agg := struct {
		Depth, Bytes, PeakDepth                                               uint64
		PushAttempts, PushSuccess, PushCASRetries, PushFull, PushSeq, Evicted uint64
		PopAttempts, PopSuccess, PopCASRetries, PopEmpty, PopWait, PopSeq     uint64
	}{}

	for _, q := range queues {
		agg.Depth += q.Metrics.Depth.Load()
		agg.Bytes += q.Metrics.Bytes.Load()
		agg.PeakDepth = max(agg.PeakDepth, q.Metrics.PeakDepth.Swap(q.Metrics.Depth.Load()))
		agg.PushAttempts += q.Metrics.PushAttempts.Swap(0)
		agg.PushSuccess += q.Metrics.PushSuccess.Swap(0)
		agg.PushCASRetries += q.Metrics.PushCASRetries.Swap(0)
		agg.PushFull += q.Metrics.PushFull.Swap(0)
		agg.PushSeq += q.Metrics.PushSeqAhead.Swap(0)
		agg.Evicted += q.Metrics.Evicted.Swap(0)
		agg.PopAttempts += q.Metrics.PopAttempts.Swap(0)
		agg.PopSuccess += q.Metrics.PopSuccess.Swap(0)
		agg.PopCASRetries += q.Metrics.PopCASRetries.Swap(0)
		agg.PopEmpty += q.Metrics.PopEmpty.Swap(0)
		agg.PopWait += q.Metrics.PopWaitSignals.Swap(0)
		agg.PopSeq += q.Metrics.PopSeqBehind.Swap(0)
	}

	recordTime := time.Now()

	add := func(name string, raw interface{}, unit string, t metrics.MetricType, description string) {
		collection = append(collection, metrics.Metric{
			Name:        name,
			Description: description,
			Namespace:   queues[0].Namespace,
			Type:        t,
			Timestamp:   recordTime,
			Value: metrics.MetricValue{
				Raw:      raw,
				Unit:     unit,
				Interval: interval,
			},
		})
	}

	add("depth", agg.Depth, "count", metrics.Gauge, "Current number of items in the queue")
	add("peak_depth", agg.PeakDepth, "count", metrics.Gauge, "Highest number of items in the queue during the interval")
	add("capacity", uint64(queues[0].Size), "count", metrics.Gauge, "Current capacity of the writable queue")
	add("byte_sum", agg.Bytes, "bytes", metrics.Gauge, "Byte sum of all items in the queue")
	add("push_attempts", agg.PushAttempts, "count", metrics.Counter, "Total push attempts in the interval")
	add("push_success", agg.PushSuccess, "count", metrics.Counter, "Total push attempts that succeeded in the interval")
	add("push_cas_retries", agg.PushCASRetries, "count", metrics.Counter, "Sum of retries to push in the interval")
	add("push_full", agg.PushFull, "count", metrics.Counter, "Push attempts rejected because the queue was full")
	add("push_seq_ahead", agg.PushSeq, "count", metrics.Counter, "Push retries waiting on a consumer to release a cell")
	add("evicted", agg.Evicted, "count", metrics.Counter, "Oldest items removed to admit newer ones")
	add("pop_attempts", agg.PopAttempts, "count", metrics.Counter, "Total pop attempts in the interval")
	add("pop_success", agg.PopSuccess, "count", metrics.Counter, "Total pop attempts that succeeded in the interval")
	add("pop_cas_retries", agg.PopCASRetries, "count", metrics.Counter, "Sum of retries to pop in the interval")
	add("pop_empty", agg.PopEmpty, "count", metrics.Counter, "Pop attempts that found the queue empty")
	add("pop_wait_signals", agg.PopWait, "count", metrics.Counter, "Consumer wakeups from producer signals")
	add("pop_seq_behind", agg.PopSeq, "count", metrics.Counter, "Pop retries because another consumer was ahead")

	return
}
