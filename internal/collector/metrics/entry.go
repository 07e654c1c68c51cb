// Gathers instance metrics and saves to central registry
package metrics

import (
	"context"
	"runtime/debug"
	"segmentd/internal/collector/shared"
	"segmentd/internal/global"
	"segmentd/internal/logctx"
	"segmentd/internal/metrics"
	"time"
)

// Cleanup runs every this many polls
const pruneEveryTicks int = 30

func New(mgrs shared.Managers, interval time.Duration, maximumMetricAge time.Duration) (new *Gatherer) {
	new = &Gatherer{
		Registry:  metrics.New(),
		Mgrs:      mgrs,
		Interval:  interval,
		Retention: maximumMetricAge,
	}
	return
}

func (gatherer *Gatherer) Run(ctx context.Context) {
	ctx = logctx.AppendCtxTag(ctx, global.NSMetric)
	defer func() { ctx = logctx.RemoveLastCtxTag(ctx) }()

	lastRun := time.Now()

	ticker := time.NewTicker(gatherer.Interval / 2) // Use polling interval half of desired record interval
	defer ticker.Stop()

	var tickCount int

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if now.Sub(lastRun) >= gatherer.Interval {
				lastRun = now
				go gatherer.Collect(ctx, now)
			}

			tickCount++
			if tickCount >= pruneEveryTicks {
				gatherer.Registry.Prune(now, gatherer.Retention)
				tickCount = 0
			}
		}
	}
}

// Reads every pipeline component once and stores the results in a new time slice
func (gatherer *Gatherer) Collect(ctx context.Context, now time.Time) {
	// Record panics and continue on next interval
	defer func() {
		if fatalError := recover(); fatalError != nil {
			stack := debug.Stack()
			logctx.LogEvent(ctx, global.VerbosityStandard, global.ErrorLog,
				"panic in metric collector thread: %v\n%s", fatalError, stack)
		}
	}()

	interval := gatherer.Interval
	timeSlice := gatherer.Registry.NewTimeSlice(now, interval)

	// Listeners
	if gatherer.Mgrs.Input != nil {
		var collection []metrics.Metric
		gatherer.Mgrs.Input.Mu.Lock() // Ensure instances don't disappear mid-read
		for _, instance := range gatherer.Mgrs.Input.Instances {
			collection = append(collection, instance.Listener.CollectMetrics(interval)...)
		}
		gatherer.Mgrs.Input.Mu.Unlock()
		gatherer.Registry.Add(timeSlice, collection)
	}

	// Decode queue and decoders
	if gatherer.Mgrs.Proc != nil {
		gatherer.Registry.Add(timeSlice, gatherer.Mgrs.Proc.Inbox.CollectMetrics(interval))

		var collection []metrics.Metric
		gatherer.Mgrs.Proc.Mu.Lock()
		for _, instance := range gatherer.Mgrs.Proc.Instances {
			collection = append(collection, instance.Decoder.CollectMetrics(interval)...)
		}
		gatherer.Mgrs.Proc.Mu.Unlock()
		gatherer.Registry.Add(timeSlice, collection)
	}

	// Batch queue and uploader
	if gatherer.Mgrs.BatchQueue != nil {
		gatherer.Registry.Add(timeSlice, gatherer.Mgrs.BatchQueue.CollectMetrics(interval))
	}
	if gatherer.Mgrs.Uploader != nil {
		gatherer.Registry.Add(timeSlice, gatherer.Mgrs.Uploader.CollectMetrics(interval))
	}

	// Pipeline counters (drops, retries, failures)
	if gatherer.Mgrs.Counters != nil {
		gatherer.Registry.Add(timeSlice, gatherer.Mgrs.Counters.CollectMetrics(interval))
	}
}
