// Watches metrics for each pipeline stage to decide whether to add more or less instances within configured bounds
package scaling

import (
	"context"
	"runtime/debug"
	"segmentd/internal/collector/shared"
	"segmentd/internal/global"
	"segmentd/internal/logctx"
	"segmentd/internal/metrics"
	"time"
)

func New(metrics *metrics.Registry, interval time.Duration, managers shared.Managers) (new *Instance) {
	new = &Instance{
		MetricStore:  metrics,
		PollInterval: interval,
		Managers:     managers,
	}
	return
}

func (instance *Instance) Run(ctx context.Context) {
	ctx = logctx.AppendCtxTag(ctx, global.NSScaler)

	ticker := time.NewTicker(instance.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			instance.poll(ctx, now)
		}
	}
}

func (instance *Instance) poll(ctx context.Context, now time.Time) {
	defer func() {
		if fatalError := recover(); fatalError != nil {
			stack := debug.Stack()
			logctx.LogEvent(ctx, global.VerbosityStandard, global.ErrorLog,
				"panic in autoscaler thread: %v\n%s", fatalError, stack)
		}
	}()

	window := time.Duration(pastNIntervals) * instance.PollInterval

	if instance.Managers.Input != nil {
		scaleListeners(ctx, instance.MetricStore, now.Add(-window), now, instance.Managers.Input)
	}
	if instance.Managers.Proc != nil {
		scaleDecoders(ctx, instance.MetricStore, now.Add(-window), now, instance.Managers.Proc)
	}

	// Batch queue only follows its own fill level
	if instance.Managers.BatchQueue != nil {
		instance.Managers.BatchQueue.ScaleCapacity(ctx)
	}
}
