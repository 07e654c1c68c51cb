package scaling

import (
	"context"
	"segmentd/internal/collector/managers/proc"
	"segmentd/internal/global"
	"segmentd/internal/logctx"
	"segmentd/internal/metrics"
	"segmentd/internal/queue/mpmc"
	"strconv"
	"time"
)

// Decoder count follows the decode queue depth trend, confirmed by worker busy time.
// The queue itself is resized on the same depth history.
func scaleDecoders(ctx context.Context, metricStore *metrics.Registry, start, end time.Time, procMgr *proc.InstanceManager) {
	depthMetrics := metricStore.Search("depth", []string{global.NSDaemon, global.NSmProc, global.NSQueue}, start, end)
	if len(depthMetrics) < pastNIntervals {
		// Not enough data, ignoring
		return
	}
	depths := make([]uint64, 0, len(depthMetrics))
	for _, m := range depthMetrics {
		raw, ok := m.Value.Raw.(uint64)
		if !ok {
			return
		}
		depths = append(depths, raw)
	}

	ids := procMgr.IDs()
	prefixes := make([][]string, 0, len(ids))
	for _, id := range ids {
		prefixes = append(prefixes, []string{global.NSDaemon, global.NSmProc, strconv.Itoa(id)})
	}
	busy := busySeries(metricStore, prefixes, start, end)

	queueUp, queueDown := mpmc.Trend(depths, procMgr.Inbox.ActiveWrite.Load().Size)
	busyUp, busyDown := false, true
	if busy != nil {
		busyUp, busyDown = BusyTrend(busy)
	}

	switch {
	case (queueUp || busyUp) && len(ids) < procMgr.MaxInstCount:
		procMgr.AddInstance()
		logctx.LogEvent(ctx, global.VerbosityProgress, global.InfoLog, "Scaled up decoders to %d\n", len(ids)+1)
	case queueDown && busyDown && len(ids) > procMgr.MinInstCount:
		procMgr.RemoveInstance(ids[len(ids)-1])
		logctx.LogEvent(ctx, global.VerbosityProgress, global.InfoLog, "Scaled down decoders to %d\n", len(ids)-1)
	}

	procMgr.Inbox.ScaleOnTrend(ctx, depths)
}
