package scaling

import (
	"context"
	"segmentd/internal/collector/managers/in"
	"segmentd/internal/global"
	"segmentd/internal/logctx"
	"segmentd/internal/metrics"
	"strconv"
	"time"
)

func scaleListeners(ctx context.Context, metricStore *metrics.Registry, start, end time.Time, inMgr *in.InstanceManager) {
	ids := inMgr.IDs()
	if len(ids) == 0 {
		return
	}

	prefixes := make([][]string, 0, len(ids))
	for _, id := range ids {
		prefixes = append(prefixes, []string{global.NSDaemon, global.NSmInput, strconv.Itoa(id)})
	}
	values := busySeries(metricStore, prefixes, start, end)
	if values == nil {
		return
	}

	scaleUp, scaleDown := BusyTrend(values)
	switch {
	case scaleUp && len(ids) < inMgr.MaxInstCount:
		_, err := inMgr.AddInstance()
		if err != nil {
			logctx.LogEvent(ctx, global.VerbosityStandard, global.ErrorLog, "Failed to scale up listener instances: %v\n", err)
			return
		}
		logctx.LogEvent(ctx, global.VerbosityProgress, global.InfoLog, "Scaled up listeners to %d\n", len(ids)+1)
	case scaleDown && len(ids) > inMgr.MinInstCount:
		// Newest instance goes first
		inMgr.RemoveInstance(ids[len(ids)-1])
		logctx.LogEvent(ctx, global.VerbosityProgress, global.InfoLog, "Scaled down listeners to %d\n", len(ids)-1)
	}
}
