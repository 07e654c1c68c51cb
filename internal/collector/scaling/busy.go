package scaling

import (
	"segmentd/internal/calc"
	"segmentd/internal/metrics"
	"time"
)

// Decides whether to scale up or down based on how much time workers spent doing anything (metric=busy_time_percent)
func BusyTrend(busyTimes []float64) (scaleUp bool, scaleDown bool) {
	// slope > 0.5 = trending upward
	// slope < -0.5 = trending downward
	const minTrendSlope = 0.5
	const scaleUpThresholdPct = 50.0
	const scaleDownThresholdPct = 20.0

	avg, slope, ok := calc.LinearFit(busyTimes)
	if !ok {
		return
	}

	if avg > scaleUpThresholdPct && slope > minTrendSlope {
		scaleUp = true
		return
	}
	if avg < scaleDownThresholdPct && slope < -minTrendSlope {
		scaleDown = true
		return
	}
	return
}

// Per poll interval trimmed mean of busy_time_percent across all instances under prefix.
// Instances with fewer than pastNIntervals samples are ignored. Returns nil when nothing qualifies.
func busySeries(metricStore *metrics.Registry, prefixes [][]string, start, end time.Time) (values []float64) {
	instValues := make([][]float64, 0, len(prefixes))
	for _, prefix := range prefixes {
		found := metricStore.Search("busy_time_percent", prefix, start, end)
		if len(found) < pastNIntervals {
			continue
		}
		found = found[len(found)-pastNIntervals:]

		vals := make([]float64, pastNIntervals)
		for i, m := range found {
			raw, ok := m.Value.Raw.(float64)
			if !ok {
				return
			}
			vals[i] = raw
		}
		instValues = append(instValues, vals)
	}
	if len(instValues) == 0 {
		return
	}

	values = make([]float64, pastNIntervals)
	for i := 0; i < pastNIntervals; i++ {
		column := make([]float64, 0, len(instValues))
		for _, inst := range instValues {
			column = append(column, inst[i])
		}
		values[i] = calc.TrimmedMean(column, 0.10)
	}
	return
}
