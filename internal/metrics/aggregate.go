package metrics

import (
	"fmt"
	"math"
	"segmentd/internal/calc"
	"strconv"
	"time"
)

type AggregationType string

const (
	AggSum         AggregationType = "sum"
	AggAvg         AggregationType = "avg"
	AggMin         AggregationType = "min"
	AggMax         AggregationType = "max"
	AggCount       AggregationType = "count"
	AggLast        AggregationType = "last"
	AggTrimmedMean AggregationType = "trimmed_mean" // 10% trimmed from both ends
)

// Combines every sample of one metric in the window into a single metric.
// All samples must share namespace and unit.
func (registry *Registry) Aggregate(aggType, name string, namespacePrefix []string, start, end time.Time) (result Metric, err error) {
	if name == "" {
		err = fmt.Errorf("metric name is required for aggregation")
		return
	}

	samples := registry.Search(name, namespacePrefix, start, end)
	if len(samples) == 0 {
		err = fmt.Errorf("no samples for metric %q in the requested window", name)
		return
	}

	first := samples[0]
	values := make([]float64, 0, len(samples))
	for _, sample := range samples {
		if fmt.Sprint(sample.Namespace) != fmt.Sprint(first.Namespace) {
			err = fmt.Errorf("metric %q spans several namespaces, narrow the namespace", name)
			return
		}
		if sample.Value.Unit != first.Value.Unit {
			err = fmt.Errorf("metric %q has mixed units %q and %q", name, first.Value.Unit, sample.Value.Unit)
			return
		}

		var value float64
		value, err = toFloat(sample.Value.Raw)
		if err != nil {
			err = fmt.Errorf("metric %q: %w", name, err)
			return
		}
		values = append(values, value)
	}

	var combined float64
	switch AggregationType(aggType) {
	case AggSum:
		for _, v := range values {
			combined += v
		}
	case AggAvg, "":
		for _, v := range values {
			combined += v
		}
		combined /= float64(len(values))
		aggType = string(AggAvg)
	case AggMin:
		combined = math.Inf(1)
		for _, v := range values {
			combined = math.Min(combined, v)
		}
	case AggMax:
		combined = math.Inf(-1)
		for _, v := range values {
			combined = math.Max(combined, v)
		}
	case AggCount:
		combined = float64(len(values))
	case AggLast:
		combined = values[len(values)-1]
	case AggTrimmedMean:
		combined = calc.TrimmedMean(values, 0.10)
	default:
		err = fmt.Errorf("unknown aggregation type %q", aggType)
		return
	}

	result = Metric{
		Name:        first.Name,
		Description: aggType + " of " + first.Description,
		Namespace:   first.Namespace,
		Type:        Summary,
		Timestamp:   samples[len(samples)-1].Timestamp,
		Value: MetricValue{
			Raw:      combined,
			Unit:     first.Value.Unit,
			Interval: samples[len(samples)-1].Timestamp.Sub(first.Timestamp) + first.Value.Interval,
		},
	}
	return
}

func toFloat(raw interface{}) (value float64, err error) {
	switch v := raw.(type) {
	case uint64:
		value = float64(v)
	case int64:
		value = float64(v)
	case int:
		value = float64(v)
	case float64:
		value = v
	case string:
		value, err = strconv.ParseFloat(v, 64)
		if err != nil {
			err = fmt.Errorf("non-numeric value %q", v)
		}
	default:
		err = fmt.Errorf("unsupported value type %T", raw)
	}
	return
}
