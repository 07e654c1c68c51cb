package server

import (
	"fmt"
	"net/http"
	"segmentd/internal/global"
	"segmentd/internal/metrics"
	"strings"
	"time"
)

const noResults string = "search returned no results"

// Series matching the filters, one entry each without values
func (handlers queryHandlers) discovery(w http.ResponseWriter, r *http.Request) {
	metricType, err := parseMetricType(r.FormValue("type"))
	if err != nil {
		writeJSON(handlers.ctx, w, http.StatusBadRequest, Jerror{Msg: err.Error()})
		return
	}

	found := handlers.discover(
		r.FormValue("name"),
		r.FormValue("description"),
		parseNamespace(r.URL.Path, global.DiscoveryPath),
		r.FormValue("unit"),
		metricType,
	)
	writeResults(handlers, w, found)
}

// Raw samples inside the requested window
func (handlers queryHandlers) data(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseWindow(r, time.Now())
	if err != nil {
		writeJSON(handlers.ctx, w, http.StatusBadRequest, Jerror{Msg: err.Error()})
		return
	}

	found := handlers.search(r.FormValue("name"), parseNamespace(r.URL.Path, global.DataPath), start, end)
	writeResults(handlers, w, found)
}

// One combined value for a single metric over the window
func (handlers queryHandlers) aggregation(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseWindow(r, time.Now())
	if err != nil {
		writeJSON(handlers.ctx, w, http.StatusBadRequest, Jerror{Msg: err.Error()})
		return
	}

	result, err := handlers.aggregate(
		r.FormValue("aggregation"),
		r.FormValue("name"),
		parseNamespace(r.URL.Path, global.AggregationPath),
		start, end,
	)
	if err != nil {
		writeJSON(handlers.ctx, w, http.StatusBadRequest, Jerror{Msg: err.Error()})
		return
	}
	writeJSON(handlers.ctx, w, http.StatusOK, result.Convert())
}

func writeResults(handlers queryHandlers, w http.ResponseWriter, found []metrics.Metric) {
	if len(found) == 0 {
		writeJSON(handlers.ctx, w, http.StatusNotFound, Jerror{Msg: noResults})
		return
	}
	converted := make([]metrics.JMetric, 0, len(found))
	for _, metric := range found {
		converted = append(converted, metric.Convert())
	}
	writeJSON(handlers.ctx, w, http.StatusOK, converted)
}

// Empty selects every type
func parseMetricType(raw string) (metricType metrics.MetricType, err error) {
	switch candidate := metrics.MetricType(strings.ToLower(raw)); candidate {
	case "", metrics.Counter, metrics.Gauge, metrics.Summary:
		metricType = candidate
	default:
		err = fmt.Errorf("unknown metric type %q", raw)
	}
	return
}
