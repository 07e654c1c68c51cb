// Prometheus exposition of the pipeline counters on a private registry
package promexport

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"regexp"
	"segmentd/internal/global"
	"segmentd/internal/logctx"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var invalidNameChars = regexp.MustCompile(`[^a-zA-Z0-9_]`)

// Creates an exporter for source and registers it together with the Go runtime and process collectors
func New(namespace string, source Snapshotter) (exporter *Exporter, err error) {
	if source == nil {
		err = fmt.Errorf("prometheus exporter requires a counter source")
		return
	}

	exporter = &Exporter{
		namespace: invalidNameChars.ReplaceAllString(strings.ToLower(namespace), "_"),
		source:    source,
		descs:     make(map[string]*prometheus.Desc),
		Registry:  prometheus.NewRegistry(),
	}

	err = exporter.Registry.Register(exporter)
	if err != nil {
		err = fmt.Errorf("failed registering counter collector: %w", err)
		return
	}
	err = exporter.Registry.Register(collectors.NewGoCollector())
	if err != nil {
		err = fmt.Errorf("failed registering go collector: %w", err)
		return
	}
	err = exporter.Registry.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if err != nil {
		err = fmt.Errorf("failed registering process collector: %w", err)
		return
	}
	return
}

// Counter names are only known at runtime, so the collector is unchecked
func (exporter *Exporter) Describe(ch chan<- *prometheus.Desc) {}

func (exporter *Exporter) Collect(ch chan<- prometheus.Metric) {
	snapshot := exporter.source.Snapshot()

	names := make([]string, 0, len(snapshot))
	for name := range snapshot {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		gauge := exporter.source.IsGauge(name)
		valueType := prometheus.CounterValue
		if gauge {
			valueType = prometheus.GaugeValue
		}
		ch <- prometheus.MustNewConstMetric(exporter.desc(name, gauge), valueType, float64(snapshot[name]))
	}
}

// Cached descriptor; counters get the conventional _total suffix
func (exporter *Exporter) desc(name string, gauge bool) (desc *prometheus.Desc) {
	exporter.mu.Lock()
	defer exporter.mu.Unlock()

	desc, ok := exporter.descs[name]
	if ok {
		return
	}

	fqName := MetricName(exporter.namespace, name, gauge)
	help := "Pipeline counter " + name
	if gauge {
		help = "Pipeline gauge " + name
	}
	desc = prometheus.NewDesc(fqName, help, nil, nil)
	exporter.descs[name] = desc
	return
}

// Prometheus name for a pipeline counter
func MetricName(namespace, name string, gauge bool) (fqName string) {
	name = invalidNameChars.ReplaceAllString(name, "_")
	if !gauge && !strings.HasSuffix(name, "_total") {
		name += "_total"
	}
	fqName = prometheus.BuildFQName(namespace, "", name)
	return
}

// HTTP server exposing the registry at the Prometheus path
func SetupListener(ctx context.Context, address string, exporter *Exporter) (server *http.Server) {
	mux := http.NewServeMux()
	mux.Handle(global.PrometheusPath, promhttp.HandlerFor(exporter.Registry, promhttp.HandlerOpts{
		ErrorLog:      promLogger{ctx: ctx},
		ErrorHandling: promhttp.ContinueOnError,
	}))

	server = &http.Server{
		Addr:         address,
		Handler:      mux,
		ReadTimeout:  global.HTTPReadTimeout,
		WriteTimeout: global.HTTPWriteTimeout,
		IdleTimeout:  global.HTTPIdleTimeout,
		ErrorLog:     log.New(promLogger{ctx: ctx}, "", 0),
	}
	return
}

// Blocks serving scrapes until the server is shut down
func Start(ctx context.Context, server *http.Server) {
	logctx.LogEvent(ctx, global.VerbosityStandard, global.InfoLog,
		"Prometheus exporter listening on http://%s%s\n", server.Addr, global.PrometheusPath)
	err := server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		logctx.LogEvent(ctx, global.VerbosityStandard, global.ErrorLog, "Prometheus exporter failed: %v\n", err)
	}
}

type promLogger struct {
	ctx context.Context
}

func (logger promLogger) Println(v ...interface{}) {
	logctx.LogEvent(logger.ctx, global.VerbosityStandard, global.WarnLog, "%s\n", strings.TrimSpace(fmt.Sprintln(v...)))
}

func (logger promLogger) Write(p []byte) (n int, err error) {
	n = len(p)
	if n > 0 {
		logctx.LogEvent(logger.ctx, global.VerbosityStandard, global.ErrorLog, "%s\n", strings.TrimSpace(string(p)))
	}
	return
}
