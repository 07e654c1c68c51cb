// HTTP server to expose discovery and querying of metric data to other programs only on the local system
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"segmentd/internal/global"
	"segmentd/internal/logctx"
	"strconv"
	"strings"
)

const helpPageTemplate string = `<!DOCTYPE html>
<html>
<head><title>segmentd metrics</title></head>
<body>
<h1>segmentd metric query server</h1>
<p>Listening on http://{LISTEN_ADDR}:{LISTEN_PORT}/</p>
<h2>Discovery</h2>
<p><code>GET {DISCOVER_PATH}[namespace/...]?name=&amp;description=&amp;unit=&amp;type=counter|gauge|summary</code></p>
<p>Returns one entry per matching series, without values. Unmatched queries answer 404.</p>
<h2>Data</h2>
<p><code>GET {DATA_PATH}[namespace/...]?name=&amp;starttime=&amp;endtime=</code></p>
<p>starttime is RFC3339 or a negative offset such as -5m (default -1m). endtime is RFC3339 or now (default).</p>
<h2>Aggregation</h2>
<p><code>GET {AGGREGATION_PATH}[namespace/...]?name=&amp;aggregation=sum|avg|min|max|count|last|trimmed_mean&amp;starttime=&amp;endtime=</code></p>
<h2>Namespaces</h2>
<p>Collector/In/Listener, Collector/Proc/Queue, Collector/Proc/Decoder, Collector/Buffer, Collector/Uploader, Collector/Uploader/Queue</p>
</body>
</html>
`

// Builds the localhost-only metric query server. Call Start to serve.
func SetupListener(ctx context.Context, port int, search DataSearcher, discover Discoverer, aggregation AggSearcher) (server *http.Server, err error) {
	if search == nil || discover == nil || aggregation == nil {
		err = fmt.Errorf("metric server requires search, discovery and aggregation handlers")
		return
	}

	handlers := queryHandlers{ctx: ctx, search: search, discover: discover, aggregate: aggregation}

	helpPage := strings.NewReplacer(
		"{LISTEN_ADDR}", global.HTTPListenAddr,
		"{LISTEN_PORT}", strconv.Itoa(port),
		"{DATA_PATH}", global.DataPath,
		"{DISCOVER_PATH}", global.DiscoveryPath,
		"{AGGREGATION_PATH}", global.AggregationPath,
	).Replace(helpPageTemplate)

	mux := http.NewServeMux()
	mux.HandleFunc("/", getOnly(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, helpPage)
	}))
	mux.HandleFunc(global.DiscoveryPath, getOnly(handlers.discovery))
	mux.HandleFunc(global.DataPath, getOnly(handlers.data))
	mux.HandleFunc(global.AggregationPath, getOnly(handlers.aggregation))

	server = &http.Server{
		Addr:         net.JoinHostPort(global.HTTPListenAddr, strconv.Itoa(port)),
		Handler:      mux,
		ReadTimeout:  global.HTTPReadTimeout,
		WriteTimeout: global.HTTPWriteTimeout,
		IdleTimeout:  global.HTTPIdleTimeout,
		ErrorLog:     log.New(httpLogWriter{ctx: ctx}, "", 0),
	}
	return
}

// Rejects anything but GET (and HEAD, which net/http answers from GET)
func getOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", http.MethodGet)
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		next(w, r)
	}
}

// Starts the metric HTTP server and waits for requests
func Start(ctx context.Context, server *http.Server) {
	logctx.LogEvent(ctx, global.VerbosityStandard, global.InfoLog, "Metric query server starting on %s (http://%s/)\n",
		server.Addr,
		server.Addr,
	)
	err := server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		logctx.LogEvent(ctx, global.VerbosityStandard, global.ErrorLog, "Metric query server failed to start: %v\n", err)
	}
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, content any) {
	body, err := json.Marshal(content)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		logctx.LogEvent(ctx, global.VerbosityStandard, global.ErrorLog, "Failed marshaling metric results: %v\n", err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(append(body, '\n'))
}

// Logs HTTP server errors to internal program buffer (via context logger)
func (logWriter httpLogWriter) Write(p []byte) (n int, err error) {
	n = len(p)
	if n == 0 {
		return
	}
	logctx.LogEvent(
		logWriter.ctx,
		global.VerbosityStandard,
		global.ErrorLog,
		"%s\n", strings.TrimSpace(string(p)),
	)
	return
}
