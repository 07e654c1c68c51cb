// Daemon for continuous reception of trace segments, batching, and delivery to the configured ingestion API
package collector

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"segmentd/internal/clock"
	"segmentd/internal/collector/buffer"
	"segmentd/internal/collector/listener"
	"segmentd/internal/collector/managers/in"
	"segmentd/internal/collector/managers/proc"
	"segmentd/internal/collector/metrics"
	"segmentd/internal/collector/scaling"
	"segmentd/internal/collector/uploader"
	"segmentd/internal/externalio/beats"
	"segmentd/internal/externalio/promexport"
	"segmentd/internal/externalio/server"
	"segmentd/internal/externalio/stdout"
	"segmentd/internal/externalio/xray"
	"segmentd/internal/global"
	"segmentd/internal/lifecycle"
	"segmentd/internal/logctx"
	metricGlb "segmentd/internal/metrics"
	"segmentd/internal/queue/mpmc"
	"segmentd/internal/spool"
	"strconv"
	"time"
)

// Create new collector daemon instance
func NewDaemon(cfg Config) (new *Daemon) {
	ctx, cancel := context.WithCancel(context.Background())
	new = &Daemon{
		cfg:    cfg,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	return
}

// Current lifecycle state
func (daemon *Daemon) State() State {
	return daemon.state.load()
}

// Effective configuration after defaults
func (daemon *Daemon) Config() Config {
	return daemon.cfg
}

// Starts pipeline worker threads in background - releases everything already started if a startup error is encountered
func (daemon *Daemon) Start(globalCtx context.Context) (err error) {
	daemon.mu.Lock()
	if daemon.State() != Starting || daemon.startCalled {
		daemon.mu.Unlock()
		err = &StateError{From: daemon.State(), To: Running}
		return
	}
	daemon.startCalled = true

	// New context for the daemon
	base, cancel := context.WithCancel(context.Background())
	base = context.WithValue(base, global.LoggerKey, logctx.GetLogger(globalCtx))
	daemon.ctx, daemon.cancel = base, cancel
	daemon.mu.Unlock()

	// Top level tag for daemon logs
	ctx := logctx.AppendCtxTag(base, global.NSDaemon)

	logctx.LogEvent(ctx, global.VerbosityStandard, global.InfoLog, "Starting...\n")

	daemon.cfg.setDefaults()
	err = daemon.cfg.Validate()
	if err != nil {
		daemon.abort(ctx)
		return
	}

	// Counters shared by every stage
	daemon.Mgrs.Counters = metricGlb.NewCounters([]string{global.NSDaemon})

	// Stage 4 - Uploader
	backend, err := newBackend(ctx, daemon.cfg)
	if err != nil {
		err = fmt.Errorf("failed creating %s upload backend: %w", daemon.cfg.Backend, err)
		daemon.abort(ctx)
		return
	}

	var spooler uploader.Spooler
	if daemon.cfg.SpoolDir != "" {
		var store *spool.Store
		store, err = spool.New(daemon.cfg.SpoolDir)
		if err != nil {
			backend.Close()
			daemon.abort(ctx)
			return
		}
		spooler = store
	}

	uploadNS := []string{global.NSDaemon, global.NSUpload}
	daemon.Mgrs.BatchQueue, err = mpmc.New[*buffer.Batch](uploadNS, uint64(daemon.cfg.BatchQueueSize),
		2, max(daemon.cfg.BatchQueueSize, global.DefaultBatchQueueSize)*16)
	if err != nil {
		err = fmt.Errorf("failed creating batch queue: %w", err)
		backend.Close()
		daemon.abort(ctx)
		return
	}

	daemon.Mgrs.Uploader, err = uploader.New([]string{global.NSDaemon}, uploader.Config{
		MaxAttempts:    daemon.cfg.MaxAttempts,
		BackoffBase:    daemon.cfg.BackoffBase,
		BackoffCap:     daemon.cfg.BackoffCap,
		Concurrency:    daemon.cfg.UploadConcurrency,
		RequestTimeout: daemon.cfg.RequestTimeout,
	}, backend, daemon.Mgrs.BatchQueue, clock.New(), daemon.Mgrs.Counters, spooler)
	if err != nil {
		err = fmt.Errorf("failed creating uploader: %w", err)
		backend.Close()
		daemon.abort(ctx)
		return
	}
	daemon.Mgrs.Uploader.Start(ctx)

	// Stage 3 - Batching buffer
	batchQueue := daemon.Mgrs.BatchQueue
	emit := func(ctx context.Context, batch *buffer.Batch) (err error) {
		if !batchQueue.PushBlocking(ctx, batch, batch.Bytes) {
			err = fmt.Errorf("batch queue unavailable: %w", context.Cause(ctx))
		}
		return
	}
	daemon.Mgrs.Buffer, err = buffer.New([]string{global.NSDaemon}, buffer.Config{
		MaxCount:      daemon.cfg.BatchMaxCount,
		MaxBytes:      daemon.cfg.BatchMaxBytes,
		FlushInterval: daemon.cfg.FlushInterval,
	}, clock.New(), daemon.Mgrs.Counters, emit)
	if err != nil {
		err = fmt.Errorf("failed creating batching buffer: %w", err)
		daemon.abort(ctx)
		return
	}
	daemon.Mgrs.Buffer.Start(ctx)

	// Stage 2 - Decoders
	daemon.Mgrs.Proc, err = proc.NewInstanceManager(ctx,
		daemon.cfg.QueueSize,
		daemon.Mgrs.Buffer,
		daemon.Mgrs.Counters,
		daemon.cfg.MinDecoders,
		daemon.cfg.MaxDecoders,
		daemon.cfg.MinQueueSize,
		daemon.cfg.MaxQueueSize)
	if err != nil {
		err = fmt.Errorf("failed adding new decoder manager: %w", err)
		daemon.abort(ctx)
		return
	}
	for i := 0; i < daemon.cfg.MinDecoders; i++ {
		daemon.Mgrs.Proc.AddInstance()
	}

	// Stage 1 - Listeners
	daemon.Mgrs.Input = in.NewInstanceManager(ctx,
		daemon.cfg.ListenIP,
		daemon.cfg.ListenPort,
		daemon.Mgrs.Proc.Inbox,
		listener.Config{
			MaxDatagramBytes:   daemon.cfg.MaxDatagramBytes,
			DropPolicy:         daemon.cfg.DropPolicy,
			ReceiveBufferBytes: daemon.cfg.ReceiveBufferBytes,
		},
		daemon.cfg.DrainTimeout,
		daemon.Mgrs.Counters,
		daemon.cfg.MinListeners,
		daemon.cfg.MaxListeners)
	for i := 0; i < daemon.cfg.MinListeners; i++ {
		_, err = daemon.Mgrs.Input.AddInstance()
		if err != nil {
			err = &BindError{
				Address: net.JoinHostPort(daemon.cfg.ListenIP, strconv.Itoa(daemon.cfg.ListenPort)),
				Err:     err,
			}
			daemon.abort(ctx)
			return
		}
	}

	// Metrics Collector
	daemon.metricsCollector = metrics.New(daemon.Mgrs,
		daemon.cfg.MetricCollectionInterval,
		daemon.cfg.MetricMaxAge)
	workerCtx := ctx
	daemon.wg.Add(1)
	go func() {
		defer daemon.wg.Done()
		daemon.metricsCollector.Run(workerCtx)
	}()

	// Autoscaler
	if daemon.cfg.AutoscaleEnabled {
		scaler := scaling.New(daemon.metricsCollector.Registry,
			daemon.cfg.AutoscaleCheckInterval,
			daemon.Mgrs)
		daemon.wg.Add(1)
		go func() {
			defer daemon.wg.Done()
			scaler.Run(workerCtx)
		}()
	}

	// Metric Server
	if daemon.cfg.MetricQueryServerEnabled {
		serverCtx := logctx.AppendCtxTag(ctx, global.NSMetric)
		serverCtx = logctx.AppendCtxTag(serverCtx, global.NSMetricSrv)

		registry := daemon.metricsCollector.Registry
		daemon.MetricServer, err = server.SetupListener(serverCtx,
			daemon.cfg.MetricQueryServerPort,
			registry.Search,
			registry.Discover,
			registry.Aggregate)
		if err != nil {
			err = fmt.Errorf("failed setting up metric server: %w", err)
			daemon.abort(ctx)
			return
		}
		daemon.wg.Add(1)
		go func() {
			defer daemon.wg.Done()
			server.Start(serverCtx, daemon.MetricServer)
		}()
	}

	// Prometheus exporter
	if daemon.cfg.PrometheusAddress != "" {
		promCtx := logctx.AppendCtxTag(ctx, global.NSMetric)
		promCtx = logctx.AppendCtxTag(promCtx, global.NSPromSrv)

		var exporter *promexport.Exporter
		exporter, err = promexport.New(global.ProgBaseName, daemon.Mgrs.Counters)
		if err != nil {
			daemon.abort(ctx)
			return
		}
		daemon.PromServer = promexport.SetupListener(promCtx, daemon.cfg.PrometheusAddress, exporter)
		daemon.wg.Add(1)
		go func() {
			defer daemon.wg.Done()
			promexport.Start(promCtx, daemon.PromServer)
		}()
	}

	daemon.mu.Lock()
	err = daemon.state.transition(Running)
	pending := daemon.shutdownPending
	daemon.mu.Unlock()
	if err != nil {
		daemon.abort(ctx)
		return
	}
	if pending {
		logctx.LogEvent(ctx, global.VerbosityStandard, global.InfoLog,
			"Shutdown requested during startup, draining now\n")
		daemon.Shutdown()
		return
	}

	// Handle exit signals once the pipeline can drain
	go lifecycle.SignalHandler(ctx, daemon)

	notifyErr := lifecycle.NotifyReady(ctx)
	if notifyErr != nil {
		logctx.LogEvent(ctx, global.VerbosityStandard, global.WarnLog, "Systemd notify ready failed: %v\n", notifyErr)
	}

	logctx.LogEvent(ctx, global.VerbosityStandard, global.InfoLog,
		"Startup complete, listening on %s (backend %s)\n", daemon.Mgrs.Input.Address(), daemon.cfg.Backend)
	return
}

// Builds the configured ingestion backend
func newBackend(ctx context.Context, cfg Config) (backend uploader.Backend, err error) {
	switch cfg.Backend {
	case global.BackendXRay:
		backend, err = xray.NewOutput(ctx, cfg.AWS)
	case global.BackendBeats:
		backend, err = beats.NewOutput(cfg.BeatsAddress, global.DefaultBeatsTimeout)
	case global.BackendStdout:
		backend = stdout.NewOutput(cfg.Output)
	default:
		err = fmt.Errorf("unknown backend %q", cfg.Backend)
	}
	if err != nil {
		backend = nil
	}
	return
}

// Releases whatever startup created and leaves the daemon stopped
func (daemon *Daemon) abort(ctx context.Context) {
	if daemon.State() == Starting {
		daemon.state.transition(Draining)
	}
	daemon.release(ctx)
}

// Blocking daemon waiter, returns once the daemon has stopped
func (daemon *Daemon) Run() {
	<-daemon.done
}

// Gracefully drains the pipeline (errors are printed to program log buffer)
// Called while Start is still bringing stages up, the request is recorded and Start drains once running.
func (daemon *Daemon) Shutdown() {
	daemon.mu.Lock()
	ctx := daemon.ctx
	if daemon.startCalled && daemon.State() == Starting {
		daemon.shutdownPending = true
		daemon.mu.Unlock()
		return
	}
	err := daemon.state.transition(Draining)
	daemon.mu.Unlock()

	if ctx == nil {
		ctx = context.Background()
	}
	ctx = logctx.AppendCtxTag(ctx, global.NSDaemon)

	if err != nil {
		logctx.LogEvent(ctx, global.VerbosityProgress, global.InfoLog,
			"Shutdown ignored: %v\n", err)
		return
	}

	logctx.LogEvent(ctx, global.VerbosityStandard, global.InfoLog,
		"Daemon shutdown started...\n")
	err = lifecycle.NotifyStatus(ctx, "draining")
	if err != nil {
		logctx.LogEvent(ctx, global.VerbosityProgress, global.WarnLog,
			"Systemd status notify failed: %v\n", err)
	}
	daemon.release(ctx)
}

// Stops every stage in pipeline order. Caller has moved the state to Draining.
func (daemon *Daemon) release(ctx context.Context) {
	// Stop HTTP servers
	for _, httpServer := range []*http.Server{daemon.MetricServer, daemon.PromServer} {
		if httpServer == nil {
			continue
		}
		err := httpServer.Shutdown(ctx)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logctx.LogEvent(ctx, global.VerbosityStandard, global.WarnLog,
				"HTTP server %s did not shutdown gracefully: %v\n", httpServer.Addr, err)
		}
	}

	// 1. Stop listener instances after their sockets drain
	if daemon.Mgrs.Input != nil {
		daemon.Mgrs.Input.RemoveAll()
	}

	// 2. Decode everything already queued, then stop decoders
	if daemon.Mgrs.Proc != nil {
		daemon.Mgrs.Proc.Drain(daemon.cfg.DrainTimeout)
	}

	drainCtx, cancelDrain := context.WithTimeout(ctx, daemon.cfg.DrainTimeout)
	defer cancelDrain()

	// 3. Emit the final partial batch
	if daemon.Mgrs.Buffer != nil {
		err := daemon.Mgrs.Buffer.Drain(drainCtx)
		if err != nil {
			logctx.LogEvent(ctx, global.VerbosityStandard, global.ErrorLog,
				"Final batch could not be queued for upload: %v\n", err)
		}
	}

	// 4. Finish queued and in-flight uploads
	if daemon.Mgrs.Uploader != nil {
		err := daemon.Mgrs.Uploader.Close(drainCtx)
		if err != nil {
			logctx.LogEvent(ctx, global.VerbosityStandard, global.WarnLog,
				"Uploader did not drain cleanly: %v\n", err)
		}
	}

	// Stop the run loop and background workers after pipeline stages are drained
	if daemon.cancel != nil {
		daemon.cancel()
	}

	done := make(chan struct{})
	go func() {
		daemon.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logctx.LogEvent(ctx, global.VerbosityStandard, global.InfoLog,
			"Daemon shutdown completed successfully\n")
	case <-time.After(global.ControllerShutdownTimeout):
		logctx.LogEvent(ctx, global.VerbosityStandard, global.WarnLog,
			"Timeout: background workers did not stop within %v\n", global.ControllerShutdownTimeout)
	}

	daemon.state.transition(Stopped)
	daemon.stopOnce.Do(func() { close(daemon.done) })
}
