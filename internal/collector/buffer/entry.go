// Groups decoded segments into bounded batches for upload
package buffer

import (
	"context"
	"fmt"
	"segmentd/internal/clock"
	"segmentd/internal/global"
	"segmentd/internal/logctx"
	"segmentd/internal/metrics"
	"segmentd/pkg/protocol"
)

func New(namespace []string, cfg Config, clk clock.Clock, sink metrics.Sink, emit Emitter) (new *Instance, err error) {
	if cfg.MaxCount <= 0 {
		err = fmt.Errorf("maximum batch count must be positive, got %d", cfg.MaxCount)
		return
	}
	if cfg.MaxBytes <= 0 {
		err = fmt.Errorf("maximum batch bytes must be positive, got %d", cfg.MaxBytes)
		return
	}
	if cfg.FlushInterval <= 0 {
		err = fmt.Errorf("flush interval must be positive, got %s", cfg.FlushInterval)
		return
	}
	if emit == nil {
		err = fmt.Errorf("emitter is required")
		return
	}
	if clk == nil {
		clk = clock.New()
	}
	if sink == nil {
		sink = metrics.Discard{}
	}

	ns := make([]string, len(namespace), len(namespace)+1)
	copy(ns, namespace)

	new = &Instance{
		Namespace: append(ns, global.NSBuffer),
		cfg:       cfg,
		clock:     clk,
		sink:      sink,
		emit:      emit,
		lastFlush: clk.Now(),
	}
	return
}

// Starts the interval flush loop. Returns immediately.
func (instance *Instance) Start(ctx context.Context) {
	instance.mu.Lock()
	defer instance.mu.Unlock()

	if instance.stop != nil || instance.closed {
		return
	}
	instance.stop = make(chan struct{})
	instance.done = make(chan struct{})
	instance.lastFlush = instance.clock.Now()
	instance.timer = instance.clock.NewTimer(instance.cfg.FlushInterval)

	go instance.run(ctx, instance.timer, instance.stop, instance.done)
}

func (instance *Instance) run(ctx context.Context, timer clock.Timer, stop, done chan struct{}) {
	defer close(done)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-timer.C():
			instance.onTimer(ctx)
		}
	}
}

// Timer fires may be stale after a size flush moved lastFlush, so elapsed time is rechecked
func (instance *Instance) onTimer(ctx context.Context) {
	instance.mu.Lock()
	defer instance.mu.Unlock()

	if instance.closed {
		return
	}

	elapsed := instance.clock.Now().Sub(instance.lastFlush)
	if elapsed < instance.cfg.FlushInterval {
		instance.timer.Reset(instance.cfg.FlushInterval - elapsed)
		return
	}

	if instance.current != nil && len(instance.current.Segments) > 0 {
		err := instance.flush(ctx, flushInterval)
		if err != nil {
			logctx.LogEvent(ctx, global.VerbosityStandard, global.ErrorLog, "interval flush failed: %v\n", err)
		}
		return
	}

	// Nothing buffered, wait another full interval
	instance.lastFlush = instance.clock.Now()
	instance.timer.Reset(instance.cfg.FlushInterval)
}

// Buffers one segment, emitting the current batch when a size limit is hit
func (instance *Instance) Add(ctx context.Context, segment *protocol.Segment) (err error) {
	if segment == nil {
		err = fmt.Errorf("nil segment")
		return
	}

	size := segment.Size()
	if size > instance.cfg.MaxBytes {
		instance.sink.Add("segments_too_large", 1)
		err = fmt.Errorf("%w: segment %s is %d bytes, limit %d", ErrSegmentTooLarge, segment.ID(), size, instance.cfg.MaxBytes)
		return
	}

	instance.mu.Lock()
	defer instance.mu.Unlock()

	if instance.closed {
		err = ErrBufferClosed
		return
	}

	// Segment does not fit, current batch goes first
	if instance.current != nil && instance.current.Bytes+size > instance.cfg.MaxBytes {
		err = instance.flush(ctx, flushBytes)
		if err != nil {
			return
		}
	}

	if instance.current == nil {
		instance.current = &Batch{
			Segments:  make([]*protocol.Segment, 0, instance.cfg.MaxCount),
			CreatedAt: instance.clock.Now(),
		}
	}
	instance.current.Segments = append(instance.current.Segments, segment)
	instance.current.Bytes += size
	instance.sink.Add("segments_buffered", 1)

	switch {
	case len(instance.current.Segments) >= instance.cfg.MaxCount:
		err = instance.flush(ctx, flushCount)
	case instance.current.Bytes >= instance.cfg.MaxBytes:
		err = instance.flush(ctx, flushBytes)
	}
	return
}

// Emits the partial batch now, if any
func (instance *Instance) Flush(ctx context.Context) (err error) {
	instance.mu.Lock()
	defer instance.mu.Unlock()

	if instance.current == nil || len(instance.current.Segments) == 0 {
		return
	}
	err = instance.flush(ctx, flushManual)
	return
}

// Stops accepting segments, emits the final partial batch and stops the timer loop
func (instance *Instance) Drain(ctx context.Context) (err error) {
	instance.mu.Lock()
	if instance.closed {
		instance.mu.Unlock()
		return
	}
	instance.closed = true

	var pending int
	if instance.current != nil {
		pending = len(instance.current.Segments)
	}
	if pending > 0 {
		err = instance.flush(ctx, flushDrain)
	}
	stop, done := instance.stop, instance.done
	instance.mu.Unlock()

	logctx.LogEvent(ctx, global.VerbosityProgress, global.InfoLog,
		"Buffer drained (%d segments in final batch)\n", pending)

	if stop != nil {
		close(stop)
		<-done
	}
	return
}

// Number of segments waiting in the current batch
func (instance *Instance) Pending() (count int) {
	instance.mu.Lock()
	defer instance.mu.Unlock()
	if instance.current != nil {
		count = len(instance.current.Segments)
	}
	return
}

// Caller holds the lock. The current batch is handed off even when the emitter fails.
func (instance *Instance) flush(ctx context.Context, reason string) (err error) {
	batch := instance.current
	instance.current = nil
	instance.lastFlush = instance.clock.Now()
	if instance.timer != nil {
		instance.timer.Reset(instance.cfg.FlushInterval)
	}

	instance.sequence++
	batch.Sequence = instance.sequence

	err = instance.emit(ctx, batch)
	if err != nil {
		instance.sink.Add("batches_dropped", 1)
		instance.sink.Add("segments_discarded", uint64(len(batch.Segments)))
		err = fmt.Errorf("failed to emit batch %d (%d segments): %w", batch.Sequence, len(batch.Segments), err)
		return
	}

	instance.sink.Add("batches_emitted", 1)
	instance.sink.Add("flush_"+reason, 1)
	logctx.LogEvent(ctx, global.VerbosityData, global.InfoLog,
		"Emitted batch %d: %d segments, %d bytes (%s)\n", batch.Sequence, len(batch.Segments), batch.Bytes, reason)
	return
}
