// Sends batches to the remote ingestion API with bounded, jittered retry
package uploader

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"segmentd/internal/clock"
	"segmentd/internal/collector/buffer"
	"segmentd/internal/global"
	"segmentd/internal/logctx"
	"segmentd/internal/metrics"
	"segmentd/internal/queue/mpmc"
	"segmentd/internal/random"
	"time"

	"golang.org/x/sync/semaphore"
)

func New(namespace []string, cfg Config, backend Backend, queue *mpmc.Queue[*buffer.Batch], clk clock.Clock, sink metrics.Sink, spool Spooler) (new *Instance, err error) {
	if backend == nil {
		err = fmt.Errorf("upload backend is required")
		return
	}
	if cfg.MaxAttempts <= 0 {
		err = fmt.Errorf("maximum attempts must be positive, got %d", cfg.MaxAttempts)
		return
	}
	if cfg.BackoffBase <= 0 || cfg.BackoffCap < cfg.BackoffBase {
		err = fmt.Errorf("invalid backoff range %s-%s", cfg.BackoffBase, cfg.BackoffCap)
		return
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = global.DefaultRequestTimeout
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
		Namespace: append(ns, global.NSUpload),
		cfg:       cfg,
		backend:   backend,
		inbox:     queue,
		clock:     clk,
		sink:      sink,
		spool:     spool,
		sem:       semaphore.NewWeighted(int64(cfg.Concurrency)),
		jitter:    random.Duration,
	}
	return
}

// Starts the dispatch loop. Sends keep running after ctx is cancelled until Close.
func (instance *Instance) Start(ctx context.Context) {
	if instance.inbox == nil || instance.loopDone != nil {
		return
	}

	popCtx, popCancel := context.WithCancel(ctx)
	sendCtx, sendCancel := context.WithCancel(context.WithoutCancel(ctx))
	instance.popCancel = popCancel
	instance.sendCancel = sendCancel
	instance.loopDone = make(chan struct{})

	go func() {
		defer close(instance.loopDone)

		for {
			batch, ok := instance.inbox.Pop(popCtx)
			if !ok {
				if popCtx.Err() != nil {
					break
				}
				continue
			}
			instance.dispatch(sendCtx, batch)
		}

		// Queue drain, batches flushed during shutdown still go out
		for {
			batch, ok := instance.inbox.TryPop()
			if !ok {
				return
			}
			instance.dispatch(sendCtx, batch)
		}
	}()
}

// Waits for a concurrency slot then sends in the background
func (instance *Instance) dispatch(ctx context.Context, batch *buffer.Batch) {
	err := instance.sem.Acquire(ctx, 1)
	if err != nil {
		state := &retryState{}
		state.drop(batch, fmt.Errorf("shutdown before send: %w", err))
		instance.report(ctx, batch, state)
		return
	}

	instance.inflight.Add(1)
	instance.Metrics.InFlight.Add(1)
	go func() {
		defer instance.sem.Release(1)
		defer instance.inflight.Done()
		defer instance.Metrics.InFlight.Add(^uint64(0))
		defer func() {
			if fatalError := recover(); fatalError != nil {
				stack := debug.Stack()
				logctx.LogEvent(ctx, global.VerbosityStandard, global.ErrorLog,
					"panic in upload worker thread: %v\n%s", fatalError, stack)
			}
		}()

		instance.Upload(ctx, batch)
	}()
}

// Stops taking batches once the queue is empty and waits for in-flight sends.
// When ctx expires first, outstanding sends are cancelled and their batches discarded.
func (instance *Instance) Close(ctx context.Context) (err error) {
	if instance.loopDone != nil {
		instance.popCancel()

		finished := make(chan struct{})
		go func() {
			<-instance.loopDone
			instance.inflight.Wait()
			close(finished)
		}()

		select {
		case <-finished:
		case <-ctx.Done():
			logctx.LogEvent(ctx, global.VerbosityStandard, global.WarnLog,
				"Upload drain timed out, cancelling %d in-flight sends\n", instance.Metrics.InFlight.Load())
			instance.sendCancel()
			<-finished
			err = fmt.Errorf("upload drain incomplete: %w", ctx.Err())
		}
		instance.sendCancel()
	}

	closeErr := instance.backend.Close()
	if closeErr != nil {
		err = errors.Join(err, fmt.Errorf("failed to close %s backend: %w", instance.backend.Name(), closeErr))
	}
	return
}

// Sends one batch, retrying retryable failures until the attempt limit.
// Returns nil only when every segment was accepted, otherwise a *DiscardError
// counting what was delivered and what was dropped.
func (instance *Instance) Upload(ctx context.Context, batch *buffer.Batch) (err error) {
	state := &retryState{}
	pending := batch
	defer func() {
		err = instance.report(ctx, batch, state)
	}()

	for {
		state.attempt++
		instance.sink.Add("upload_attempts", 1)

		start := time.Now()
		reqCtx, cancel := context.WithTimeout(ctx, instance.cfg.RequestTimeout)
		unprocessed, sendErr := instance.backend.Send(reqCtx, pending)
		cancel()
		instance.Metrics.SendNs.Add(uint64(time.Since(start).Nanoseconds()))
		instance.Metrics.Sends.Add(1)

		if sendErr == nil && len(unprocessed) == 0 {
			state.delivered += len(pending.Segments)
			instance.sink.Add("segments_uploaded", uint64(len(pending.Segments)))
			logctx.LogEvent(ctx, global.VerbosityData, global.InfoLog,
				"Uploaded batch %d (%d segments) to %s on attempt %d\n",
				pending.Sequence, len(pending.Segments), instance.backend.Name(), state.attempt)
			return
		}

		if sendErr == nil {
			var retry, rejected *buffer.Batch
			retry, rejected, sendErr = splitUnprocessed(pending, unprocessed)

			accepted := len(pending.Segments)
			if retry != nil {
				accepted -= len(retry.Segments)
			}
			if rejected != nil {
				accepted -= len(rejected.Segments)
			}
			if accepted > 0 {
				state.delivered += accepted
				instance.sink.Add("segments_uploaded", uint64(accepted))
			}
			if rejected != nil {
				state.drop(rejected, sendErr)
			}
			if retry == nil {
				return
			}
			pending = retry
			sendErr = Retry(fmt.Errorf("%d segments left unprocessed", len(retry.Segments)))
		}

		if !IsRetryable(sendErr) {
			state.drop(pending, sendErr)
			return
		}
		if state.attempt >= instance.cfg.MaxAttempts {
			state.drop(pending, fmt.Errorf("gave up after %d attempts: %w", state.attempt, sendErr))
			return
		}

		state.nextDelay = instance.backoff(state.attempt)
		instance.sink.Add("upload_retries", 1)
		logctx.LogEvent(ctx, global.VerbosityProgress, global.WarnLog,
			"Batch %d attempt %d failed, retrying in %s: %v\n", pending.Sequence, state.attempt, state.nextDelay, sendErr)

		sleepErr := instance.clock.Sleep(ctx, state.nextDelay)
		if sleepErr != nil {
			state.drop(pending, fmt.Errorf("retry interrupted after %d attempts: %w (last error: %v)", state.attempt, sleepErr, sendErr))
			return
		}
	}
}

// Full jitter: uniform in [0, min(cap, base*2^(attempt-1))]
func (instance *Instance) backoff(attempt int) (delay time.Duration) {
	ceiling := instance.cfg.BackoffCap
	shift := attempt - 1
	if shift < 63 && instance.cfg.BackoffBase <= ceiling>>shift {
		ceiling = instance.cfg.BackoffBase << shift
	}
	delay = instance.jitter(ceiling)
	return
}

// Splits the segments the API did not store by whether their error code allows another try.
// reason describes the rejected part and is nil when nothing was rejected.
func splitUnprocessed(batch *buffer.Batch, unprocessed []Unprocessed) (retry, rejected *buffer.Batch, reason error) {
	byID := make(map[string]Unprocessed, len(unprocessed))
	for _, entry := range unprocessed {
		byID[entry.SegmentID] = entry
	}

	var firstRejection *Unprocessed
	for _, segment := range batch.Segments {
		entry, found := byID[segment.ID()]
		if !found {
			continue
		}
		target := &retry
		if !entry.Retryable {
			target = &rejected
			if firstRejection == nil {
				firstRejection = &entry
			}
		}
		if *target == nil {
			*target = &buffer.Batch{Sequence: batch.Sequence, CreatedAt: batch.CreatedAt}
		}
		(*target).Segments = append((*target).Segments, segment)
		(*target).Bytes += segment.Size()
	}

	if firstRejection != nil {
		reason = Reject(fmt.Errorf("%d segments rejected, first %s: %s %s",
			len(rejected.Segments), firstRejection.SegmentID, firstRejection.Code, firstRejection.Message))
	}
	return
}

// Sets segments aside as undelivered. They are reported together when the batch finishes.
func (state *retryState) drop(batch *buffer.Batch, reason error) {
	if batch == nil || len(batch.Segments) == 0 {
		return
	}
	if state.dropped == nil {
		state.dropped = &buffer.Batch{Sequence: batch.Sequence, CreatedAt: batch.CreatedAt}
	}
	state.dropped.Segments = append(state.dropped.Segments, batch.Segments...)
	state.dropped.Bytes += batch.Bytes
	state.reasons = append(state.reasons, reason)
}

// Single failure report for everything in the batch that will not be delivered
func (instance *Instance) report(ctx context.Context, batch *buffer.Batch, state *retryState) (err error) {
	if state.dropped == nil {
		if state.delivered > 0 {
			instance.sink.Add("batches_uploaded", 1)
		}
		return
	}

	discardErr := &DiscardError{
		Sequence:  batch.Sequence,
		Delivered: state.delivered,
		Discarded: len(state.dropped.Segments),
		Reasons:   state.reasons,
	}
	err = discardErr

	instance.sink.Add("batches_failed", 1)
	instance.sink.Add("segments_discarded", uint64(discardErr.Discarded))

	var spooled string
	if instance.spool != nil {
		path, spoolErr := instance.spool.Store(state.dropped, discardErr.Error())
		if spoolErr != nil {
			logctx.LogEvent(ctx, global.VerbosityStandard, global.WarnLog,
				"Failed to spool batch %d: %v\n", batch.Sequence, spoolErr)
		} else {
			spooled = " (spooled to " + path + ")"
			instance.sink.Add("batches_spooled", 1)
		}
	}

	logctx.LogEvent(ctx, global.VerbosityStandard, global.ErrorLog,
		"Discarded %d segments of batch %d after %d attempts%s: %v\n",
		discardErr.Discarded, batch.Sequence, state.attempt, spooled, discardErr)
	return
}

// Segment documents in batch order, as the remote APIs expect them
func Documents(batch *buffer.Batch) (documents []string) {
	documents = make([]string, 0, len(batch.Segments))
	for _, segment := range batch.Segments {
		documents = append(documents, segment.DocumentString())
	}
	return
}
