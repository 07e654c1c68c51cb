// Parses queued datagrams into segments and hands them to the buffer
package decoder

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"segmentd/internal/atomics"
	"segmentd/internal/collector/listener"
	"segmentd/internal/global"
	"segmentd/internal/logctx"
	"segmentd/internal/metrics"
	"segmentd/internal/queue/mpmc"
	"segmentd/pkg/protocol"
	"time"
)

func New(namespace []string, queue *mpmc.Queue[listener.Datagram], out Adder, sink metrics.Sink) (new *Instance) {
	if sink == nil {
		sink = metrics.Discard{}
	}

	ns := make([]string, len(namespace), len(namespace)+1)
	copy(ns, namespace)

	new = &Instance{
		Namespace: append(ns, global.NSWorker),
		inbox:     queue,
		out:       out,
		sink:      sink,
	}
	return
}

func (instance *Instance) Run(ctx context.Context) {
	// Segments already popped must reach the buffer even when this worker is being stopped
	handoffCtx := context.WithoutCancel(ctx)

	for {
		// Stop this worker when cancel requested
		select {
		case <-ctx.Done():
			return
		default:
		}

		func() {
			// Record panics and continue processing
			defer func() {
				if fatalError := recover(); fatalError != nil {
					stack := debug.Stack()
					logctx.LogEvent(ctx, global.VerbosityStandard, global.ErrorLog,
						"panic in decoder worker thread: %v\n%s", fatalError, stack)
				}
			}()

			dgram, received := instance.inbox.Pop(ctx)
			if !received {
				return
			}

			err := instance.Process(handoffCtx, dgram)
			if err != nil {
				var decodeErr *protocol.DecodeError
				if errors.As(err, &decodeErr) {
					logctx.LogEvent(ctx, global.VerbosityProgress, global.WarnLog,
						"Dropped datagram from %s: %v\n", dgram.RemoteAddr, err)
				} else {
					logctx.LogEvent(ctx, global.VerbosityStandard, global.ErrorLog, "%v\n", err)
				}
			}
		}()
	}
}

// Decodes one datagram and forwards the segment. Decode failures are counted per kind.
func (instance *Instance) Process(ctx context.Context, dgram listener.Datagram) (err error) {
	start := time.Now()
	defer func() {
		durNs := uint64(time.Since(start).Nanoseconds())
		instance.Metrics.BusyNs.Add(durNs)
		instance.Metrics.SumNs.Add(durNs)
		atomics.StoreMax(&instance.Metrics.MaxNs, durNs)
	}()

	segment, err := protocol.DecodeDatagram(dgram.Data)
	if err != nil {
		var decodeErr *protocol.DecodeError
		if errors.As(err, &decodeErr) {
			instance.sink.Add("decode_errors_"+decodeErr.Kind.String(), 1)
		}
		instance.Metrics.Invalid.Add(1)
		return
	}
	instance.Metrics.Valid.Add(1)
	instance.sink.Add("segments_decoded", 1)

	logctx.LogEvent(ctx, global.VerbosityFullData, global.InfoLog,
		"Decoded segment %s (trace %s, %q) from %s\n", segment.ID(), segment.TraceID(), segment.Name(), dgram.RemoteAddr)

	err = instance.out.Add(ctx, segment)
	if err != nil {
		err = fmt.Errorf("failed to buffer segment %s: %w", segment.ID(), err)
		return
	}
	return
}
