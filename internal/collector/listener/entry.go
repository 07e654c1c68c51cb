// Reads segment datagrams from the network and queues them for decoding
package listener

import (
	"context"
	"errors"
	"net"
	"runtime/debug"
	"segmentd/internal/atomics"
	"segmentd/internal/global"
	"segmentd/internal/logctx"
	"segmentd/internal/metrics"
	"segmentd/internal/queue/mpmc"
	"time"
)

func New(namespace []string, conn *net.UDPConn, queue *mpmc.Queue[Datagram], cfg Config, sink metrics.Sink) (new *Instance) {
	if cfg.MaxDatagramBytes <= 0 || cfg.MaxDatagramBytes > global.MaxUDPPayload {
		cfg.MaxDatagramBytes = global.MaxUDPPayload
	}
	if cfg.DropPolicy != global.DropOldest {
		cfg.DropPolicy = global.DropNewest
	}
	if sink == nil {
		sink = metrics.Discard{}
	}

	ns := make([]string, len(namespace), len(namespace)+1)
	copy(ns, namespace)

	new = &Instance{
		Namespace:  append(ns, global.NSListen),
		conn:       conn,
		Outbox:     queue,
		maxSize:    cfg.MaxDatagramBytes,
		dropPolicy: cfg.DropPolicy,
		sink:       sink,
	}
	return
}

// Blocks reading the socket until ctx is cancelled or the socket is closed
func (instance *Instance) Run(ctx context.Context) {
	// One extra byte so a datagram over the limit is seen as oversize instead of silently truncated
	buffer := make([]byte, instance.maxSize+1)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		stop := func() (stop bool) {
			defer func() {
				// Record panics and continue listening
				if fatalError := recover(); fatalError != nil {
					stack := debug.Stack()
					logctx.LogEvent(ctx, global.VerbosityStandard, global.ErrorLog,
						"panic in listener worker thread: %v\n%s", fatalError, stack)
				}
			}()

			// Blocking until data or connection is closed by manager
			n, remoteAddr, err := instance.conn.ReadFromUDP(buffer)
			start := time.Now()
			if err != nil {
				if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
					stop = true
					return
				}
				logctx.LogEvent(ctx, global.VerbosityStandard, global.ErrorLog,
					"Failed reading data from socket: %v\n", err)
				return
			}
			defer func() { instance.Metrics.BusyNs.Add(uint64(time.Since(start))) }()

			instance.Metrics.Received.Add(1)
			instance.sink.Add("datagrams_received", 1)

			if remoteAddr == nil || remoteAddr.Port == 0 {
				instance.Metrics.Invalid.Add(1)
				instance.sink.Add("invalid_source", 1)
				logctx.LogEvent(ctx, global.VerbosityProgress, global.WarnLog,
					"Dropped datagram with invalid source address %v\n", remoteAddr)
				return
			}
			if n > instance.maxSize {
				instance.Metrics.Invalid.Add(1)
				instance.sink.Add("oversize_datagrams", 1)
				logctx.LogEvent(ctx, global.VerbosityProgress, global.WarnLog,
					"Dropped datagram from %s larger than %d bytes\n", remoteAddr.String(), instance.maxSize)
				return
			}

			dgram := Datagram{
				Data:       append([]byte(nil), buffer[:n]...),
				RemoteAddr: remoteAddr.String(),
				ReceivedAt: start,
			}

			err = instance.enqueue(dgram)
			if err != nil {
				logctx.LogEvent(ctx, global.VerbosityData, global.WarnLog, "%v\n", err)
			}

			durNs := uint64(time.Since(start).Nanoseconds())
			instance.Metrics.SumNs.Add(durNs)
			atomics.StoreMax(&instance.Metrics.MaxNs, durNs)
			return
		}()
		if stop {
			return
		}
	}
}

// Queues without blocking, applying the drop policy when the queue is full
func (instance *Instance) enqueue(dgram Datagram) (err error) {
	size := len(dgram.Data) + len(dgram.RemoteAddr)

	switch instance.dropPolicy {
	case global.DropOldest:
		evicted, ok := instance.Outbox.PushEvict(dgram, size)
		if evicted > 0 {
			instance.Metrics.Dropped.Add(uint64(evicted))
			instance.sink.Add("dropped_oldest", uint64(evicted))
		}
		if !ok {
			instance.Metrics.Dropped.Add(1)
			instance.sink.Add("dropped_newest", 1)
			err = &QueueFullError{Policy: global.DropNewest}
			return
		}
		if evicted > 0 {
			err = &QueueFullError{Policy: global.DropOldest}
			return
		}
	default:
		if !instance.Outbox.Push(dgram, size) {
			instance.Metrics.Dropped.Add(1)
			instance.sink.Add("dropped_newest", 1)
			err = &QueueFullError{Policy: global.DropNewest}
			return
		}
	}
	instance.Metrics.Queued.Add(1)
	return
}
