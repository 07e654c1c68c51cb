package buffer

import (
	"context"
	"errors"
	"segmentd/internal/clock"
	"segmentd/internal/metrics"
	"segmentd/pkg/protocol"
	"sync"
	"time"
)

var (
	ErrSegmentTooLarge = errors.New("segment exceeds maximum batch size")
	ErrBufferClosed    = errors.New("buffer is drained")
)

// Ordered group of segments sent in one upload call
type Batch struct {
	Segments  []*protocol.Segment
	Bytes     int    // Sum of serialized segment sizes
	Sequence  uint64 // Emission order, starting at 1
	CreatedAt time.Time
}

// Receives every flushed batch. Called with the buffer lock held so batches arrive in order.
type Emitter func(ctx context.Context, batch *Batch) (err error)

type Config struct {
	MaxCount      int
	MaxBytes      int
	FlushInterval time.Duration
}

type Instance struct {
	Namespace []string
	cfg       Config
	clock     clock.Clock
	sink      metrics.Sink
	emit      Emitter

	mu        sync.Mutex
	current   *Batch
	sequence  uint64
	lastFlush time.Time
	timer     clock.Timer
	closed    bool

	stop chan struct{}
	done chan struct{}
}

// Reasons a batch left the buffer
const (
	flushCount    string = "count"
	flushBytes    string = "bytes"
	flushInterval string = "interval"
	flushDrain    string = "drain"
	flushManual   string = "manual"
)
