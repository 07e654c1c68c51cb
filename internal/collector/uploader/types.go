package uploader

import (
	"context"
	"segmentd/internal/clock"
	"segmentd/internal/collector/buffer"
	"segmentd/internal/metrics"
	"segmentd/internal/queue/mpmc"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// Remote ingestion endpoint
type Backend interface {
	Name() string
	// Returns the segments the remote accepted the request for but did not store
	Send(ctx context.Context, batch *buffer.Batch) (unprocessed []Unprocessed, err error)
	Close() (err error)
}

// Per segment rejection inside an otherwise successful send
type Unprocessed struct {
	SegmentID string
	Code      string
	Message   string
	Retryable bool
}

// Dead letter storage for discarded batches
type Spooler interface {
	Store(batch *buffer.Batch, reason string) (path string, err error)
}

type Config struct {
	MaxAttempts    int
	BackoffBase    time.Duration
	BackoffCap     time.Duration
	Concurrency    int
	RequestTimeout time.Duration
}

type Instance struct {
	Namespace []string
	cfg       Config
	backend   Backend
	inbox     *mpmc.Queue[*buffer.Batch]
	clock     clock.Clock
	sink      metrics.Sink
	spool     Spooler
	sem       *semaphore.Weighted
	jitter    func(max time.Duration) time.Duration

	inflight   sync.WaitGroup
	popCancel  context.CancelFunc
	sendCancel context.CancelFunc
	loopDone   chan struct{}
	Metrics    MetricStorage
}

// Explicit retry progress for one batch
type retryState struct {
	attempt   int           // sends made so far
	nextDelay time.Duration // sleep before the next send
	delivered int           // segments the remote stored
	dropped   *buffer.Batch // segments given up on, reported once
	reasons   []error
}
