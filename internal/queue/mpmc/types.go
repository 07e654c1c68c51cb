package mpmc

import "sync/atomic"

type cell[T any] struct {
	seq  atomic.Uint64
	data T
	size int // Byte size reported by the producer, released on pop
}

type QueueInst[T any] struct {
	Namespace []string
	Size      int
	mask      atomic.Uint64
	buf       []cell[T]
	head      atomic.Uint64
	tail      atomic.Uint64
	notEmpty  chan struct{}
	draining  atomic.Bool  // Gates producers from writing to this queue
	writers   atomic.Int64 // Producers between the draining check and publishing
	Metrics   *MetricStorage
}

// Container for split read/write views.
// ActiveWrite is the queue currently accepting writes, ActiveRead the one currently being read.
// Both point at the same instance except while a resize migration is in progress.
type Queue[T any] struct {
	ActiveWrite atomic.Pointer[QueueInst[T]]
	ActiveRead  atomic.Pointer[QueueInst[T]]
	migrateCh   chan struct{} // Buffered, wakes a consumer once the old read queue is empty
	minimumSize int           // Lower configurable bound for scaling
	maximumSize int           // Upper configurable bound for scaling
}

type popResult int

const (
	popOK popResult = iota
	popEmpty
	popRetry
)
