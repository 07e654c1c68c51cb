// Multi-producer multi-consumer lock-free ring buffer queue with power-of-two capacity
package mpmc

import (
	"context"
	"fmt"
	"runtime"
	"segmentd/internal/atomics"
	"segmentd/internal/global"
	"time"
)

// Creates a new queue
func New[T any](namespace []string, initialCapacity uint64, minCapacity, maxCapacity int) (new *Queue[T], err error) {
	if minCapacity > maxCapacity {
		err = fmt.Errorf("minimum capacity %d exceeds maximum capacity %d", minCapacity, maxCapacity)
		return
	}

	qInst, err := newQueueInst[T](namespace, initialCapacity)
	if err != nil {
		return
	}

	new = &Queue[T]{}
	new.ActiveRead.Store(qInst)
	new.ActiveWrite.Store(qInst)
	new.migrateCh = make(chan struct{}, 1)
	new.minimumSize = minCapacity
	new.maximumSize = maxCapacity
	return
}

// Allocates a queue of the new capacity; consumers finish the migration once the old queue is empty
func (container *Queue[T]) mutateSize(newCapacity uint64) (err error) {
	// Only one migration at a time
	if container.ActiveRead.Load() != container.ActiveWrite.Load() {
		err = fmt.Errorf("resize already in progress")
		return
	}

	old := container.ActiveWrite.Load()

	// Namespace already carries the queue tag
	qInst, err := newQueueInst[T](old.Namespace[:len(old.Namespace)-1], newCapacity)
	if err != nil {
		return
	}

	// Producers reload the write pointer once they see draining
	old.draining.Store(true)
	container.ActiveWrite.Store(qInst)

	// Old queue may already be empty, wake a waiting consumer to flip the read side
	if old.head.Load() == old.tail.Load() {
		container.signalMigration()
	}
	return
}

// Creates new queue instance (no container A/B - Write/Read)
func newQueueInst[T any](namespace []string, capacity uint64) (new *QueueInst[T], err error) {
	if capacity < 2 {
		err = fmt.Errorf("capacity must be greater than or equal to 2")
		return
	}
	if (capacity & (capacity - 1)) != 0 {
		err = fmt.Errorf("capacity must be a power of two")
		return
	}

	buf := make([]cell[T], capacity)
	for i := uint64(0); i < capacity; i++ {
		buf[i].seq.Store(i)
	}

	ns := make([]string, 0, len(namespace)+1)
	ns = append(ns, namespace...)
	ns = append(ns, global.NSQueue)

	new = &QueueInst[T]{
		Namespace: ns,
		Size:      int(capacity),
		buf:       buf,
		notEmpty:  make(chan struct{}, 1),
		Metrics:   &MetricStorage{},
	}
	new.mask.Store(capacity - 1)
	return
}

// Poll based wrapper around Push that blocks until the value is written or ctx is done
func (container *Queue[T]) PushBlocking(ctx context.Context, value T, size int) (success bool) {
	for {
		if container.Push(value, size) {
			success = true
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// Writes value, evicting the oldest queued elements while the queue is full
func (container *Queue[T]) PushEvict(value T, size int) (evictions int, success bool) {
	const maxEvictions = 4

	for range maxEvictions {
		if container.Push(value, size) {
			success = true
			return
		}

		_, ok := container.TryPop()
		if ok {
			evictions++
			container.ActiveRead.Load().Metrics.Evicted.Add(1)
		}
	}
	return
}

// Attempts to write an element (false = queue full)
func (container *Queue[T]) Push(value T, size int) (success bool) {
	queue := container.acquireWriter()
	success = container.enqueue(queue, value, size)
	container.releaseWriter(queue)
	return
}

// Registers a producer on the current write view. While registered, consumers
// will not retire that view even if it is draining and looks empty.
func (container *Queue[T]) acquireWriter() (queue *QueueInst[T]) {
	for {
		queue = container.ActiveWrite.Load()
		queue.writers.Add(1)
		if !queue.draining.Load() {
			return
		}
		queue.writers.Add(-1)
		// Pointer swap not visible yet
		runtime.Gosched()
	}
}

// Last producer out of a draining queue may be all a parked consumer is waiting for
func (container *Queue[T]) releaseWriter(queue *QueueInst[T]) {
	if queue.writers.Add(-1) == 0 && queue.draining.Load() {
		container.signalMigration()
	}
}

// Single write against one queue instance, caller holds a writer registration
func (container *Queue[T]) enqueue(queue *QueueInst[T], value T, size int) (success bool) {
	queue.Metrics.PushAttempts.Add(1)

	var pos, seq uint64
	var slot *cell[T]

	for {
		pos = queue.tail.Load()
		slot = &queue.buf[pos&queue.mask.Load()]
		seq = slot.seq.Load()

		if seq == pos {
			if queue.tail.CompareAndSwap(pos, pos+1) {
				queue.Metrics.PushSuccess.Add(1)
				break
			}
			queue.Metrics.PushCASRetries.Add(1)
		} else if seq < pos {
			queue.Metrics.PushFull.Add(1)
			return
		} else {
			queue.Metrics.PushSeqAhead.Add(1)
			runtime.Gosched()
		}
	}

	slot.data = value
	slot.size = size
	slot.seq.Store(pos + 1)
	queue.Metrics.Depth.Add(1)
	if size > 0 {
		queue.Metrics.Bytes.Add(uint64(size))
	}
	atomics.StoreMax(&queue.Metrics.PeakDepth, queue.Metrics.Depth.Load())

	// Notify blocked consumers, non-blocking
	select {
	case queue.notEmpty <- struct{}{}:
	default:
	}

	success = true
	return
}

// Reads an element, waiting until one is available. Returns false once ctx is done.
func (container *Queue[T]) Pop(ctx context.Context) (out T, success bool) {
	for {
		queue := container.ActiveRead.Load()
		queue.Metrics.PopAttempts.Add(1)

		var result popResult
		out, result = container.dequeue(queue)
		switch result {
		case popOK:
			success = true
			return
		case popRetry:
			continue
		}

		// Empty: wait for signal or context cancel
		queue.Metrics.PopEmpty.Add(1)
		if container.finishMigration(queue) {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-queue.notEmpty:
			queue.Metrics.PopWaitSignals.Add(1)
		case <-container.migrateCh:
			container.finishMigration(queue)
		}

		if container.ActiveRead.Load() != queue {
			// Pass the wake on to the next consumer still parked on the old queue
			select {
			case queue.notEmpty <- struct{}{}:
			default:
			}
		}
	}
}

// Reads an element without waiting. Returns false when the queue is empty.
func (container *Queue[T]) TryPop() (out T, success bool) {
	for {
		queue := container.ActiveRead.Load()
		queue.Metrics.PopAttempts.Add(1)

		var result popResult
		out, result = container.dequeue(queue)
		switch result {
		case popOK:
			success = true
			return
		case popRetry:
			continue
		}

		queue.Metrics.PopEmpty.Add(1)
		if container.finishMigration(queue) {
			continue
		}
		return
	}
}

// Number of queued elements across both views
func (container *Queue[T]) Len() (depth uint64) {
	write := container.ActiveWrite.Load()
	depth = write.Metrics.Depth.Load()
	if read := container.ActiveRead.Load(); read != write {
		depth += read.Metrics.Depth.Load()
	}
	return
}

// Current capacity of the write view
func (container *Queue[T]) Capacity() (capacity int) {
	capacity = container.ActiveWrite.Load().Size
	return
}

// Single dequeue attempt against one queue instance
func (container *Queue[T]) dequeue(queue *QueueInst[T]) (out T, result popResult) {
	mask := queue.mask.Load()
	pos := queue.head.Load()
	slot := &queue.buf[pos&mask]
	seq := slot.seq.Load()
	readySeq := pos + 1

	if seq < readySeq {
		result = popEmpty
		return
	}
	if seq > readySeq {
		// Another consumer is ahead
		queue.Metrics.PopSeqBehind.Add(1)
		result = popRetry
		return
	}
	if !queue.head.CompareAndSwap(pos, pos+1) {
		queue.Metrics.PopCASRetries.Add(1)
		result = popRetry
		return
	}

	out = slot.data
	size := slot.size
	var zero T
	slot.data = zero // Release reference held by the ring
	slot.size = 0
	slot.seq.Store(pos + mask + 1)

	queue.Metrics.PopSuccess.Add(1)
	atomics.SaturatingSub(&queue.Metrics.Depth, 1)
	if size > 0 {
		atomics.SaturatingSub(&queue.Metrics.Bytes, uint64(size))
	}

	// Last element of a migrating queue, wake consumers
	if queue.draining.Load() && queue.head.Load() == queue.tail.Load() {
		container.signalMigration()
	}

	result = popOK
	return
}

// Flips the read view to the write view when queue is a drained migration source.
// Writers are checked before the indices: a producer that got past the draining
// check is still registered until its element is visible in tail.
func (container *Queue[T]) finishMigration(queue *QueueInst[T]) (flipped bool) {
	if !queue.draining.Load() || queue.writers.Load() != 0 || queue.head.Load() != queue.tail.Load() {
		return
	}
	flipped = container.ActiveRead.CompareAndSwap(queue, container.ActiveWrite.Load())
	return
}

func (container *Queue[T]) signalMigration() {
	select {
	case container.migrateCh <- struct{}{}:
	default: // Only need one signal
	}
}
