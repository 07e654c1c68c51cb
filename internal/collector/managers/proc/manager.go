// Manages decoder worker instances
package proc

import (
	"context"
	"segmentd/internal/collector/decoder"
	"segmentd/internal/collector/listener"
	"segmentd/internal/global"
	"segmentd/internal/logctx"
	"segmentd/internal/metrics"
	"segmentd/internal/queue/mpmc"
	"slices"
	"time"
)

// Creates new instance manager along with the decode queue it reads from
func NewInstanceManager(ctx context.Context, inQueueSize int, out decoder.Adder, sink metrics.Sink, minInsts, maxInsts int, minQsize, maxQsize int) (new *InstanceManager, err error) {
	if sink == nil {
		sink = metrics.Discard{}
	}

	// Add log context
	ctx = logctx.AppendCtxTag(ctx, global.NSmProc)
	defer func() { ctx = logctx.RemoveLastCtxTag(ctx) }()

	inQueue, err := mpmc.New[listener.Datagram](logctx.GetTagList(ctx), uint64(inQueueSize), minQsize, maxQsize)
	if err != nil {
		return
	}

	new = &InstanceManager{
		Instances:    make(map[int]*Instance),
		MinInstCount: minInsts,
		MaxInstCount: maxInsts,
		Inbox:        inQueue,
		out:          out,
		sink:         sink,
		ctx:          ctx,
	}
	return
}

// IDs of running instances, ascending
func (manager *InstanceManager) IDs() (ids []int) {
	manager.Mu.Lock()
	defer manager.Mu.Unlock()
	for id := range manager.Instances {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return
}

// Waits (up to timeout) for workers to empty the decode queue, then stops them all.
// Returns the number of datagrams left undecoded.
func (manager *InstanceManager) Drain(timeout time.Duration) (remaining uint64) {
	deadline := time.Now().Add(timeout)
	for manager.Inbox.Len() > 0 && len(manager.IDs()) > 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	ids := manager.IDs()
	for i := len(ids) - 1; i >= 0; i-- {
		manager.RemoveInstance(ids[i])
	}

	remaining = manager.Inbox.Len()
	if remaining > 0 {
		manager.sink.Add("datagrams_abandoned", remaining)
		logctx.LogEvent(manager.ctx, global.VerbosityStandard, global.WarnLog,
			"Decoders stopped with %d datagrams still queued\n", remaining)
	}
	return
}
