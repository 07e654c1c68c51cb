// Manages datagram listener worker instances
package in

import (
	"context"
	"net"
	"segmentd/internal/collector/listener"
	"segmentd/internal/global"
	"segmentd/internal/logctx"
	"segmentd/internal/metrics"
	"segmentd/internal/queue/mpmc"
	"slices"
	"strconv"
	"time"
)

// Creates new instance manager
func NewInstanceManager(ctx context.Context, address string, port int, outQueue *mpmc.Queue[listener.Datagram], cfg listener.Config, drainTimeout time.Duration, sink metrics.Sink, minInsts, maxInsts int) (new *InstanceManager) {
	if sink == nil {
		sink = metrics.Discard{}
	}

	ctx = logctx.AppendCtxTag(ctx, global.NSmInput)
	defer func() { ctx = logctx.RemoveLastCtxTag(ctx) }()

	new = &InstanceManager{
		Instances:    make(map[int]*Instance),
		MinInstCount: minInsts,
		MaxInstCount: maxInsts,
		address:      address,
		port:         port,
		cfg:          cfg,
		drainTimeout: drainTimeout,
		outbox:       outQueue,
		sink:         sink,
		ctx:          ctx,
	}
	return
}

// Address the listeners share, with the kernel assigned port once bound
func (manager *InstanceManager) Address() string {
	manager.Mu.Lock()
	defer manager.Mu.Unlock()
	return net.JoinHostPort(manager.address, strconv.Itoa(manager.port))
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
