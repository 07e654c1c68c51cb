package in

import (
	"context"
	"net"
	"segmentd/internal/collector/listener"
	"segmentd/internal/metrics"
	"segmentd/internal/queue/mpmc"
	"sync"
	"time"
)

type InstanceManager struct {
	Mu           sync.Mutex        // For scaling operations
	nextID       int               // Next free ID for new listener
	Instances    map[int]*Instance // Existing running instances
	MinInstCount int               // Minimum number of instances at any one time
	MaxInstCount int               // Maximum number of instances at any one time
	address      string            // Network listen address
	port         int               // Network listen port, fixed after the first bind when 0
	cfg          listener.Config
	drainTimeout time.Duration // Bound on waiting for the kernel receive queue to empty
	outbox       *mpmc.Queue[listener.Datagram]
	sink         metrics.Sink
	ctx          context.Context
}

type Instance struct {
	Listener *listener.Instance // Network datagram reader
	conn     *net.UDPConn       // Socket (reused) for the listener
	cookie   uint64             // Kernel socket identifier for drain marking

	wg     sync.WaitGroup     // Waiter for instance
	cancel context.CancelFunc // Stop instance
}
