package proc

import (
	"context"
	"segmentd/internal/collector/decoder"
	"segmentd/internal/collector/listener"
	"segmentd/internal/metrics"
	"segmentd/internal/queue/mpmc"
	"sync"
)

type InstanceManager struct {
	Mu           sync.Mutex        // For scaling operations
	nextID       int               // Next free ID for new worker
	Instances    map[int]*Instance // Existing running
	MinInstCount int               // Minimum number of instances at any one time
	MaxInstCount int               // Maximum number of instances at any one time
	Inbox        *mpmc.Queue[listener.Datagram]
	out          decoder.Adder // Batching buffer
	sink         metrics.Sink
	ctx          context.Context
}

type Instance struct {
	Decoder *decoder.Instance // Datagram parser

	wg     sync.WaitGroup     // Waiter for instance
	cancel context.CancelFunc // Stop instance
}
