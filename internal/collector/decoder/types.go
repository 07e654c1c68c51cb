package decoder

import (
	"context"
	"segmentd/internal/collector/listener"
	"segmentd/internal/metrics"
	"segmentd/internal/queue/mpmc"
	"segmentd/pkg/protocol"
)

// Destination for decoded segments (the batching buffer)
type Adder interface {
	Add(ctx context.Context, segment *protocol.Segment) (err error)
}

type Instance struct {
	Namespace []string
	inbox     *mpmc.Queue[listener.Datagram]
	out       Adder
	sink      metrics.Sink
	Metrics   MetricStorage
}
