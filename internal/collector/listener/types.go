package listener

import (
	"fmt"
	"net"
	"segmentd/internal/metrics"
	"segmentd/internal/queue/mpmc"
	"time"
)

type Instance struct {
	Namespace  []string
	conn       *net.UDPConn
	Outbox     *mpmc.Queue[Datagram]
	maxSize    int
	dropPolicy string
	sink       metrics.Sink
	Metrics    MetricStorage
}

type Config struct {
	MaxDatagramBytes   int
	DropPolicy         string // global.DropNewest or global.DropOldest
	ReceiveBufferBytes int    // SO_RCVBUF request, 0 keeps the kernel default
}

// One received UDP payload, owned by the listener until it is queued
type Datagram struct {
	Data       []byte
	RemoteAddr string
	ReceivedAt time.Time
}

// Decode queue had no room; Policy names what was discarded
type QueueFullError struct {
	Policy string
}

func (e *QueueFullError) Error() string {
	return fmt.Sprintf("decode queue is full, dropped %s datagram", e.Policy)
}
