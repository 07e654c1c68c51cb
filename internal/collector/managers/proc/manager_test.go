package proc

import (
	"context"
	"fmt"
	"segmentd/internal/collector/listener"
	"segmentd/internal/global"
	"segmentd/internal/logctx"
	"segmentd/internal/metrics"
	"segmentd/pkg/protocol"
	"sync"
	"testing"
	"time"
)

type countingAdder struct {
	mu    sync.Mutex
	count int
}

func (c *countingAdder) Add(ctx context.Context, segment *protocol.Segment) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count++
	return nil
}

func datagram(i int) listener.Datagram {
	doc := fmt.Sprintf(`{"trace_id":"1-5759e988-bd862e3fe1be46a994272793","id":"%016x","name":"svc","start_time":1,"end_time":2}`, i+1)
	return listener.Datagram{Data: []byte(protocol.Header + doc)}
}

func TestNewInstanceManager_BadQueue(t *testing.T) {
	if _, err := NewInstanceManager(context.Background(), 3, &countingAdder{}, nil, 1, 2, 2, 64); err == nil {
		t.Fatal("expected error for non power of two queue size")
	}
}

func TestDrain(t *testing.T) {
	adder := &countingAdder{}
	counters := metrics.NewCounters(nil)
	ctx := logctx.New(context.Background(), "test", global.VerbosityNone, nil)
	manager, err := NewInstanceManager(ctx, 256, adder, counters, 1, 4, 2, 1024)
	if err != nil {
		t.Fatalf("manager: %v", err)
	}

	const n = 200
	for i := 0; i < n; i++ {
		d := datagram(i)
		if !manager.Inbox.Push(d, len(d.Data)) {
			t.Fatal("push failed")
		}
	}
	for i := 0; i < 3; i++ {
		manager.AddInstance()
	}

	remaining := manager.Drain(5 * time.Second)
	if remaining != 0 {
		t.Fatalf("remaining = %d", remaining)
	}
	if len(manager.IDs()) != 0 {
		t.Errorf("workers still running: %v", manager.IDs())
	}
	adder.mu.Lock()
	defer adder.mu.Unlock()
	if adder.count != n {
		t.Errorf("buffered %d segments, want %d", adder.count, n)
	}
	if counters.Get("segments_decoded") != n {
		t.Errorf("segments_decoded = %d", counters.Get("segments_decoded"))
	}
}

func TestDrain_NoWorkers(t *testing.T) {
	counters := metrics.NewCounters(nil)
	manager, err := NewInstanceManager(context.Background(), 4, &countingAdder{}, counters, 1, 1, 2, 8)
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	d := datagram(0)
	manager.Inbox.Push(d, len(d.Data))

	if remaining := manager.Drain(time.Second); remaining != 1 {
		t.Fatalf("remaining = %d, want 1", remaining)
	}
	if counters.Get("datagrams_abandoned") != 1 {
		t.Errorf("datagrams_abandoned = %d", counters.Get("datagrams_abandoned"))
	}
}
