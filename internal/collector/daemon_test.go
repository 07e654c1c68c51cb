package collector

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"segmentd/internal/externalio/xray"
	"segmentd/internal/global"
	"segmentd/internal/logctx"
	"segmentd/pkg/protocol"
	"strings"
	"sync"
	"testing"
	"time"
)

func xrayRegion(region string) xray.Config {
	return xray.Config{Region: region}
}

// Concurrency safe output sink for the stdout backend
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) Lines() (lines []string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	text := strings.TrimSpace(b.buf.String())
	if text == "" {
		return
	}
	lines = strings.Split(text, "\n")
	return
}

// Port that was free a moment ago
func freeUDPPort(t *testing.T) int {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("probe socket: %v", err)
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).Port
}

func testConfig(port int, out *lockedBuffer) Config {
	return Config{
		ListenIP:      "127.0.0.1",
		ListenPort:    port,
		Backend:       global.BackendStdout,
		Output:        out,
		FlushInterval: time.Hour,
		DrainTimeout:  2 * time.Second,
	}
}

func testContext() context.Context {
	return logctx.New(context.Background(), "test", global.VerbosityNone, nil)
}

func segmentDatagram(t *testing.T, i int) []byte {
	t.Helper()
	doc := fmt.Sprintf(`{"trace_id":"1-5759e988-bd862e3fe1be46a994272793","id":"%016x","name":"checkout","start_time":1700000000.5,"end_time":1700000001.25}`, i+1)
	return []byte(protocol.Header + doc)
}

func TestDaemon_ShutdownFlushesBufferedSegments(t *testing.T) {
	out := &lockedBuffer{}
	port := freeUDPPort(t)
	daemon := NewDaemon(testConfig(port, out))

	if err := daemon.Start(testContext()); err != nil {
		var bindErr *BindError
		if errors.As(err, &bindErr) {
			t.Skipf("bind unavailable: %v", err)
		}
		t.Fatalf("Start: %v", err)
	}
	if daemon.State() != Running {
		t.Fatalf("state = %s, want running", daemon.State())
	}

	client, err := net.DialUDP("udp", nil, &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: port})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	const m = 7
	for i := 0; i < m; i++ {
		if _, err := client.Write(segmentDatagram(t, i)); err != nil {
			t.Fatalf("send: %v", err)
		}
	}
	// Malformed datagram is counted and skipped
	client.Write([]byte(`{"format":"json","version":1}` + "\n{not json"))

	deadline := time.Now().Add(2 * time.Second)
	for daemon.Mgrs.Counters.Get("segments_buffered") < m && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	stopped := make(chan struct{})
	go func() {
		daemon.Run()
		close(stopped)
	}()

	daemon.Shutdown()

	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after Shutdown")
	}
	if daemon.State() != Stopped {
		t.Fatalf("state = %s, want stopped", daemon.State())
	}

	lines := out.Lines()
	if len(lines) != m {
		t.Fatalf("uploaded %d segments, want %d:\n%s", len(lines), m, strings.Join(lines, "\n"))
	}
	for i, line := range lines {
		if !strings.HasPrefix(line, "batch=1 ") {
			t.Errorf("line %d not in the single final batch: %s", i, line)
		}
		if !strings.Contains(line, fmt.Sprintf(`"id":"%016x"`, i+1)) {
			t.Errorf("line %d out of order: %s", i, line)
		}
	}

	if got := daemon.Mgrs.Counters.Get("decode_errors_invalid_encoding"); got != 1 {
		t.Errorf("decode_errors_invalid_encoding = %d, want 1", got)
	}
	if got := daemon.Mgrs.Counters.Get("flush_drain"); got != 1 {
		t.Errorf("flush_drain = %d, want 1", got)
	}

	// Terminal state rejects further lifecycle calls
	daemon.Shutdown()
	var stateErr *StateError
	if err := daemon.Start(testContext()); !errors.As(err, &stateErr) {
		t.Errorf("restart after stop: expected *StateError, got %v", err)
	}
}

func TestDaemon_BindFailure(t *testing.T) {
	// Plain socket without SO_REUSEPORT blocks the shared bind
	blocker, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("blocker: %v", err)
	}
	defer blocker.Close()
	port := blocker.LocalAddr().(*net.UDPAddr).Port

	daemon := NewDaemon(testConfig(port, &lockedBuffer{}))
	err = daemon.Start(testContext())

	var bindErr *BindError
	if !errors.As(err, &bindErr) {
		t.Fatalf("expected *BindError, got %v", err)
	}
	if !strings.Contains(bindErr.Address, fmt.Sprint(port)) {
		t.Errorf("bind error address = %s", bindErr.Address)
	}
	if daemon.State() != Stopped {
		t.Errorf("state = %s, want stopped", daemon.State())
	}
}

func TestDaemon_InvalidConfig(t *testing.T) {
	cfg := testConfig(freeUDPPort(t), &lockedBuffer{})
	cfg.DropPolicy = "random"

	daemon := NewDaemon(cfg)
	err := daemon.Start(testContext())
	if err == nil || !strings.Contains(err.Error(), "drop policy") {
		t.Fatalf("expected drop policy error, got %v", err)
	}
	if daemon.State() != Stopped {
		t.Errorf("state = %s, want stopped", daemon.State())
	}
}

func TestDaemon_ShutdownBeforeStart(t *testing.T) {
	daemon := NewDaemon(testConfig(freeUDPPort(t), &lockedBuffer{}))
	daemon.Shutdown()
	daemon.Run()

	if daemon.State() != Stopped {
		t.Errorf("state = %s, want stopped", daemon.State())
	}
	var stateErr *StateError
	if err := daemon.Start(testContext()); !errors.As(err, &stateErr) {
		t.Errorf("expected *StateError, got %v", err)
	}
}

func TestDaemon_ShutdownDuringStartup(t *testing.T) {
	// Recorded while stages are still coming up
	daemon := NewDaemon(testConfig(freeUDPPort(t), &lockedBuffer{}))
	daemon.startCalled = true
	daemon.Shutdown()
	if daemon.State() != Starting || !daemon.shutdownPending {
		t.Fatalf("shutdown mid startup: state = %s, pending = %v", daemon.State(), daemon.shutdownPending)
	}

	// Honoured by Start once every stage is up
	daemon = NewDaemon(testConfig(freeUDPPort(t), &lockedBuffer{}))
	daemon.shutdownPending = true
	err := daemon.Start(testContext())
	var bindErr *BindError
	if errors.As(err, &bindErr) {
		t.Skipf("bind unavailable: %v", err)
	}
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if daemon.State() != Stopped {
		t.Errorf("state = %s, want stopped", daemon.State())
	}
	select {
	case <-daemon.done:
	default:
		t.Error("done not closed after deferred shutdown")
	}
}

func TestDaemon_ConcurrentStartShutdown(t *testing.T) {
	for i := 0; i < 5; i++ {
		daemon := NewDaemon(testConfig(freeUDPPort(t), &lockedBuffer{}))

		var wg sync.WaitGroup
		var startErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			startErr = daemon.Start(testContext())
		}()
		go func() {
			defer wg.Done()
			daemon.Shutdown()
		}()
		wg.Wait()

		var bindErr *BindError
		if errors.As(startErr, &bindErr) {
			t.Skipf("bind unavailable: %v", startErr)
		}
		var stateErr *StateError
		if startErr != nil && !errors.As(startErr, &stateErr) {
			t.Fatalf("round %d: Start: %v", i, startErr)
		}

		stopped := make(chan struct{})
		go func() {
			daemon.Run()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-time.After(5 * time.Second):
			t.Fatalf("round %d: daemon still %s after Start and Shutdown returned", i, daemon.State())
		}
		if daemon.State() != Stopped {
			t.Fatalf("round %d: state = %s, want stopped", i, daemon.State())
		}
	}
}
