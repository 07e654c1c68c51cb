package cli

import (
	"context"
	"net"
	"segmentd/internal/global"
	"segmentd/internal/logctx"
	"segmentd/pkg/protocol"
	"testing"
	"time"
)

func TestEmitSegments(t *testing.T) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer conn.Close()

	ctx := logctx.New(context.Background(), "test", global.VerbosityNone, nil)
	traceIDs, err := emitSegments(ctx, emitOptions{
		Address:     conn.LocalAddr().String(),
		Name:        "checkout",
		Count:       2,
		Subsegments: 1,
		Annotations: map[string]string{"env": "test"},
	})
	if err != nil {
		t.Fatalf("emitSegments: %v", err)
	}
	if len(traceIDs) != 2 || traceIDs[0] == traceIDs[1] {
		t.Fatalf("trace ids = %v", traceIDs)
	}

	// Each trace: subsegment first, then its parent
	buf := make([]byte, global.MaxUDPPayload)
	for i := 0; i < 4; i++ {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		n, err := conn.Read(buf)
		if err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
		segment, err := protocol.DecodeDatagram(buf[:n])
		if err != nil {
			t.Fatalf("datagram %d does not decode: %v", i, err)
		}
		if segment.TraceID() != traceIDs[i/2] {
			t.Errorf("datagram %d trace = %s, want %s", i, segment.TraceID(), traceIDs[i/2])
		}
		if _, ended := segment.EndTime(); !ended {
			t.Errorf("datagram %d not ended", i)
		}

		if i%2 == 0 {
			if !segment.IsSubsegment() || segment.Name() != "checkout-1" {
				t.Errorf("datagram %d should be subsegment checkout-1, got %s", i, segment.Name())
			}
			continue
		}
		if segment.IsSubsegment() || segment.Name() != "checkout" {
			t.Errorf("datagram %d should be segment checkout, got %s", i, segment.Name())
		}
		if _, found := segment.Extra("annotations"); !found {
			t.Errorf("datagram %d lost annotations", i)
		}
	}
}

func TestEmitSegments_Invalid(t *testing.T) {
	ctx := logctx.New(context.Background(), "test", global.VerbosityNone, nil)
	tests := []emitOptions{
		{Address: "127.0.0.1:2000", Count: 0},
		{Address: "127.0.0.1:2000", Count: 1, Subsegments: -1},
		{Address: "not an address", Count: 1},
	}
	for _, opts := range tests {
		if _, err := emitSegments(ctx, opts); err == nil {
			t.Errorf("expected error for %+v", opts)
		}
	}
}
