package cli

import (
	"context"
	"fmt"
	"net"
	"os"
	"segmentd/internal/global"
	"segmentd/internal/logctx"
	"segmentd/pkg/protocol"
	"strconv"
	"time"
)

type emitOptions struct {
	Address     string
	Name        string
	Count       int
	Subsegments int
	Annotations map[string]string
	Interval    time.Duration
}

// Sends generated segments to a daemon
func EmitMode(ctx context.Context, commandname string, args []string) {
	host, port := protocol.DefaultDaemonAddress()
	opts := emitOptions{}

	commandFlags := newCommandFlags(commandname)
	commandFlags.StringVarP(&opts.Address, "address", "a", net.JoinHostPort(host, strconv.Itoa(port)), "Daemon address (host:port)")
	commandFlags.StringVarP(&opts.Name, "name", "n", "segmentd-emit", "Segment name")
	commandFlags.IntVar(&opts.Count, "count", 1, "Number of segments to send")
	commandFlags.IntVar(&opts.Subsegments, "subsegments", 0, "Subsegments sent ahead of each segment")
	commandFlags.StringToStringVar(&opts.Annotations, "annotation", nil, "Annotation added to every segment (key=value, repeatable)")
	commandFlags.DurationVar(&opts.Interval, "interval", 0, "Pause between segments")
	commandFlags.Parse(args)
	applyGlobalArguments(ctx)

	traceIDs, err := emitSegments(ctx, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	for _, traceID := range traceIDs {
		fmt.Println(traceID)
	}
}

// Returns the trace ID of every segment sent
func emitSegments(ctx context.Context, opts emitOptions) (traceIDs []string, err error) {
	if opts.Count <= 0 {
		err = fmt.Errorf("count must be positive, got %d", opts.Count)
		return
	}
	if opts.Subsegments < 0 {
		err = fmt.Errorf("subsegments cannot be negative")
		return
	}

	ctx = logctx.AppendCtxTag(ctx, global.NSCLI)

	conn, err := net.Dial("udp", opts.Address)
	if err != nil {
		err = fmt.Errorf("failed to open socket to %s: %w", opts.Address, err)
		return
	}
	defer conn.Close()

	send := func(doc *protocol.Document) (err error) {
		datagram, err := protocol.EncodeDatagram(doc)
		if err != nil {
			return
		}
		_, err = conn.Write(datagram)
		if err != nil {
			err = fmt.Errorf("failed to send segment %s: %w", doc.ID, err)
			return
		}
		logctx.LogEvent(ctx, global.VerbosityData, global.InfoLog,
			"Sent %s %s (%d bytes)\n", doc.Name, doc.ID, len(datagram))
		return
	}

	for i := 0; i < opts.Count; i++ {
		if i > 0 && opts.Interval > 0 {
			select {
			case <-ctx.Done():
				err = context.Cause(ctx)
				return
			case <-time.After(opts.Interval):
			}
		}

		var doc *protocol.Document
		doc, err = protocol.BeginSegment(opts.Name, time.Now())
		if err != nil {
			return
		}
		if len(opts.Annotations) > 0 {
			doc.Annotations = make(map[string]any, len(opts.Annotations))
			for key, value := range opts.Annotations {
				doc.Annotations[key] = value
			}
		}

		for n := 0; n < opts.Subsegments; n++ {
			var sub *protocol.Document
			sub, err = protocol.BeginSubsegment(fmt.Sprintf("%s-%d", opts.Name, n+1), doc, time.Now())
			if err != nil {
				return
			}
			sub.End(time.Now())
			err = send(sub)
			if err != nil {
				return
			}
		}

		doc.End(time.Now())
		err = send(doc)
		if err != nil {
			return
		}
		traceIDs = append(traceIDs, doc.TraceID)
	}

	logctx.LogEvent(ctx, global.VerbosityProgress, global.InfoLog,
		"Sent %d segments to %s\n", opts.Count*(opts.Subsegments+1), opts.Address)
	return
}
