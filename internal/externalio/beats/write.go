package beats

import (
	"context"
	"fmt"
	"os"
	"segmentd/internal/collector/buffer"
	"segmentd/internal/collector/uploader"
	"segmentd/internal/global"
	"segmentd/pkg/protocol"
)

// Writes one event per segment to the configured beats server
func (mod *OutModule) Send(ctx context.Context, batch *buffer.Batch) (unprocessed []uploader.Unprocessed, err error) {
	err = ctx.Err()
	if err != nil {
		return
	}

	events := make([]interface{}, 0, len(batch.Segments))
	for _, segment := range batch.Segments {
		events = append(events, Event(segment))
	}

	mod.mu.Lock()
	defer mod.mu.Unlock()

	err = mod.connect()
	if err != nil {
		err = uploader.Retry(err)
		return
	}

	sent, err := mod.client.Send(events)
	if err != nil {
		// Connection state is unknown after a failed send, start over next time
		mod.client.Close()
		mod.client = nil
		err = uploader.Retry(fmt.Errorf("beats send failed after %d of %d events: %w", sent, len(events), err))
		return
	}

	for _, segment := range batch.Segments[min(sent, len(batch.Segments)):] {
		unprocessed = append(unprocessed, uploader.Unprocessed{
			SegmentID: segment.ID(),
			Code:      "NotAcknowledged",
			Message:   "event not acknowledged by beats server",
			Retryable: true,
		})
	}
	return
}

// Beats event for one segment, using ECS trace field names
func Event(segment *protocol.Segment) (fields map[string]interface{}) {
	start := protocol.SecondsToTime(segment.StartTime())

	kind := "segment"
	if segment.IsSubsegment() {
		kind = protocol.SubsegmentType
	}

	eventFields := map[string]interface{}{
		"kind":     kind,
		"dataset":  "xray.segment",
		"start":    start.UTC(),
		"original": segment.DocumentString(),
	}
	if end, ok := segment.EndTime(); ok {
		eventFields["end"] = protocol.SecondsToTime(end).UTC()
		eventFields["duration"] = protocol.SecondsToTime(end).Sub(start).Nanoseconds()
	}
	if segment.InProgress() {
		eventFields["in_progress"] = true
	}

	fields = map[string]interface{}{
		// Minimum required fields
		"@timestamp": start.UTC(),
		"message":    segment.DocumentString(),

		"trace": map[string]interface{}{
			"id": segment.TraceID(),
		},
		"span": map[string]interface{}{
			"id":   segment.ID(),
			"name": segment.Name(),
		},
		"event": eventFields,
		"service": map[string]interface{}{
			"name": segment.Name(),
		},
		"agent": map[string]interface{}{
			// Meta fields identifying the collector itself
			"name":    global.ProgBaseName,
			"version": global.ProgVersion,
			"type":    "segmentd",
			"pid":     os.Getpid(),
		},
	}
	if parent := segment.ParentID(); parent != "" {
		fields["parent"] = map[string]interface{}{"id": parent}
	}
	return
}
