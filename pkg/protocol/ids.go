package protocol

import (
	"fmt"
	"segmentd/internal/random"
	"strconv"
	"time"
)

// Trace id in the form 1-<8 hex epoch seconds>-<24 hex random>
func NewTraceID(now time.Time) (traceID string, err error) {
	randomPart, err := random.Hex(traceIDRandomLen / 2)
	if err != nil {
		err = fmt.Errorf("failed to generate trace id: %w", err)
		return
	}
	traceID = fmt.Sprintf("%s-%08x-%s", traceIDVersion, uint32(now.Unix()), randomPart)
	return
}

// Segment id of 16 hex digits
func NewSegmentID() (segmentID string, err error) {
	segmentID, err = random.Hex(segmentIDLen / 2)
	if err != nil {
		err = fmt.Errorf("failed to generate segment id: %w", err)
		return
	}
	return
}

func ValidTraceID(traceID string) (valid bool) {
	if len(traceID) != traceIDLen {
		return
	}
	timeStart := len(traceIDVersion) + 1
	randomStart := timeStart + traceIDTimeLen + 1
	if traceID[:timeStart] != traceIDVersion+"-" || traceID[randomStart-1] != '-' {
		return
	}
	valid = isHex(traceID[timeStart:randomStart-1]) && isHex(traceID[randomStart:])
	return
}

func ValidSegmentID(segmentID string) (valid bool) {
	valid = len(segmentID) == segmentIDLen && isHex(segmentID)
	return
}

// Creation time encoded in a trace id
func TraceIDTime(traceID string) (created time.Time, err error) {
	if !ValidTraceID(traceID) {
		err = fmt.Errorf("invalid trace id %q", traceID)
		return
	}
	timeStart := len(traceIDVersion) + 1
	seconds, err := strconv.ParseUint(traceID[timeStart:timeStart+traceIDTimeLen], 16, 32)
	if err != nil {
		err = fmt.Errorf("invalid trace id time %q: %w", traceID, err)
		return
	}
	created = time.Unix(int64(seconds), 0)
	return
}

func isHex(text string) bool {
	if text == "" {
		return false
	}
	for i := 0; i < len(text); i++ {
		c := text[i]
		if !('0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F') {
			return false
		}
	}
	return true
}
