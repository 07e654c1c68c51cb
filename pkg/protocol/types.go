package protocol

import "encoding/json"

// Decoded segment document. Fields are unexported so a decoded segment cannot be changed.
type Segment struct {
	traceID    string
	id         string
	name       string
	startTime  float64
	endTime    float64
	hasEnd     bool
	inProgress bool
	parentID   string
	kind       string
	extra      map[string]json.RawMessage // Fields the daemon does not interpret
	raw        []byte                     // Document bytes as received (header stripped)
}

// Client side segment document, mutable until sent
type Document struct {
	TraceID     string         `json:"trace_id"`
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	StartTime   float64        `json:"start_time"`
	EndTime     float64        `json:"end_time,omitempty"`
	InProgress  bool           `json:"in_progress,omitempty"`
	ParentID    string         `json:"parent_id,omitempty"`
	Type        string         `json:"type,omitempty"`
	Fault       bool           `json:"fault,omitempty"`
	Error       bool           `json:"error,omitempty"`
	Throttle    bool           `json:"throttle,omitempty"`
	Origin      string         `json:"origin,omitempty"`
	User        string         `json:"user,omitempty"`
	Annotations map[string]any `json:"annotations,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

type datagramHeader struct {
	Format  string `json:"format"`
	Version *int   `json:"version"`
}

type SamplingDecision string

const (
	Sampled    SamplingDecision = "1"
	NotSampled SamplingDecision = "0"
	Requested  SamplingDecision = "?"
	Unknown    SamplingDecision = ""
)

// Parsed X-Amzn-Trace-Id header
type TraceHeader struct {
	TraceID        string
	ParentID       string
	Sampling       SamplingDecision
	AdditionalData map[string]string
}
