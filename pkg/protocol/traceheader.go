package protocol

import (
	"fmt"
	"sort"
	"strings"
)

// Parses an X-Amzn-Trace-Id header value (Root=...;Parent=...;Sampled=1).
// Self= entries are dropped, other key=value pairs are kept as additional data.
func ParseTraceHeader(value string) (header TraceHeader, err error) {
	header.AdditionalData = make(map[string]string)

	for _, part := range strings.Split(value, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		key, val, found := strings.Cut(part, "=")
		if !found {
			err = fmt.Errorf("invalid key=value: no '=' found in %q", value)
			return
		}

		switch key {
		case "Root":
			header.TraceID = val
		case "Parent":
			header.ParentID = val
		case "Sampled":
			header.Sampling = parseSampling(val)
		case "Self":
		default:
			header.AdditionalData[key] = val
		}
	}
	return
}

func parseSampling(value string) (decision SamplingDecision) {
	switch SamplingDecision(value) {
	case Sampled, NotSampled, Requested:
		decision = SamplingDecision(value)
	default:
		decision = Unknown
	}
	return
}

// Renders the header value; additional data is emitted in key order
func (header TraceHeader) String() string {
	var parts []string
	if header.TraceID != "" {
		parts = append(parts, "Root="+header.TraceID)
	}
	if header.ParentID != "" {
		parts = append(parts, "Parent="+header.ParentID)
	}
	if header.Sampling != Unknown {
		parts = append(parts, "Sampled="+string(header.Sampling))
	}

	keys := make([]string, 0, len(header.AdditionalData))
	for key := range header.AdditionalData {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		parts = append(parts, key+"="+header.AdditionalData[key])
	}
	return strings.Join(parts, ";")
}
