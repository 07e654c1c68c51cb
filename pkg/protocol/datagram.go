// Wire codec for trace segment datagrams: a JSON header line followed by one segment document
package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/netip"
	"os"
	"segmentd/internal/global"
)

// Prefixes the JSON encoding of v with the datagram header
func EncodeDatagram(v any) (datagram []byte, err error) {
	document, err := json.Marshal(v)
	if err != nil {
		err = fmt.Errorf("failed to encode segment document: %w", err)
		return
	}

	datagram = make([]byte, 0, len(Header)+len(document))
	datagram = append(datagram, Header...)
	datagram = append(datagram, document...)
	return
}

// Validates the header line and decodes the segment document that follows it.
// Every failure is a *DecodeError.
func DecodeDatagram(data []byte) (segment *Segment, err error) {
	if len(data) == 0 {
		err = decodeErr(MalformedHeader, "datagram is empty")
		return
	}

	newline := bytes.IndexByte(data, '\n')
	if newline < 0 {
		err = decodeErr(MalformedHeader, "header line is not terminated")
		return
	}
	if newline > maxHeaderLineSize {
		err = decodeErr(MalformedHeader, "header line length %d exceeds %d bytes", newline, maxHeaderLineSize)
		return
	}

	var header datagramHeader
	headerErr := json.Unmarshal(data[:newline], &header)
	if headerErr != nil {
		err = decodeErr(MalformedHeader, "header is not a JSON object: %v", headerErr)
		return
	}
	if header.Format != HeaderFormat {
		err = decodeErr(MalformedHeader, "unsupported header format %q", header.Format)
		return
	}
	if header.Version == nil || *header.Version != HeaderVersion {
		err = decodeErr(MalformedHeader, "unsupported header version")
		return
	}

	body := bytes.TrimSpace(data[newline+1:])
	if len(body) == 0 {
		err = decodeErr(TruncatedPayload, "no segment document after header")
		return
	}

	segment, err = DecodeDocument(body)
	return
}

// Decodes one segment document (no header)
func DecodeDocument(body []byte) (segment *Segment, err error) {
	var fields map[string]json.RawMessage
	jsonErr := json.Unmarshal(body, &fields)
	if jsonErr != nil {
		var syntaxErr *json.SyntaxError
		if errors.As(jsonErr, &syntaxErr) && syntaxErr.Offset >= int64(len(body)) {
			err = decodeErr(TruncatedPayload, "document ends early at byte %d", syntaxErr.Offset)
			return
		}
		err = decodeErr(InvalidEncoding, "document is not a JSON object: %v", jsonErr)
		return
	}
	if fields == nil {
		err = decodeErr(InvalidEncoding, "document is null")
		return
	}

	decoded := &Segment{
		extra: make(map[string]json.RawMessage),
		raw:   append([]byte(nil), body...),
	}

	var hasStart bool
	for key, value := range fields {
		var fieldErr error
		switch key {
		case keyTraceID:
			fieldErr = json.Unmarshal(value, &decoded.traceID)
		case keyID:
			fieldErr = json.Unmarshal(value, &decoded.id)
		case keyName:
			fieldErr = json.Unmarshal(value, &decoded.name)
		case keyStartTime:
			fieldErr = json.Unmarshal(value, &decoded.startTime)
			hasStart = fieldErr == nil && !isNull(value)
		case keyEndTime:
			fieldErr = json.Unmarshal(value, &decoded.endTime)
			decoded.hasEnd = fieldErr == nil && !isNull(value)
		case keyInProgress:
			fieldErr = json.Unmarshal(value, &decoded.inProgress)
		case keyParentID:
			fieldErr = json.Unmarshal(value, &decoded.parentID)
		case keyType:
			fieldErr = json.Unmarshal(value, &decoded.kind)
		default:
			decoded.extra[key] = value
		}
		if fieldErr != nil {
			err = decodeErr(InvalidEncoding, "field %q has wrong type: %v", key, fieldErr)
			return
		}
	}

	err = decoded.validate(hasStart)
	if err != nil {
		return
	}
	segment = decoded
	return
}

func (s *Segment) validate(hasStart bool) (err error) {
	if !ValidTraceID(s.traceID) {
		err = decodeErr(InvalidEncoding, "invalid or missing trace_id %q", s.traceID)
		return
	}
	if !ValidSegmentID(s.id) {
		err = decodeErr(InvalidEncoding, "invalid or missing id %q", s.id)
		return
	}
	if s.name == "" {
		err = decodeErr(InvalidEncoding, "missing name")
		return
	}
	if !hasStart || s.startTime <= 0 {
		err = decodeErr(InvalidEncoding, "missing or non-positive start_time")
		return
	}
	if !s.hasEnd && !s.inProgress {
		err = decodeErr(InvalidEncoding, "segment requires end_time or in_progress")
		return
	}
	if s.hasEnd && s.endTime < s.startTime {
		err = decodeErr(InvalidEncoding, "end_time %f precedes start_time %f", s.endTime, s.startTime)
		return
	}
	if s.parentID != "" && !ValidSegmentID(s.parentID) {
		err = decodeErr(InvalidEncoding, "invalid parent_id %q", s.parentID)
		return
	}
	switch s.kind {
	case "":
	case SubsegmentType:
		if s.parentID == "" {
			err = decodeErr(InvalidEncoding, "independent subsegment requires parent_id")
			return
		}
	default:
		err = decodeErr(InvalidEncoding, "unknown document type %q", s.kind)
		return
	}
	return
}

func isNull(value json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(value), []byte("null"))
}

// Daemon address from AWS_XRAY_DAEMON_ADDRESS, or 127.0.0.1:2000 when unset or unparsable
func DefaultDaemonAddress() (host string, port int) {
	host = DefaultDaemonHost
	port = DefaultDaemonPort

	value := os.Getenv(global.DaemonAddressEnvVar)
	if value == "" {
		return
	}
	addrPort, err := netip.ParseAddrPort(value)
	if err != nil {
		return
	}
	host = addrPort.Addr().String()
	port = int(addrPort.Port())
	return
}
