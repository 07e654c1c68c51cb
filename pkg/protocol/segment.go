package protocol

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
	"unicode/utf8"
)

func (s *Segment) TraceID() string    { return s.traceID }
func (s *Segment) ID() string         { return s.id }
func (s *Segment) Name() string       { return s.name }
func (s *Segment) StartTime() float64 { return s.startTime }
func (s *Segment) InProgress() bool   { return s.inProgress }
func (s *Segment) ParentID() string   { return s.parentID }
func (s *Segment) Type() string       { return s.kind }

func (s *Segment) EndTime() (end float64, present bool) {
	end = s.endTime
	present = s.hasEnd
	return
}

func (s *Segment) IsSubsegment() bool {
	return s.kind == SubsegmentType
}

// Serialized size of the document as received
func (s *Segment) Size() int {
	return len(s.raw)
}

// Copy of the document bytes as received
func (s *Segment) Raw() (document []byte) {
	document = append([]byte(nil), s.raw...)
	return
}

// Document as received, for APIs that take string documents
func (s *Segment) DocumentString() string {
	return string(s.raw)
}

// Copy of an opaque pass-through field
func (s *Segment) Extra(key string) (value json.RawMessage, found bool) {
	stored, found := s.extra[key]
	if found {
		value = append(json.RawMessage(nil), stored...)
	}
	return
}

// Sorted names of pass-through fields
func (s *Segment) ExtraKeys() (keys []string) {
	keys = make([]string, 0, len(s.extra))
	for key := range s.extra {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return
}

// Builds a new document from the decoded fields. Key order and whitespace may
// differ from the received bytes, field values do not.
func (s *Segment) Encode() (document []byte, err error) {
	fields := make(map[string]any, len(s.extra)+8)
	for key, value := range s.extra {
		fields[key] = value
	}

	fields[keyTraceID] = s.traceID
	fields[keyID] = s.id
	fields[keyName] = s.name
	fields[keyStartTime] = s.startTime
	if s.hasEnd {
		fields[keyEndTime] = s.endTime
	}
	if s.inProgress {
		fields[keyInProgress] = true
	}
	if s.parentID != "" {
		fields[keyParentID] = s.parentID
	}
	if s.kind != "" {
		fields[keyType] = s.kind
	}

	document, err = json.Marshal(fields)
	if err != nil {
		err = fmt.Errorf("failed to encode segment %s: %w", s.id, err)
		return
	}
	return
}

func (s *Segment) MarshalJSON() ([]byte, error) {
	return s.Encode()
}

// Decoded generic view of the whole document
func (s *Segment) Fields() (fields map[string]any, err error) {
	err = json.Unmarshal(s.raw, &fields)
	if err != nil {
		err = fmt.Errorf("failed to expand segment %s: %w", s.id, err)
		return
	}
	return
}

// Starts a new in-progress segment with fresh trace and segment ids
func BeginSegment(name string, now time.Time) (doc *Document, err error) {
	traceID, err := NewTraceID(now)
	if err != nil {
		return
	}
	segmentID, err := NewSegmentID()
	if err != nil {
		return
	}

	doc = &Document{
		TraceID:    traceID,
		ID:         segmentID,
		Name:       TruncateName(name),
		StartTime:  TimeToSeconds(now),
		InProgress: true,
	}
	return
}

// Starts an independently sent subsegment under parent
func BeginSubsegment(name string, parent *Document, now time.Time) (doc *Document, err error) {
	if parent == nil {
		err = fmt.Errorf("subsegment requires a parent document")
		return
	}
	segmentID, err := NewSegmentID()
	if err != nil {
		return
	}

	doc = &Document{
		TraceID:    parent.TraceID,
		ID:         segmentID,
		ParentID:   parent.ID,
		Type:       SubsegmentType,
		Name:       TruncateName(name),
		StartTime:  TimeToSeconds(now),
		InProgress: true,
	}
	return
}

// Closes the document at the given time
func (doc *Document) End(now time.Time) {
	doc.EndTime = TimeToSeconds(now)
	doc.InProgress = false
}

// Limits name to MaxNameLen characters without splitting a multi-byte rune
func TruncateName(name string) (truncated string) {
	truncated = name
	if utf8.RuneCountInString(name) <= MaxNameLen {
		return
	}

	count := 0
	for index := range name {
		if count == MaxNameLen {
			truncated = name[:index]
			return
		}
		count++
	}
	return
}

// Float epoch seconds with microsecond resolution
func TimeToSeconds(t time.Time) (seconds float64) {
	seconds = float64(t.UnixMicro()) / 1e6
	return
}

func SecondsToTime(seconds float64) (t time.Time) {
	t = time.UnixMicro(int64(seconds*1e6 + 0.5))
	return
}
