package protocol

const (
	// Every datagram starts with this header line followed by one JSON segment document
	Header string = `{"format": "json", "version": 1}` + "\n"

	HeaderFormat  string = "json"
	HeaderVersion int    = 1

	TraceHeaderName string = "X-Amzn-Trace-Id"

	DefaultDaemonHost string = "127.0.0.1"
	DefaultDaemonPort int    = 2000

	traceIDVersion    string = "1"
	traceIDTimeLen    int    = 8
	traceIDRandomLen  int    = 24
	traceIDLen        int    = len(traceIDVersion) + 1 + traceIDTimeLen + 1 + traceIDRandomLen
	segmentIDLen      int    = 16
	MaxNameLen        int    = 200
	SubsegmentType    string = "subsegment"
	maxHeaderLineSize int    = 256
)

// Keys with dedicated fields on Segment; everything else is carried opaquely
const (
	keyTraceID    string = "trace_id"
	keyID         string = "id"
	keyName       string = "name"
	keyStartTime  string = "start_time"
	keyEndTime    string = "end_time"
	keyInProgress string = "in_progress"
	keyParentID   string = "parent_id"
	keyType       string = "type"
)
