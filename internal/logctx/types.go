package logctx

import (
	"sync"
	"time"
)

const (
	FormatText string = "text"
	FormatJSON string = "json"
)

// Log Event Structure
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Severity  string    `json:"severity"`
	Tags      []string  `json:"tags,omitempty"`
	Message   string    `json:"message"`
}

// Logger Struct
type Logger struct {
	ID         string
	CreatedAt  time.Time
	queue      []Event    // event buffer
	mutex      sync.Mutex // protects buffer
	cond       *sync.Cond // condition to signal new events
	Done       <-chan struct{}
	PrintLevel int             // Level at which the message should be recorded
	OutFormat  string          // text or json lines
	wg         *sync.WaitGroup // Holds main execution threads until log watchers are done handling events
}

// Repeated message suppression state for a watcher
type dedupState struct {
	lastMsg          string
	repeatCount      int
	lastSuppressTime time.Time
}
