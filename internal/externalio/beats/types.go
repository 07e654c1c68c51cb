package beats

import "sync"

// Subset of the lumberjack sync client used here
type sender interface {
	Send(data []interface{}) (int, error)
	Close() error
}

type OutModule struct {
	endpoint string
	dial     func() (sender, error)

	mu     sync.Mutex // lumberjack clients are not safe for concurrent sends
	client sender
}
