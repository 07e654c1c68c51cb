// Forwards segment batches to a Beats/Logstash server over lumberjack v2
package beats

import (
	"fmt"
	"segmentd/internal/global"
	"time"

	lumberjack "github.com/elastic/go-lumber/client/v2"
)

// Creates new beats (lumberjack) output module. The connection is made on first send and
// re-made after a failed one.
func NewOutput(endpoint string, timeout time.Duration) (module *OutModule, err error) {
	if endpoint == "" {
		err = fmt.Errorf("beats endpoint is required")
		return
	}
	if timeout <= 0 {
		timeout = global.DefaultBeatsTimeout
	}

	module = &OutModule{
		endpoint: endpoint,
		dial: func() (sender, error) {
			client, err := lumberjack.SyncDial(endpoint,
				lumberjack.CompressionLevel(0),
				lumberjack.Timeout(timeout))
			if err != nil {
				return nil, err
			}
			return client, nil
		},
	}
	return
}

// Dials once so a wrong address fails at startup instead of on the first batch
func (mod *OutModule) Connect() (err error) {
	mod.mu.Lock()
	defer mod.mu.Unlock()
	err = mod.connect()
	return
}

// Caller holds the lock
func (mod *OutModule) connect() (err error) {
	if mod.client != nil {
		return
	}
	client, err := mod.dial()
	if err != nil {
		err = fmt.Errorf("failed connection to beats server %s: %w", mod.endpoint, err)
		return
	}
	mod.client = client
	return
}

func (mod *OutModule) Name() string {
	return global.BackendBeats
}

// Gracefully stops module
func (mod *OutModule) Close() (err error) {
	if mod == nil {
		return
	}
	mod.mu.Lock()
	defer mod.mu.Unlock()
	if mod.client != nil {
		err = mod.client.Close()
		mod.client = nil
	}
	return
}
