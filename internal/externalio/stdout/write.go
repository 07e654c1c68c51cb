// Writes segment batches to a stream for diagnostics
package stdout

import (
	"context"
	"fmt"
	"io"
	"os"
	"segmentd/internal/collector/buffer"
	"segmentd/internal/collector/uploader"
	"segmentd/internal/global"
	"sync"
)

type OutModule struct {
	mu  sync.Mutex
	out io.Writer
}

// Nil writer means os.Stdout
func NewOutput(out io.Writer) (module *OutModule) {
	if out == nil {
		out = os.Stdout
	}
	module = &OutModule{out: out}
	return
}

func (mod *OutModule) Name() string {
	return global.BackendStdout
}

// One line per segment document, prefixed with the batch sequence
func (mod *OutModule) Send(ctx context.Context, batch *buffer.Batch) (unprocessed []uploader.Unprocessed, err error) {
	err = ctx.Err()
	if err != nil {
		return
	}

	mod.mu.Lock()
	defer mod.mu.Unlock()

	for _, document := range uploader.Documents(batch) {
		_, err = fmt.Fprintf(mod.out, "batch=%d %s\n", batch.Sequence, document)
		if err != nil {
			err = uploader.Reject(fmt.Errorf("failed writing batch %d: %w", batch.Sequence, err))
			return
		}
	}
	return
}

func (mod *OutModule) Close() (err error) {
	return
}
