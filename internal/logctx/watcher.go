package logctx

import (
	"fmt"
	"io"
	"segmentd/internal/global"
	"strings"
	"time"
)

const (
	dedupWindow      = 5 * time.Second // repeats older than this count as new messages
	dedupMinRepeats  = 10
	dedupNoticeEvery = time.Minute
)

// Blocks until the watcher goroutine has drained and exited
func (logger *Logger) Wait() {
	logger.wg.Wait()
}

// Unblocks a watcher parked on an empty queue so it can notice Done
func (logger *Logger) Wake() {
	logger.mutex.Lock()
	defer logger.mutex.Unlock()
	logger.cond.Broadcast()
}

// Pops the next event, waiting while the queue is empty. ok is false once Done is closed and nothing is queued.
func (logger *Logger) next() (event Event, format string, ok bool) {
	logger.mutex.Lock()
	defer logger.mutex.Unlock()

	for len(logger.queue) == 0 {
		select {
		case <-logger.Done:
			return
		default:
			logger.cond.Wait()
		}
	}

	event = logger.queue[0]
	logger.queue[0] = Event{}
	logger.queue = logger.queue[1:]
	format = logger.OutFormat
	ok = true
	return
}

// Writes queued events to output until Done is closed
func StartWatcher(logger *Logger, output io.Writer) {
	logger.wg.Add(1)

	go func() {
		defer logger.wg.Done()

		var dedup dedupState
		for {
			event, format, ok := logger.next()
			if !ok {
				return
			}
			write, notice := dedup.observe(event, time.Now())
			if notice != nil {
				writeEvent(output, *notice, format)
			}
			if write {
				writeEvent(output, event, format)
			}
		}
	}()
}

// Decides whether event is a repeat. Repeats are swallowed; after enough of them a single
// suppression notice is returned, at most once per dedupNoticeEvery.
func (dedup *dedupState) observe(event Event, now time.Time) (write bool, notice *Event) {
	repeat := event.Message != "" &&
		event.Message == dedup.lastMsg &&
		now.Sub(event.Timestamp) <= dedupWindow
	if !repeat {
		dedup.lastMsg = event.Message
		dedup.repeatCount = 1
		write = true
		return
	}

	dedup.repeatCount++
	if dedup.repeatCount < dedupMinRepeats || now.Sub(dedup.lastSuppressTime) < dedupNoticeEvery {
		return
	}
	notice = &Event{
		Timestamp: event.Timestamp,
		Tags:      event.Tags,
		Severity:  global.InfoLog,
		Message:   fmt.Sprintf("Suppressed %d repeated messages: %s", dedup.repeatCount, strings.TrimSuffix(dedup.lastMsg, "\n")),
	}
	dedup.lastSuppressTime = now
	dedup.repeatCount = 0
	return
}

func writeEvent(output io.Writer, event Event, format string) {
	if format == FormatJSON {
		fmt.Fprintf(output, "%s\n", event.FormatJSON())
		return
	}
	text := event.Format()
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	io.WriteString(output, text)
}
