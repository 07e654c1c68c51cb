// Time source abstraction so timers and retry sleeps can be driven deterministically in tests
package clock

import (
	"context"
	"time"
)

type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
	NewTimer(d time.Duration) Timer
	Sleep(ctx context.Context, d time.Duration) (err error)
}

// Resettable one-shot timer
type Timer interface {
	C() <-chan time.Time
	Stop() (wasActive bool)
	Reset(d time.Duration) (wasActive bool)
}

// Wall clock backed by package time
type Real struct{}

type realTimer struct {
	timer *time.Timer
}

func New() (clk Real) {
	return
}

func (Real) Now() time.Time {
	return time.Now()
}

func (Real) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

func (Real) NewTimer(d time.Duration) Timer {
	return &realTimer{timer: time.NewTimer(d)}
}

// Blocks for d or until ctx is done (returns ctx error)
func (Real) Sleep(ctx context.Context, d time.Duration) (err error) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		err = ctx.Err()
	case <-timer.C:
	}
	return
}

func (t *realTimer) C() <-chan time.Time {
	return t.timer.C
}

func (t *realTimer) Stop() bool {
	return t.timer.Stop()
}

func (t *realTimer) Reset(d time.Duration) bool {
	return t.timer.Reset(d)
}
