package clock

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Deterministic clock for tests. Time only moves when Advance is called.
// Safe for concurrent use.
type Fake struct {
	mu      sync.Mutex
	current time.Time
	waiters []*fakeWaiter
}

type fakeWaiter struct {
	deadline time.Time
	channel  chan time.Time
	stopped  bool
	fired    bool
}

type fakeTimer struct {
	clock  *Fake
	waiter *fakeWaiter
}

func NewFake(initial time.Time) (clk *Fake) {
	clk = &Fake{current: initial}
	return
}

func (c *Fake) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *Fake) After(d time.Duration) <-chan time.Time {
	return c.NewTimer(d).C()
}

func (c *Fake) NewTimer(d time.Duration) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	waiter := &fakeWaiter{
		deadline: c.current.Add(d),
		channel:  make(chan time.Time, 1),
	}
	if d <= 0 {
		waiter.fired = true
		waiter.channel <- c.current
	} else {
		c.waiters = append(c.waiters, waiter)
	}
	return &fakeTimer{clock: c, waiter: waiter}
}

func (c *Fake) Sleep(ctx context.Context, d time.Duration) (err error) {
	if d <= 0 {
		return
	}
	timer := c.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		err = ctx.Err()
	case <-timer.C():
	}
	return
}

// Moves the clock forward and fires every waiter whose deadline has passed, in deadline order
func (c *Fake) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.current = c.current.Add(d)

	var expired, pending []*fakeWaiter
	for _, waiter := range c.waiters {
		switch {
		case waiter.stopped || waiter.fired:
			// dropped from the list
		case !waiter.deadline.After(c.current):
			expired = append(expired, waiter)
		default:
			pending = append(pending, waiter)
		}
	}
	c.waiters = pending

	sort.SliceStable(expired, func(i, j int) bool {
		return expired[i].deadline.Before(expired[j].deadline)
	})
	for _, waiter := range expired {
		waiter.fired = true
		select {
		case waiter.channel <- waiter.deadline:
		default:
		}
	}
}

// Number of timers and sleeps currently waiting on the clock
func (c *Fake) Waiters() (count int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, waiter := range c.waiters {
		if !waiter.stopped && !waiter.fired {
			count++
		}
	}
	return
}

// Blocks until at least n waiters are registered or timeout elapses (real time)
func (c *Fake) BlockUntilWaiters(n int, timeout time.Duration) (reached bool) {
	deadline := time.Now().Add(timeout)
	for {
		if c.Waiters() >= n {
			reached = true
			return
		}
		if time.Now().After(deadline) {
			return
		}
		time.Sleep(time.Millisecond)
	}
}

func (t *fakeTimer) C() <-chan time.Time {
	return t.waiter.channel
}

func (t *fakeTimer) Stop() (wasActive bool) {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	wasActive = !t.waiter.stopped && !t.waiter.fired
	t.waiter.stopped = true
	return
}

func (t *fakeTimer) Reset(d time.Duration) (wasActive bool) {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()

	wasActive = !t.waiter.stopped && !t.waiter.fired
	if !wasActive {
		t.waiter = &fakeWaiter{channel: t.waiter.channel}
	}
	t.waiter.stopped = false
	t.waiter.fired = false
	t.waiter.deadline = t.clock.current.Add(d)
	if !wasActive {
		t.clock.waiters = append(t.clock.waiters, t.waiter)
	}
	return
}
