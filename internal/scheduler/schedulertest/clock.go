// Package schedulertest provides a manually advanced Scheduler for tests.
package schedulertest

import (
	"sort"
	"sync"
	"time"

	"github.com/OCAP2/mediatrack/internal/scheduler"
)

// Epoch is the starting time of clocks created with New.
var Epoch = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// Clock is a virtual-time Scheduler. Nothing runs until Advance is called;
// due functions then run on the calling goroutine in deadline order.
type Clock struct {
	mu     sync.Mutex
	now    time.Time
	seq    uint64
	timers []*timer
}

var _ scheduler.Scheduler = (*Clock)(nil)

// New returns a Clock set to Epoch.
func New() *Clock {
	return &Clock{now: Epoch}
}

// Now returns the virtual time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Elapsed returns the virtual time passed since Epoch.
func (c *Clock) Elapsed() time.Duration {
	return c.Now().Sub(Epoch)
}

// Post schedules fn at the current virtual time.
func (c *Clock) Post(fn func()) {
	c.AfterFunc(0, fn)
}

// AfterFunc schedules fn once after d.
func (c *Clock) AfterFunc(d time.Duration, fn func()) scheduler.Timer {
	return c.add(d, 0, fn)
}

// Every schedules fn every d. Deadlines do not drift.
func (c *Clock) Every(d time.Duration, fn func()) scheduler.Timer {
	return c.add(d, d, fn)
}

func (c *Clock) add(d, interval time.Duration, fn func()) *timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	t := &timer{clock: c, deadline: c.now.Add(d), interval: interval, seq: c.seq, fn: fn}
	c.timers = append(c.timers, t)
	return t
}

// Pending returns the number of active timers.
func (c *Clock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

// Flush runs everything due at the current virtual time.
func (c *Clock) Flush() {
	c.Advance(0)
}

// Advance moves the clock forward by d, running every function that falls
// due on the way. Functions scheduled while advancing run too if they fall
// due before the target time.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		t := c.next(target)
		if t == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		c.now = t.deadline
		if t.interval > 0 {
			c.seq++
			t.seq = c.seq
			t.deadline = t.deadline.Add(t.interval)
		} else {
			c.remove(t)
		}
		c.mu.Unlock()

		t.fn()
	}
}

// next returns the earliest timer due at or before target.
func (c *Clock) next(target time.Time) *timer {
	if len(c.timers) == 0 {
		return nil
	}
	sort.SliceStable(c.timers, func(i, j int) bool {
		a, b := c.timers[i], c.timers[j]
		if a.deadline.Equal(b.deadline) {
			return a.seq < b.seq
		}
		return a.deadline.Before(b.deadline)
	})
	if c.timers[0].deadline.After(target) {
		return nil
	}
	return c.timers[0]
}

func (c *Clock) remove(t *timer) bool {
	for i, x := range c.timers {
		if x == t {
			c.timers = append(c.timers[:i], c.timers[i+1:]...)
			return true
		}
	}
	return false
}

type timer struct {
	clock    *Clock
	deadline time.Time
	interval time.Duration
	seq      uint64
	fn       func()
}

func (t *timer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	return t.clock.remove(t)
}
