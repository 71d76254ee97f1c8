// Package scheduler runs tracker callbacks on a single logical thread.
//
// Player callbacks, detector polls and boundary timers of every tracked
// player are serialised through one Scheduler, so tracking state needs no
// locks as long as it is only touched from scheduled functions.
package scheduler

import (
	"sync"
	"sync/atomic"
	"time"
)

// Timer is a pending AfterFunc or Every registration.
type Timer interface {
	// Stop cancels the timer. It reports whether the timer was still
	// active. After Stop returns on the scheduler thread the function will
	// not run again.
	Stop() bool
}

// Scheduler is the cooperative execution model shared by the tracker and
// the simulated player.
type Scheduler interface {
	Now() time.Time
	// Post runs fn on the scheduler thread after already queued work.
	Post(fn func())
	// AfterFunc runs fn once on the scheduler thread after d.
	AfterFunc(d time.Duration, fn func()) Timer
	// Every runs fn on the scheduler thread every d until stopped.
	Every(d time.Duration, fn func()) Timer
}

// Loop is a Scheduler backed by one goroutine and the wall clock.
type Loop struct {
	tasks taskQueue
	wake  chan struct{}
	done  chan struct{}
	exit  chan struct{}

	mu     sync.Mutex
	closed bool
	timers map[*loopTimer]struct{}
}

// New starts a Loop.
func New() *Loop {
	l := &Loop{
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
		exit:   make(chan struct{}),
		timers: make(map[*loopTimer]struct{}),
	}
	go l.run()
	return l
}

func (l *Loop) run() {
	defer close(l.exit)
	for {
		select {
		case <-l.done:
			return
		case <-l.wake:
		}
		for _, fn := range l.tasks.drain() {
			fn()
		}
	}
}

// Now returns the wall clock time.
func (l *Loop) Now() time.Time {
	return time.Now()
}

// Post queues fn. Work posted after Close is dropped.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	closed := l.closed
	l.mu.Unlock()
	if closed {
		return
	}

	if !l.tasks.push(fn) {
		return
	}
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Sync runs fn on the loop and waits for it to return. It must not be
// called from the loop itself.
func (l *Loop) Sync(fn func()) {
	ran := make(chan struct{})
	l.Post(func() {
		defer close(ran)
		fn()
	})
	select {
	case <-ran:
	case <-l.exit:
	}
}

// AfterFunc schedules fn once.
func (l *Loop) AfterFunc(d time.Duration, fn func()) Timer {
	return l.schedule(d, false, fn)
}

// Every schedules fn repeatedly. The next interval starts after fn returns.
func (l *Loop) Every(d time.Duration, fn func()) Timer {
	return l.schedule(d, true, fn)
}

func (l *Loop) schedule(d time.Duration, repeat bool, fn func()) Timer {
	t := &loopTimer{loop: l, interval: d, repeat: repeat, fn: fn}
	l.track(t)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.timer = time.AfterFunc(d, func() { l.Post(t.fire) })
	return t
}

// Close stops every pending timer and the loop goroutine. Queued work that
// has not started is discarded. Like Sync, it must not be called from the
// loop.
func (l *Loop) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	timers := l.timers
	l.timers = nil
	l.mu.Unlock()

	for t := range timers {
		t.stopped.Store(true)
		t.mu.Lock()
		t.timer.Stop()
		t.mu.Unlock()
	}
	close(l.done)
	<-l.exit
	l.tasks.clear()
}

// Pending returns the number of active timers.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.timers)
}

func (l *Loop) track(t *loopTimer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.timers != nil {
		l.timers[t] = struct{}{}
	}
}

func (l *Loop) untrack(t *loopTimer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.timers, t)
}

type loopTimer struct {
	loop     *Loop
	interval time.Duration
	repeat   bool
	fn       func()
	stopped  atomic.Bool

	mu    sync.Mutex
	timer *time.Timer
}

func (t *loopTimer) fire() {
	if !t.repeat {
		if t.stopped.Swap(true) {
			return
		}
		t.loop.untrack(t)
		t.fn()
		return
	}

	if t.stopped.Load() {
		return
	}
	t.fn()
	if t.stopped.Load() {
		return
	}
	t.mu.Lock()
	t.timer.Reset(t.interval)
	t.mu.Unlock()
}

func (t *loopTimer) Stop() bool {
	if t.stopped.Swap(true) {
		return false
	}
	t.mu.Lock()
	t.timer.Stop()
	t.mu.Unlock()
	t.loop.untrack(t)
	return true
}
