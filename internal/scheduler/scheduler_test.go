package scheduler

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestLoop_PostRunsInOrder(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	l := New()
	defer l.Close()

	var got []int
	for i := range 5 {
		l.Post(func() { got = append(got, i) })
	}
	l.Sync(func() {})

	assert.Equal(t, []int{0, 1, 2, 3, 4}, got)
}

func TestLoop_AfterFunc(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	l := New()
	defer l.Close()

	fired := make(chan struct{})
	l.AfterFunc(10*time.Millisecond, func() { close(fired) })

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}
	assert.Eventually(t, func() bool { return l.Pending() == 0 }, time.Second, time.Millisecond)
}

func TestLoop_StopPreventsRun(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	l := New()
	defer l.Close()

	var fired atomic.Bool
	timer := l.AfterFunc(20*time.Millisecond, func() { fired.Store(true) })

	assert.True(t, timer.Stop())
	assert.False(t, timer.Stop())
	time.Sleep(50 * time.Millisecond)
	l.Sync(func() {})

	assert.False(t, fired.Load())
	assert.Equal(t, 0, l.Pending())
}

func TestLoop_Every(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	l := New()
	defer l.Close()

	var n atomic.Int32
	var timer Timer
	l.Sync(func() {
		timer = l.Every(5*time.Millisecond, func() {
			if n.Add(1) == 3 {
				timer.Stop()
			}
		})
	})

	require.Eventually(t, func() bool { return n.Load() == 3 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(3), n.Load())
}

func TestLoop_CloseStopsTimers(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	l := New()
	var fired atomic.Bool
	l.Every(time.Millisecond, func() {})
	l.AfterFunc(30*time.Millisecond, func() { fired.Store(true) })
	require.Equal(t, 2, l.Pending())

	l.Close()
	l.Close()
	l.Post(func() { fired.Store(true) })
	time.Sleep(50 * time.Millisecond)

	assert.False(t, fired.Load())
	assert.Equal(t, 0, l.Pending())
}
