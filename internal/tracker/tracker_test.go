package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/OCAP2/mediatrack/internal/capture"
	"github.com/OCAP2/mediatrack/internal/dispatcher"
	"github.com/OCAP2/mediatrack/internal/scheduler"
	"github.com/OCAP2/mediatrack/internal/scheduler/schedulertest"
	"github.com/OCAP2/mediatrack/pkg/core"
	"github.com/OCAP2/mediatrack/pkg/youtube"
	"github.com/OCAP2/mediatrack/pkg/youtube/sim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

const testSrc = "https://www.youtube.com/embed/abc?autoplay=1"

// recorder is a Dispatcher that keeps every event.
type recorder struct {
	mu     sync.Mutex
	events []*core.Event
	names  [][]string
	err    error
}

func (r *recorder) Dispatch(_ context.Context, e *core.Event, names ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, e)
	r.names = append(r.names, names)
	return nil
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Data.Type)
	}
	return out
}

func (r *recorder) ofType(typ string) []*core.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*core.Event
	for _, e := range r.events {
		if e.Data.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

type harness struct {
	tracker *Tracker
	env     *sim.Environment
	clock   *schedulertest.Clock
	rec     *recorder
	logs    *bytes.Buffer
}

// logRecord is one JSON log line written by the harness logger.
type logRecord struct {
	Level   string `json:"level"`
	Msg     string `json:"msg"`
	MediaID string `json:"mediaId"`
	Error   string `json:"error"`
}

// records returns every log line at level.
func (h *harness) records(t *testing.T, level slog.Level) []logRecord {
	t.Helper()
	var out []logRecord
	for _, line := range bytes.Split(bytes.TrimSpace(h.logs.Bytes()), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		var r logRecord
		require.NoError(t, json.Unmarshal(line, &r))
		if r.Level == level.String() {
			out = append(out, r)
		}
	}
	return out
}

func newHarness(t *testing.T, video sim.Video) *harness {
	t.Helper()
	clock := schedulertest.New()
	env := sim.NewEnvironment(clock)
	env.AddIFrame("youtube", testSrc, video)
	rec := &recorder{}
	logs := &bytes.Buffer{}
	logger := slog.New(slog.NewJSONHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	tr, err := New(Dependencies{Env: env, Scheduler: clock, Dispatcher: rec, Logger: logger})
	require.NoError(t, err)

	return &harness{tracker: tr, env: env, clock: clock, rec: rec, logs: logs}
}

// enable enables tracking for the "youtube" iframe and waits for the
// player to be bound.
func (h *harness) enable(t *testing.T, opts *capture.Options) (*Session, *sim.Player) {
	t.Helper()
	s, err := h.tracker.Enable("youtube", opts)
	require.NoError(t, err)
	h.clock.Advance(sim.DefaultAPILatency)
	require.True(t, s.Bound())

	p, ok := h.env.Player("youtube")
	require.True(t, ok)
	return s, p
}

func TestNew_RequiresDependencies(t *testing.T) {
	_, err := New(Dependencies{})
	assert.Error(t, err)
}

func TestEnable_AddsEnableJSAPI(t *testing.T) {
	h := newHarness(t, sim.Video{Duration: 10})

	_, err := h.tracker.Enable("youtube", nil)
	require.NoError(t, err)

	src, _ := h.env.IFrameSrc("youtube")
	assert.Equal(t, "https://www.youtube.com/embed/abc?autoplay=1&enablejsapi=1", src)
}

func TestEnable_KeepsExistingEnableJSAPI(t *testing.T) {
	h := newHarness(t, sim.Video{Duration: 10})
	h.env.AddIFrame("other", "https://www.youtube.com/embed/xyz?enablejsapi=1&Rel=0", sim.Video{})

	_, err := h.tracker.Enable("other", nil)
	require.NoError(t, err)

	src, _ := h.env.IFrameSrc("other")
	assert.Equal(t, "https://www.youtube.com/embed/xyz?enablejsapi=1&Rel=0", src)
}

func TestEnable_MissingElement(t *testing.T) {
	h := newHarness(t, sim.Video{Duration: 10})

	s, err := h.tracker.Enable("missing", nil)

	assert.Nil(t, s)
	assert.ErrorIs(t, err, ErrElementNotFound)
	assert.Zero(t, h.env.APILoads())
	assert.Zero(t, h.tracker.Active())
}

func TestEnable_UnknownCaptureEventIsNotFatal(t *testing.T) {
	h := newHarness(t, sim.Video{Duration: 10})

	s, err := h.tracker.Enable("youtube", &capture.Options{CaptureEvents: []string{"not-a-real-event", "play"}})

	require.NoError(t, err)
	assert.True(t, s.Config().Captures("PLAYING"))

	warnings := h.records(t, slog.LevelWarn)
	require.Len(t, warnings, 1)
	assert.Equal(t, "dropping capture events", warnings[0].Msg)
	assert.Equal(t, "youtube", warnings[0].MediaID)
	assert.Contains(t, warnings[0].Error, `unknown capture event: "not-a-real-event"`)
	assert.NotContains(t, warnings[0].Error, `"play"`)
}

func TestEnable_HugeListIndexIsLoggedAndDropped(t *testing.T) {
	h := newHarness(t, sim.Video{Duration: 10})
	h.env.AddIFrame("crafted", "https://www.youtube.com/embed/xyz?playlist[50000000]=a&start=5", sim.Video{})

	s, err := h.tracker.Enable("crafted", nil)

	require.NoError(t, err)
	assert.False(t, s.Params().Has("playlist"))
	assert.Equal(t, "5", s.Params().Get("start"))

	warnings := h.records(t, slog.LevelWarn)
	require.Len(t, warnings, 1)
	assert.Equal(t, "dropping source parameters", warnings[0].Msg)
	assert.Contains(t, warnings[0].Error, "playlist[50000000]")
}

func TestEnable_LoadsAPIOnceAndBindsPending(t *testing.T) {
	h := newHarness(t, sim.Video{Duration: 10})
	h.env.AddIFrame("second", "https://www.youtube.com/embed/def", sim.Video{Duration: 10})
	h.env.AddIFrame("third", "https://www.youtube.com/embed/ghi", sim.Video{Duration: 10})

	first, err := h.tracker.Enable("youtube", nil)
	require.NoError(t, err)
	second, err := h.tracker.Enable("second", nil)
	require.NoError(t, err)
	assert.False(t, first.Bound())
	assert.False(t, second.Bound())

	h.clock.Advance(sim.DefaultAPILatency)
	assert.True(t, first.Bound())
	assert.True(t, second.Bound())

	third, err := h.tracker.Enable("third", nil)
	require.NoError(t, err)
	assert.True(t, third.Bound())

	assert.Equal(t, 1, h.env.APILoads())
	assert.Equal(t, 3, h.tracker.Active())
}

func TestEnable_ReplacesExistingSession(t *testing.T) {
	h := newHarness(t, sim.Video{Duration: 10})

	old, _ := h.enable(t, nil)
	replacement, err := h.tracker.Enable("youtube", nil)
	require.NoError(t, err)

	got, ok := h.tracker.Session("youtube")
	require.True(t, ok)
	assert.Same(t, replacement, got)
	assert.NotSame(t, old, got)
	assert.Equal(t, 1, h.tracker.Active())
}

func TestBind_DefaultEventsRegistration(t *testing.T) {
	h := newHarness(t, sim.Video{Duration: 10})

	_, p := h.enable(t, nil)

	assert.Equal(t, 1, p.Listeners(youtube.OnStateChange))
	assert.Equal(t, 1, p.Listeners(youtube.OnPlaybackQualityChange))
	assert.Equal(t, 1, p.Listeners(youtube.OnPlaybackRateChange))
	assert.Zero(t, p.Listeners(youtube.OnReady))
	assert.Zero(t, p.Listeners(youtube.OnError))
	assert.Zero(t, p.Listeners(youtube.OnAPIChange))
}

func TestBind_OnlyRequestedCallbacks(t *testing.T) {
	h := newHarness(t, sim.Video{Duration: 10})

	_, p := h.enable(t, &capture.Options{CaptureEvents: []string{"ready", "error"}})

	assert.Zero(t, p.Listeners(youtube.OnStateChange))
	assert.Equal(t, 1, p.Listeners(youtube.OnReady))
	assert.Equal(t, 1, p.Listeners(youtube.OnError))
	assert.Zero(t, p.Listeners(youtube.OnPlaybackRateChange))
	assert.Equal(t, []string{"ready"}, h.rec.types())
}

func TestBind_DerivedEventsNeedStateChanges(t *testing.T) {
	h := newHarness(t, sim.Video{Duration: 10})

	_, p := h.enable(t, &capture.Options{CaptureEvents: []string{"volumechange"}})

	assert.Equal(t, 1, p.Listeners(youtube.OnStateChange))
}

func TestStateChange_FilteredByCaptureSet(t *testing.T) {
	h := newHarness(t, sim.Video{Duration: 10})
	_, p := h.enable(t, &capture.Options{CaptureEvents: []string{"play", "ended"}})

	p.Play()
	h.clock.Advance(time.Second)
	p.Pause()
	p.Play()
	h.clock.Advance(20 * time.Second)

	assert.Equal(t, []string{"play", "play", "ended"}, h.rec.types())
}

func TestEmit_EventCarriesConfigAndSnapshot(t *testing.T) {
	h := newHarness(t, sim.Video{Duration: 10})
	h.tracker.deps.Sinks = []string{"memory"}
	_, p := h.enable(t, &capture.Options{CaptureEvents: []string{"play"}, MediaLabel: "intro"})

	p.Play()

	require.Len(t, h.rec.events, 1)
	ev := h.rec.events[0]
	assert.Equal(t, "intro", ev.Data.MediaLabel)
	assert.Equal(t, "youtube", ev.Data.PlayerID)
	assert.Equal(t, h.clock.Now(), ev.Timestamp)
	assert.Equal(t, []string{"memory"}, h.rec.names[0])

	snapshot, ok := ev.Snapshot()
	require.True(t, ok)
	assert.True(t, snapshot.Playing)
	assert.True(t, snapshot.AutoPlay)
}

func TestEmit_ErrorCarriesName(t *testing.T) {
	h := newHarness(t, sim.Video{Duration: 10})
	_, p := h.enable(t, &capture.Options{CaptureEvents: []string{"error"}})

	p.Fail(youtube.ErrMissingEmbedPermissionAlt)

	events := h.rec.ofType("error")
	require.Len(t, events, 1)
	snapshot, _ := events[0].Snapshot()
	assert.Equal(t, "MISSING_EMBED_PERMISSION_ALT", snapshot.Error)
}

func TestEmit_DirectCallbacks(t *testing.T) {
	h := newHarness(t, sim.Video{Duration: 10})
	_, p := h.enable(t, &capture.Options{CaptureEvents: []string{"AllEvents"}})

	p.SetPlaybackRate(1.5)
	p.SetPlaybackQuality("hd720")
	p.ChangeAPI()

	assert.Equal(t, []string{"ready", "playbackratechange", "playbackqualitychange", "apichange"}, h.rec.types())
}

func TestEmit_DispatchErrorNotCounted(t *testing.T) {
	h := newHarness(t, sim.Video{Duration: 10})
	h.rec.err = errors.New("collector down")
	s, p := h.enable(t, &capture.Options{CaptureEvents: []string{"play"}})

	p.Play()

	assert.Zero(t, s.Emitted())
}

func TestClose_StopsDetectorsAndIgnoresCallbacks(t *testing.T) {
	h := newHarness(t, sim.Video{Duration: 100})
	s, p := h.enable(t, &capture.Options{CaptureEvents: []string{"AllEvents"}})

	p.Play()
	h.clock.Advance(time.Second)
	before := len(h.rec.events)

	s.Close()
	s.Close()
	p.SeekTo(80)
	p.SetVolume(10)
	p.Pause()
	h.clock.Advance(time.Minute)

	assert.Len(t, h.rec.events, before)
	assert.Zero(t, s.PendingBoundaries())
	assert.Zero(t, h.tracker.Active())
	assert.Zero(t, h.clock.Pending())
}

func TestTracker_Close(t *testing.T) {
	h := newHarness(t, sim.Video{Duration: 10})
	h.env.AddIFrame("second", "https://www.youtube.com/embed/def", sim.Video{Duration: 10})
	h.enable(t, nil)
	_, err := h.tracker.Enable("second", nil)
	require.NoError(t, err)
	require.Len(t, h.tracker.Sessions(), 2)

	h.tracker.Close()

	assert.Zero(t, h.tracker.Active())
}

func TestTracker_OnEventLoop(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	loop := scheduler.New()
	defer loop.Close()

	env := sim.NewEnvironment(loop)
	env.SetAPILatency(time.Millisecond)
	env.AddIFrame("youtube", testSrc, sim.Video{Duration: 60})
	rec := &recorder{}

	tr, err := New(Dependencies{Env: env, Scheduler: loop, Dispatcher: rec})
	require.NoError(t, err)

	loop.Sync(func() {
		_, err = tr.Enable("youtube", &capture.Options{CaptureEvents: []string{"ready", "play", "pause"}})
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(rec.types()) == 1 }, time.Second, time.Millisecond)
	loop.Sync(func() {
		p, _ := env.Player("youtube")
		p.Play()
		p.Pause()
		tr.Close()
	})

	assert.Equal(t, []string{"ready", "play", "pause"}, rec.types())
}

type discardLogger struct{}

func (discardLogger) Debug(string, ...any) {}
func (discardLogger) Info(string, ...any)  {}
func (discardLogger) Error(string, ...any) {}

func TestTracker_SlowSinkDoesNotStallDetectors(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	loop := scheduler.New()
	defer loop.Close()

	env := sim.NewEnvironment(loop)
	env.SetAPILatency(time.Millisecond)
	env.AddIFrame("a", testSrc, sim.Video{Duration: 60})
	env.AddIFrame("b", testSrc, sim.Video{Duration: 60})

	d, err := dispatcher.New(discardLogger{})
	require.NoError(t, err)
	rec := &recorder{}
	d.Register("slow", dispatcher.SinkFunc(func(ctx context.Context, e *core.Event) error {
		if e.Data.PlayerID == "b" && e.Data.Type == "play" {
			time.Sleep(1500 * time.Millisecond)
		}
		return rec.Dispatch(ctx, e)
	}), dispatcher.Buffered(16))

	tr, err := New(Dependencies{Env: env, Scheduler: loop, Dispatcher: d})
	require.NoError(t, err)

	opts := &capture.Options{CaptureEvents: []string{"play", "seek"}}
	var errA, errB error
	loop.Sync(func() {
		_, errA = tr.Enable("a", opts)
		_, errB = tr.Enable("b", opts)
	})
	require.NoError(t, errA)
	require.NoError(t, errB)
	require.Eventually(t, func() bool {
		bound := false
		loop.Sync(func() {
			sa, _ := tr.Session("a")
			sb, _ := tr.Session("b")
			bound = sa.Bound() && sb.Bound()
		})
		return bound
	}, time.Second, time.Millisecond)

	loop.Sync(func() {
		pa, _ := env.Player("a")
		pb, _ := env.Player("b")
		pa.Play()
		loop.AfterFunc(200*time.Millisecond, pb.Play)
	})
	time.Sleep(2500 * time.Millisecond)
	loop.Sync(tr.Close)
	d.Close()

	for _, e := range rec.ofType("seek") {
		t.Errorf("unexpected seek on player %s", e.Data.PlayerID)
	}
	assert.Len(t, rec.ofType("play"), 2)
}
