package tracker

import (
	"context"
	"log/slog"

	"github.com/OCAP2/mediatrack/internal/builder"
	"github.com/OCAP2/mediatrack/internal/capture"
	"github.com/OCAP2/mediatrack/internal/params"
	"github.com/OCAP2/mediatrack/internal/scheduler"
	"github.com/OCAP2/mediatrack/internal/vocab"
	"github.com/OCAP2/mediatrack/pkg/youtube"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// stateEvents are the events delivered through OnStateChange.
var stateEvents = []vocab.EventName{
	vocab.Unstarted,
	vocab.Ended,
	vocab.Playing,
	vocab.Paused,
	vocab.Buffering,
	vocab.Cued,
}

// derivedEvents are produced by detectors that start on playing
// transitions.
var derivedEvents = []vocab.EventName{
	vocab.Seek,
	vocab.VolumeChange,
	vocab.PercentProgress,
}

// directCallbacks are registered one by one when their event is captured.
var directCallbacks = []youtube.Callback{
	youtube.OnReady,
	youtube.OnPlaybackQualityChange,
	youtube.OnAPIChange,
	youtube.OnError,
	youtube.OnPlaybackRateChange,
}

// Session tracks one player. It owns the player handle, the resolved
// configuration and all detector state.
type Session struct {
	tracker *Tracker
	sched   scheduler.Scheduler
	logger  *slog.Logger
	cfg     capture.Config
	params  params.Params

	player youtube.Player
	closed bool

	seek       *seekDetector
	volume     *volumeDetector
	boundaries []*boundary

	emitted int
}

func newSession(t *Tracker, cfg capture.Config, q params.Params) *Session {
	return &Session{
		tracker: t,
		sched:   t.deps.Scheduler,
		logger:  t.logger.With("mediaId", cfg.MediaID()),
		cfg:     cfg,
		params:  q,
	}
}

// MediaID returns the id of the tracked iframe.
func (s *Session) MediaID() string { return s.cfg.MediaID() }

// Config returns the resolved capture configuration.
func (s *Session) Config() capture.Config { return s.cfg }

// Params returns the query parameters of the iframe src.
func (s *Session) Params() params.Params { return s.params }

// Player returns the bound player, or nil before the API is ready.
func (s *Session) Player() youtube.Player { return s.player }

// Bound reports whether the player callbacks are registered.
func (s *Session) Bound() bool { return s.player != nil }

// Emitted returns the number of events handed to the dispatcher.
func (s *Session) Emitted() int { return s.emitted }

// PendingBoundaries returns the number of percent boundaries waiting to
// fire.
func (s *Session) PendingBoundaries() int { return len(s.boundaries) }

// bind creates the player and registers the callbacks the configuration
// needs.
func (s *Session) bind() {
	player, err := s.tracker.deps.Env.NewPlayer(s.MediaID())
	if err != nil {
		s.logger.Error("creating player", "error", err)
		return
	}
	s.player = player

	if s.cfg.CapturesAny(stateEvents...) || s.cfg.CapturesAny(derivedEvents...) {
		player.AddEventListener(youtube.OnStateChange, s.onStateChange)
	}

	for _, cb := range directCallbacks {
		name, _ := vocab.FromCallback(cb)
		if !s.cfg.Captures(name) {
			continue
		}
		if name == vocab.Error {
			player.AddEventListener(cb, s.onError)
			continue
		}
		player.AddEventListener(cb, func(youtube.Event) { s.emit(name) })
	}
	s.logger.Debug("player bound")
}

func (s *Session) onStateChange(e youtube.Event) {
	if s.closed {
		return
	}
	name := vocab.FromState(stateOf(e.Data))

	if s.cfg.Captures(name) {
		s.emit(name)
	}

	switch name {
	case vocab.Playing:
		s.startDetectors()
		if s.cfg.TracksProgress() {
			s.cancelBoundaries()
			s.scheduleBoundaries()
		}
	case vocab.Paused:
		s.cancelBoundaries()
	}
}

func (s *Session) onError(e youtube.Event) {
	if s.closed {
		return
	}
	s.emit(vocab.Error, builder.WithError(errorCodeOf(e.Data)))
}

// emit builds the event for name from the live player and dispatches it.
func (s *Session) emit(name vocab.EventName, opts ...builder.Option) {
	if s.closed || s.player == nil {
		return
	}

	opts = append([]builder.Option{
		builder.WithMediaLabel(s.cfg.MediaLabel()),
		builder.WithClock(s.sched.Now),
	}, opts...)
	ev := builder.Build(s.player, s.params, name, opts...)

	ctx := context.Background()
	if err := s.tracker.deps.Dispatcher.Dispatch(ctx, ev, s.tracker.deps.Sinks...); err != nil {
		s.logger.Error("dispatching event", "event", ev.Data.Type, "error", err)
		return
	}
	s.emitted++
	s.tracker.metrics.emitted.Add(ctx, 1, metric.WithAttributes(attribute.String("event", ev.Data.Type)))
}

// Close stops every detector of the session and detaches it from the
// tracker. Player callbacks delivered afterwards are ignored.
func (s *Session) Close() {
	if s.closed {
		return
	}
	s.closed = true
	if s.seek != nil {
		s.seek.timer.Stop()
	}
	if s.volume != nil {
		s.volume.timer.Stop()
	}
	s.cancelBoundaries()
	s.tracker.release(s)
	s.logger.Debug("tracking session closed", "emitted", s.emitted)
}

func stateOf(data any) youtube.State {
	switch v := data.(type) {
	case youtube.State:
		return v
	case int:
		return youtube.State(v)
	case float64:
		return youtube.State(int(v))
	}
	return youtube.StateUnstarted
}

func errorCodeOf(data any) youtube.ErrorCode {
	switch v := data.(type) {
	case youtube.ErrorCode:
		return v
	case int:
		return youtube.ErrorCode(v)
	case float64:
		return youtube.ErrorCode(int(v))
	}
	return 0
}
