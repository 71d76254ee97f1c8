// Package builder assembles outgoing media player events from the live state
// of a player.
package builder

import (
	"math"
	"time"

	"github.com/OCAP2/mediatrack/internal/params"
	"github.com/OCAP2/mediatrack/internal/vocab"
	"github.com/OCAP2/mediatrack/pkg/core"
	"github.com/OCAP2/mediatrack/pkg/youtube"
	"github.com/google/uuid"
)

// DefaultPlaybackRate is reported in every snapshot; the player API has no
// query for it.
const DefaultPlaybackRate = 1.0

// Option configures a single Build call.
type Option func(*buildConfig)

type buildConfig struct {
	percent    float64
	errCode    *youtube.ErrorCode
	mediaLabel string
	now        func() time.Time
}

// WithPercent sets the boundary carried by a percent-progress event.
func WithPercent(p float64) Option {
	return func(c *buildConfig) {
		c.percent = p
	}
}

// WithError attaches the name of a player error to the snapshot.
func WithError(code youtube.ErrorCode) Option {
	return func(c *buildConfig) {
		c.errCode = &code
	}
}

// WithMediaLabel sets the media label of the event.
func WithMediaLabel(label string) Option {
	return func(c *buildConfig) {
		c.mediaLabel = label
	}
}

// WithClock overrides the source of the event timestamp.
func WithClock(now func() time.Time) Option {
	return func(c *buildConfig) {
		c.now = now
	}
}

// Build composes the event for name from the current state of p. The
// snapshot is queried at call time; nothing is cached between calls.
func Build(p youtube.Player, q params.Params, name vocab.EventName, opts ...Option) *core.Event {
	cfg := &buildConfig{now: time.Now}
	for _, opt := range opts {
		opt(cfg)
	}

	ev := &core.Event{
		ID:        uuid.New(),
		Timestamp: cfg.now(),
		Schema:    core.SchemaMediaPlayerEvent,
		Data: core.MediaPlayerEvent{
			Type:       name.Type(),
			PlayerID:   p.IFrameID(),
			MediaType:  core.MediaTypeVideo,
			MediaLabel: cfg.mediaLabel,
		},
	}

	snapshot := Snapshot(p, q)
	if cfg.errCode != nil {
		snapshot.Error = cfg.errCode.Name()
	}
	ev.Context = append(ev.Context, core.SelfDescribingJSON{
		Schema: core.SchemaYouTubeEntity,
		Data:   snapshot,
	})

	if name == vocab.PercentProgress {
		ev.Context = append(ev.Context, core.SelfDescribingJSON{
			Schema: core.SchemaMediaPlayerEntity,
			Data:   &core.MediaPlayerEntity{Percent: cfg.percent},
		})
	}

	return ev
}

// Snapshot reads the player state entity from p.
func Snapshot(p youtube.Player, q params.Params) *core.YouTubeEntity {
	s := &core.YouTubeEntity{
		PlayerID:               p.IFrameID(),
		AutoPlay:               q.Enabled(youtube.ParamAutoplay),
		AvailablePlaybackRates: p.AvailablePlaybackRates(),
		Controls:               q.Enabled(youtube.ParamControls),
		CurrentTime:            p.CurrentTime(),
		DefaultPlaybackRate:    DefaultPlaybackRate,
		Duration:               p.Duration(),
		Loaded:                 round2(p.VideoLoadedFraction()),
		Muted:                  p.IsMuted(),
		Origin:                 q.Get(youtube.ParamOrigin),
		PlaybackRate:           p.PlaybackRate(),
		Playlist:               p.Playlist(),
		URL:                    p.VideoURL(),
		Volume:                 p.Volume(),
		Loop:                   q.Enabled(youtube.ParamLoop),
	}

	if idx := p.PlaylistIndex(); idx >= 0 && len(s.Playlist) > 0 {
		s.PlaylistIndex = &idx
	}

	switch p.PlayerState() {
	case youtube.StateUnstarted:
		s.Unstarted = true
	case youtube.StateEnded:
		s.Ended = true
	case youtube.StatePlaying:
		s.Playing = true
	case youtube.StatePaused:
		s.Paused = true
	case youtube.StateBuffering:
		s.Buffering = true
	case youtube.StateCued:
		s.Cued = true
	}

	if sp := p.SphericalProperties(); sp != nil {
		fov := round2(sp.FOV)
		yaw, pitch, roll := sp.Yaw, sp.Pitch, sp.Roll
		s.FOV = &fov
		s.Yaw = &yaw
		s.Pitch = &pitch
		s.Roll = &roll
	}

	return s
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
