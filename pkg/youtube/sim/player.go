// Package sim provides a simulated YouTube player and host page. Media time
// advances on the Scheduler clock, so a sim player driven by a virtual clock
// behaves deterministically.
package sim

import (
	"time"

	"github.com/OCAP2/mediatrack/internal/scheduler"
	"github.com/OCAP2/mediatrack/pkg/youtube"
)

// Video describes the media loaded in a simulated player.
type Video struct {
	URL       string        `yaml:"url" json:"url"`
	Duration  float64       `yaml:"duration" json:"duration"`
	Playlist  []string      `yaml:"playlist,omitempty" json:"playlist,omitempty"`
	Rates     []float64     `yaml:"rates,omitempty" json:"rates,omitempty"`
	Spherical bool          `yaml:"spherical,omitempty" json:"spherical,omitempty"`
	Buffering time.Duration `yaml:"buffering,omitempty" json:"buffering,omitempty"`
}

// LoadAhead is how many seconds past the current position a started player
// has buffered.
const LoadAhead = 10.0

// DefaultRates are the playback rates offered when a Video lists none.
var DefaultRates = []float64{0.25, 0.5, 0.75, 1, 1.25, 1.5, 1.75, 2}

// Player is a simulated youtube.Player. All methods must be called on the
// scheduler thread.
type Player struct {
	id    string
	sched scheduler.Scheduler
	video Video

	listeners map[youtube.Callback][]youtube.Listener

	state     youtube.State
	position  float64
	since     time.Time
	volume    int
	muted     bool
	rate      float64
	quality   string
	index     int
	spherical youtube.SphericalProperties
	endTimer  scheduler.Timer
}

var _ youtube.Player = (*Player)(nil)

// NewPlayer creates an unstarted player for video. The ready callback is
// delivered through the scheduler, after listeners have had a chance to
// register.
func NewPlayer(id string, video Video, sched scheduler.Scheduler) *Player {
	p := &Player{
		id:        id,
		sched:     sched,
		video:     video,
		listeners: make(map[youtube.Callback][]youtube.Listener),
		state:     youtube.StateUnstarted,
		volume:    100,
		rate:      1,
		quality:   "default",
		index:     -1,
	}
	if len(video.Playlist) > 0 {
		p.index = 0
	}
	if video.Spherical {
		p.spherical = youtube.SphericalProperties{FOV: 100}
	}
	sched.Post(func() { p.emit(youtube.OnReady, nil) })
	return p
}

// AddEventListener registers fn for cb.
func (p *Player) AddEventListener(cb youtube.Callback, fn youtube.Listener) {
	p.listeners[cb] = append(p.listeners[cb], fn)
}

// Listeners returns the number of listeners registered for cb.
func (p *Player) Listeners(cb youtube.Callback) int {
	return len(p.listeners[cb])
}

func (p *Player) emit(cb youtube.Callback, data any) {
	for _, fn := range p.listeners[cb] {
		fn(youtube.Event{Data: data})
	}
}

func (p *Player) setState(s youtube.State) {
	p.position = p.CurrentTime()
	p.since = p.sched.Now()
	p.state = s
	p.emit(youtube.OnStateChange, s)
}

// Play starts or resumes playback. A video with a buffering delay reports
// buffering first.
func (p *Player) Play() {
	if p.state == youtube.StatePlaying {
		return
	}
	if p.video.Buffering > 0 && p.state != youtube.StateBuffering {
		p.setState(youtube.StateBuffering)
		p.sched.AfterFunc(p.video.Buffering, p.Play)
		return
	}
	if p.state == youtube.StateEnded {
		p.position = 0
	}
	p.setState(youtube.StatePlaying)
	p.scheduleEnd()
}

// Pause pauses playback.
func (p *Player) Pause() {
	if p.state != youtube.StatePlaying {
		return
	}
	p.stopEnd()
	p.setState(youtube.StatePaused)
}

// Stop ends playback at the current position.
func (p *Player) Stop() {
	p.stopEnd()
	p.setState(youtube.StateEnded)
}

// Cue loads video without starting it.
func (p *Player) Cue(video Video) {
	p.stopEnd()
	p.video = video
	p.position = 0
	p.setState(youtube.StateCued)
}

// SeekTo jumps to seconds. Seeking emits no callback; the player API
// reports seeks only through a changed current time.
func (p *Player) SeekTo(seconds float64) {
	p.position = clamp(seconds, 0, p.video.Duration)
	p.since = p.sched.Now()
	if p.state == youtube.StatePlaying {
		p.stopEnd()
		p.scheduleEnd()
	}
}

// SetVolume sets the volume (0-100). Like seeking, it has no callback.
func (p *Player) SetVolume(v int) {
	p.volume = int(clamp(float64(v), 0, 100))
}

// Mute mutes the player.
func (p *Player) Mute() { p.muted = true }

// UnMute unmutes the player.
func (p *Player) UnMute() { p.muted = false }

// SetPlaybackRate changes the rate and fires onPlaybackRateChange.
func (p *Player) SetPlaybackRate(rate float64) {
	p.position = p.CurrentTime()
	p.since = p.sched.Now()
	p.rate = rate
	if p.state == youtube.StatePlaying {
		p.stopEnd()
		p.scheduleEnd()
	}
	p.emit(youtube.OnPlaybackRateChange, rate)
}

// SetPlaybackQuality changes the quality and fires onPlaybackQualityChange.
func (p *Player) SetPlaybackQuality(q string) {
	p.quality = q
	p.emit(youtube.OnPlaybackQualityChange, q)
}

// Look sets the viewing angles of a spherical video.
func (p *Player) Look(sp youtube.SphericalProperties) {
	p.spherical = sp
}

// Fail fires onError with code.
func (p *Player) Fail(code youtube.ErrorCode) {
	p.emit(youtube.OnError, code)
}

// ChangeAPI fires onApiChange.
func (p *Player) ChangeAPI() {
	p.emit(youtube.OnAPIChange, nil)
}

func (p *Player) scheduleEnd() {
	if p.video.Duration <= 0 || p.rate <= 0 {
		return
	}
	remaining := (p.video.Duration - p.position) / p.rate
	p.endTimer = p.sched.AfterFunc(seconds(remaining), func() {
		p.endTimer = nil
		p.position = p.video.Duration
		p.setState(youtube.StateEnded)
	})
}

func (p *Player) stopEnd() {
	if p.endTimer != nil {
		p.endTimer.Stop()
		p.endTimer = nil
	}
}

// CurrentTime returns the media position in seconds.
func (p *Player) CurrentTime() float64 {
	if p.state != youtube.StatePlaying {
		return p.position
	}
	elapsed := p.sched.Now().Sub(p.since).Seconds() * p.rate
	return clamp(p.position+elapsed, 0, p.video.Duration)
}

func (p *Player) Duration() float64 { return p.video.Duration }

func (p *Player) Volume() int { return p.volume }

func (p *Player) IsMuted() bool { return p.muted }

func (p *Player) PlaybackRate() float64 { return p.rate }

func (p *Player) AvailablePlaybackRates() []float64 {
	if len(p.video.Rates) > 0 {
		return p.video.Rates
	}
	return DefaultRates
}

func (p *Player) Playlist() []string { return p.video.Playlist }

func (p *Player) PlaylistIndex() int { return p.index }

func (p *Player) VideoURL() string { return p.video.URL }

// VideoLoadedFraction reports LoadAhead seconds buffered past the current
// position once playback has started.
func (p *Player) VideoLoadedFraction() float64 {
	if p.video.Duration <= 0 || p.state == youtube.StateUnstarted || p.state == youtube.StateCued {
		return 0
	}
	return clamp((p.CurrentTime()+LoadAhead)/p.video.Duration, 0, 1)
}

func (p *Player) PlayerState() youtube.State { return p.state }

func (p *Player) SphericalProperties() *youtube.SphericalProperties {
	if !p.video.Spherical {
		return nil
	}
	sp := p.spherical
	return &sp
}

func (p *Player) IFrameID() string { return p.id }

// PlaybackQuality returns the last quality set.
func (p *Player) PlaybackQuality() string { return p.quality }

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if hi > 0 && v > hi {
		return hi
	}
	return v
}
