package tracker

import (
	"math"
	"slices"
	"time"

	"github.com/OCAP2/mediatrack/internal/builder"
	"github.com/OCAP2/mediatrack/internal/scheduler"
	"github.com/OCAP2/mediatrack/internal/vocab"
)

const (
	// PollInterval is the tick of the seek and volume detectors.
	PollInterval = 500 * time.Millisecond
	// SeekThreshold is the largest difference in seconds between the
	// expected and the polled position that still counts as playback.
	SeekThreshold = 1.0
	// CorrectionInterval is the delay between position checks once a
	// boundary timer fired early.
	CorrectionInterval = 10 * time.Millisecond
	// MaxCorrectionPolls bounds the checks for one boundary before it is
	// given up.
	MaxCorrectionPolls = 500
)

// seekDetector compares each polled position with the position expected
// from normal playback since the previous poll.
type seekDetector struct {
	last  float64
	timer scheduler.Timer
}

// volumeDetector reports any change of the polled volume.
type volumeDetector struct {
	last  int
	timer scheduler.Timer
}

// boundary is a pending percent-progress boundary.
type boundary struct {
	percent float64
	target  float64 // media time in ms
	polls   int
	timer   scheduler.Timer
}

// startDetectors starts the seek and volume detectors on the first playing
// transition. They run until the session is closed.
func (s *Session) startDetectors() {
	if s.seek == nil && s.cfg.Captures(vocab.Seek) {
		d := &seekDetector{last: s.player.CurrentTime()}
		d.timer = s.sched.Every(PollInterval, func() { s.pollSeek(d) })
		s.seek = d
	}
	if s.volume == nil && s.cfg.Captures(vocab.VolumeChange) {
		d := &volumeDetector{last: s.player.Volume()}
		d.timer = s.sched.Every(PollInterval, func() { s.pollVolume(d) })
		s.volume = d
	}
}

func (s *Session) pollSeek(d *seekDetector) {
	cur := s.player.CurrentTime()
	expected := d.last + PollInterval.Seconds()
	if math.Abs(cur-expected) > SeekThreshold {
		s.emit(vocab.Seek)
	}
	d.last = cur
}

func (s *Session) pollVolume(d *volumeDetector) {
	cur := s.player.Volume()
	if cur != d.last {
		s.emit(vocab.VolumeChange)
	}
	d.last = cur
}

// scheduleBoundaries arms a timer for every configured boundary. The
// target is the boundary's media time in milliseconds and the timer fires
// that many milliseconds after the playing transition, whatever the current
// position or playback rate. Boundaries already passed are armed again and
// fire as soon as their timer runs.
//
// A boundary is only armed when its percentage is below its target time in
// milliseconds. For any video longer than a tenth of a second this holds for
// every boundary in (0, 100).
func (s *Session) scheduleBoundaries() {
	duration := s.player.Duration() * 1000

	for _, p := range s.cfg.PercentBoundaries() {
		target := duration * p / 100
		if !(p < target) {
			continue
		}

		b := &boundary{percent: p, target: target}
		delay := time.Duration(target * float64(time.Millisecond))
		b.timer = s.sched.AfterFunc(delay, func() { s.boundaryDue(b) })
		s.boundaries = append(s.boundaries, b)
	}
}

// boundaryDue runs when a boundary timer fires. Timers run ahead of media
// time, so the position is checked and re-polled until it reaches the
// target.
func (s *Session) boundaryDue(b *boundary) {
	if s.player.CurrentTime()*1000 < b.target {
		if b.polls >= MaxCorrectionPolls {
			s.logger.Debug("percent boundary not reached", "percent", b.percent, "polls", b.polls)
			s.dropBoundary(b)
			return
		}
		b.polls++
		b.timer = s.sched.AfterFunc(CorrectionInterval, func() { s.boundaryDue(b) })
		return
	}

	s.dropBoundary(b)
	s.emit(vocab.PercentProgress, builder.WithPercent(b.percent))
}

func (s *Session) dropBoundary(b *boundary) {
	if i := slices.Index(s.boundaries, b); i >= 0 {
		s.boundaries = slices.Delete(s.boundaries, i, i+1)
	}
}

// cancelBoundaries stops every pending boundary timer.
func (s *Session) cancelBoundaries() {
	for _, b := range s.boundaries {
		b.timer.Stop()
	}
	s.boundaries = nil
}
