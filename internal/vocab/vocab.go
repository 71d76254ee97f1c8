// Package vocab maps the player's raw callback and state identifiers to the
// stable event names the tracker emits, and defines the named event groups
// usable in capture configuration.
package vocab

import (
	"strings"

	"github.com/OCAP2/mediatrack/pkg/youtube"
)

// EventName identifies a trackable occurrence. Its value is the constant-case
// key accepted in configuration; Type returns the emitted string.
type EventName string

// Lifecycle events.
const (
	Ready                 EventName = "READY"
	Unstarted             EventName = "UNSTARTED"
	Ended                 EventName = "ENDED"
	Playing               EventName = "PLAYING"
	Paused                EventName = "PAUSED"
	Buffering             EventName = "BUFFERING"
	Cued                  EventName = "CUED"
	PlaybackQualityChange EventName = "PLAYBACKQUALITYCHANGE"
	PlaybackRateChange    EventName = "PLAYBACKRATECHANGE"
	APIChange             EventName = "APICHANGE"
	Error                 EventName = "ERROR"
)

// Derived events produced by polling detectors.
const (
	Seek            EventName = "SEEK"
	VolumeChange    EventName = "VOLUMECHANGE"
	PercentProgress EventName = "PERCENTPROGRESS"
)

// Names lists every known event name in declaration order.
var Names = []EventName{
	Ready,
	Unstarted,
	Ended,
	Playing,
	Paused,
	Buffering,
	Cued,
	PlaybackQualityChange,
	PlaybackRateChange,
	APIChange,
	Error,
	Seek,
	VolumeChange,
	PercentProgress,
}

// Type returns the lowercase string emitted for e. Names without a table
// entry pass through unchanged.
func (e EventName) Type() string {
	switch e {
	case Ready:
		return "ready"
	case Unstarted:
		return "unstarted"
	case Ended:
		return "ended"
	case Playing:
		return "play"
	case Paused:
		return "pause"
	case Buffering:
		return "buffering"
	case Cued:
		return "cued"
	case PlaybackQualityChange:
		return "playbackqualitychange"
	case PlaybackRateChange:
		return "playbackratechange"
	case APIChange:
		return "apichange"
	case Error:
		return "error"
	case Seek:
		return "seek"
	case VolumeChange:
		return "volumechange"
	case PercentProgress:
		return "percentprogress"
	default:
		return string(e)
	}
}

// Known reports whether e is one of Names.
func (e EventName) Known() bool {
	for _, n := range Names {
		if n == e {
			return true
		}
	}
	return false
}

// IsStateEvent reports whether e is delivered through OnStateChange.
func (e EventName) IsStateEvent() bool {
	switch e {
	case Unstarted, Ended, Playing, Paused, Buffering, Cued:
		return true
	}
	return false
}

// FromState returns the event for a state code reported by OnStateChange.
// Undocumented codes pass through as their number.
func FromState(s youtube.State) EventName {
	switch s {
	case youtube.StateUnstarted:
		return Unstarted
	case youtube.StateEnded:
		return Ended
	case youtube.StatePlaying:
		return Playing
	case youtube.StatePaused:
		return Paused
	case youtube.StateBuffering:
		return Buffering
	case youtube.StateCued:
		return Cued
	default:
		return EventName(s.Name())
	}
}

// FromCallback returns the event for a native callback. OnStateChange has no
// fixed event; its event depends on the reported state, see FromState.
func FromCallback(cb youtube.Callback) (EventName, bool) {
	switch cb {
	case youtube.OnReady:
		return Ready, true
	case youtube.OnPlaybackQualityChange:
		return PlaybackQualityChange, true
	case youtube.OnPlaybackRateChange:
		return PlaybackRateChange, true
	case youtube.OnError:
		return Error, true
	case youtube.OnAPIChange:
		return APIChange, true
	default:
		return EventName(cb), false
	}
}

// Callback returns the native callback that delivers e.
func (e EventName) Callback() (youtube.Callback, bool) {
	switch e {
	case Ready:
		return youtube.OnReady, true
	case PlaybackQualityChange:
		return youtube.OnPlaybackQualityChange, true
	case PlaybackRateChange:
		return youtube.OnPlaybackRateChange, true
	case Error:
		return youtube.OnError, true
	case APIChange:
		return youtube.OnAPIChange, true
	case Unstarted, Ended, Playing, Paused, Buffering, Cued:
		return youtube.OnStateChange, true
	default:
		return "", false
	}
}

// Lookup finds an event by its key ("PLAYING") or emitted string ("play").
// Matching ignores case.
func Lookup(s string) (EventName, bool) {
	for _, n := range Names {
		if strings.EqualFold(s, string(n)) || strings.EqualFold(s, n.Type()) {
			return n, true
		}
	}
	return "", false
}
