// Package core defines the events the tracker emits to analytics sinks.
package core

import (
	"time"

	"github.com/google/uuid"
)

// Self-describing schemas of the emitted payloads.
const (
	SchemaMediaPlayerEvent  = "iglu:com.snowplowanalytics/media_player_event/jsonschema/1-0-0"
	SchemaMediaPlayerEntity = "iglu:com.snowplowanalytics/media_player/jsonschema/1-0-0"
	SchemaYouTubeEntity     = "iglu:org.google/youtube/jsonschema/1-0-0"
)

// MediaTypeVideo is the only media type the YouTube player produces.
const MediaTypeVideo = "VIDEO"

// SelfDescribingJSON is a payload tagged with the schema it conforms to.
type SelfDescribingJSON struct {
	Schema string `json:"schema"`
	Data   any    `json:"data"`
}

// MediaPlayerEvent is the event-type data of every emitted event.
type MediaPlayerEvent struct {
	Type       string `json:"type"`
	PlayerID   string `json:"player_id,omitempty"`
	MediaType  string `json:"media_type"`
	MediaLabel string `json:"media_label,omitempty"`
}

// YouTubeEntity is the player state snapshot attached to every event.
// The misspelled rates key is the one the schema defines.
type YouTubeEntity struct {
	PlayerID               string    `json:"player_id"`
	AutoPlay               bool      `json:"auto_play"`
	AvailablePlaybackRates []float64 `json:"avaliable_playback_rates"`
	Controls               bool      `json:"controls"`
	CurrentTime            float64   `json:"current_time"`
	DefaultPlaybackRate    float64   `json:"default_playback_rate"`
	Duration               float64   `json:"duration"`
	Loaded                 float64   `json:"loaded"`
	Muted                  bool      `json:"muted"`
	Origin                 string    `json:"origin,omitempty"`
	PlaybackRate           float64   `json:"playback_rate"`
	PlaylistIndex          *int      `json:"playlist_index,omitempty"`
	Playlist               []string  `json:"playlist,omitempty"`
	URL                    string    `json:"url"`
	Volume                 int       `json:"volume"`
	Loop                   bool      `json:"loop"`
	Error                  string    `json:"error,omitempty"`

	Unstarted bool `json:"unstarted"`
	Ended     bool `json:"ended"`
	Playing   bool `json:"playing"`
	Paused    bool `json:"paused"`
	Buffering bool `json:"buffering"`
	Cued      bool `json:"cued"`

	FOV   *float64 `json:"fov,omitempty"`
	Roll  *float64 `json:"roll,omitempty"`
	Pitch *float64 `json:"pitch,omitempty"`
	Yaw   *float64 `json:"yaw,omitempty"`
}

// MediaPlayerEntity carries progress details for percent-progress events.
type MediaPlayerEntity struct {
	Percent float64 `json:"percent"`
}

// Event is one outgoing analytics event. ID and Timestamp are envelope
// metadata for sinks and are not part of the JSON payload.
type Event struct {
	ID        uuid.UUID            `json:"-"`
	Timestamp time.Time            `json:"-"`
	Schema    string               `json:"schema"`
	Data      MediaPlayerEvent     `json:"data"`
	Context   []SelfDescribingJSON `json:"context"`
}

// Snapshot returns the player state entity of e, if present.
func (e *Event) Snapshot() (*YouTubeEntity, bool) {
	for _, c := range e.Context {
		if s, ok := c.Data.(*YouTubeEntity); ok {
			return s, true
		}
	}
	return nil, false
}

// Progress returns the progress entity of e, if present.
func (e *Event) Progress() (*MediaPlayerEntity, bool) {
	for _, c := range e.Context {
		if p, ok := c.Data.(*MediaPlayerEntity); ok {
			return p, true
		}
	}
	return nil, false
}

// Record pairs an event with its envelope metadata for sinks that persist
// or stream the full event.
type Record struct {
	ID        uuid.UUID `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Event     *Event    `json:"event"`
}

// Record returns e with its envelope metadata.
func (e *Event) Record() Record {
	return Record{ID: e.ID, Timestamp: e.Timestamp, Event: e}
}
