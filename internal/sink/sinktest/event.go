// Package sinktest builds sample events for sink tests.
package sinktest

import (
	"time"

	"github.com/google/uuid"

	"github.com/OCAP2/mediatrack/pkg/core"
)

// Epoch is the timestamp of events built by Event.
var Epoch = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

// Event returns a fully populated event of the given type for player
// "youtube". Percent is attached as a progress entity when non-zero.
func Event(eventType string, percent float64) *core.Event {
	index := 0
	e := &core.Event{
		ID:        uuid.New(),
		Timestamp: Epoch,
		Schema:    core.SchemaMediaPlayerEvent,
		Data: core.MediaPlayerEvent{
			Type:       eventType,
			PlayerID:   "youtube",
			MediaType:  core.MediaTypeVideo,
			MediaLabel: "launch",
		},
		Context: []core.SelfDescribingJSON{{
			Schema: core.SchemaYouTubeEntity,
			Data: &core.YouTubeEntity{
				PlayerID:               "youtube",
				AvailablePlaybackRates: []float64{0.5, 1, 2},
				CurrentTime:            12.5,
				DefaultPlaybackRate:    1,
				Duration:               120,
				Loaded:                 0.19,
				PlaybackRate:           1,
				PlaylistIndex:          &index,
				Playlist:               []string{"dQw4w9WgXcQ"},
				URL:                    "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
				Volume:                 80,
				Playing:                true,
			},
		}},
	}
	if percent != 0 {
		e.Context = append(e.Context, core.SelfDescribingJSON{
			Schema: core.SchemaMediaPlayerEntity,
			Data:   &core.MediaPlayerEntity{Percent: percent},
		})
	}
	return e
}
