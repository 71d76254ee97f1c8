// Package influx writes one InfluxDB point per tracked event.
package influx

import (
	"context"
	"fmt"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rs/zerolog"

	"github.com/OCAP2/mediatrack/internal/config"
	influxmgr "github.com/OCAP2/mediatrack/internal/influx"
	"github.com/OCAP2/mediatrack/pkg/core"
)

// Measurement is the measurement name of every point.
const Measurement = "media_event"

// Sink converts events to points.
type Sink struct {
	mgr *influxmgr.Manager
}

func New(cfg config.InfluxConfig, log zerolog.Logger) *Sink {
	return &Sink{mgr: influxmgr.NewManager(log, cfg)}
}

func (s *Sink) Init() error {
	if err := s.mgr.Connect(context.Background()); err != nil {
		return fmt.Errorf("influx sink: %w", err)
	}
	return nil
}

func (s *Sink) Track(_ context.Context, e *core.Event) error {
	return s.mgr.WritePoint(Point(e))
}

func (s *Sink) Close() error {
	return s.mgr.Close()
}

// BackupPath returns the line-protocol fallback file.
func (s *Sink) BackupPath() string {
	return s.mgr.BackupPath()
}

// Point converts e: tags identify the event and player, fields carry the
// playback position.
func Point(e *core.Event) *influxdb2_write.Point {
	p := influxdb2_write.NewPointWithMeasurement(Measurement).
		AddTag("type", e.Data.Type).
		AddTag("player_id", e.Data.PlayerID).
		SetTime(e.Timestamp)
	if e.Data.MediaLabel != "" {
		p.AddTag("media_label", e.Data.MediaLabel)
	}
	if snap, ok := e.Snapshot(); ok {
		p.AddField("current_time", snap.CurrentTime).
			AddField("duration", snap.Duration).
			AddField("volume", snap.Volume).
			AddField("playback_rate", snap.PlaybackRate).
			AddField("muted", snap.Muted)
		if snap.Error != "" {
			p.AddTag("error", snap.Error)
		}
	}
	if progress, ok := e.Progress(); ok {
		p.AddField("percent", progress.Percent)
	}
	return p
}
