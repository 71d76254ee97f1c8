// Package gelf ships tracked events to Graylog as GELF messages.
package gelf

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/Graylog2/go-gelf/gelf"

	"github.com/OCAP2/mediatrack/internal/config"
	"github.com/OCAP2/mediatrack/pkg/core"
)

// Syslog severities used as GELF levels.
const (
	LevelError = 3
	LevelInfo  = 6
)

const facility = "mediatrack"

// Sink writes one GELF message per event over UDP.
type Sink struct {
	cfg    config.GelfConfig
	writer *gelf.Writer
	host   string
}

func New(cfg config.GelfConfig) *Sink {
	return &Sink{cfg: cfg}
}

// Init opens the UDP writer.
func (s *Sink) Init() error {
	w, err := gelf.NewWriter(s.cfg.Address)
	if err != nil {
		return fmt.Errorf("gelf sink: %w", err)
	}
	w.Facility = facility
	s.writer = w
	s.host, _ = os.Hostname()
	return nil
}

func (s *Sink) Track(_ context.Context, e *core.Event) error {
	if s.writer == nil {
		return errors.New("gelf sink: not initialized")
	}
	msg, err := Message(e, s.host)
	if err != nil {
		return err
	}
	return s.writer.WriteMessage(msg)
}

func (s *Sink) Close() error {
	if s.writer == nil {
		return nil
	}
	return s.writer.Close()
}

// Message converts e. The full message is the event JSON; additional
// fields carry the values Graylog streams filter on.
func Message(e *core.Event, host string) (*gelf.Message, error) {
	full, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	level := int32(LevelInfo)
	extra := map[string]any{
		"_event_id":   e.ID.String(),
		"_event_type": e.Data.Type,
		"_player_id":  e.Data.PlayerID,
	}
	if e.Data.MediaLabel != "" {
		extra["_media_label"] = e.Data.MediaLabel
	}
	if snap, ok := e.Snapshot(); ok {
		extra["_current_time"] = snap.CurrentTime
		if snap.Error != "" {
			extra["_error"] = snap.Error
			level = LevelError
		}
	}
	if p, ok := e.Progress(); ok {
		extra["_percent"] = p.Percent
	}
	return &gelf.Message{
		Version:  "1.1",
		Host:     host,
		Short:    fmt.Sprintf("media event %s", e.Data.Type),
		Full:     string(full),
		TimeUnix: float64(e.Timestamp.UnixNano()) / 1e9,
		Level:    level,
		Facility: facility,
		Extra:    extra,
	}, nil
}
