// Package websocket streams tracked events to a collector over WebSocket.
package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/OCAP2/mediatrack/internal/config"
	"github.com/OCAP2/mediatrack/pkg/core"
	"github.com/OCAP2/mediatrack/pkg/streaming"
)

// Source identifies this tracker in start_stream.
const Source = "mediatrack"

// Sink sends each event as a media_event envelope. Events are
// fire-and-forget; start_stream and end_stream wait for the server ack.
type Sink struct {
	conn *connection
	cfg  config.WebSocketConfig
	now  func() time.Time
}

// New creates a WebSocket sink. logger may be nil.
func New(cfg config.WebSocketConfig, logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{
		conn: newConnection(logger.With("sink", "websocket")),
		cfg:  cfg,
		now:  time.Now,
	}
}

// Init connects and opens the stream.
func (s *Sink) Init() error {
	if err := s.conn.dial(s.cfg.URL, s.cfg.Secret); err != nil {
		return err
	}
	hello, err := marshalEnvelope(streaming.TypeStartStream, streaming.StartStreamPayload{
		Source:    Source,
		StartedAt: s.now().UTC(),
	})
	if err != nil {
		return err
	}
	s.conn.mu.Lock()
	s.conn.hello = hello
	s.conn.mu.Unlock()

	return s.conn.sendAndWait(hello, streaming.TypeStartStream, ackTimeout)
}

func (s *Sink) Track(_ context.Context, e *core.Event) error {
	data, err := marshalEnvelope(streaming.TypeMediaEvent, streaming.MediaEventPayload(e.Record()))
	if err != nil {
		return err
	}
	if !s.conn.send(data) {
		return fmt.Errorf("websocket sink: queue full, event %s dropped", e.ID)
	}
	return nil
}

// Dropped returns the number of messages dropped on a full queue.
func (s *Sink) Dropped() uint64 {
	return s.conn.dropped.Load()
}

// Close ends the stream and disconnects. end_stream is skipped when no
// connection is up; the connection is closed even when its ack does not
// arrive.
func (s *Sink) Close() error {
	s.conn.mu.Lock()
	live := s.conn.conn != nil
	s.conn.mu.Unlock()

	var err error
	if live {
		var data []byte
		if data, err = marshalEnvelope(streaming.TypeEndStream, nil); err == nil {
			err = s.conn.sendAndWait(data, streaming.TypeEndStream, ackTimeout)
		}
	}
	if cerr := s.conn.close(); err == nil {
		err = cerr
	}
	return err
}

// marshalEnvelope builds a JSON-encoded Envelope from a message type and payload.
func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	data, err := json.Marshal(streaming.Envelope{Type: msgType, Payload: raw})
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}
