// Package streaming defines the JSON envelopes exchanged with a streaming
// collector over WebSocket.
package streaming

import (
	"encoding/json"
	"time"

	"github.com/OCAP2/mediatrack/pkg/core"
)

// Message type constants of the streaming protocol.
const (
	TypeStartStream = "start_stream"
	TypeEndStream   = "end_stream"
	TypeMediaEvent  = "media_event"
	TypeAck         = "ack"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is the server's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
}

// StartStreamPayload identifies the tracker opening a stream. It is
// replayed after a reconnect.
type StartStreamPayload struct {
	Source    string    `json:"source"`
	StartedAt time.Time `json:"startedAt"`
}

// MediaEventPayload is the payload of a media_event message.
type MediaEventPayload = core.Record
