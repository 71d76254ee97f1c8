// Package sink defines the analytics sink contract and builds the
// configured sinks.
package sink

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rs/zerolog"

	"github.com/OCAP2/mediatrack/internal/config"
	"github.com/OCAP2/mediatrack/internal/sink/collector"
	"github.com/OCAP2/mediatrack/internal/sink/gelf"
	"github.com/OCAP2/mediatrack/internal/sink/gorm"
	"github.com/OCAP2/mediatrack/internal/sink/influx"
	"github.com/OCAP2/mediatrack/internal/sink/kafka"
	"github.com/OCAP2/mediatrack/internal/sink/memory"
	"github.com/OCAP2/mediatrack/internal/sink/websocket"
	"github.com/OCAP2/mediatrack/pkg/core"
)

// Sink names accepted in configuration.
const (
	Memory    = "memory"
	Gorm      = "gorm"
	Influx    = "influx"
	Gelf      = "gelf"
	WebSocket = "websocket"
	Kafka     = "kafka"
	Collector = "collector"
)

// Names lists every known sink.
var Names = []string{Memory, Gorm, Influx, Gelf, WebSocket, Kafka, Collector}

// Sink is the interface all sink implementations must satisfy.
type Sink interface {
	Init() error
	Close() error
	Track(ctx context.Context, e *core.Event) error
}

// Dependencies are shared by the sinks New builds.
type Dependencies struct {
	Logger zerolog.Logger
	Slog   *slog.Logger
}

// New creates the sink registered as name from the current configuration.
// The sink is not initialized.
func New(name string, deps Dependencies) (Sink, error) {
	switch name {
	case Memory:
		return memory.New(config.GetMemoryConfig()), nil
	case Gorm:
		return gorm.New(config.GetGormConfig(), deps.Logger.With().Str("sink", name).Logger()), nil
	case Influx:
		return influx.New(config.GetInfluxConfig(), deps.Logger.With().Str("sink", name).Logger()), nil
	case Gelf:
		return gelf.New(config.GetGelfConfig()), nil
	case WebSocket:
		return websocket.New(config.GetWebSocketConfig(), deps.Slog), nil
	case Kafka:
		return kafka.New(config.GetKafkaConfig()), nil
	case Collector:
		return collector.New(config.GetCollectorConfig()), nil
	default:
		return nil, fmt.Errorf("unknown sink type: %s", name)
	}
}
