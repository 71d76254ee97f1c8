package sink

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OCAP2/mediatrack/internal/config"
	"github.com/OCAP2/mediatrack/internal/sink/collector"
	"github.com/OCAP2/mediatrack/internal/sink/gelf"
	"github.com/OCAP2/mediatrack/internal/sink/gorm"
	"github.com/OCAP2/mediatrack/internal/sink/influx"
	"github.com/OCAP2/mediatrack/internal/sink/kafka"
	"github.com/OCAP2/mediatrack/internal/sink/memory"
	"github.com/OCAP2/mediatrack/internal/sink/websocket"
)

var (
	_ Sink = (*memory.Sink)(nil)
	_ Sink = (*gorm.Sink)(nil)
	_ Sink = (*influx.Sink)(nil)
	_ Sink = (*gelf.Sink)(nil)
	_ Sink = (*websocket.Sink)(nil)
	_ Sink = (*kafka.Sink)(nil)
	_ Sink = (*collector.Client)(nil)
)

func TestNew_AllKnownNames(t *testing.T) {
	config.SetDefaults()
	for _, name := range Names {
		t.Run(name, func(t *testing.T) {
			s, err := New(name, Dependencies{Logger: zerolog.Nop()})
			require.NoError(t, err)
			assert.NotNil(t, s)
		})
	}
}

func TestNew_Memory(t *testing.T) {
	config.SetDefaults()
	s, err := New(Memory, Dependencies{})
	require.NoError(t, err)
	assert.IsType(t, &memory.Sink{}, s)
}

func TestNew_Unknown(t *testing.T) {
	_, err := New("carrier-pigeon", Dependencies{})
	assert.EqualError(t, err, "unknown sink type: carrier-pigeon")
}
