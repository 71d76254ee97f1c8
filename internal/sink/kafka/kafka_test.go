package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/OCAP2/mediatrack/internal/config"
	"github.com/OCAP2/mediatrack/internal/sink/sinktest"
)

type fakeProducer struct {
	records []*kgo.Record
	err     error
	closed  bool
}

func (f *fakeProducer) ProduceSync(_ context.Context, rs ...*kgo.Record) kgo.ProduceResults {
	results := make(kgo.ProduceResults, 0, len(rs))
	for _, r := range rs {
		f.records = append(f.records, r)
		results = append(results, kgo.ProduceResult{Record: r, Err: f.err})
	}
	return results
}

func (f *fakeProducer) Close() { f.closed = true }

func TestRecord(t *testing.T) {
	e := sinktest.Event("seek", 0)

	r, err := Record("media-events", e)
	require.NoError(t, err)

	assert.Equal(t, "media-events", r.Topic)
	assert.Equal(t, e.ID.String(), string(r.Key))
	assert.True(t, r.Timestamp.Equal(sinktest.Epoch))

	headers := map[string]string{}
	for _, h := range r.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, "seek", headers[HeaderEventType])
	assert.Equal(t, "youtube", headers[HeaderPlayerID])

	var value struct {
		ID    string `json:"id"`
		Event struct {
			Schema string `json:"schema"`
		} `json:"event"`
	}
	require.NoError(t, json.Unmarshal(r.Value, &value))
	assert.Equal(t, e.ID.String(), value.ID)
	assert.Equal(t, e.Schema, value.Event.Schema)
}

func TestTrack(t *testing.T) {
	fp := &fakeProducer{}
	s := &Sink{cfg: config.KafkaConfig{Topic: "t"}, client: fp}

	require.NoError(t, s.Track(context.Background(), sinktest.Event("play", 0)))
	require.Len(t, fp.records, 1)
	assert.Equal(t, "t", fp.records[0].Topic)

	require.NoError(t, s.Close())
	assert.True(t, fp.closed)
}

func TestTrack_ProduceError(t *testing.T) {
	fp := &fakeProducer{err: errors.New("not leader")}
	s := &Sink{cfg: config.KafkaConfig{Topic: "t"}, client: fp}

	err := s.Track(context.Background(), sinktest.Event("play", 0))
	assert.ErrorContains(t, err, "not leader")
}

func TestInit(t *testing.T) {
	assert.Error(t, New(config.KafkaConfig{}).Init())

	s := New(config.KafkaConfig{Brokers: []string{"127.0.0.1:1"}, Topic: "t", ClientID: "mediatrack"})
	require.NoError(t, s.Init())
	assert.NoError(t, s.Close())
}

func TestTrack_NotInitialized(t *testing.T) {
	s := New(config.KafkaConfig{})
	assert.Error(t, s.Track(context.Background(), sinktest.Event("play", 0)))
}
