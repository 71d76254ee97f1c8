// Package kafka publishes tracked events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/OCAP2/mediatrack/internal/config"
	"github.com/OCAP2/mediatrack/pkg/core"
)

const produceTimeout = 5 * time.Second

// Header keys set on every record.
const (
	HeaderEventType = "event_type"
	HeaderPlayerID  = "player_id"
	HeaderSchema    = "schema"
)

type producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	Close()
}

// Sink produces one record per event, keyed by event ID.
type Sink struct {
	cfg    config.KafkaConfig
	client producer
}

func New(cfg config.KafkaConfig) *Sink {
	return &Sink{cfg: cfg}
}

// Init creates the client. Brokers are contacted lazily on first produce.
func (s *Sink) Init() error {
	if len(s.cfg.Brokers) == 0 {
		return errors.New("kafka sink: no brokers configured")
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(s.cfg.Brokers...),
		kgo.ClientID(s.cfg.ClientID),
		kgo.DefaultProduceTopic(s.cfg.Topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
		kgo.ProducerLinger(10*time.Millisecond),
	)
	if err != nil {
		return fmt.Errorf("failed to create kafka client: %w", err)
	}
	s.client = client
	return nil
}

// Track produces e synchronously and waits at most produceTimeout.
func (s *Sink) Track(ctx context.Context, e *core.Event) error {
	if s.client == nil {
		return errors.New("kafka sink: not initialized")
	}
	record, err := Record(s.cfg.Topic, e)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, produceTimeout)
	defer cancel()
	if err := s.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("failed to produce event %s: %w", e.ID, err)
	}
	return nil
}

func (s *Sink) Close() error {
	if s.client != nil {
		s.client.Close()
	}
	return nil
}

// Record converts e to a record for topic. The value is the event record
// JSON.
func Record(topic string, e *core.Event) (*kgo.Record, error) {
	value, err := json.Marshal(e.Record())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}
	return &kgo.Record{
		Topic:     topic,
		Key:       []byte(e.ID.String()),
		Value:     value,
		Timestamp: e.Timestamp,
		Headers: []kgo.RecordHeader{
			{Key: HeaderEventType, Value: []byte(e.Data.Type)},
			{Key: HeaderPlayerID, Value: []byte(e.Data.PlayerID)},
			{Key: HeaderSchema, Value: []byte(e.Schema)},
		},
	}, nil
}
