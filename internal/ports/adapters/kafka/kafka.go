package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"

	"github.com/forPelevin/clipforge/internal/types"
)

// ClipEvent is the message published for every finished clip.
type ClipEvent struct {
	RunID     string             `json:"run_id"`
	Clip      types.ManifestClip `json:"clip"`
	Published time.Time          `json:"published_at"`
}

type Sink struct {
	producer sarama.SyncProducer
	topic    string
	now      func() time.Time
}

type Config struct {
	Brokers  []string
	Topic    string
	ClientID string
}

func New(cfg Config) (*Sink, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka: no brokers configured")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka: topic is empty")
	}
	sc := sarama.NewConfig()
	sc.Version = sarama.V3_6_0_0
	sc.ClientID = cfg.ClientID
	if sc.ClientID == "" {
		sc.ClientID = "clipforge"
	}
	sc.Producer.RequiredAcks = sarama.WaitForAll
	sc.Producer.Retry.Max = 3
	sc.Producer.Return.Successes = true

	p, err := sarama.NewSyncProducer(cfg.Brokers, sc)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return NewWithProducer(p, cfg.Topic), nil
}

func NewWithProducer(p sarama.SyncProducer, topic string) *Sink {
	return &Sink{producer: p, topic: topic, now: time.Now}
}

// Emit publishes one clip keyed by run id so a run's clips stay on one partition.
func (s *Sink) Emit(ctx context.Context, runID string, clip types.ManifestClip) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b, err := json.Marshal(ClipEvent{RunID: runID, Clip: clip, Published: s.now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal clip event: %w", err)
	}
	_, _, err = s.producer.SendMessage(&sarama.ProducerMessage{
		Topic: s.topic,
		Key:   sarama.StringEncoder(runID),
		Value: sarama.ByteEncoder(b),
	})
	if err != nil {
		return fmt.Errorf("kafka send clip %s: %w", clip.ID, err)
	}
	return nil
}

func (s *Sink) Close() error { return s.producer.Close() }
