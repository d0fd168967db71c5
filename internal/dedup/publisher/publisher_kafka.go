// Package publisher announces completed deduplication runs to downstream
// consumers.
package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"outletdedup/internal/dedup/models"
)

const DefaultTopic = "outletdedup.runs"

// Kafka produces one JSON record per run summary, keyed by run id.
type Kafka struct {
	client *kgo.Client
	topic  string
}

// NewKafka connects a producer to brokers. The client is lazy; brokers are
// first contacted on EnsureTopic or Publish.
func NewKafka(brokers []string, topic string, opts ...kgo.Opt) (*Kafka, error) {
	if len(brokers) == 0 {
		return nil, errors.New("at least one kafka broker is required")
	}
	if topic == "" {
		topic = DefaultTopic
	}
	client, err := kgo.NewClient(append([]kgo.Opt{
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
	}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &Kafka{client: client, topic: topic}, nil
}

// EnsureTopic creates the summary topic with one partition if it is missing.
func (k *Kafka) EnsureTopic(ctx context.Context) error {
	adm := kadm.NewClient(k.client)
	responses, err := adm.CreateTopics(ctx, 1, -1, nil, k.topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", k.topic, err)
	}
	for _, resp := range responses {
		if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", resp.Topic, resp.Err)
		}
	}
	return nil
}

func (k *Kafka) Publish(ctx context.Context, summary models.Summary) error {
	payload, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("encode run summary: %w", err)
	}
	record := &kgo.Record{
		Key:   []byte(summary.RunID.String()),
		Value: payload,
	}
	if err := k.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce run summary: %w", err)
	}
	return nil
}

func (k *Kafka) Topic() string {
	return k.topic
}

// Close flushes nothing; Publish is synchronous.
func (k *Kafka) Close() {
	k.client.Close()
}
