package broker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/ecomsvc/order-payments/internal/contracts"
)

// Publisher ships an envelope to the broker. The outbox worker depends on
// this interface so tests can swap in a failing fake.
type Publisher interface {
	Publish(ctx context.Context, env contracts.Envelope) error
}

// KafkaPublisher writes envelopes to a single topic.
type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(writer *kafka.Writer) *KafkaPublisher {
	return &KafkaPublisher{writer: writer}
}

// Publish sends the envelope keyed by its message id. The id is stable
// across retries, so compacted topics and per-key partitioning stay sane.
func (p *KafkaPublisher) Publish(ctx context.Context, env contracts.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Key:   []byte(env.MessageID.String()),
		Value: data,
		Time:  time.Now(),
	}
	return p.writer.WriteMessages(ctx, msg)
}

var _ Publisher = (*KafkaPublisher)(nil)

// NewWriter builds a writer bound to one topic.
func NewWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	}
}
