package broker

import (
	"context"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/ecomsvc/order-payments/internal/contracts"
)

// EnvelopeHandler is implemented by each service's consumer (the inbox
// insert on the payments side, the reactive status update on the orders
// side). A nil return means the delivery is durably accounted for and its
// offset may be committed; an error leaves the offset uncommitted so the
// message comes back after a restart or rebalance.
type EnvelopeHandler interface {
	HandleEnvelope(ctx context.Context, env contracts.Envelope) error
}

// messageReader is the slice of *kafka.Reader the adapter uses.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Config() kafka.ReaderConfig
}

// ConsumerAdapter pumps one topic into an EnvelopeHandler. Offsets are
// committed only after the handler reports the message durably recorded,
// so a crash between fetch and record re-delivers instead of losing the
// message. Messages that cannot be decoded into a well-formed envelope
// (including ones without a message id, which cannot be deduplicated) are
// logged, committed and dropped here so handlers only ever see valid
// envelopes.
type ConsumerAdapter struct {
	reader  messageReader
	handler EnvelopeHandler
	log     *zap.SugaredLogger
}

func NewConsumerAdapter(reader messageReader, handler EnvelopeHandler, log *zap.SugaredLogger) *ConsumerAdapter {
	return &ConsumerAdapter{reader: reader, handler: handler, log: log}
}

// Start launches the blocking fetch loop in a goroutine. It exits when ctx
// is cancelled.
func (c *ConsumerAdapter) Start(ctx context.Context) {
	c.log.Infow("consumer started", "topic", c.reader.Config().Topic)
	go func() {
		for {
			msg, err := c.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					c.log.Infow("consumer stopped", "topic", c.reader.Config().Topic)
					return
				}
				c.log.Errorw("fetch message", "topic", c.reader.Config().Topic, "err", err)
				continue
			}

			env, err := contracts.DecodeEnvelope(msg.Value)
			if err != nil {
				// Undecodable now means undecodable forever; commit so the
				// group does not chew on it after every rebalance.
				c.log.Warnw("dropping undecodable message", "topic", c.reader.Config().Topic, "err", err)
				c.commit(ctx, msg)
				continue
			}

			if err := c.handler.HandleEnvelope(ctx, env); err != nil {
				// Not recorded durably: leave the offset uncommitted so the
				// broker re-delivers it to a future session.
				c.log.Errorw("handler failed, offset not committed",
					"topic", c.reader.Config().Topic, "message_id", env.MessageID, "err", err)
				continue
			}
			c.commit(ctx, msg)
		}
	}()
}

func (c *ConsumerAdapter) commit(ctx context.Context, msg kafka.Message) {
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		// The message itself is safe; at worst it is re-delivered and
		// deduplicated downstream.
		c.log.Errorw("commit offset", "topic", c.reader.Config().Topic, "err", err)
	}
}

// NewReader builds a consumer-group reader for a topic.
func NewReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: groupID,
	})
}
