package payments

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ecomsvc/order-payments/internal/contracts"
	"github.com/ecomsvc/order-payments/internal/model"
)

// OrderCreatedConsumer is the broker-facing entry point on the payments
// side. It does nothing but make the delivery durable: a debit is not
// idempotent, so the effect itself is left to the inbox processor. A nil
// return tells the adapter the offset is safe to commit.
type OrderCreatedConsumer struct {
	repo RepositoryInterface
	log  *zap.SugaredLogger
}

func NewOrderCreatedConsumer(r RepositoryInterface, logger *zap.SugaredLogger) *OrderCreatedConsumer {
	return &OrderCreatedConsumer{repo: r, log: logger}
}

func (c *OrderCreatedConsumer) HandleEnvelope(ctx context.Context, env contracts.Envelope) error {
	if env.Kind != contracts.KindOrderCreated {
		c.log.Warnw("unexpected kind on orders.created", "kind", env.Kind, "message_id", env.MessageID)
		return nil
	}
	err := c.repo.InsertInbox(ctx, &model.InboxMessage{
		ID:         env.MessageID,
		Kind:       string(env.Kind),
		Payload:    string(env.Payload),
		ReceivedAt: time.Now().UTC(),
		Processed:  false,
	})
	if err != nil {
		// The insert is conflict-free by construction, so this is a real
		// infrastructure error. The uncommitted offset brings it back.
		c.log.Errorw("insert inbox", "message_id", env.MessageID, "err", err)
		return fmt.Errorf("insert inbox %s: %w", env.MessageID, err)
	}
	c.log.Infow("message recorded", "message_id", env.MessageID, "kind", env.Kind)
	return nil
}
