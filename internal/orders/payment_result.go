package orders

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ecomsvc/order-payments/internal/contracts"
	"github.com/ecomsvc/order-payments/internal/model"
)

// PaymentResultConsumer applies the payment outcome straight to the order
// row, without inbox bookkeeping. An order transitions out of NEW exactly
// once: a redelivered result sees the terminal status already set and does
// nothing, and a conflicting result cannot flip a finished order. A nil
// return tells the adapter the delivery is accounted for.
type PaymentResultConsumer struct {
	repo RepositoryInterface
	log  *zap.SugaredLogger
}

func NewPaymentResultConsumer(r RepositoryInterface, logger *zap.SugaredLogger) *PaymentResultConsumer {
	return &PaymentResultConsumer{repo: r, log: logger}
}

func (c *PaymentResultConsumer) HandleEnvelope(ctx context.Context, env contracts.Envelope) error {
	if env.Kind != contracts.KindPaymentResult {
		c.log.Warnw("unexpected kind on payments.result", "kind", env.Kind, "message_id", env.MessageID)
		return nil
	}
	msg, err := env.PaymentResultPayload()
	if err != nil {
		c.log.Warnw("bad payment result payload", "message_id", env.MessageID, "err", err)
		return nil
	}

	status := model.OrderStatusCancelled
	if msg.Success {
		status = model.OrderStatusFinished
	}

	order, err := c.repo.GetOrder(ctx, msg.OrderID)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			// The order may not be visible yet or may never have existed;
			// either way the message is discarded, not retried.
			c.log.Warnw("order not found for payment result", "order_id", msg.OrderID)
			return nil
		}
		return fmt.Errorf("load order %s: %w", msg.OrderID, err)
	}
	if order.Terminal() {
		if order.Status != status {
			c.log.Warnw("conflicting payment result for settled order ignored",
				"order_id", order.ID, "status", order.Status, "result", status)
		}
		return nil
	}

	if err := c.repo.SetOrderStatus(ctx, msg.OrderID, status); err != nil && !errors.Is(err, ErrOrderNotFound) {
		return fmt.Errorf("set order %s status: %w", msg.OrderID, err)
	}
	c.log.Infow("order status updated", "order_id", msg.OrderID, "status", status)
	return nil
}
