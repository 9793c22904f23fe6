package outbox

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ecomsvc/order-payments/internal/broker"
	"github.com/ecomsvc/order-payments/internal/contracts"
	"github.com/ecomsvc/order-payments/internal/model"
)

// Worker drains pending outbox rows to the broker on a fixed interval.
// Publish failures leave the row pending; the next cycle retries it, with
// no cap on attempts. One failing row never blocks the rest of the batch.
type Worker struct {
	store     Store
	publisher broker.Publisher
	interval  time.Duration
	batchSize int
	log       *zap.SugaredLogger
}

func NewWorker(store Store, publisher broker.Publisher, interval time.Duration, batchSize int, log *zap.SugaredLogger) *Worker {
	return &Worker{
		store:     store,
		publisher: publisher,
		interval:  interval,
		batchSize: batchSize,
		log:       log,
	}
}

// Start blocks until ctx is cancelled. Cancellation is observed between
// cycles, so an in-flight batch always finishes cleanly.
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.log.Infow("outbox publisher started", "interval", w.interval, "batch", w.batchSize)
	for {
		select {
		case <-ctx.Done():
			w.log.Info("outbox publisher stopped")
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce processes a single batch. Exported so tests can drive the worker
// without the ticker.
func (w *Worker) RunOnce(ctx context.Context) {
	msgs, err := w.store.PollPending(ctx, w.batchSize)
	if err != nil {
		w.log.Errorw("poll outbox", "err", err)
		return
	}
	for _, msg := range msgs {
		w.publishAndMark(ctx, msg)
	}
}

func (w *Worker) publishAndMark(ctx context.Context, msg model.OutboxMessage) {
	env, err := envelopeFrom(msg)
	if err != nil {
		// Malformed row: stays pending and is logged every cycle. There is
		// no dead-letter escalation here, matching the unbounded retry of
		// transient failures.
		w.log.Errorw("bad outbox payload", "id", msg.ID, "kind", msg.Kind, "err", err)
		return
	}
	if err := w.publisher.Publish(ctx, env); err != nil {
		w.log.Warnw("publish failed, will retry", "id", msg.ID, "err", err)
		return
	}
	if err := w.store.MarkSent(ctx, msg.ID); err != nil {
		// The message went out but the stamp failed; the next cycle will
		// resend and the receiver dedups on the message id.
		w.log.Errorw("mark sent", "id", msg.ID, "err", err)
		return
	}
	w.log.Infow("event published", "id", msg.ID, "kind", msg.Kind)
}

// envelopeFrom rebuilds the typed envelope from a stored row, validating
// the payload against the closed kind set before it is put on the wire.
func envelopeFrom(msg model.OutboxMessage) (contracts.Envelope, error) {
	env := contracts.Envelope{
		MessageID: msg.ID,
		Kind:      contracts.Kind(msg.Kind),
		Payload:   []byte(msg.Payload),
	}
	switch env.Kind {
	case contracts.KindOrderCreated:
		if _, err := env.OrderCreatedPayload(); err != nil {
			return contracts.Envelope{}, err
		}
	case contracts.KindPaymentResult:
		if _, err := env.PaymentResultPayload(); err != nil {
			return contracts.Envelope{}, err
		}
	default:
		return contracts.Envelope{}, contracts.ErrUnknownKind(msg.Kind)
	}
	return env, nil
}
