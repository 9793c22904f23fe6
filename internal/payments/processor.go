package payments

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ecomsvc/order-payments/internal/contracts"
	"github.com/ecomsvc/order-payments/internal/model"
)

// Processor drains unprocessed inbox rows and applies the debit. For each
// message it commits, in one transaction: the account mutation (guarded by
// the version compare-and-set), the PaymentResult reply staged in the local
// outbox, and the processed flag on the inbox row. If any of the three
// fails, all three roll back and the row is picked up again next cycle.
type Processor struct {
	repo      RepositoryInterface
	interval  time.Duration
	batchSize int
	log       *zap.SugaredLogger
}

func NewProcessor(r RepositoryInterface, interval time.Duration, batchSize int, log *zap.SugaredLogger) *Processor {
	return &Processor{repo: r, interval: interval, batchSize: batchSize, log: log}
}

// Start blocks until ctx is cancelled, observed between cycles.
func (p *Processor) Start(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.log.Infow("inbox processor started", "interval", p.interval, "batch", p.batchSize)
	for {
		select {
		case <-ctx.Done():
			p.log.Info("inbox processor stopped")
			return
		case <-ticker.C:
			p.RunOnce(ctx)
		}
	}
}

// RunOnce processes a single batch. Exported for tests.
func (p *Processor) RunOnce(ctx context.Context) {
	msgs, err := p.repo.PollInbox(ctx, string(contracts.KindOrderCreated), p.batchSize)
	if err != nil {
		p.log.Errorw("poll inbox", "err", err)
		return
	}
	for _, msg := range msgs {
		p.processOne(ctx, msg)
	}
}

func (p *Processor) processOne(ctx context.Context, msg model.InboxMessage) {
	env := contracts.Envelope{
		MessageID: msg.ID,
		Kind:      contracts.Kind(msg.Kind),
		Payload:   []byte(msg.Payload),
	}
	order, err := env.OrderCreatedPayload()
	if err != nil {
		// Poison input: retrying will not make it parse. Mark it processed
		// with no effect so it stops clogging the batch.
		p.log.Errorw("unparseable inbox payload, discarding", "message_id", msg.ID, "err", err)
		if err := p.repo.MarkInboxProcessed(ctx, p.repo.DB(ctx), msg.ID); err != nil {
			p.log.Errorw("mark poison processed", "message_id", msg.ID, "err", err)
		}
		return
	}

	// A version conflict means some other write hit the account between our
	// read and our update. That is NOT proof this message was already
	// applied (a deposit can race a debit), so the effect is re-evaluated
	// from a fresh read instead of being assumed done.
	for attempt := 0; attempt < casRetries; attempt++ {
		success, err := p.attemptDebit(ctx, msg.ID, order)
		if errors.Is(err, ErrOptimisticLock) {
			p.log.Warnw("account version conflict, re-reading", "message_id", msg.ID, "attempt", attempt+1)
			continue
		}
		if err != nil {
			// Transient failure: the row stays unprocessed and the next
			// cycle retries it.
			p.log.Errorw("process inbox message", "message_id", msg.ID, "err", err)
			return
		}
		p.log.Infow("order processed", "order_id", order.OrderID, "success", success)
		p.refreshBalanceCache(ctx, order.UserID)
		return
	}
	p.log.Warnw("giving up on contested account this cycle", "message_id", msg.ID, "user_id", order.UserID)
}

// attemptDebit runs one evaluation of the debit against a fresh read of the
// account and commits effect + reply + processed flag together.
func (p *Processor) attemptDebit(ctx context.Context, messageID uuid.UUID, order contracts.OrderCreated) (bool, error) {
	success := false
	err := p.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		acct, err := p.repo.GetAccountByUserID(ctx, tx, order.UserID)
		if err != nil && !errors.Is(err, ErrAccountNotFound) {
			return err
		}

		// Missing account and insufficient funds are normal outcomes, not
		// errors: both produce a failure reply.
		success = err == nil && acct.Balance.GreaterThanOrEqual(order.Amount)
		if success {
			newBal := acct.Balance.Sub(order.Amount)
			if err := p.repo.UpdateAccountBalance(ctx, tx, acct.ID, newBal, acct.Version); err != nil {
				return err
			}
		}

		reply, err := contracts.NewEnvelope(uuid.New(), contracts.PaymentResult{
			OrderID: order.OrderID,
			Success: success,
		})
		if err != nil {
			return err
		}
		if err := p.repo.CreateOutboxMessage(ctx, tx, &model.OutboxMessage{
			ID:        reply.MessageID,
			Kind:      string(reply.Kind),
			Payload:   string(reply.Payload),
			CreatedAt: time.Now().UTC(),
		}); err != nil {
			return err
		}
		return p.repo.MarkInboxProcessed(ctx, tx, messageID)
	})
	return success, err
}

func (p *Processor) refreshBalanceCache(ctx context.Context, userID string) {
	acct, err := p.repo.GetAccountByUserID(ctx, nil, userID)
	if err != nil {
		return
	}
	if err := p.repo.CacheBalance(ctx, userID, acct.Balance); err != nil {
		p.log.Warnw("cache balance", "user_id", userID, "err", err)
	}
}
