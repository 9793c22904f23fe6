package orders

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ecomsvc/order-payments/internal/contracts"
	"github.com/ecomsvc/order-payments/internal/model"
)

// ErrInvalidAmount means non-positive amount passed.
var ErrInvalidAmount = errors.New("amount must be positive")

// ErrEmptyUserID means no user was supplied for the order.
var ErrEmptyUserID = errors.New("user id must not be empty")

// Service glues order placement and the outbox together.
type Service struct {
	repo RepositoryInterface
	log  *zap.SugaredLogger
}

func NewService(r RepositoryInterface, logger *zap.SugaredLogger) *Service {
	return &Service{repo: r, log: logger}
}

// CreateOrder persists a NEW order and its OrderCreated outbox row in one
// transaction. The publish itself happens later, from the outbox worker,
// so a broker outage cannot lose the event or fail the request.
func (s *Service) CreateOrder(ctx context.Context, userID string, amount decimal.Decimal, description string) (*model.Order, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrEmptyUserID
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidAmount
	}

	order := &model.Order{
		ID:          uuid.New(),
		UserID:      userID,
		Amount:      amount,
		Description: description,
		Status:      model.OrderStatusNew,
	}
	env, err := contracts.NewEnvelope(uuid.New(), contracts.OrderCreated{
		OrderID: order.ID,
		UserID:  order.UserID,
		Amount:  order.Amount,
	})
	if err != nil {
		return nil, err
	}

	err = s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.CreateOrder(ctx, tx, order); err != nil {
			return err
		}
		return s.repo.CreateOutboxMessage(ctx, tx, &model.OutboxMessage{
			ID:        env.MessageID,
			Kind:      string(env.Kind),
			Payload:   string(env.Payload),
			CreatedAt: time.Now().UTC(),
		})
	})
	if err != nil {
		return nil, err
	}
	s.log.Infow("order created", "order_id", order.ID, "user_id", userID, "amount", amount)
	return order, nil
}

// GetOrder returns one order.
func (s *Service) GetOrder(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	return s.repo.GetOrder(ctx, id)
}

// ListOrders returns every order.
func (s *Service) ListOrders(ctx context.Context) ([]model.Order, error) {
	return s.repo.ListOrders(ctx)
}
