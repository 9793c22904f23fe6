package orders

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ecomsvc/order-payments/internal/model"
)

// ErrOrderNotFound is returned when an order id resolves to nothing.
var ErrOrderNotFound = errors.New("order not found")

// RepositoryInterface restricts Repo methods (keeps the service mockable).
type RepositoryInterface interface {
	DB(ctx context.Context) *gorm.DB
	CreateOrder(ctx context.Context, tx *gorm.DB, o *model.Order) error
	CreateOutboxMessage(ctx context.Context, tx *gorm.DB, m *model.OutboxMessage) error
	GetOrder(ctx context.Context, id uuid.UUID) (*model.Order, error)
	ListOrders(ctx context.Context) ([]model.Order, error)
	SetOrderStatus(ctx context.Context, id uuid.UUID, status model.OrderStatus) error
}

// Repository implements RepositoryInterface over the orders database.
type Repository struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func NewRepository(db *gorm.DB, logger *zap.SugaredLogger) *Repository {
	return &Repository{db: db, log: logger}
}

// DB returns underlying *gorm.DB
func (r *Repository) DB(ctx context.Context) *gorm.DB { return r.db.WithContext(ctx) }

// CreateOrder inserts the order row.
func (r *Repository) CreateOrder(ctx context.Context, tx *gorm.DB, o *model.Order) error {
	return tx.WithContext(ctx).Create(o).Error
}

// CreateOutboxMessage stages an event in the same transaction as the
// business row it announces.
func (r *Repository) CreateOutboxMessage(ctx context.Context, tx *gorm.DB, m *model.OutboxMessage) error {
	return tx.WithContext(ctx).Create(m).Error
}

// GetOrder fetches one order by id.
func (r *Repository) GetOrder(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	var o model.Order
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// ListOrders returns all orders, newest first.
func (r *Repository) ListOrders(ctx context.Context) ([]model.Order, error) {
	var out []model.Order
	err := r.db.WithContext(ctx).Order("created_at desc").Find(&out).Error
	return out, err
}

// SetOrderStatus writes the status unconditionally. Re-setting the same
// terminal status is a harmless no-op, which is what makes the payment
// result consumer safe under redelivery.
func (r *Repository) SetOrderStatus(ctx context.Context, id uuid.UUID, status model.OrderStatus) error {
	res := r.db.WithContext(ctx).
		Model(&model.Order{}).
		Where("id = ?", id).
		Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrOrderNotFound
	}
	return nil
}

var _ RepositoryInterface = (*Repository)(nil)
