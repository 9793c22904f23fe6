package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ecomsvc/order-payments/internal/model"
)

// Store is the slice of persistence the publisher worker needs. Appending
// is not part of it: rows are inserted by the business repositories inside
// their own transactions.
type Store interface {
	PollPending(ctx context.Context, limit int) ([]model.OutboxMessage, error)
	MarkSent(ctx context.Context, id uuid.UUID) error
}

// GormStore serves both services; each one points it at its own database.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore { return &GormStore{db: db} }

// PollPending pulls unsent messages oldest first.
func (s *GormStore) PollPending(ctx context.Context, limit int) ([]model.OutboxMessage, error) {
	var msgs []model.OutboxMessage
	err := s.db.WithContext(ctx).
		Where("sent_at IS NULL").
		Order("created_at").
		Limit(limit).
		Find(&msgs).Error
	return msgs, err
}

// MarkSent stamps sent_at, guarded so an already-sent row is never
// restamped even if two publishers race on the same batch.
func (s *GormStore) MarkSent(ctx context.Context, id uuid.UUID) error {
	now := time.Now().UTC()
	return s.db.WithContext(ctx).
		Model(&model.OutboxMessage{}).
		Where("id = ? AND sent_at IS NULL", id).
		Update("sent_at", &now).Error
}

var _ Store = (*GormStore)(nil)
