package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ecomsvc/order-payments/internal/model"
)

var (
	// ErrAccountNotFound is returned when a user has no account.
	ErrAccountNotFound = errors.New("account not found")
	// ErrAccountExists is returned on a second account for the same user.
	ErrAccountExists = errors.New("account already exists")
	// ErrOptimisticLock signals the account row changed under us; the
	// caller must re-read and re-evaluate, never overwrite.
	ErrOptimisticLock = errors.New("optimistic lock conflict")
)

// RepositoryInterface restricts Repo methods (keeps services mockable).
type RepositoryInterface interface {
	DB(ctx context.Context) *gorm.DB
	CreateAccount(ctx context.Context, a *model.Account) error
	GetAccountByUserID(ctx context.Context, tx *gorm.DB, userID string) (*model.Account, error)
	UpdateAccountBalance(ctx context.Context, tx *gorm.DB, id uuid.UUID, newBalance decimal.Decimal, oldVersion uint64) error
	InsertInbox(ctx context.Context, m *model.InboxMessage) error
	PollInbox(ctx context.Context, kind string, limit int) ([]model.InboxMessage, error)
	MarkInboxProcessed(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
	CreateOutboxMessage(ctx context.Context, tx *gorm.DB, m *model.OutboxMessage) error
	CacheBalance(ctx context.Context, userID string, bal decimal.Decimal) error
	GetCachedBalance(ctx context.Context, userID string) (decimal.Decimal, error)
}

// Repository implements RepositoryInterface over the payments database.
type Repository struct {
	db  *gorm.DB
	rdb *redis.Client
	log *zap.SugaredLogger
}

// NewRepository constructs repo. rdb may be nil in tests that skip caching.
func NewRepository(db *gorm.DB, rdb *redis.Client, logger *zap.SugaredLogger) *Repository {
	return &Repository{db: db, rdb: rdb, log: logger}
}

// DB returns underlying *gorm.DB
func (r *Repository) DB(ctx context.Context) *gorm.DB { return r.db.WithContext(ctx) }

// CreateAccount inserts a zero-balance account, one per user.
func (r *Repository) CreateAccount(ctx context.Context, a *model.Account) error {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(a)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrAccountExists
	}
	return nil
}

// GetAccountByUserID loads the account inside tx (or the base db when the
// caller is not in a transaction).
func (r *Repository) GetAccountByUserID(ctx context.Context, tx *gorm.DB, userID string) (*model.Account, error) {
	if tx == nil {
		tx = r.db
	}
	var a model.Account
	err := tx.WithContext(ctx).Where("user_id = ?", userID).First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// UpdateAccountBalance with optimistic lock: the write only lands if the
// version read earlier is still current.
func (r *Repository) UpdateAccountBalance(ctx context.Context, tx *gorm.DB, id uuid.UUID, newBalance decimal.Decimal, oldVersion uint64) error {
	res := tx.WithContext(ctx).
		Model(&model.Account{}).
		Where("id = ? AND version = ?", id, oldVersion).
		Updates(map[string]interface{}{
			"balance":    newBalance,
			"version":    oldVersion + 1,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrOptimisticLock
	}
	return nil
}

// InsertInbox makes a delivery durable. A duplicate message id conflicts on
// the primary key and is silently dropped, which is the whole dedup story.
func (r *Repository) InsertInbox(ctx context.Context, m *model.InboxMessage) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(m).Error
}

// PollInbox pulls unprocessed messages of one kind, oldest first.
func (r *Repository) PollInbox(ctx context.Context, kind string, limit int) ([]model.InboxMessage, error) {
	var msgs []model.InboxMessage
	err := r.db.WithContext(ctx).
		Where("processed = ? AND kind = ?", false, kind).
		Order("received_at").
		Limit(limit).
		Find(&msgs).Error
	return msgs, err
}

// MarkInboxProcessed sets the processed flag inside the caller's tx.
func (r *Repository) MarkInboxProcessed(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	return tx.WithContext(ctx).
		Model(&model.InboxMessage{}).
		Where("id = ?", id).
		Update("processed", true).Error
}

// CreateOutboxMessage stages a reply event in the caller's tx.
func (r *Repository) CreateOutboxMessage(ctx context.Context, tx *gorm.DB, m *model.OutboxMessage) error {
	return tx.WithContext(ctx).Create(m).Error
}

// CacheBalance writes Redis.
func (r *Repository) CacheBalance(ctx context.Context, userID string, bal decimal.Decimal) error {
	if r.rdb == nil {
		return nil
	}
	return r.rdb.Set(ctx, fmt.Sprintf("balance:%s", userID), bal.String(), 5*time.Minute).Err()
}

// GetCachedBalance reads Redis.
func (r *Repository) GetCachedBalance(ctx context.Context, userID string) (decimal.Decimal, error) {
	if r.rdb == nil {
		return decimal.Zero, redis.Nil
	}
	str, err := r.rdb.Get(ctx, fmt.Sprintf("balance:%s", userID)).Result()
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(str)
}

var _ RepositoryInterface = (*Repository)(nil)
