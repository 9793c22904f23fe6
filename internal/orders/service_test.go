package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/ecomsvc/order-payments/internal/contracts"
	"github.com/ecomsvc/order-payments/internal/model"
)

func newTestRepo(t *testing.T) *Repository {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	assert.NoError(t, err)
	assert.NoError(t, db.AutoMigrate(&model.Order{}, &model.OutboxMessage{}))
	return NewRepository(db, zap.NewNop().Sugar())
}

func TestService_CreateOrderStagesOutboxAtomically(t *testing.T) {
	r := newTestRepo(t)
	svc := NewService(r, zap.NewNop().Sugar())
	ctx := context.Background()

	order, err := svc.CreateOrder(ctx, "alice", decimal.NewFromInt(60), "headphones")
	assert.NoError(t, err)
	assert.Equal(t, model.OrderStatusNew, order.Status)

	var stored model.Order
	assert.NoError(t, r.db.First(&stored, "id = ?", order.ID).Error)
	assert.Equal(t, model.OrderStatusNew, stored.Status)

	var outbox []model.OutboxMessage
	assert.NoError(t, r.db.Find(&outbox).Error)
	assert.Len(t, outbox, 1)
	assert.Equal(t, string(contracts.KindOrderCreated), outbox[0].Kind)
	assert.Nil(t, outbox[0].SentAt, "freshly staged event is pending")

	var evt contracts.OrderCreated
	assert.NoError(t, json.Unmarshal([]byte(outbox[0].Payload), &evt))
	assert.Equal(t, order.ID, evt.OrderID)
	assert.Equal(t, "alice", evt.UserID)
	assert.True(t, evt.Amount.Equal(decimal.NewFromInt(60)))
}

func TestService_CreateOrderValidation(t *testing.T) {
	r := newTestRepo(t)
	svc := NewService(r, zap.NewNop().Sugar())
	ctx := context.Background()

	_, err := svc.CreateOrder(ctx, "", decimal.NewFromInt(10), "")
	assert.ErrorIs(t, err, ErrEmptyUserID)

	_, err = svc.CreateOrder(ctx, "alice", decimal.Zero, "")
	assert.ErrorIs(t, err, ErrInvalidAmount)

	// nothing leaked into either table
	var orderCount, outboxCount int64
	assert.NoError(t, r.db.Model(&model.Order{}).Count(&orderCount).Error)
	assert.NoError(t, r.db.Model(&model.OutboxMessage{}).Count(&outboxCount).Error)
	assert.Zero(t, orderCount)
	assert.Zero(t, outboxCount)
}

func TestService_GetOrderNotFound(t *testing.T) {
	r := newTestRepo(t)
	svc := NewService(r, zap.NewNop().Sugar())

	_, err := svc.GetOrder(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrOrderNotFound)
}
