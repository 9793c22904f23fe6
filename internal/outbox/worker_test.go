package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/ecomsvc/order-payments/internal/contracts"
	"github.com/ecomsvc/order-payments/internal/model"
)

// fakePublisher fails the first failures calls, then records everything.
type fakePublisher struct {
	mu       sync.Mutex
	failures int
	sent     []contracts.Envelope
}

func (f *fakePublisher) Publish(_ context.Context, env contracts.Envelope) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return errors.New("broker unavailable")
	}
	f.sent = append(f.sent, env)
	return nil
}

func newTestDB(t *testing.T) *gorm.DB {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	assert.NoError(t, err)
	assert.NoError(t, db.AutoMigrate(&model.OutboxMessage{}))
	return db
}

func stageOrderCreated(t *testing.T, db *gorm.DB, createdAt time.Time) model.OutboxMessage {
	payload, err := json.Marshal(contracts.OrderCreated{
		OrderID: uuid.New(),
		UserID:  "u1",
		Amount:  decimal.NewFromInt(10),
	})
	assert.NoError(t, err)
	msg := model.OutboxMessage{
		ID:        uuid.New(),
		Kind:      string(contracts.KindOrderCreated),
		Payload:   string(payload),
		CreatedAt: createdAt,
	}
	assert.NoError(t, db.Create(&msg).Error)
	return msg
}

func TestWorker_EventualDeliveryAfterTransientFailures(t *testing.T) {
	db := newTestDB(t)
	stageOrderCreated(t, db, time.Now().UTC())

	pub := &fakePublisher{failures: 3}
	w := NewWorker(NewGormStore(db), pub, time.Millisecond, 20, zap.NewNop().Sugar())

	ctx := context.Background()
	// first three cycles fail, fourth succeeds
	for i := 0; i < 4; i++ {
		w.RunOnce(ctx)
	}
	assert.Len(t, pub.sent, 1)

	var stored model.OutboxMessage
	assert.NoError(t, db.First(&stored).Error)
	assert.NotNil(t, stored.SentAt)
}

func TestWorker_NoDoubleSend(t *testing.T) {
	db := newTestDB(t)
	stageOrderCreated(t, db, time.Now().UTC())

	pub := &fakePublisher{}
	w := NewWorker(NewGormStore(db), pub, time.Millisecond, 20, zap.NewNop().Sugar())

	ctx := context.Background()
	w.RunOnce(ctx)
	w.RunOnce(ctx)
	w.RunOnce(ctx)
	assert.Len(t, pub.sent, 1, "a sent record must never be re-selected")
}

func TestWorker_FailingRecordDoesNotBlockOthers(t *testing.T) {
	db := newTestDB(t)
	now := time.Now().UTC()

	// first row carries garbage, second is fine
	bad := model.OutboxMessage{
		ID:        uuid.New(),
		Kind:      string(contracts.KindOrderCreated),
		Payload:   "{not json",
		CreatedAt: now.Add(-time.Second),
	}
	assert.NoError(t, db.Create(&bad).Error)
	good := stageOrderCreated(t, db, now)

	pub := &fakePublisher{}
	w := NewWorker(NewGormStore(db), pub, time.Millisecond, 20, zap.NewNop().Sugar())
	w.RunOnce(context.Background())

	assert.Len(t, pub.sent, 1)
	assert.Equal(t, good.ID, pub.sent[0].MessageID)

	var stillPending model.OutboxMessage
	assert.NoError(t, db.Where("id = ?", bad.ID).First(&stillPending).Error)
	assert.Nil(t, stillPending.SentAt)
}

func TestWorker_BatchIsCreationOrdered(t *testing.T) {
	db := newTestDB(t)
	now := time.Now().UTC()
	second := stageOrderCreated(t, db, now)
	first := stageOrderCreated(t, db, now.Add(-time.Minute))

	pub := &fakePublisher{}
	w := NewWorker(NewGormStore(db), pub, time.Millisecond, 20, zap.NewNop().Sugar())
	w.RunOnce(context.Background())

	assert.Len(t, pub.sent, 2)
	assert.Equal(t, first.ID, pub.sent[0].MessageID)
	assert.Equal(t, second.ID, pub.sent[1].MessageID)
}

func TestWorker_PendingRowSurvivesRestart(t *testing.T) {
	db := newTestDB(t)
	stageOrderCreated(t, db, time.Now().UTC())

	// first worker instance dies before it ever runs; a fresh one picks
	// the row up because it lives in the table, not in memory
	_ = NewWorker(NewGormStore(db), &fakePublisher{}, time.Millisecond, 20, zap.NewNop().Sugar())

	pub := &fakePublisher{}
	fresh := NewWorker(NewGormStore(db), pub, time.Millisecond, 20, zap.NewNop().Sugar())
	fresh.RunOnce(context.Background())
	assert.Len(t, pub.sent, 1)
}

func TestGormStore_MarkSentIsCompareAndSet(t *testing.T) {
	db := newTestDB(t)
	msg := stageOrderCreated(t, db, time.Now().UTC())
	store := NewGormStore(db)

	ctx := context.Background()
	assert.NoError(t, store.MarkSent(ctx, msg.ID))

	var stored model.OutboxMessage
	assert.NoError(t, db.First(&stored, "id = ?", msg.ID).Error)
	firstStamp := *stored.SentAt

	// a second mark must not move the timestamp
	time.Sleep(2 * time.Millisecond)
	assert.NoError(t, store.MarkSent(ctx, msg.ID))
	assert.NoError(t, db.First(&stored, "id = ?", msg.ID).Error)
	assert.Equal(t, firstStamp, *stored.SentAt)
}
