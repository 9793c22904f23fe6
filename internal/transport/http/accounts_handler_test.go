package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/ecomsvc/order-payments/internal/model"
	"github.com/ecomsvc/order-payments/internal/payments"
)

// stuckRepo loses every balance version race.
type stuckRepo struct {
	payments.RepositoryInterface
}

func (stuckRepo) UpdateAccountBalance(ctx context.Context, tx *gorm.DB, id uuid.UUID, newBalance decimal.Decimal, oldVersion uint64) error {
	return payments.ErrOptimisticLock
}

func newAccountsRouter(t *testing.T) (*gin.Engine, *payments.Service) {
	gin.SetMode(gin.TestMode)
	dsn := "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	assert.NoError(t, err)
	assert.NoError(t, db.AutoMigrate(&model.Account{}))
	repo := payments.NewRepository(db, nil, zap.NewNop().Sugar())
	svc := payments.NewService(stuckRepo{RepositoryInterface: repo}, zap.NewNop().Sugar())
	r := gin.New()
	RegisterAccountHandlers(r, svc)
	return r, svc
}

func TestDepositHandler_ExhaustedVersionRaceReturns409(t *testing.T) {
	r, svc := newAccountsRouter(t)
	_, err := svc.CreateAccount(context.Background(), "alice")
	assert.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/accounts/alice/deposit", strings.NewReader(`{"amount":"10"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	// a contested account is a retryable conflict, not a bad request
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "retry")
}

func TestDepositHandler_UnknownAccountReturns404(t *testing.T) {
	r, _ := newAccountsRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/accounts/nobody/deposit", strings.NewReader(`{"amount":"10"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
