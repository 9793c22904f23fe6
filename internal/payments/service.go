package payments

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ecomsvc/order-payments/internal/model"
)

// ErrInvalidAmount means non-positive amount passed.
var ErrInvalidAmount = errors.New("amount must be positive")

// ErrEmptyUserID means no user id supplied.
var ErrEmptyUserID = errors.New("user id must not be empty")

// casRetries bounds the in-call re-read attempts after a version conflict.
// A deposit that keeps losing the race simply fails to the caller, who can
// retry the HTTP request.
const casRetries = 3

// Service covers the account API surface: open, deposit, balance.
type Service struct {
	repo RepositoryInterface
	log  *zap.SugaredLogger
}

func NewService(r RepositoryInterface, logger *zap.SugaredLogger) *Service {
	return &Service{repo: r, log: logger}
}

// CreateAccount opens a zero-balance account for the user.
func (s *Service) CreateAccount(ctx context.Context, userID string) (*model.Account, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrEmptyUserID
	}
	a := &model.Account{
		ID:      uuid.New(),
		UserID:  userID,
		Balance: decimal.Zero,
	}
	if err := s.repo.CreateAccount(ctx, a); err != nil {
		return nil, err
	}
	s.log.Infow("account created", "user_id", userID, "account_id", a.ID)
	return a, nil
}

// Deposit adds money through the same version compare-and-set the debit
// path uses, so concurrent deposits and debits never overwrite each other.
func (s *Service) Deposit(ctx context.Context, userID string, amt decimal.Decimal) (decimal.Decimal, error) {
	if amt.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, ErrInvalidAmount
	}
	var finalBal decimal.Decimal
	var err error
	for attempt := 0; attempt < casRetries; attempt++ {
		err = s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
			a, err := s.repo.GetAccountByUserID(ctx, tx, userID)
			if err != nil {
				return err
			}
			newBal := a.Balance.Add(amt)
			if err := s.repo.UpdateAccountBalance(ctx, tx, a.ID, newBal, a.Version); err != nil {
				return err
			}
			finalBal = newBal
			return nil
		})
		if !errors.Is(err, ErrOptimisticLock) {
			break
		}
		s.log.Warnw("deposit lost version race, retrying", "user_id", userID, "attempt", attempt+1)
	}
	if err != nil {
		return decimal.Zero, err
	}
	if err := s.repo.CacheBalance(ctx, userID, finalBal); err != nil {
		s.log.Warnw("cache balance", "user_id", userID, "err", err)
	}
	return finalBal, nil
}

// GetBalance returns the balance, cache first.
func (s *Service) GetBalance(ctx context.Context, userID string) (decimal.Decimal, error) {
	if bal, err := s.repo.GetCachedBalance(ctx, userID); err == nil {
		return bal, nil
	}
	a, err := s.repo.GetAccountByUserID(ctx, nil, userID)
	if err != nil {
		return decimal.Zero, err
	}
	if err := s.repo.CacheBalance(ctx, userID, a.Balance); err != nil {
		s.log.Warnw("cache balance", "user_id", userID, "err", err)
	}
	return a.Balance, nil
}
