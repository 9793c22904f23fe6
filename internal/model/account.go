package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Account carries a version counter bumped on every write. Both mutation
// paths (deposit via HTTP, debit via the inbox processor) update the row
// with a compare-and-set on the version, never with a blind write.
type Account struct {
	ID        uuid.UUID       `gorm:"primaryKey;type:uuid"`
	UserID    string          `gorm:"size:64;not null;uniqueIndex"`
	Balance   decimal.Decimal `gorm:"type:numeric(20,8);not null;default:'0'"`
	Version   uint64          `gorm:"not null;default:0"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime"`
}

func (Account) TableName() string { return "account" }
