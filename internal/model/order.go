package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusNew       OrderStatus = "NEW"
	OrderStatusFinished  OrderStatus = "FINISHED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

type Order struct {
	ID          uuid.UUID       `gorm:"primaryKey;type:uuid"`
	UserID      string          `gorm:"size:64;not null;index"`
	Amount      decimal.Decimal `gorm:"type:numeric(20,8);not null"`
	Description string          `gorm:"size:255"`
	Status      OrderStatus     `gorm:"size:16;not null;default:'NEW'"`
	CreatedAt   time.Time       `gorm:"autoCreateTime"`
}

func (Order) TableName() string { return "orders" }

// Terminal reports whether the order already reached a final status.
func (o Order) Terminal() bool {
	return o.Status == OrderStatusFinished || o.Status == OrderStatusCancelled
}
