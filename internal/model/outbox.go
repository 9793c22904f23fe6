package model

import (
	"time"

	"github.com/google/uuid"
)

// OutboxMessage rows are created inside the same transaction as the business
// mutation they announce and are append-only: the publisher only ever flips
// SentAt, nothing deletes them. The row id doubles as the broker message id.
type OutboxMessage struct {
	ID        uuid.UUID  `gorm:"primaryKey;type:uuid"`
	Kind      string     `gorm:"size:64;not null"`
	Payload   string     `gorm:"type:jsonb;not null"`
	CreatedAt time.Time  `gorm:"not null;index"`
	SentAt    *time.Time `gorm:"index"`
}

func (OutboxMessage) TableName() string { return "event_outbox" }
