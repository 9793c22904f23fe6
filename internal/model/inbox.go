package model

import (
	"time"

	"github.com/google/uuid"
)

// InboxMessage records a delivery before any business effect is computed.
// The primary key is the broker message id, so a redelivered message hits a
// conflict and is dropped instead of producing a second row.
type InboxMessage struct {
	ID         uuid.UUID `gorm:"primaryKey;type:uuid"`
	Kind       string    `gorm:"size:64;not null"`
	Payload    string    `gorm:"type:jsonb;not null"`
	ReceivedAt time.Time `gorm:"not null;index"`
	Processed  bool      `gorm:"not null;default:false"`
}

func (InboxMessage) TableName() string { return "event_inbox" }
