package models

import (
	"time"

	"gorm.io/datatypes"
)

// EventLog is the append-only analytics audit trail. Rows are never updated
// or deleted by the service.
type EventLog struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	UserID       uint           `gorm:"index;not null" json:"user_id"`
	EventType    string         `gorm:"type:varchar(100);not null;index" json:"event_type"`
	EventPayload datatypes.JSON `gorm:"not null" json:"event_payload"`
	CreatedAt    time.Time      `gorm:"autoCreateTime;index" json:"created_at"`
}
