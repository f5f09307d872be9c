package entity

import (
	"time"

	"github.com/google/uuid"
)

type ConversationMessage struct {
	Id             uuid.UUID `gorm:"type:uuid;primaryKey"`
	ConversationId uuid.UUID `gorm:"type:uuid;index"`
	Role           string
	Content        string
	CreatedAt      time.Time
}
