package entity

import (
	"time"

	"github.com/google/uuid"
)

// Conversation is the durable form of one assistant thread. ThreadKey
// is the in-memory slot id ("pfc-main" for the default thread).
type Conversation struct {
	Id        uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserId    uuid.UUID `gorm:"type:uuid;index"`
	ThreadKey string    `gorm:"index"`
	Label     string
	Provider  string
	Model     string
	UseLocal  bool
	CreatedAt time.Time
	UpdatedAt *time.Time
	DeletedAt *time.Time
	IsDeleted bool
}
