package specification

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ByUserID struct {
	UserID uuid.UUID
}

func (s ByUserID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("user_id = ?", s.UserID)
}

type ByConversationID struct {
	ConversationID uuid.UUID
}

func (s ByConversationID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("conversation_id = ?", s.ConversationID)
}

// ByThreadKey filters conversations by their in-memory thread slot.
type ByThreadKey struct {
	ThreadKey string
}

func (s ByThreadKey) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("thread_key = ?", s.ThreadKey)
}
