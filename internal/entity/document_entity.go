package entity

import (
	"time"

	"github.com/google/uuid"
)

type Document struct {
	Id        uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserId    uuid.UUID `gorm:"type:uuid;index"`
	Title     string
	Content   string
	CreatedAt time.Time
	UpdatedAt *time.Time
	DeletedAt *time.Time
	IsDeleted bool
}

// DocumentBlock is one appended content unit. Learning runs materialize
// insights as blocks; OrderIndex keeps append order stable.
type DocumentBlock struct {
	Id         uuid.UUID `gorm:"type:uuid;primaryKey"`
	DocumentId uuid.UUID `gorm:"type:uuid;index"`
	OrderIndex int
	Kind       string
	Content    string
	InsightId  *uuid.UUID `gorm:"type:uuid;index"`
	CreatedAt  time.Time
}
