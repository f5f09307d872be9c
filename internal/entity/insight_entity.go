package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Insight struct {
	Id         uuid.UUID `gorm:"type:uuid;primaryKey"`
	DocumentId uuid.UUID `gorm:"type:uuid;index"`
	RunId      uuid.UUID `gorm:"type:uuid;index"`
	Iteration  int
	Step       string
	Content    string
	Metadata   datatypes.JSON
	CreatedAt  time.Time
}
