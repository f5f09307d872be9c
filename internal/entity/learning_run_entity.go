package entity

import (
	"time"

	"github.com/google/uuid"
)

// LearningRun is the audit row of one learning session; updated as the
// in-memory orchestrator advances and finalized on the terminal
// transition.
type LearningRun struct {
	Id                 uuid.UUID `gorm:"type:uuid;primaryKey"`
	DocumentId         uuid.UUID `gorm:"type:uuid;index"`
	UserId             uuid.UUID `gorm:"type:uuid;index"`
	Depth              string
	Status             string
	Iteration          int
	MaxIterations      int
	TotalInsights      int
	TotalPagesCreated  int
	TotalBlocksCreated int
	Error              string
	StartedAt          time.Time
	FinishedAt         *time.Time
}
