package dto

import (
	"time"

	"github.com/google/uuid"
)

type StartLearningRequest struct {
	DocumentId uuid.UUID `json:"document_id" validate:"required"`
	Depth      string    `json:"depth" validate:"required,oneof=shallow moderate deep"`
}

type LearningStepDTO struct {
	Kind     string `json:"kind"`
	Status   string `json:"status"`
	Insights int    `json:"insights"`
	Error    string `json:"error,omitempty"`
}

type LearningSessionResponse struct {
	SessionId          uuid.UUID         `json:"session_id"`
	DocumentId         uuid.UUID         `json:"document_id"`
	Status             string            `json:"status"`
	Depth              string            `json:"depth"`
	Iteration          int               `json:"iteration"`
	MaxIterations      int               `json:"max_iterations"`
	Progress           float64           `json:"progress"`
	Steps              []LearningStepDTO `json:"steps"`
	TotalInsights      int               `json:"total_insights"`
	TotalPagesCreated  int               `json:"total_pages_created"`
	TotalBlocksCreated int               `json:"total_blocks_created"`
	StartedAt          time.Time         `json:"started_at"`
	FinishedAt         *time.Time        `json:"finished_at,omitempty"`
}

type InsightResponse struct {
	Id        uuid.UUID `json:"id"`
	RunId     uuid.UUID `json:"run_id"`
	Iteration int       `json:"iteration"`
	Step      string    `json:"step"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type InsightSearchResult struct {
	InsightId  uuid.UUID `json:"insight_id"`
	Step       string    `json:"step"`
	Iteration  int       `json:"iteration"`
	Content    string    `json:"content"`
	Similarity float64   `json:"similarity"`
}

type LearningRunResponse struct {
	Id            uuid.UUID  `json:"id"`
	DocumentId    uuid.UUID  `json:"document_id"`
	Depth         string     `json:"depth"`
	Status        string     `json:"status"`
	Iteration     int        `json:"iteration"`
	MaxIterations int        `json:"max_iterations"`
	TotalInsights int        `json:"total_insights"`
	StartedAt     time.Time  `json:"started_at"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
}

type CreateDocumentRequest struct {
	Title   string `json:"title" validate:"required"`
	Content string `json:"content"`
}

type CreateDocumentResponse struct {
	Id uuid.UUID `json:"id"`
}

type ShowDocumentResponse struct {
	Id        uuid.UUID  `json:"id"`
	Title     string     `json:"title"`
	Content   string     `json:"content"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
}
