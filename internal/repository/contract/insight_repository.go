package contract

import (
	"context"

	"research-assistant-be/internal/entity"
	"research-assistant-be/internal/repository/specification"

	"github.com/google/uuid"
)

type InsightRepository interface {
	CreateBatch(ctx context.Context, insights []*entity.Insight) error
	DeleteByDocumentId(ctx context.Context, documentId uuid.UUID) error
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Insight, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}
