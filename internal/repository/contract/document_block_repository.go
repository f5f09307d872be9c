package contract

import (
	"context"

	"research-assistant-be/internal/entity"
	"research-assistant-be/internal/repository/specification"

	"github.com/google/uuid"
)

type DocumentBlockRepository interface {
	CreateBatch(ctx context.Context, blocks []*entity.DocumentBlock) error
	DeleteByDocumentId(ctx context.Context, documentId uuid.UUID) error
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.DocumentBlock, error)
	MaxOrderIndex(ctx context.Context, documentId uuid.UUID) (int, error)
}
