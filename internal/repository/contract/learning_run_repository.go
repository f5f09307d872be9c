package contract

import (
	"context"

	"research-assistant-be/internal/entity"
	"research-assistant-be/internal/repository/specification"
)

type LearningRunRepository interface {
	Create(ctx context.Context, run *entity.LearningRun) error
	Update(ctx context.Context, run *entity.LearningRun) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.LearningRun, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.LearningRun, error)
}
