package implementation

import (
	"context"

	"research-assistant-be/internal/entity"
	"research-assistant-be/internal/repository/contract"
	"research-assistant-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type InsightRepositoryImpl struct {
	db *gorm.DB
}

func NewInsightRepository(db *gorm.DB) contract.InsightRepository {
	return &InsightRepositoryImpl{
		db: db,
	}
}

func (r *InsightRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *InsightRepositoryImpl) CreateBatch(ctx context.Context, insights []*entity.Insight) error {
	if len(insights) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(insights).Error
}

func (r *InsightRepositoryImpl) DeleteByDocumentId(ctx context.Context, documentId uuid.UUID) error {
	return r.db.WithContext(ctx).Where("document_id = ?", documentId).Delete(&entity.Insight{}).Error
}

func (r *InsightRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Insight, error) {
	var insights []*entity.Insight
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&insights).Error; err != nil {
		return nil, err
	}
	return insights, nil
}

func (r *InsightRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx).Model(&entity.Insight{}), specs...)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
