package implementation

import (
	"context"

	"research-assistant-be/internal/entity"
	"research-assistant-be/internal/repository/contract"
	"research-assistant-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type DocumentBlockRepositoryImpl struct {
	db *gorm.DB
}

func NewDocumentBlockRepository(db *gorm.DB) contract.DocumentBlockRepository {
	return &DocumentBlockRepositoryImpl{
		db: db,
	}
}

func (r *DocumentBlockRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *DocumentBlockRepositoryImpl) CreateBatch(ctx context.Context, blocks []*entity.DocumentBlock) error {
	if len(blocks) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(blocks).Error
}

func (r *DocumentBlockRepositoryImpl) DeleteByDocumentId(ctx context.Context, documentId uuid.UUID) error {
	return r.db.WithContext(ctx).Where("document_id = ?", documentId).Delete(&entity.DocumentBlock{}).Error
}

func (r *DocumentBlockRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.DocumentBlock, error) {
	var blocks []*entity.DocumentBlock
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&blocks).Error; err != nil {
		return nil, err
	}
	return blocks, nil
}

func (r *DocumentBlockRepositoryImpl) MaxOrderIndex(ctx context.Context, documentId uuid.UUID) (int, error) {
	var max *int
	err := r.db.WithContext(ctx).
		Model(&entity.DocumentBlock{}).
		Where("document_id = ?", documentId).
		Select("MAX(order_index)").
		Scan(&max).Error
	if err != nil {
		return 0, err
	}
	if max == nil {
		return -1, nil
	}
	return *max, nil
}
