package implementation

import (
	"context"
	"errors"

	"research-assistant-be/internal/entity"
	"research-assistant-be/internal/repository/contract"
	"research-assistant-be/internal/repository/specification"

	"gorm.io/gorm"
)

type LearningRunRepositoryImpl struct {
	db *gorm.DB
}

func NewLearningRunRepository(db *gorm.DB) contract.LearningRunRepository {
	return &LearningRunRepositoryImpl{
		db: db,
	}
}

func (r *LearningRunRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *LearningRunRepositoryImpl) Create(ctx context.Context, run *entity.LearningRun) error {
	return r.db.WithContext(ctx).Create(run).Error
}

func (r *LearningRunRepositoryImpl) Update(ctx context.Context, run *entity.LearningRun) error {
	return r.db.WithContext(ctx).Save(run).Error
}

func (r *LearningRunRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.LearningRun, error) {
	var run entity.LearningRun
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&run).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &run, nil
}

func (r *LearningRunRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.LearningRun, error) {
	var runs []*entity.LearningRun
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}
