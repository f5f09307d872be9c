package implementation

import (
	"context"

	"research-assistant-be/internal/entity"
	"research-assistant-be/internal/repository/contract"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

type InsightEmbeddingRepositoryImpl struct {
	db *gorm.DB
}

func NewInsightEmbeddingRepository(db *gorm.DB) contract.InsightEmbeddingRepository {
	return &InsightEmbeddingRepositoryImpl{
		db: db,
	}
}

func (r *InsightEmbeddingRepositoryImpl) Create(ctx context.Context, embedding *entity.InsightEmbedding) error {
	return r.db.WithContext(ctx).Create(embedding).Error
}

func (r *InsightEmbeddingRepositoryImpl) DeleteByInsightId(ctx context.Context, insightId uuid.UUID) error {
	return r.db.WithContext(ctx).Where("insight_id = ?", insightId).Delete(&entity.InsightEmbedding{}).Error
}

func (r *InsightEmbeddingRepositoryImpl) SearchSimilar(ctx context.Context, query pgvector.Vector, limit int, documentId uuid.UUID) ([]*contract.ScoredInsightEmbedding, error) {
	if limit <= 0 {
		limit = 5
	}

	// Cosine distance in pgvector is 1 - cosine_similarity, so
	// 1 - (embedding_value <=> query) is the similarity.
	type result struct {
		entity.InsightEmbedding
		Similarity float64
	}
	var results []result

	err := r.db.WithContext(ctx).
		Table("insight_embeddings").
		Select("insight_embeddings.*, 1 - (embedding_value <=> ?) as similarity", query).
		Joins("JOIN insights ON insights.id = insight_embeddings.insight_id").
		Where("insights.document_id = ?", documentId).
		Where("insight_embeddings.deleted_at IS NULL").
		Order("similarity DESC").
		Limit(limit).
		Scan(&results).Error
	if err != nil {
		return nil, err
	}

	scored := make([]*contract.ScoredInsightEmbedding, 0, len(results))
	for _, res := range results {
		scored = append(scored, &contract.ScoredInsightEmbedding{
			Embedding:  res.InsightEmbedding,
			Similarity: res.Similarity,
		})
	}
	return scored, nil
}
