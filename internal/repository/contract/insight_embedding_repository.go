package contract

import (
	"context"

	"research-assistant-be/internal/entity"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

// ScoredInsightEmbedding pairs an embedding row with its cosine
// similarity to the query vector.
type ScoredInsightEmbedding struct {
	Embedding  entity.InsightEmbedding
	Similarity float64
}

type InsightEmbeddingRepository interface {
	Create(ctx context.Context, embedding *entity.InsightEmbedding) error
	DeleteByInsightId(ctx context.Context, insightId uuid.UUID) error
	// SearchSimilar returns the closest stored insights of one document
	// by cosine similarity, most similar first.
	SearchSimilar(ctx context.Context, query pgvector.Vector, limit int, documentId uuid.UUID) ([]*ScoredInsightEmbedding, error)
}
