package service

import (
	"testing"

	"research-assistant-be/internal/entity"
	"research-assistant-be/internal/repository/contract"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSearchResultsPreservesSimilarityOrder(t *testing.T) {
	first := uuid.New()
	second := uuid.New()

	scored := []*contract.ScoredInsightEmbedding{
		{Embedding: entity.InsightEmbedding{InsightId: first}, Similarity: 0.92},
		{Embedding: entity.InsightEmbedding{InsightId: second}, Similarity: 0.71},
	}
	insights := []*entity.Insight{
		{Id: second, Step: "gap-analysis", Iteration: 1, Content: "second"},
		{Id: first, Step: "insight-synthesis", Iteration: 2, Content: "first"},
	}

	results := buildSearchResults(scored, insights)
	require.Len(t, results, 2)

	assert.Equal(t, first, results[0].InsightId)
	assert.Equal(t, "insight-synthesis", results[0].Step)
	assert.Equal(t, 2, results[0].Iteration)
	assert.Equal(t, "first", results[0].Content)
	assert.Equal(t, 0.92, results[0].Similarity)

	assert.Equal(t, second, results[1].InsightId)
	assert.Equal(t, 0.71, results[1].Similarity)
}

func TestBuildSearchResultsDropsOrphanedEmbeddings(t *testing.T) {
	kept := uuid.New()

	scored := []*contract.ScoredInsightEmbedding{
		{Embedding: entity.InsightEmbedding{InsightId: uuid.New()}, Similarity: 0.99},
		{Embedding: entity.InsightEmbedding{InsightId: kept}, Similarity: 0.80},
	}
	insights := []*entity.Insight{
		{Id: kept, Step: "concept-mapping", Content: "survivor"},
	}

	results := buildSearchResults(scored, insights)
	require.Len(t, results, 1)
	assert.Equal(t, kept, results[0].InsightId)
}

func TestBuildSearchResultsEmpty(t *testing.T) {
	assert.Empty(t, buildSearchResults(nil, nil))
}
