package unitofwork

import (
	"context"

	"research-assistant-be/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	ConversationRepository() contract.ConversationRepository
	ConversationMessageRepository() contract.ConversationMessageRepository
	DocumentRepository() contract.DocumentRepository
	DocumentBlockRepository() contract.DocumentBlockRepository
	InsightRepository() contract.InsightRepository
	InsightEmbeddingRepository() contract.InsightEmbeddingRepository
	LearningRunRepository() contract.LearningRunRepository
}
