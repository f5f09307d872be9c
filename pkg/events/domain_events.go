package events

import (
	"time"

	"github.com/google/uuid"
)

// NewConversationExported is emitted after a thread's history is
// persisted as a conversation record.
func NewConversationExported(userId, conversationId uuid.UUID, threadKey string, messages int) Event {
	return BaseEvent{
		Type: "CONVERSATION_EXPORTED",
		Data: map[string]interface{}{
			"user_id":         userId.String(),
			"conversation_id": conversationId.String(),
			"thread_key":      threadKey,
			"messages":        messages,
		},
		OccurredAt: time.Now(),
	}
}

// NewLearningSessionCompleted is emitted when a learning session
// reaches the completed status.
func NewLearningSessionCompleted(userId, documentId, runId uuid.UUID, totalInsights int) Event {
	return BaseEvent{
		Type: "LEARNING_SESSION_COMPLETED",
		Data: map[string]interface{}{
			"user_id":        userId.String(),
			"document_id":    documentId.String(),
			"run_id":         runId.String(),
			"total_insights": totalInsights,
		},
		OccurredAt: time.Now(),
	}
}
