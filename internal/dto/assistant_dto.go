package dto

import (
	"time"

	"github.com/google/uuid"
)

type CreateThreadRequest struct {
	Label string `json:"label"`
}

type CreateThreadResponse struct {
	ThreadId string `json:"thread_id"`
}

type ThreadResponse struct {
	ThreadId  string `json:"thread_id"`
	Label     string `json:"label"`
	Provider  string `json:"provider,omitempty"`
	Model     string `json:"model,omitempty"`
	UseLocal  bool   `json:"use_local"`
	IsActive  bool   `json:"is_active"`
	Streaming bool   `json:"streaming"`
	Messages  int    `json:"messages"`
}

type ThreadMessageResponse struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type ThreadHistoryResponse struct {
	ThreadId string                  `json:"thread_id"`
	Label    string                  `json:"label"`
	Messages []ThreadMessageResponse `json:"messages"`
	// Partial assistant output of an in-flight stream, if any.
	StreamingText string `json:"streaming_text,omitempty"`
	Streaming     bool   `json:"streaming"`
}

type SendQueryRequest struct {
	Text string `json:"text" validate:"required"`
	// Omitted thread id targets the active thread.
	ThreadId string `json:"thread_id,omitempty"`
}

type SendQueryResponse struct {
	ThreadId string `json:"thread_id"`
}

type SetActiveThreadRequest struct {
	ThreadId string `json:"thread_id" validate:"required"`
}

type SetThreadProviderRequest struct {
	ThreadId string `json:"thread_id" validate:"required"`
	Provider string `json:"provider" validate:"required,oneof=gemini huggingface"`
	Model    string `json:"model,omitempty"`
}

type SetThreadLocalRequest struct {
	ThreadId string `json:"thread_id" validate:"required"`
	UseLocal bool   `json:"use_local"`
}

type AbortRequest struct {
	ThreadId string `json:"thread_id,omitempty"`
}

type ExportConversationResponse struct {
	ConversationId uuid.UUID `json:"conversation_id"`
	ThreadId       string    `json:"thread_id"`
	Messages       int       `json:"messages"`
}

type ImportConversationRequest struct {
	ConversationId uuid.UUID `json:"conversation_id" validate:"required"`
	ThreadId       string    `json:"thread_id" validate:"required"`
}
