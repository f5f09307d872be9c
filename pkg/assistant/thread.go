package assistant

import (
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultThreadID is the reserved assistant thread. It always exists
	// and can never be closed.
	DefaultThreadID = "pfc-main"

	// MaxThreads caps concurrent threads per session context.
	MaxThreads = 8
)

// Role of a chat message author.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Provider identifies a remote model provider. The zero value means
// "inherit the global default".
type Provider string

const (
	ProviderGemini      Provider = "gemini"
	ProviderHuggingFace Provider = "huggingface"
)

// Message is one entry of a thread's history. Immutable once appended;
// corrections happen by appending new messages.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Thread is an independently addressable chat conversation.
type Thread struct {
	ID       string  `json:"id"`
	Label    string  `json:"label"`
	Provider Provider `json:"provider,omitempty"`
	Model    string  `json:"model,omitempty"`
	UseLocal bool    `json:"use_local"`

	// Messages in insertion order (= chronological order). Append-only.
	Messages []Message `json:"messages"`

	// ConversationID back-references a persisted conversation record,
	// set when the thread was loaded from or exported to storage.
	ConversationID *uuid.UUID `json:"conversation_id,omitempty"`
}

// StreamingState is the per-thread projection of the in-flight request.
type StreamingState struct {
	Text        string `json:"text"`
	IsStreaming bool   `json:"is_streaming"`
}
