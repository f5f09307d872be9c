package llm

import (
	"context"
)

// Message represents a chat message in a provider-agnostic format
type Message struct {
	Role    string // "user", "assistant", "system"
	Content string
}

// Chunk is one incremental piece of a streamed completion.
// A provider emits zero or more data chunks followed by exactly one
// terminal chunk (Done=true on success, Err set on failure), then
// closes the channel.
type Chunk struct {
	Delta string
	Done  bool
	Err   error
}

// Option allows for optional parameters like Temperature, MaxTokens, etc.
type Option func(*Options)

type Options struct {
	Temperature float64
	MaxTokens   int
	Model       string // Override default model
}

func WithTemperature(temp float64) Option {
	return func(o *Options) {
		o.Temperature = temp
	}
}

func WithModel(model string) Option {
	return func(o *Options) {
		o.Model = model
	}
}

func WithMaxTokens(n int) Option {
	return func(o *Options) {
		o.MaxTokens = n
	}
}

// LLMProvider defines the contract for any LLM backend
type LLMProvider interface {
	// Chat sends a chat history to the model and returns the response
	Chat(ctx context.Context, history []Message, options ...Option) (string, error)

	// Generate sends a single prompt to the model (convenience method)
	Generate(ctx context.Context, prompt string, options ...Option) (string, error)
}

// StreamingProvider is an LLMProvider whose backend supports incremental
// token delivery. Chunks arrive in the order the service produced them;
// cancelling ctx tears the stream down.
type StreamingProvider interface {
	LLMProvider

	// ChatStream sends a chat history and returns a channel of chunks.
	// The returned error covers request setup only; transport failures
	// mid-stream arrive as a terminal chunk with Err set.
	ChatStream(ctx context.Context, history []Message, options ...Option) (<-chan Chunk, error)
}
