package factory

import (
	"fmt"

	"research-assistant-be/pkg/llm"
	"research-assistant-be/pkg/llm/gemini"
	"research-assistant-be/pkg/llm/huggingface"
	"research-assistant-be/pkg/llm/ollama"
)

// Config carries the credentials and endpoints the factory needs to
// construct any supported provider.
type Config struct {
	OllamaBaseURL  string
	HuggingFaceKey string
	GeminiKey      string
}

// NewStreamingProvider builds a streaming-capable provider for the given
// provider type. modelName may be empty to use the provider default.
func NewStreamingProvider(providerType, modelName string, cfg Config) (llm.StreamingProvider, error) {
	switch providerType {
	case "ollama":
		baseURL := cfg.OllamaBaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434" // Default
		}
		return ollama.NewOllamaProvider(baseURL, modelName), nil
	case "huggingface":
		return huggingface.NewHuggingFaceProvider(cfg.HuggingFaceKey, "", modelName), nil
	case "gemini":
		return gemini.NewGeminiProvider(cfg.GeminiKey, modelName), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", providerType)
	}
}
