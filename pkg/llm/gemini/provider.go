package gemini

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"research-assistant-be/pkg/llm"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

type GeminiProvider struct {
	apiKey  string
	baseURL string
	model   string
}

var _ llm.StreamingProvider = &GeminiProvider{}

func NewGeminiProvider(apiKey, model string) *GeminiProvider {
	if model == "" {
		model = "gemini-1.5-flash"
	}
	return &GeminiProvider{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		model:   model,
	}
}

// --- Request/Response structs ---

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string        `json:"role,omitempty"`
	Parts []*geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents         []*geminiContent  `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature,omitempty"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (p *GeminiProvider) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	payload, model, err := p.buildPayload(history, options...)
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", p.baseURL, model, p.apiKey)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("gemini request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gemini api error (status %d): %s", resp.StatusCode, string(bodyBytes))
	}

	var geminiResp geminiResponse
	if err := json.Unmarshal(bodyBytes, &geminiResp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if geminiResp.Error != nil {
		return "", fmt.Errorf("gemini api returned error: %s", geminiResp.Error.Message)
	}
	if len(geminiResp.Candidates) == 0 || len(geminiResp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("empty candidates from gemini api")
	}

	return geminiResp.Candidates[0].Content.Parts[0].Text, nil
}

// ChatStream uses streamGenerateContent with alt=sse: each "data:" event
// carries a geminiResponse fragment whose parts hold the next text delta.
func (p *GeminiProvider) ChatStream(ctx context.Context, history []llm.Message, options ...llm.Option) (<-chan llm.Chunk, error) {
	payload, model, err := p.buildPayload(history, options...)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/models/%s:streamGenerateContent?alt=sse&key=%s", p.baseURL, model, p.apiKey)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("gemini api error (status %d): %s", resp.StatusCode, string(bodyBytes))
	}

	out := make(chan llm.Chunk)
	go func() {
		defer close(out)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || !strings.HasPrefix(line, "data:") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))

			var fragment geminiResponse
			if err := json.Unmarshal([]byte(data), &fragment); err != nil {
				out <- llm.Chunk{Err: fmt.Errorf("malformed stream event: %w", err)}
				return
			}
			if fragment.Error != nil {
				out <- llm.Chunk{Err: fmt.Errorf("gemini api returned error: %s", fragment.Error.Message)}
				return
			}
			if len(fragment.Candidates) == 0 {
				continue
			}

			for _, part := range fragment.Candidates[0].Content.Parts {
				if part.Text == "" {
					continue
				}
				select {
				case out <- llm.Chunk{Delta: part.Text}:
				case <-ctx.Done():
					out <- llm.Chunk{Err: ctx.Err()}
					return
				}
			}
		}

		if err := scanner.Err(); err != nil {
			out <- llm.Chunk{Err: fmt.Errorf("read stream: %w", err)}
			return
		}
		// Gemini closes the SSE stream after the last fragment.
		out <- llm.Chunk{Done: true}
	}()

	return out, nil
}

func (p *GeminiProvider) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	return p.Chat(ctx, []llm.Message{{Role: "user", Content: prompt}}, options...)
}

func (p *GeminiProvider) buildPayload(history []llm.Message, options ...llm.Option) ([]byte, string, error) {
	opts := &llm.Options{
		Model: p.model,
	}
	for _, o := range options {
		o(opts)
	}

	// Gemini uses "model" where OpenAI-style APIs use "assistant"
	contents := make([]*geminiContent, 0, len(history))
	for _, msg := range history {
		role := msg.Role
		if role == "assistant" || role == "system" {
			role = "model"
		}
		contents = append(contents, &geminiContent{
			Role:  role,
			Parts: []*geminiPart{{Text: msg.Content}},
		})
	}

	req := geminiRequest{Contents: contents}
	if opts.Temperature > 0 || opts.MaxTokens > 0 {
		req.GenerationConfig = &generationConfig{
			Temperature:     opts.Temperature,
			MaxOutputTokens: opts.MaxTokens,
		}
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, "", fmt.Errorf("marshal request: %w", err)
	}
	return payload, opts.Model, nil
}
