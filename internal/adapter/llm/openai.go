package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/crosspost/crosspost-backend/internal/config"
)

const (
	openAIBaseURL      = "https://api.openai.com/v1"
	openAIDefaultModel = "gpt-4"
	defaultTemperature = 0.7
)

// OpenAI calls the chat-completions endpoint directly over HTTP.
type OpenAI struct {
	baseURL    string
	maxTokens  int
	httpClient *http.Client
}

// NewOpenAI creates the OpenAI adapter.
func NewOpenAI(cfg config.LLMConfig) *OpenAI {
	return &OpenAI{
		baseURL:    openAIBaseURL,
		maxTokens:  cfg.MaxTokens,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
	}
}

// NewOpenAIWithBaseURL creates an adapter pointing at a custom base URL (for testing).
func NewOpenAIWithBaseURL(cfg config.LLMConfig, baseURL string) *OpenAI {
	a := NewOpenAI(cfg)
	a.baseURL = baseURL
	return a
}

// DefaultModel returns the model used when the credential leaves it blank.
func (a *OpenAI) DefaultModel() string { return openAIDefaultModel }

type openAIChatRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Temperature float64         `json:"temperature"`
	MaxTokens   int             `json:"max_tokens"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message openAIMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Generate runs one user prompt through the chat-completions API.
func (a *OpenAI) Generate(ctx context.Context, apiKey, model, prompt string) (string, error) {
	body, err := json.Marshal(openAIChatRequest{
		Model:       model,
		Messages:    []openAIMessage{{Role: "user", Content: prompt}},
		Temperature: defaultTemperature,
		MaxTokens:   a.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("openai: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("openai: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("openai: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("openai: read body: %w", err)
	}

	var parsed openAIChatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("openai: decode response (status %d): %w", resp.StatusCode, err)
	}

	if resp.StatusCode != http.StatusOK {
		if parsed.Error != nil {
			return "", fmt.Errorf("openai: %s (status %d, type %s)", parsed.Error.Message, resp.StatusCode, parsed.Error.Type)
		}
		return "", fmt.Errorf("openai: unexpected status %d", resp.StatusCode)
	}

	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("openai: empty choices in response")
	}

	return parsed.Choices[0].Message.Content, nil
}
