package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/crosspost/crosspost-backend/internal/config"
)

const geminiDefaultModel = "gemini-pro"

// Gemini calls the Gemini API through the google genai SDK. A client is
// built per call because the API key belongs to the requesting user.
type Gemini struct {
	maxTokens int32
}

// NewGemini creates the Gemini adapter.
func NewGemini(cfg config.LLMConfig) *Gemini {
	return &Gemini{maxTokens: int32(cfg.MaxTokens)}
}

// DefaultModel returns the model used when the credential leaves it blank.
func (g *Gemini) DefaultModel() string { return geminiDefaultModel }

// Generate runs one user prompt through the Gemini generate-content API.
func (g *Gemini) Generate(ctx context.Context, apiKey, model, prompt string) (string, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return "", fmt.Errorf("gemini: create client: %w", err)
	}

	result, err := client.Models.GenerateContent(ctx, model, genai.Text(prompt), &genai.GenerateContentConfig{
		MaxOutputTokens: g.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("gemini: generate content: %w", err)
	}

	text := result.Text()
	if text == "" {
		return "", fmt.Errorf("gemini: empty response text")
	}

	return text, nil
}
