package llm

import (
	"context"
	"fmt"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/crosspost/crosspost-backend/internal/config"
)

const anthropicDefaultModel = "claude-3-sonnet-20240229"

// Anthropic calls the Messages API through the official SDK. A client is
// built per call because the API key belongs to the requesting user.
type Anthropic struct {
	maxTokens int64
}

// NewAnthropic creates the Anthropic adapter.
func NewAnthropic(cfg config.LLMConfig) *Anthropic {
	return &Anthropic{maxTokens: int64(cfg.MaxTokens)}
}

// DefaultModel returns the model used when the credential leaves it blank.
func (a *Anthropic) DefaultModel() string { return anthropicDefaultModel }

// Generate runs one user prompt through the Messages API.
func (a *Anthropic) Generate(ctx context.Context, apiKey, model, prompt string) (string, error) {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))

	msg, err := client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: a.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic: message call: %w", err)
	}

	if len(msg.Content) == 0 {
		return "", fmt.Errorf("anthropic: empty response content")
	}

	return msg.Content[0].Text, nil
}
