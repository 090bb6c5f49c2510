// Package llm contains one adapter per text-generation vendor plus a
// registry that dispatches on the provider identifier. Adding a vendor
// means adding one adapter and one registry entry.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/crosspost/crosspost-backend/internal/config"
	"github.com/crosspost/crosspost-backend/internal/domain"
)

// Generator is the single-shot text-generation operation every vendor
// adapter implements. The API key is per-user data passed on each call,
// never stored in the adapter.
type Generator interface {
	Generate(ctx context.Context, apiKey, model, prompt string) (string, error)
	DefaultModel() string
}

// Registry dispatches generation calls to the adapter registered for a
// provider. Every call runs under the configured request timeout.
type Registry struct {
	log        *slog.Logger
	timeout    time.Duration
	generators map[domain.LLMProvider]Generator
}

// NewRegistry wires all supported vendor adapters.
func NewRegistry(logger *slog.Logger, cfg config.LLMConfig) *Registry {
	return &Registry{
		log:     logger.With("adapter", "llm"),
		timeout: cfg.RequestTimeout,
		generators: map[domain.LLMProvider]Generator{
			domain.ProviderOpenAI:    NewOpenAI(cfg),
			domain.ProviderAnthropic: NewAnthropic(cfg),
			domain.ProviderGemini:    NewGemini(cfg),
		},
	}
}

// Generate runs one prompt against the given provider. An empty model
// selects the adapter's default. Upstream failures come back as
// *domain.GenerationError; the API key never appears in the error chain.
func (r *Registry) Generate(ctx context.Context, provider domain.LLMProvider, apiKey, model, prompt string) (string, error) {
	gen, ok := r.generators[provider]
	if !ok {
		return "", fmt.Errorf("llm: unknown provider %q: %w", provider, domain.ErrValidation)
	}

	if model == "" {
		model = gen.DefaultModel()
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	text, err := gen.Generate(ctx, apiKey, model, prompt)
	if err != nil {
		r.log.ErrorContext(ctx, "generation failed",
			slog.String("provider", string(provider)),
			slog.String("model", model),
			slog.String("error", err.Error()),
		)
		return "", &domain.GenerationError{Provider: provider, Model: model, Err: err}
	}

	r.log.DebugContext(ctx, "generation completed",
		slog.String("provider", string(provider)),
		slog.String("model", model),
		slog.Duration("elapsed", time.Since(start)),
		slog.Int("chars", len(text)),
	)

	return text, nil
}
