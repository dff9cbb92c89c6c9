// Package ai provides factory functions for creating AI service adapters.
package ai

import (
	"context"
	"fmt"
	"time"

	ollamaembed "github.com/custodia-labs/docchat/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/custodia-labs/docchat/internal/adapters/driven/embedding/openai"
	"github.com/custodia-labs/docchat/internal/adapters/driven/llm/instrumented"
	ollamallm "github.com/custodia-labs/docchat/internal/adapters/driven/llm/ollama"
	openaillm "github.com/custodia-labs/docchat/internal/adapters/driven/llm/openai"
	"github.com/custodia-labs/docchat/internal/config"
	"github.com/custodia-labs/docchat/internal/core/domain"
	"github.com/custodia-labs/docchat/internal/core/ports/driven"
)

// pingTimeout is the maximum time to wait for service connectivity validation.
const pingTimeout = 5 * time.Second

// CreateAndValidateEmbeddingService creates an embedding service and validates connectivity.
func CreateAndValidateEmbeddingService(
	ctx context.Context, cfg config.EmbeddingConfig, dimension int,
) (driven.EmbeddingService, error) {
	svc, err := CreateEmbeddingService(cfg, dimension)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
	}

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := svc.Ping(ctx); err != nil {
		svc.Close()
		return nil, fmt.Errorf("%w: %s at %s unreachable (%w). Check [embedding] in the config",
			domain.ErrEmbeddingUnavailable, cfg.Provider, cfg.BaseURL, err)
	}
	return svc, nil
}

// CreateAndValidateLLMService creates an LLM service and validates connectivity.
func CreateAndValidateLLMService(
	ctx context.Context, cfg config.LLMConfig, metrics *instrumented.Metrics, opts ...instrumented.Option,
) (driven.LLMService, error) {
	svc, err := CreateLLMService(cfg, metrics, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrLLMUnavailable, err)
	}

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := svc.Ping(ctx); err != nil {
		svc.Close()
		return nil, fmt.Errorf("%w: %s at %s unreachable (%w). Check [llm] in the config",
			domain.ErrLLMUnavailable, cfg.Provider, cfg.BaseURL, err)
	}
	return svc, nil
}

// CreateEmbeddingService creates the embedding service named by cfg.Provider.
// dimension is the store dimension the service is expected to produce.
func CreateEmbeddingService(cfg config.EmbeddingConfig, dimension int) (driven.EmbeddingService, error) {
	switch cfg.Provider {
	case config.ProviderOllama:
		return ollamaembed.NewEmbeddingService(ollamaembed.Config{
			BaseURL:           cfg.BaseURL,
			Model:             cfg.Model,
			Timeout:           cfg.Timeout.Duration,
			Dimensions:        dimension,
			RequestsPerSecond: cfg.RequestsPerSecond,
		}), nil

	case config.ProviderOpenAI:
		return openaiembed.NewEmbeddingService(openaiembed.Config{
			APIKey:            cfg.APIKey,
			BaseURL:           cfg.BaseURL,
			Model:             cfg.Model,
			Timeout:           cfg.Timeout.Duration,
			Dimensions:        dimension,
			RequestsPerSecond: cfg.RequestsPerSecond,
		})

	default:
		return nil, fmt.Errorf("unsupported embedding provider: %q", cfg.Provider)
	}
}

// CreateLLMService creates the chat model named by cfg.Provider, wrapped
// with logging and metrics.
func CreateLLMService(cfg config.LLMConfig, metrics *instrumented.Metrics, opts ...instrumented.Option) (driven.LLMService, error) {
	var svc driven.LLMService

	switch cfg.Provider {
	case config.ProviderOllama:
		svc = ollamallm.NewLLMService(ollamallm.LLMConfig{
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: cfg.Timeout.Duration,
		})

	case config.ProviderOpenAI:
		s, err := openaillm.NewLLMService(openaillm.LLMConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: cfg.Timeout.Duration,
		})
		if err != nil {
			return nil, err
		}
		svc = s

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %q", cfg.Provider)
	}

	return instrumented.New(svc, metrics, opts...), nil
}
