// Package llm provides the reasoning-service clients used for enrichment.
package llm

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"specforge/internal/config"
	"specforge/internal/logging"
)

// Client is the minimal completion interface enrichment needs.
type Client interface {
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	Model() string
}

// NewClient builds the client for cfg.Provider. A missing credential is
// reported as a *config.ConfigurationError before any network call.
func NewClient(ctx context.Context, cfg config.LLMConfig, log *zap.Logger) (Client, error) {
	if err := cfg.RequireLLM(); err != nil {
		return nil, err
	}
	log = logging.OrNop(log)

	timeout := 120 * time.Second
	if cfg.Timeout != "" {
		d, err := time.ParseDuration(cfg.Timeout)
		if err != nil {
			return nil, &config.ConfigurationError{Field: "llm.timeout", Message: fmt.Sprintf("invalid duration %q", cfg.Timeout)}
		}
		timeout = d
	}

	switch cfg.Provider {
	case config.ProviderGemini:
		model := cfg.Model
		if model == "" {
			model = config.DefaultGeminiModel
		}
		return NewGeminiClient(ctx, GeminiConfig{APIKey: cfg.APIKey, Model: model, Timeout: timeout}, log)
	default:
		ac := DefaultAnthropicConfig(cfg.APIKey)
		if cfg.Model != "" {
			ac.Model = cfg.Model
		}
		if cfg.BaseURL != "" {
			ac.BaseURL = cfg.BaseURL
		}
		if cfg.MaxRetries > 0 {
			ac.MaxRetries = cfg.MaxRetries
		}
		ac.Timeout = timeout
		return NewAnthropicClient(ac, log), nil
	}
}
