package ai

import (
	"context"
	"strings"
)

// Defaults are the server-side fallbacks used when a request carries no
// key or model of its own.
type Defaults struct {
	GeminiAPIKey  string
	OpenAIBaseURL string
	OpenAIAPIKey  string
	OllamaBaseURL string
	OllamaModel   string
}

// RegisterDefaults wires the gemini, openai and ollama factories.
func RegisterDefaults(r *Registry, d Defaults) {
	r.Register("gemini", func(ctx context.Context, cfg ProviderConfig) (Provider, error) {
		if strings.TrimSpace(cfg.APIKey) == "" {
			cfg.APIKey = d.GeminiAPIKey
		}
		return NewGeminiProvider(ctx, cfg)
	})

	r.Register("openai", func(ctx context.Context, cfg ProviderConfig) (Provider, error) {
		_ = ctx
		if strings.TrimSpace(cfg.APIKey) == "" {
			cfg.APIKey = d.OpenAIAPIKey
		}
		return NewOpenAIProvider(d.OpenAIBaseURL, cfg), nil
	})

	r.Register("ollama", func(ctx context.Context, cfg ProviderConfig) (Provider, error) {
		_ = ctx
		if strings.TrimSpace(cfg.Model) == "" {
			cfg.Model = d.OllamaModel
		}
		return NewOllamaProvider(d.OllamaBaseURL, cfg), nil
	})
}
