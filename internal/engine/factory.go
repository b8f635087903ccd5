package engine

import (
	"fmt"

	"github.com/cngjsskaisme/folio/internal/config"
)

// NewGenerator builds the rate-limited Generator selected by cfg.LLM.
func NewGenerator(cfg config.Config) (Generator, error) {
	var g Generator
	switch cfg.LLM.Provider {
	case config.ProviderGemini:
		g = NewGeminiClient(cfg.Gemini.APIKey, cfg.LLM.Model, cfg.Embed.Model)
	case config.ProviderOllama:
		g = ModelGenerator{Engine: NewOllamaEngine(cfg.Ollama.BaseURL), Model: cfg.LLM.Model}
	case config.ProviderOpenRouter:
		g = NewOpenRouterClient(cfg.OpenRouter.APIKey, cfg.LLM.Model)
	default:
		return nil, &config.ConfigurationError{Key: "llm.provider", Reason: fmt.Sprintf("unknown provider %q", cfg.LLM.Provider)}
	}
	return NewRateLimited(g, cfg.LLM.RateLimit), nil
}

// NewEmbedder builds the embedding strategy selected by cfg.Embed.
func NewEmbedder(cfg config.Config) (Embedder, error) {
	switch cfg.Embed.Provider {
	case config.ProviderGemini:
		return NewGeminiClient(cfg.Gemini.APIKey, cfg.LLM.Model, cfg.Embed.Model), nil
	case config.ProviderOllama:
		return ModelEmbedder{Engine: NewOllamaEngine(cfg.Ollama.BaseURL), Model: cfg.Embed.Model}, nil
	default:
		return nil, &config.ConfigurationError{Key: "embed.provider", Reason: fmt.Sprintf("unknown provider %q", cfg.Embed.Provider)}
	}
}

// LocalModels returns the Ollama models cfg depends on, for EnsureReady.
func LocalModels(cfg config.Config) []string {
	var models []string
	if cfg.LLM.Provider == config.ProviderOllama {
		models = append(models, cfg.LLM.Model)
	}
	if cfg.Embed.Provider == config.ProviderOllama {
		models = append(models, cfg.Embed.Model)
	}
	return models
}
