package provider

import (
	"context"
	"log/slog"
)

// FactoryConfig selects the LLM backend chain.
type FactoryConfig struct {
	// Backend forces a specific backend: "ollama", "openai" or "" for
	// auto-detection (LM Studio first, then Ollama).
	Backend string

	OllamaURL string
	OpenAIURL string
	Model     string
}

// NewProvider probes backends in order and returns the first reachable one.
// The chain mirrors local-first setups: an OpenAI-compatible server takes
// priority because it is only running when the user started it on purpose.
func NewProvider(ctx context.Context, cfg FactoryConfig, logger *slog.Logger) (Provider, error) {
	if logger == nil {
		logger = slog.Default()
	}

	tryOpenAI := cfg.Backend == "openai" || cfg.Backend == ""
	tryOllama := cfg.Backend == "ollama" || cfg.Backend == ""

	if tryOpenAI {
		p, err := NewOpenAICompatProvider(ctx, cfg.OpenAIURL, cfg.Model)
		if err == nil {
			logger.Info("using llm provider", "provider", p.Name())
			return p, nil
		}
		if cfg.Backend == "openai" {
			return nil, err
		}
		logger.Debug("openai-compatible server not reachable", "error", err)
	}

	if tryOllama {
		p, err := NewOllamaProvider(ctx, cfg.OllamaURL, cfg.Model)
		if err == nil {
			logger.Info("using llm provider", "provider", p.Name())
			return p, nil
		}
		if cfg.Backend == "ollama" {
			return nil, err
		}
		logger.Debug("ollama server not reachable", "error", err)
	}

	return nil, ErrNoProvider
}
