package embed

import (
	"context"
	"log/slog"
)

// FactoryConfig selects and configures the embedding backend.
type FactoryConfig struct {
	// OllamaURL is the base URL of the Ollama server. Empty uses the
	// default local address.
	OllamaURL string

	// Model is the embedding model name.
	Model string

	// CacheSize bounds the LRU embedding cache. Zero uses the default.
	CacheSize int

	// DisableOllama skips the network backend entirely.
	DisableOllama bool
}

// NewEmbedder builds the embedding provider chain: Ollama when reachable,
// the static hash embedder otherwise. The result is always wrapped in the
// LRU cache. The fallback is logged at warn level because dense retrieval
// quality drops without a real model.
func NewEmbedder(ctx context.Context, cfg FactoryConfig, logger *slog.Logger) (Embedder, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var inner Embedder
	if !cfg.DisableOllama {
		ollama, err := NewOllamaEmbedder(ctx, cfg.OllamaURL, cfg.Model)
		if err != nil {
			logger.Warn("ollama embedder unavailable, falling back to static embeddings",
				"error", err)
		} else {
			logger.Info("using ollama embedder",
				"model", ollama.ModelID(), "dimensions", ollama.Dimensions())
			inner = ollama
		}
	}
	if inner == nil {
		inner = NewStaticEmbedder()
	}

	return NewCachedEmbedder(inner, cfg.CacheSize)
}
