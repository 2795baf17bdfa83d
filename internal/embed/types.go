// Package embed provides text embedding providers for dense retrieval.
//
// The primary provider is an Ollama HTTP backend; a deterministic static
// embedder serves as the always-available fallback so the engine can run
// degraded (lexical quality only on the dense side) without a model server.
package embed

import (
	"context"
	"errors"
)

// Embedder converts texts to dense vectors.
type Embedder interface {
	// Embed returns one vector per input text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the vector dimension this embedder produces.
	Dimensions() int

	// ModelID identifies the backing model, used for cache keying.
	ModelID() string

	// Close releases any resources held by the embedder.
	Close() error
}

// ErrNoEmbedder indicates that no provider in the fallback chain could be
// initialized.
var ErrNoEmbedder = errors.New("no embedding provider available")
