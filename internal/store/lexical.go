package store

import "fmt"

// LexicalBackend selects the lexical index implementation.
type LexicalBackend string

const (
	// LexicalBackendMemory scores with an in-memory Okapi BM25 structure and
	// persists a gob cache blob (default).
	LexicalBackendMemory LexicalBackend = "memory"

	// LexicalBackendBleve keeps the index in a Bleve directory on disk.
	LexicalBackendBleve LexicalBackend = "bleve"
)

// NewLexicalIndex creates a lexical index using the given backend.
// cachePath is the cache file (memory backend) or index directory (bleve
// backend); empty means purely in-memory with no persistence.
func NewLexicalIndex(backend string, cachePath string, cfg BM25Config) (LexicalIndex, error) {
	switch LexicalBackend(backend) {
	case LexicalBackendMemory, "":
		return NewMemoryLexicalIndex(cachePath, cfg), nil
	case LexicalBackendBleve:
		return NewBleveLexicalIndex(cachePath)
	default:
		return nil, fmt.Errorf("unknown lexical backend: %s (valid options: memory, bleve)", backend)
	}
}

// BM25Config holds the Okapi BM25 scoring parameters.
type BM25Config struct {
	// K1 is the term frequency saturation parameter (default: 1.2).
	K1 float64

	// B is the length normalization parameter (default: 0.75).
	B float64
}

// DefaultBM25Config returns the standard Okapi parameters.
func DefaultBM25Config() BM25Config {
	return BM25Config{K1: 1.2, B: 0.75}
}

func (c BM25Config) withDefaults() BM25Config {
	if c.K1 <= 0 {
		c.K1 = 1.2
	}
	if c.B <= 0 {
		c.B = 0.75
	}
	return c
}
