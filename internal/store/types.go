// Package store provides the persistence layer for the retrieval engine:
// the vector database (HNSW graph + SQLite chunk metadata) and the lexical
// BM25 index with its disk cache.
package store

import (
	"context"
	"time"
)

// ChunkType describes which extraction path produced a chunk.
type ChunkType string

const (
	ChunkTypeText  ChunkType = "text"
	ChunkTypeImage ChunkType = "image_description"
	ChunkTypeAudio ChunkType = "audio_transcription"
	ChunkTypeVideo ChunkType = "video_transcription"
)

// Chunk is the atomic indexed unit: one paragraph, one image caption, one
// audio segment. Chunks are immutable after ingestion; an update to a source
// file is modeled as delete-then-reinsert under the same SourceFile.
type Chunk struct {
	ID         string    // stable across lexical rebuilds; key in the vector store
	Content    string    // extracted text
	SourceFile string    // originating file name
	Page       int       // page number, 0 when the format has no pages
	ChunkType  ChunkType // text, image_description, audio_transcription, video_transcription
	ElementID  string    // human-readable locator, e.g. "tekst_3_2", "audio_segment_1_00m15s"
	CreatedAt  time.Time
}

// Document is the (id, content) pair the lexical index is built from.
type Document struct {
	ID      string
	Content string
}

// VectorResult is a single nearest-neighbor hit.
type VectorResult struct {
	ID       string
	Distance float32 // cosine distance, lower is more similar
	Score    float32 // similarity (1 - cosine distance, clamped to 0..1), higher is better
}

// LexicalResult is a single BM25 hit.
type LexicalResult struct {
	DocID string
	Score float64
}

// LexicalStats describes the state of a lexical index.
type LexicalStats struct {
	DocumentCount int
	TermCount     int
	AvgDocLength  float64
}

// LexicalIndex is the sparse keyword index over a full corpus snapshot.
//
// The index is a derived, disposable view of the vector store's content set:
// it is stale after any corpus mutation until Rebuild is called with a fresh
// snapshot. Rebuild replaces the whole index atomically; concurrent readers
// see either the fully-old or the fully-new state, never a partial one.
type LexicalIndex interface {
	// Rebuild replaces the index with one built from docs and persists the
	// result to the cache path. Building on zero documents yields an empty,
	// valid index.
	Rebuild(ctx context.Context, docs []*Document) error

	// Search returns up to topK ids with BM25 score > 0, best first.
	// Searching an unbuilt index returns an empty slice, never an error
	// caused by the missing index.
	Search(ctx context.Context, query string, topK int) ([]*LexicalResult, error)

	// LoadCache restores the index from its cache file. A missing or
	// corrupted cache is a miss (false), never an error.
	LoadCache() bool

	// Ready reports whether the index has been built or loaded.
	Ready() bool

	Stats() LexicalStats
	Close() error
}

// VectorIndex is the dense nearest-neighbor index inside the VectorDB.
type VectorIndex interface {
	Add(ctx context.Context, ids []string, vectors [][]float32) error
	Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error)
	Delete(ctx context.Context, ids []string) error
	Contains(id string) bool
	Count() int
	Save(path string) error
	Load(path string) error
	Close() error
}

// ChunkStore persists chunk records and their embeddings in SQLite.
// It is the source of truth for the corpus content set.
type ChunkStore interface {
	SaveChunks(ctx context.Context, chunks []*Chunk, embeddings [][]float32) error
	GetChunks(ctx context.Context, ids []string) ([]*Chunk, error)
	IDsBySource(ctx context.Context, sourceFile string) ([]string, error)
	Snapshot(ctx context.Context) ([]*Document, error)
	AllEmbeddings(ctx context.Context) (map[string][]float32, error)
	DeleteChunks(ctx context.Context, ids []string) error
	Count(ctx context.Context) (int, error)
	ListSources(ctx context.Context) (map[string]int, error)
	Close() error
}
