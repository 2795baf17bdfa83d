package store

import (
	"context"
	"fmt"
	"log/slog"
	"os"
)

// VectorDB combines the durable chunk store with the in-memory HNSW graph.
// SQLite is the source of truth; the graph is a disposable acceleration
// structure that can always be rebuilt from the stored embeddings.
type VectorDB struct {
	chunks    ChunkStore
	index     VectorIndex
	graphPath string
	logger    *slog.Logger
}

// NewVectorDB wires a chunk store and a vector index together. graphPath is
// where the HNSW snapshot lives on disk; empty disables persistence.
func NewVectorDB(chunks ChunkStore, index VectorIndex, graphPath string, logger *slog.Logger) (*VectorDB, error) {
	if chunks == nil {
		return nil, fmt.Errorf("vectordb requires a chunk store")
	}
	if index == nil {
		return nil, fmt.Errorf("vectordb requires a vector index")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &VectorDB{chunks: chunks, index: index, graphPath: graphPath, logger: logger}, nil
}

// Add persists chunks with their embeddings and inserts them into the graph.
// SQLite commits first so a crash between the two steps loses nothing.
func (db *VectorDB) Add(ctx context.Context, chunks []*Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunks and vectors length mismatch: %d vs %d", len(chunks), len(vectors))
	}
	if len(chunks) == 0 {
		return nil
	}

	if err := db.chunks.SaveChunks(ctx, chunks, vectors); err != nil {
		return fmt.Errorf("persist chunks: %w", err)
	}

	ids := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
	}
	if err := db.index.Add(ctx, ids, vectors); err != nil {
		return fmt.Errorf("index vectors: %w", err)
	}
	return nil
}

// DeleteBySource removes every chunk belonging to sourceFile from both the
// store and the graph, returning the removed ids.
func (db *VectorDB) DeleteBySource(ctx context.Context, sourceFile string) ([]string, error) {
	ids, err := db.chunks.IDsBySource(ctx, sourceFile)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	if err := db.chunks.DeleteChunks(ctx, ids); err != nil {
		return nil, fmt.Errorf("delete chunks for %s: %w", sourceFile, err)
	}
	if err := db.index.Delete(ctx, ids); err != nil {
		return nil, fmt.Errorf("unindex chunks for %s: %w", sourceFile, err)
	}
	return ids, nil
}

// Get materializes chunks by id. Ids that no longer exist are dropped.
func (db *VectorDB) Get(ctx context.Context, ids []string) ([]*Chunk, error) {
	return db.chunks.GetChunks(ctx, ids)
}

// Query searches the graph for the k nearest chunks to the query vector.
func (db *VectorDB) Query(ctx context.Context, vector []float32, k int) ([]*VectorResult, error) {
	return db.index.Search(ctx, vector, k)
}

// Snapshot exposes the full corpus for lexical index rebuilds.
func (db *VectorDB) Snapshot(ctx context.Context) ([]*Document, error) {
	return db.chunks.Snapshot(ctx)
}

// Count returns the number of stored chunks.
func (db *VectorDB) Count(ctx context.Context) (int, error) {
	return db.chunks.Count(ctx)
}

// ListSources returns source files with their chunk counts.
func (db *VectorDB) ListSources(ctx context.Context) (map[string]int, error) {
	return db.chunks.ListSources(ctx)
}

// Save writes the HNSW snapshot to disk.
func (db *VectorDB) Save() error {
	if db.graphPath == "" {
		return nil
	}
	return db.index.Save(db.graphPath)
}

// Load restores the graph from its on-disk snapshot, falling back to a full
// rebuild from stored embeddings when the snapshot is missing or does not
// match the store.
func (db *VectorDB) Load(ctx context.Context) error {
	if db.graphPath != "" {
		if _, err := os.Stat(db.graphPath); err == nil {
			if err := db.index.Load(db.graphPath); err != nil {
				db.logger.Warn("vector snapshot unreadable, rebuilding graph",
					"path", db.graphPath, "error", err)
			} else if ok, err := db.snapshotMatchesStore(ctx); err != nil {
				return err
			} else if ok {
				return nil
			} else {
				db.logger.Warn("vector snapshot out of sync with chunk store, rebuilding graph",
					"path", db.graphPath)
			}
		}
	}
	return db.rebuildGraph(ctx)
}

func (db *VectorDB) snapshotMatchesStore(ctx context.Context) (bool, error) {
	stored, err := db.chunks.Count(ctx)
	if err != nil {
		return false, err
	}
	return db.index.Count() == stored, nil
}

func (db *VectorDB) rebuildGraph(ctx context.Context) error {
	embeddings, err := db.chunks.AllEmbeddings(ctx)
	if err != nil {
		return fmt.Errorf("load embeddings for rebuild: %w", err)
	}
	if len(embeddings) == 0 {
		return nil
	}

	ids := make([]string, 0, len(embeddings))
	vectors := make([][]float32, 0, len(embeddings))
	for id, vec := range embeddings {
		ids = append(ids, id)
		vectors = append(vectors, vec)
	}
	if err := db.index.Add(ctx, ids, vectors); err != nil {
		return fmt.Errorf("rebuild graph: %w", err)
	}
	db.logger.Info("vector graph rebuilt from chunk store", "vectors", len(ids))
	return nil
}

// Close saves the graph if possible and closes both layers.
func (db *VectorDB) Close() error {
	if err := db.Save(); err != nil {
		db.logger.Warn("saving vector snapshot on close failed", "error", err)
	}
	indexErr := db.index.Close()
	storeErr := db.chunks.Close()
	if indexErr != nil {
		return indexErr
	}
	return storeErr
}
