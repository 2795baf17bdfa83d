// Package ingest coordinates corpus mutations: embedding new chunks,
// writing them to the vector store, and rebuilding the lexical index so
// both views stay in sync.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/mzurek/szperacz/internal/embed"
	"github.com/mzurek/szperacz/internal/search"
	"github.com/mzurek/szperacz/internal/store"
)

const lockRetryInterval = 250 * time.Millisecond

// Coordinator serializes corpus mutations. A file lock guards against a
// second process ingesting into the same data directory; within a process
// the store's own locking suffices.
type Coordinator struct {
	db       *store.VectorDB
	engine   *search.Engine
	embedder embed.Embedder
	lock     *flock.Flock
	logger   *slog.Logger
}

// NewCoordinator creates a coordinator whose lock file lives in dataDir.
func NewCoordinator(db *store.VectorDB, engine *search.Engine, embedder embed.Embedder,
	dataDir string, logger *slog.Logger) (*Coordinator, error) {
	if db == nil || engine == nil || embedder == nil {
		return nil, fmt.Errorf("coordinator requires store, engine and embedder")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	return &Coordinator{
		db:       db,
		engine:   engine,
		embedder: embedder,
		lock:     flock.New(filepath.Join(dataDir, "ingest.lock")),
		logger:   logger,
	}, nil
}

// Ingest embeds the chunks, persists them, and rebuilds the lexical index.
// Existing chunk ids are overwritten.
func (c *Coordinator) Ingest(ctx context.Context, chunks []*store.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	unlock, err := c.acquire(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Content
	}
	vectors, err := c.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}

	if err := c.db.Add(ctx, chunks, vectors); err != nil {
		return fmt.Errorf("store chunks: %w", err)
	}
	c.logger.Info("chunks ingested", "count", len(chunks))

	return c.engine.RebuildLexicalIndex(ctx)
}

// Remove deletes every chunk of sourceFile and rebuilds the lexical index.
// Removing an unknown source is a no-op.
func (c *Coordinator) Remove(ctx context.Context, sourceFile string) (int, error) {
	unlock, err := c.acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer unlock()

	ids, err := c.db.DeleteBySource(ctx, sourceFile)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	c.logger.Info("source removed", "source", sourceFile, "chunks", len(ids))

	if err := c.engine.RebuildLexicalIndex(ctx); err != nil {
		return len(ids), err
	}
	return len(ids), nil
}

// Rebuild forces a lexical rebuild without mutating the corpus, used after
// cache loss or a version upgrade.
func (c *Coordinator) Rebuild(ctx context.Context) error {
	unlock, err := c.acquire(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	return c.engine.RebuildLexicalIndex(ctx)
}

func (c *Coordinator) acquire(ctx context.Context) (func(), error) {
	locked, err := c.lock.TryLockContext(ctx, lockRetryInterval)
	if err != nil {
		return nil, fmt.Errorf("acquire ingest lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("ingest lock held by another process")
	}
	return func() {
		if err := c.lock.Unlock(); err != nil {
			c.logger.Warn("releasing ingest lock failed", "error", err)
		}
	}, nil
}
