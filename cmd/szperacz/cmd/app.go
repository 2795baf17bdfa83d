package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mzurek/szperacz/internal/config"
	"github.com/mzurek/szperacz/internal/embed"
	"github.com/mzurek/szperacz/internal/ingest"
	"github.com/mzurek/szperacz/internal/logging"
	"github.com/mzurek/szperacz/internal/search"
	"github.com/mzurek/szperacz/internal/store"
	"github.com/mzurek/szperacz/internal/telemetry"
)

// app bundles the wired engine components for a single CLI invocation.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	db       *store.VectorDB
	lexical  store.LexicalIndex
	embedder embed.Embedder
	engine   *search.Engine
	coord    *ingest.Coordinator
	metrics  *telemetry.QueryMetrics
}

// newApp loads configuration and wires the full pipeline. Callers must
// invoke close when done.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if dataDir != "" {
		cfg.Paths.DataDir = dataDir
	}

	logger, err := logging.Setup(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		File:   cfg.Logging.File,
	})
	if err != nil {
		return nil, err
	}

	embedder, err := embed.NewEmbedder(ctx, embed.FactoryConfig{
		OllamaURL:     cfg.Embeddings.OllamaURL,
		Model:         cfg.Embeddings.Model,
		CacheSize:     cfg.Embeddings.CacheSize,
		DisableOllama: cfg.Embeddings.DisableOllama,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("init embedder: %w", err)
	}

	chunkStore, err := store.NewSQLiteChunkStore(cfg.ChunkDBPath())
	if err != nil {
		return nil, err
	}

	vectorIndex, err := store.NewHNSWIndex(store.DefaultHNSWConfig(embedder.Dimensions()))
	if err != nil {
		chunkStore.Close()
		return nil, err
	}

	db, err := store.NewVectorDB(chunkStore, vectorIndex, cfg.GraphPath(), logger)
	if err != nil {
		chunkStore.Close()
		return nil, err
	}
	if err := db.Load(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("load vector store: %w", err)
	}

	lexical, err := store.NewLexicalIndex(cfg.Search.LexicalBackend, cfg.LexicalCachePath(),
		store.BM25Config{K1: cfg.Search.BM25K1, B: cfg.Search.BM25B})
	if err != nil {
		db.Close()
		return nil, err
	}
	if !lexical.LoadCache() {
		logger.Info("lexical cache miss, index starts empty until rebuild")
	}

	var reranker search.Reranker
	if cfg.Reranker.Endpoint != "" {
		reranker = search.NewHTTPReranker(search.RerankConfig{
			Endpoint: cfg.Reranker.Endpoint,
			Model:    cfg.Reranker.Model,
			Timeout:  cfg.Reranker.Timeout(),
		})
	}

	engine, err := search.NewEngine(db, lexical, embedder, reranker,
		search.EngineConfig{RRFK: cfg.Search.RRFK}, logger)
	if err != nil {
		db.Close()
		lexical.Close()
		return nil, err
	}

	coord, err := ingest.NewCoordinator(db, engine, embedder, cfg.Paths.DataDir, logger)
	if err != nil {
		db.Close()
		lexical.Close()
		return nil, err
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		db:       db,
		lexical:  lexical,
		embedder: embedder,
		engine:   engine,
		coord:    coord,
		metrics:  telemetry.NewQueryMetrics(0),
	}, nil
}

func (a *app) close() {
	if err := a.lexical.Close(); err != nil {
		a.logger.Warn("closing lexical index failed", "error", err)
	}
	if err := a.db.Close(); err != nil {
		a.logger.Warn("closing vector store failed", "error", err)
	}
	if err := a.embedder.Close(); err != nil {
		a.logger.Warn("closing embedder failed", "error", err)
	}
}
