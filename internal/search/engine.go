package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mzurek/szperacz/internal/embed"
	"github.com/mzurek/szperacz/internal/store"
)

// EngineConfig tunes the retrieval pipeline.
type EngineConfig struct {
	// RRFK is the reciprocal rank fusion constant. Zero uses the default.
	RRFK int
}

// Engine runs the hybrid retrieval pipeline. The dense stage is mandatory;
// the lexical stage and the reranker degrade gracefully when they fail, so
// a broken sidecar never turns a query into an error.
type Engine struct {
	db       *store.VectorDB
	lexical  store.LexicalIndex
	embedder embed.Embedder
	reranker Reranker
	config   EngineConfig
	logger   *slog.Logger
}

// NewEngine wires the pipeline. db and embedder are required; lexical and
// reranker may be nil, which pins the engine to dense-only retrieval.
func NewEngine(db *store.VectorDB, lexical store.LexicalIndex, embedder embed.Embedder,
	reranker Reranker, cfg EngineConfig, logger *slog.Logger) (*Engine, error) {
	if db == nil {
		return nil, fmt.Errorf("%w: nil vector store", ErrStoreUnavailable)
	}
	if embedder == nil {
		return nil, fmt.Errorf("engine requires an embedder")
	}
	if reranker == nil {
		reranker = NoOpReranker{}
	}
	if cfg.RRFK <= 0 {
		cfg.RRFK = DefaultRRFK
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		db:       db,
		lexical:  lexical,
		embedder: embedder,
		reranker: reranker,
		config:   cfg,
		logger:   logger,
	}, nil
}

// Search retrieves the chunks most relevant to query.
func (e *Engine) Search(ctx context.Context, query string, opts Options) ([]*Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	opts = opts.withDefaults()

	start := time.Now()
	var results []*Result
	var err error
	switch opts.Mode {
	case ModeLexical:
		results, err = e.searchLexical(ctx, query, opts)
	case ModeVector:
		results, err = e.searchVector(ctx, query, opts)
	default:
		results, err = e.searchHybrid(ctx, query, opts)
	}
	if err != nil {
		return nil, err
	}

	e.logger.Debug("search complete",
		"mode", string(opts.Mode),
		"results", len(results),
		"duration_ms", time.Since(start).Milliseconds())
	return results, nil
}

func (e *Engine) searchHybrid(ctx context.Context, query string, opts Options) ([]*Result, error) {
	var vectorIDs, lexicalIDs []string

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ids, err := e.denseStage(gctx, query)
		if err != nil {
			return err
		}
		vectorIDs = ids
		return nil
	})
	g.Go(func() error {
		// Lexical failure degrades to dense-only rather than failing
		// the query.
		ids, err := e.lexicalStage(gctx, query)
		if err != nil {
			e.logger.Warn("lexical stage failed, degrading to dense-only", "error", err)
			return nil
		}
		lexicalIDs = ids
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var fused []FusedDoc
	switch {
	case len(lexicalIDs) == 0:
		fused = FuseRankings(e.config.RRFK, vectorIDs)
	case len(vectorIDs) == 0:
		fused = FuseRankings(e.config.RRFK, lexicalIDs)
	default:
		fused = FuseRankings(e.config.RRFK, vectorIDs, lexicalIDs)
	}
	if len(fused) > candidatePool {
		fused = fused[:candidatePool]
	}

	results, err := e.materialize(ctx, fused)
	if err != nil {
		return nil, err
	}

	if opts.UseReranker {
		if _, noop := e.reranker.(NoOpReranker); !noop {
			results = e.rerank(ctx, query, results, opts.TopK)
		}
	}
	// Media prioritization is the last ordering pass so a reranker
	// cannot undo it.
	results = ApplyMediaBoost(query, results)
	if len(results) > opts.TopK {
		results = results[:opts.TopK]
	}
	return results, nil
}

func (e *Engine) searchVector(ctx context.Context, query string, opts Options) ([]*Result, error) {
	vectors, err := e.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %v", ErrRetrievalFailed, err)
	}
	hits, err := e.db.Query(ctx, vectors[0], opts.TopK)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRetrievalFailed, err)
	}

	ids := make([]string, len(hits))
	scores := make(map[string]float64, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
		scores[h.ID] = float64(h.Score)
	}

	results, err := e.materializeIDs(ctx, ids, scores)
	if err != nil {
		return nil, err
	}
	if len(results) > opts.TopK {
		results = results[:opts.TopK]
	}
	return results, nil
}

func (e *Engine) searchLexical(ctx context.Context, query string, opts Options) ([]*Result, error) {
	if e.lexical == nil {
		return nil, fmt.Errorf("%w: no lexical index configured", ErrStoreUnavailable)
	}
	hits, err := e.lexical.Search(ctx, query, opts.TopK)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRetrievalFailed, err)
	}

	ids := make([]string, len(hits))
	scores := make(map[string]float64, len(hits))
	for i, h := range hits {
		ids[i] = h.DocID
		scores[h.DocID] = h.Score
	}

	results, err := e.materializeIDs(ctx, ids, scores)
	if err != nil {
		return nil, err
	}
	if len(results) > opts.TopK {
		results = results[:opts.TopK]
	}
	return results, nil
}

// denseStage embeds the query and returns the nearest chunk ids. Any
// failure here is fatal for the query.
func (e *Engine) denseStage(ctx context.Context, query string) ([]string, error) {
	vectors, err := e.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %v", ErrRetrievalFailed, err)
	}
	hits, err := e.db.Query(ctx, vectors[0], stageDepth)
	if err != nil {
		return nil, fmt.Errorf("%w: vector search: %v", ErrRetrievalFailed, err)
	}
	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
	}
	return ids, nil
}

func (e *Engine) lexicalStage(ctx context.Context, query string) ([]string, error) {
	if e.lexical == nil || !e.lexical.Ready() {
		return nil, nil
	}
	hits, err := e.lexical.Search(ctx, query, stageDepth)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.DocID
	}
	return ids, nil
}

// materialize loads the fused candidates from the chunk store. Ids that
// vanished between ranking and loading are dropped without complaint.
func (e *Engine) materialize(ctx context.Context, fused []FusedDoc) ([]*Result, error) {
	ids := make([]string, len(fused))
	scores := make(map[string]float64, len(fused))
	for i, f := range fused {
		ids[i] = f.ID
		scores[f.ID] = f.Score
	}
	return e.materializeIDs(ctx, ids, scores)
}

func (e *Engine) materializeIDs(ctx context.Context, ids []string, scores map[string]float64) ([]*Result, error) {
	chunks, err := e.db.Get(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("%w: load chunks: %v", ErrRetrievalFailed, err)
	}
	results := make([]*Result, 0, len(chunks))
	for _, c := range chunks {
		score := scores[c.ID]
		results = append(results, &Result{
			Chunk:       c,
			Score:       score,
			FusionScore: score,
		})
	}
	return results, nil
}

// rerank reorders candidates with the cross-encoder. On failure the fused
// order stands, same as a search with the reranker disabled.
func (e *Engine) rerank(ctx context.Context, query string, results []*Result, topN int) []*Result {
	if len(results) == 0 {
		return results
	}

	docs := make([]string, len(results))
	for i, r := range results {
		docs[i] = r.Chunk.Content
	}

	ranked, err := e.reranker.Rerank(ctx, query, docs, topN)
	if err != nil {
		e.logger.Warn("reranker failed, keeping fused order", "error", err)
		return results
	}

	reordered := make([]*Result, 0, len(ranked))
	for _, v := range ranked {
		if v.Index < 0 || v.Index >= len(results) {
			continue
		}
		r := results[v.Index]
		r.RerankScore = v.Score
		r.Score = v.Score
		r.Reranked = true
		reordered = append(reordered, r)
	}
	if len(reordered) == 0 {
		return results
	}
	return reordered
}

// RebuildLexicalIndex rebuilds the BM25 index from a fresh corpus snapshot.
func (e *Engine) RebuildLexicalIndex(ctx context.Context) error {
	if e.lexical == nil {
		return nil
	}
	docs, err := e.db.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("snapshot corpus: %w", err)
	}
	if err := e.lexical.Rebuild(ctx, docs); err != nil {
		return fmt.Errorf("rebuild lexical index: %w", err)
	}
	e.logger.Info("lexical index rebuilt", "documents", len(docs))
	return nil
}

// LexicalStats exposes the lexical index state for status reporting.
func (e *Engine) LexicalStats() store.LexicalStats {
	if e.lexical == nil {
		return store.LexicalStats{}
	}
	return e.lexical.Stats()
}
