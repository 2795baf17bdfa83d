package search

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mzurek/szperacz/internal/store"
)

// stubChunkStore serves a fixed chunk set.
type stubChunkStore struct {
	chunks map[string]*store.Chunk
}

func (s *stubChunkStore) SaveChunks(ctx context.Context, chunks []*store.Chunk, embeddings [][]float32) error {
	return nil
}

func (s *stubChunkStore) GetChunks(ctx context.Context, ids []string) ([]*store.Chunk, error) {
	var out []*store.Chunk
	for _, id := range ids {
		if c, ok := s.chunks[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *stubChunkStore) IDsBySource(ctx context.Context, sourceFile string) ([]string, error) {
	return nil, nil
}

func (s *stubChunkStore) Snapshot(ctx context.Context) ([]*store.Document, error) {
	var docs []*store.Document
	for _, c := range s.chunks {
		docs = append(docs, &store.Document{ID: c.ID, Content: c.Content})
	}
	return docs, nil
}

func (s *stubChunkStore) AllEmbeddings(ctx context.Context) (map[string][]float32, error) {
	return map[string][]float32{}, nil
}

func (s *stubChunkStore) DeleteChunks(ctx context.Context, ids []string) error { return nil }

func (s *stubChunkStore) Count(ctx context.Context) (int, error) { return len(s.chunks), nil }

func (s *stubChunkStore) ListSources(ctx context.Context) (map[string]int, error) {
	return nil, nil
}

func (s *stubChunkStore) Close() error { return nil }

// stubVectorIndex returns a fixed ranking or a fixed error.
type stubVectorIndex struct {
	hits []*store.VectorResult
	err  error
}

func (s *stubVectorIndex) Add(ctx context.Context, ids []string, vectors [][]float32) error {
	return nil
}

func (s *stubVectorIndex) Search(ctx context.Context, query []float32, k int) ([]*store.VectorResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	if len(s.hits) > k {
		return s.hits[:k], nil
	}
	return s.hits, nil
}

func (s *stubVectorIndex) Delete(ctx context.Context, ids []string) error { return nil }
func (s *stubVectorIndex) Contains(id string) bool                        { return false }
func (s *stubVectorIndex) Count() int                                     { return len(s.hits) }
func (s *stubVectorIndex) Save(path string) error                         { return nil }
func (s *stubVectorIndex) Load(path string) error                         { return nil }
func (s *stubVectorIndex) Close() error                                   { return nil }

// stubLexical returns a fixed ranking, a fixed error, and counts calls.
type stubLexical struct {
	hits  []*store.LexicalResult
	err   error
	calls int
}

func (s *stubLexical) Rebuild(ctx context.Context, docs []*store.Document) error { return nil }

func (s *stubLexical) Search(ctx context.Context, query string, topK int) ([]*store.LexicalResult, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.hits, nil
}

func (s *stubLexical) LoadCache() bool          { return false }
func (s *stubLexical) Ready() bool              { return true }
func (s *stubLexical) Stats() store.LexicalStats { return store.LexicalStats{} }
func (s *stubLexical) Close() error             { return nil }

// stubEmbedder returns a constant vector.
type stubEmbedder struct{ err error }

func (s *stubEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

func (s *stubEmbedder) Dimensions() int { return 3 }
func (s *stubEmbedder) ModelID() string { return "stub" }
func (s *stubEmbedder) Close() error    { return nil }

// stubReranker reverses the candidate order or fails.
type stubReranker struct {
	err     error
	reverse bool
}

func (s *stubReranker) Rerank(ctx context.Context, query string, docs []string, topN int) ([]RankedDoc, error) {
	if s.err != nil {
		return nil, s.err
	}
	ranked := make([]RankedDoc, len(docs))
	for i := range docs {
		idx := i
		if s.reverse {
			idx = len(docs) - 1 - i
		}
		ranked[i] = RankedDoc{Index: idx, Score: float64(len(docs) - i)}
	}
	if topN > 0 && len(ranked) > topN {
		ranked = ranked[:topN]
	}
	return ranked, nil
}

func (s *stubReranker) Available() bool { return s.err == nil }

// contentReranker scores documents containing favorite above the rest.
type contentReranker struct{ favorite string }

func (s *contentReranker) Rerank(ctx context.Context, query string, docs []string, topN int) ([]RankedDoc, error) {
	ranked := make([]RankedDoc, len(docs))
	for i, doc := range docs {
		score := 0.1
		if strings.Contains(doc, s.favorite) {
			score = 0.9
		}
		ranked[i] = RankedDoc{Index: i, Score: score}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
	if topN > 0 && len(ranked) > topN {
		ranked = ranked[:topN]
	}
	return ranked, nil
}

func (s *contentReranker) Available() bool { return true }

func chunkFixture() map[string]*store.Chunk {
	return map[string]*store.Chunk{
		"a": {ID: "a", Content: "umowa najmu", SourceFile: "umowa.pdf", ChunkType: store.ChunkTypeText},
		"b": {ID: "b", Content: "protokół odbioru", SourceFile: "protokol.pdf", ChunkType: store.ChunkTypeText},
		"c": {ID: "c", Content: "transkrypcja nagrania", SourceFile: "spotkanie.mp4", ChunkType: store.ChunkTypeVideo},
		"d": {ID: "d", Content: "opis obrazu", SourceFile: "schemat.png", ChunkType: store.ChunkTypeImage},
	}
}

func vecHits(ids ...string) []*store.VectorResult {
	out := make([]*store.VectorResult, len(ids))
	for i, id := range ids {
		out[i] = &store.VectorResult{ID: id, Score: float32(1.0 - 0.1*float64(i))}
	}
	return out
}

func lexHits(ids ...string) []*store.LexicalResult {
	out := make([]*store.LexicalResult, len(ids))
	for i, id := range ids {
		out[i] = &store.LexicalResult{DocID: id, Score: float64(len(ids) - i)}
	}
	return out
}

func newTestEngine(t *testing.T, vi store.VectorIndex, lex store.LexicalIndex,
	emb *stubEmbedder, rr Reranker) *Engine {
	t.Helper()
	db, err := store.NewVectorDB(&stubChunkStore{chunks: chunkFixture()}, vi, "", nil)
	require.NoError(t, err)
	engine, err := NewEngine(db, lex, emb, rr, EngineConfig{}, nil)
	require.NoError(t, err)
	return engine
}

func resultIDs(results []*Result) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Chunk.ID
	}
	return out
}

func TestEngine_HybridFusesBothStages(t *testing.T) {
	// given both stages returning overlapping rankings
	engine := newTestEngine(t,
		&stubVectorIndex{hits: vecHits("b", "a", "c")},
		&stubLexical{hits: lexHits("b", "d", "a")},
		&stubEmbedder{}, nil)

	// when searching in hybrid mode
	results, err := engine.Search(context.Background(), "umowa", Options{TopK: 10})

	// then the fused order follows reciprocal rank fusion
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a", "d", "c"}, resultIDs(results))
	for _, r := range results {
		assert.Greater(t, r.FusionScore, 0.0)
	}
}

func TestEngine_LexicalFailureDegradesToDense(t *testing.T) {
	// given a lexical stage that always errors
	engine := newTestEngine(t,
		&stubVectorIndex{hits: vecHits("a", "b")},
		&stubLexical{err: errors.New("index exploded")},
		&stubEmbedder{}, nil)

	// when searching hybrid
	results, err := engine.Search(context.Background(), "umowa", Options{TopK: 10})

	// then the query succeeds on the dense ranking alone
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, resultIDs(results))
}

func TestEngine_VectorFailureIsFatal(t *testing.T) {
	engine := newTestEngine(t,
		&stubVectorIndex{err: errors.New("graph gone")},
		&stubLexical{hits: lexHits("a")},
		&stubEmbedder{}, nil)

	_, err := engine.Search(context.Background(), "umowa", Options{})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRetrievalFailed)
}

func TestEngine_EmbedFailureIsFatal(t *testing.T) {
	engine := newTestEngine(t,
		&stubVectorIndex{hits: vecHits("a")},
		&stubLexical{hits: lexHits("a")},
		&stubEmbedder{err: errors.New("model down")}, nil)

	_, err := engine.Search(context.Background(), "umowa", Options{})

	assert.ErrorIs(t, err, ErrRetrievalFailed)
}

func TestEngine_VanishedIDsAreDropped(t *testing.T) {
	// given a ranking that references an id missing from the chunk store
	engine := newTestEngine(t,
		&stubVectorIndex{hits: vecHits("a", "ghost", "b")},
		&stubLexical{},
		&stubEmbedder{}, nil)

	results, err := engine.Search(context.Background(), "umowa", Options{TopK: 10})

	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, resultIDs(results))
}

func TestEngine_VectorModeNeverTouchesLexical(t *testing.T) {
	lex := &stubLexical{hits: lexHits("a")}
	engine := newTestEngine(t,
		&stubVectorIndex{hits: vecHits("b", "a")},
		lex, &stubEmbedder{}, nil)

	results, err := engine.Search(context.Background(), "umowa",
		Options{TopK: 10, Mode: ModeVector})

	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, resultIDs(results))
	assert.Zero(t, lex.calls)
}

func TestEngine_LexicalMode(t *testing.T) {
	engine := newTestEngine(t,
		&stubVectorIndex{err: errors.New("should not be called")},
		&stubLexical{hits: lexHits("b", "a")},
		&stubEmbedder{err: errors.New("should not be called")}, nil)

	results, err := engine.Search(context.Background(), "umowa",
		Options{TopK: 10, Mode: ModeLexical})

	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, resultIDs(results))
}

func TestEngine_RerankerReordersCandidates(t *testing.T) {
	// given a reranker that reverses the fused order
	engine := newTestEngine(t,
		&stubVectorIndex{hits: vecHits("a", "b")},
		&stubLexical{},
		&stubEmbedder{}, &stubReranker{reverse: true})

	results, err := engine.Search(context.Background(), "umowa",
		Options{TopK: 10, UseReranker: true})

	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, resultIDs(results))
	for _, r := range results {
		assert.True(t, r.Reranked)
	}
}

func TestEngine_RerankerFailureKeepsFusedOrder(t *testing.T) {
	// given a broken reranker
	withBroken := newTestEngine(t,
		&stubVectorIndex{hits: vecHits("a", "b")},
		&stubLexical{},
		&stubEmbedder{}, &stubReranker{err: errors.New("rerank server down")})
	withoutReranker := newTestEngine(t,
		&stubVectorIndex{hits: vecHits("a", "b")},
		&stubLexical{},
		&stubEmbedder{}, nil)

	// when searching with and without the reranker enabled
	broken, err := withBroken.Search(context.Background(), "umowa",
		Options{TopK: 10, UseReranker: true})
	require.NoError(t, err)
	plain, err := withoutReranker.Search(context.Background(), "umowa",
		Options{TopK: 10, UseReranker: false})
	require.NoError(t, err)

	// then the degraded result equals the reranker-off result
	assert.Equal(t, resultIDs(plain), resultIDs(broken))
	for _, r := range broken {
		assert.False(t, r.Reranked)
	}
}

func TestEngine_TopKTruncates(t *testing.T) {
	engine := newTestEngine(t,
		&stubVectorIndex{hits: vecHits("a", "b", "c", "d")},
		&stubLexical{},
		&stubEmbedder{}, nil)

	results, err := engine.Search(context.Background(), "umowa", Options{TopK: 2})

	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestEngine_EmptyQueryRejected(t *testing.T) {
	engine := newTestEngine(t,
		&stubVectorIndex{}, &stubLexical{}, &stubEmbedder{}, nil)

	_, err := engine.Search(context.Background(), "   ", Options{})

	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestEngine_MediaBoostPrefersVideoChunks(t *testing.T) {
	// given a video chunk ranked below text chunks
	engine := newTestEngine(t,
		&stubVectorIndex{hits: vecHits("a", "b", "c")},
		&stubLexical{},
		&stubEmbedder{}, nil)

	// when the query asks about a film
	results, err := engine.Search(context.Background(), "co mówią na filmie", Options{TopK: 10})

	// then the video transcription moves to the front
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "c", results[0].Chunk.ID)
	assert.Equal(t, []string{"c", "a", "b"}, resultIDs(results))
}

func TestEngine_MediaBoostSurvivesReranking(t *testing.T) {
	// given a reranker that scores the contract chunk highest
	engine := newTestEngine(t,
		&stubVectorIndex{hits: vecHits("a", "b", "c")},
		&stubLexical{},
		&stubEmbedder{}, &contentReranker{favorite: "umowa najmu"})

	// when the query asks about a film with reranking on
	results, err := engine.Search(context.Background(), "co jest w filmie",
		Options{TopK: 10, UseReranker: true})

	// then media prioritization still puts the video transcription first
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "c", results[0].Chunk.ID)
	assert.Equal(t, []string{"c", "a", "b"}, resultIDs(results))
	for _, r := range results {
		assert.True(t, r.Reranked)
	}
}
