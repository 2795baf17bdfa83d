package store

import (
	"context"
	"encoding/gob"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// lexicalCacheVersion guards the gob cache blob. A version mismatch on load
// is treated as a cache miss, same as corruption.
const lexicalCacheVersion = 1

// MemoryLexicalIndex is the default LexicalIndex: Okapi BM25 over an
// in-memory token corpus, persisted as an opaque gob blob.
//
// The scoring structure is immutable once built. Rebuild constructs a whole
// new structure and swaps the pointer under the write lock, so readers see
// either the old or the new index in full.
type MemoryLexicalIndex struct {
	mu        sync.RWMutex
	idx       *bm25Corpus // nil until built or loaded
	cachePath string
	config    BM25Config
	closed    bool
}

var _ LexicalIndex = (*MemoryLexicalIndex)(nil)

// bm25Corpus holds the built scoring structure for one corpus snapshot.
type bm25Corpus struct {
	docIDs    []string
	corpus    [][]string       // tokenized documents, parallel to docIDs
	termFreqs []map[string]int // per-document term frequencies
	docFreq   map[string]int   // number of documents containing each term
	docLens   []int
	avgDocLen float64
	k1, b     float64
}

// lexicalCache is the gob payload. The scoring structure is recomputed on
// load from the tokenized corpus, which keeps the blob small and makes the
// format trivially forward-compatible with parameter changes.
type lexicalCache struct {
	Version int
	DocIDs  []string
	Corpus  [][]string
}

// NewMemoryLexicalIndex creates an unbuilt index. cachePath may be empty for
// a purely in-memory index (tests).
func NewMemoryLexicalIndex(cachePath string, cfg BM25Config) *MemoryLexicalIndex {
	return &MemoryLexicalIndex{
		cachePath: cachePath,
		config:    cfg.withDefaults(),
	}
}

func newBM25Corpus(docIDs []string, corpus [][]string, cfg BM25Config) *bm25Corpus {
	c := &bm25Corpus{
		docIDs:    docIDs,
		corpus:    corpus,
		termFreqs: make([]map[string]int, len(corpus)),
		docFreq:   make(map[string]int),
		docLens:   make([]int, len(corpus)),
		k1:        cfg.K1,
		b:         cfg.B,
	}

	totalLen := 0
	for i, tokens := range corpus {
		tf := make(map[string]int, len(tokens))
		for _, t := range tokens {
			tf[t]++
		}
		c.termFreqs[i] = tf
		c.docLens[i] = len(tokens)
		totalLen += len(tokens)
		for t := range tf {
			c.docFreq[t]++
		}
	}
	if len(corpus) > 0 {
		c.avgDocLen = float64(totalLen) / float64(len(corpus))
	}
	return c
}

// idf uses the BM25+ style formulation ln(1 + (N - df + 0.5)/(df + 0.5)),
// which stays positive for terms present in more than half the corpus.
func (c *bm25Corpus) idf(term string) float64 {
	df := c.docFreq[term]
	if df == 0 {
		return 0
	}
	n := float64(len(c.docIDs))
	return math.Log(1 + (n-float64(df)+0.5)/(float64(df)+0.5))
}

// score computes the BM25 score of document i against the query terms.
func (c *bm25Corpus) score(i int, queryTerms []string) float64 {
	var s float64
	norm := 1 - c.b + c.b*float64(c.docLens[i])/c.avgDocLen
	for _, t := range queryTerms {
		tf := c.termFreqs[i][t]
		if tf == 0 {
			continue
		}
		s += c.idf(t) * float64(tf) * (c.k1 + 1) / (float64(tf) + c.k1*norm)
	}
	return s
}

// Rebuild tokenizes docs, builds a fresh scoring structure, persists the
// cache blob, and atomically replaces the live index.
func (m *MemoryLexicalIndex) Rebuild(ctx context.Context, docs []*Document) error {
	docIDs := make([]string, len(docs))
	corpus := make([][]string, len(docs))
	for i, d := range docs {
		docIDs[i] = d.ID
		corpus[i] = Tokenize(d.Content)
	}

	idx := newBM25Corpus(docIDs, corpus, m.config)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return fmt.Errorf("lexical index is closed")
	}
	m.idx = idx
	m.mu.Unlock()

	if m.cachePath == "" {
		return nil
	}
	if err := m.saveCache(docIDs, corpus); err != nil {
		// The in-memory index is already live; a failed cache write only
		// costs a rebuild after the next restart.
		slog.Warn("lexical cache write failed",
			slog.String("path", m.cachePath),
			slog.String("error", err.Error()))
	}
	return nil
}

// Search scores every indexed document against the query and returns the
// topK ids with score > 0, best first. Ties keep corpus insertion order.
func (m *MemoryLexicalIndex) Search(ctx context.Context, query string, topK int) ([]*LexicalResult, error) {
	m.mu.RLock()
	idx := m.idx
	closed := m.closed
	m.mu.RUnlock()

	if closed {
		return nil, fmt.Errorf("lexical index is closed")
	}
	if idx == nil || len(idx.docIDs) == 0 || topK <= 0 {
		return []*LexicalResult{}, nil
	}

	queryTerms := Tokenize(query)
	if len(queryTerms) == 0 {
		return []*LexicalResult{}, nil
	}

	results := make([]*LexicalResult, 0, len(idx.docIDs))
	for i := range idx.docIDs {
		if s := idx.score(i, queryTerms); s > 0 {
			results = append(results, &LexicalResult{DocID: idx.docIDs[i], Score: s})
		}
	}

	// Stable sort keeps corpus order on exact score ties.
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// LoadCache restores the index from the cache blob. Absence, corruption, or
// a version mismatch all count as a miss; none of them surface as errors.
func (m *MemoryLexicalIndex) LoadCache() bool {
	if m.cachePath == "" {
		return false
	}

	file, err := os.Open(m.cachePath)
	if err != nil {
		return false
	}
	defer file.Close()

	var cache lexicalCache
	if err := gob.NewDecoder(file).Decode(&cache); err != nil {
		slog.Warn("lexical cache unreadable, treating as miss",
			slog.String("path", m.cachePath),
			slog.String("error", err.Error()))
		return false
	}
	if cache.Version != lexicalCacheVersion || len(cache.DocIDs) != len(cache.Corpus) {
		slog.Warn("lexical cache incompatible, treating as miss",
			slog.String("path", m.cachePath),
			slog.Int("version", cache.Version))
		return false
	}

	idx := newBM25Corpus(cache.DocIDs, cache.Corpus, m.config)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false
	}
	m.idx = idx
	return true
}

// Ready reports whether the index has been built or loaded.
func (m *MemoryLexicalIndex) Ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.idx != nil && !m.closed
}

// Stats returns corpus statistics for the status command.
func (m *MemoryLexicalIndex) Stats() LexicalStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.idx == nil {
		return LexicalStats{}
	}
	return LexicalStats{
		DocumentCount: len(m.idx.docIDs),
		TermCount:     len(m.idx.docFreq),
		AvgDocLength:  m.idx.avgDocLen,
	}
}

// Close drops the in-memory structure. The cache file is left in place so a
// new instance can restore it.
func (m *MemoryLexicalIndex) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.idx = nil
	return nil
}

// saveCache writes the blob atomically (temp file + rename).
func (m *MemoryLexicalIndex) saveCache(docIDs []string, corpus [][]string) error {
	if err := os.MkdirAll(filepath.Dir(m.cachePath), 0o755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}

	tmpPath := m.cachePath + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create cache file: %w", err)
	}

	cache := lexicalCache{
		Version: lexicalCacheVersion,
		DocIDs:  docIDs,
		Corpus:  corpus,
	}
	if err := gob.NewEncoder(file).Encode(&cache); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("encode cache: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close cache file: %w", err)
	}
	if err := os.Rename(tmpPath, m.cachePath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename cache file: %w", err)
	}
	return nil
}
