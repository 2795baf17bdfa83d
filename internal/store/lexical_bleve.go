package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/mapping"
)

// plainAnalyzerName is the analyzer used for chunk content: unicode word
// boundaries plus lowercasing, matching the corpus tokenizer's intent.
const plainAnalyzerName = "plain"

// BleveLexicalIndex is the Bleve-backed LexicalIndex. The "cache" for this
// backend is the index directory itself: LoadCache opens it, Rebuild drops
// and recreates it from the corpus snapshot.
type BleveLexicalIndex struct {
	mu     sync.RWMutex
	index  bleve.Index // nil until built or loaded
	path   string      // index directory; empty means in-memory
	closed bool
}

var _ LexicalIndex = (*BleveLexicalIndex)(nil)

// bleveDocument is the indexed document shape.
type bleveDocument struct {
	Content string `json:"content"`
}

// NewBleveLexicalIndex creates an unbuilt Bleve index rooted at path.
func NewBleveLexicalIndex(path string) (*BleveLexicalIndex, error) {
	return &BleveLexicalIndex{path: path}, nil
}

func newBleveMapping() (*mapping.IndexMappingImpl, error) {
	indexMapping := bleve.NewIndexMapping()
	err := indexMapping.AddCustomAnalyzer(plainAnalyzerName, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     unicode.Name,
		"token_filters": []string{lowercase.Name},
	})
	if err != nil {
		return nil, fmt.Errorf("add analyzer: %w", err)
	}
	indexMapping.DefaultAnalyzer = plainAnalyzerName
	return indexMapping, nil
}

// Rebuild builds a complete new index from docs and swaps it in. For the
// on-disk case the new index is built in a sibling directory and renamed
// over the old one, so a crash mid-rebuild leaves the previous index intact.
func (b *BleveLexicalIndex) Rebuild(ctx context.Context, docs []*Document) error {
	indexMapping, err := newBleveMapping()
	if err != nil {
		return err
	}

	var next bleve.Index
	buildPath := ""
	if b.path == "" {
		next, err = bleve.NewMemOnly(indexMapping)
	} else {
		buildPath = b.path + ".rebuild"
		if err := os.RemoveAll(buildPath); err != nil {
			return fmt.Errorf("clear rebuild directory: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(b.path), 0o755); err != nil {
			return fmt.Errorf("create index directory: %w", err)
		}
		next, err = bleve.New(buildPath, indexMapping)
	}
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}

	batch := next.NewBatch()
	for _, doc := range docs {
		if err := batch.Index(doc.ID, bleveDocument{Content: doc.Content}); err != nil {
			_ = next.Close()
			return fmt.Errorf("index document %s: %w", doc.ID, err)
		}
	}
	if err := next.Batch(batch); err != nil {
		_ = next.Close()
		return fmt.Errorf("execute batch: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		_ = next.Close()
		return fmt.Errorf("lexical index is closed")
	}

	if buildPath != "" {
		// Reopen from the final path after the rename so the live handle
		// points at the directory LoadCache will use next start.
		if err := next.Close(); err != nil {
			return fmt.Errorf("close rebuilt index: %w", err)
		}
		if b.index != nil {
			_ = b.index.Close()
			b.index = nil
		}
		if err := os.RemoveAll(b.path); err != nil {
			return fmt.Errorf("remove old index: %w", err)
		}
		if err := os.Rename(buildPath, b.path); err != nil {
			return fmt.Errorf("swap index directory: %w", err)
		}
		next, err = bleve.Open(b.path)
		if err != nil {
			return fmt.Errorf("reopen index: %w", err)
		}
	} else if b.index != nil {
		_ = b.index.Close()
	}

	b.index = next
	return nil
}

// Search runs a match query against the content field.
func (b *BleveLexicalIndex) Search(ctx context.Context, query string, topK int) ([]*LexicalResult, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, fmt.Errorf("lexical index is closed")
	}
	if b.index == nil || topK <= 0 {
		return []*LexicalResult{}, nil
	}

	matchQuery := bleve.NewMatchQuery(query)
	matchQuery.SetField("content")

	req := bleve.NewSearchRequest(matchQuery)
	req.Size = topK

	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("bleve search: %w", err)
	}

	results := make([]*LexicalResult, 0, len(res.Hits))
	for _, hit := range res.Hits {
		results = append(results, &LexicalResult{DocID: hit.ID, Score: hit.Score})
	}
	return results, nil
}

// LoadCache opens the existing index directory, if any.
func (b *BleveLexicalIndex) LoadCache() bool {
	if b.path == "" {
		return false
	}

	idx, err := bleve.Open(b.path)
	if err != nil {
		return false
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		_ = idx.Close()
		return false
	}
	if b.index != nil {
		_ = b.index.Close()
	}
	b.index = idx
	return true
}

// Ready reports whether the index has been built or loaded.
func (b *BleveLexicalIndex) Ready() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.index != nil && !b.closed
}

// Stats returns document count; Bleve does not expose term statistics.
func (b *BleveLexicalIndex) Stats() LexicalStats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.index == nil || b.closed {
		return LexicalStats{}
	}
	count, _ := b.index.DocCount()
	return LexicalStats{DocumentCount: int(count)}
}

// Close closes the underlying Bleve index.
func (b *BleveLexicalIndex) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	if b.index != nil {
		err := b.index.Close()
		b.index = nil
		return err
	}
	return nil
}
