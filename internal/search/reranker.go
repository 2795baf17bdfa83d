package search

import "context"

// RankedDoc is a reranker verdict: the index of the input document and its
// relevance score.
type RankedDoc struct {
	Index int
	Score float64
}

// Reranker reorders candidate documents by relevance to the query.
type Reranker interface {
	// Rerank scores documents against query and returns up to topN
	// verdicts, best first. topN <= 0 means all documents.
	Rerank(ctx context.Context, query string, documents []string, topN int) ([]RankedDoc, error)

	// Available reports whether the backend is reachable.
	Available() bool
}

// NoOpReranker keeps the incoming order. Used when no reranker endpoint is
// configured.
type NoOpReranker struct{}

var _ Reranker = (*NoOpReranker)(nil)

func (NoOpReranker) Rerank(ctx context.Context, query string, documents []string, topN int) ([]RankedDoc, error) {
	n := len(documents)
	if topN > 0 && topN < n {
		n = topN
	}
	ranked := make([]RankedDoc, n)
	for i := range ranked {
		ranked[i] = RankedDoc{Index: i, Score: 0}
	}
	return ranked, nil
}

func (NoOpReranker) Available() bool { return false }
