// Package search implements hybrid retrieval: lexical BM25 and dense vector
// stages run in parallel, their rankings are fused with reciprocal rank
// fusion, and an optional cross-encoder reorders the fused candidates.
package search

import (
	"errors"

	"github.com/mzurek/szperacz/internal/store"
)

// Sentinel errors returned by the engine.
var (
	// ErrRetrievalFailed indicates the dense stage failed and no results
	// can be produced.
	ErrRetrievalFailed = errors.New("retrieval failed")

	// ErrStoreUnavailable indicates the engine has no usable store.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrEmptyQuery indicates a blank query string.
	ErrEmptyQuery = errors.New("empty query")
)

// Mode selects which retrieval stages run.
type Mode string

const (
	// ModeHybrid runs both stages and fuses them.
	ModeHybrid Mode = "hybrid"

	// ModeVector runs only dense retrieval.
	ModeVector Mode = "vector_only"

	// ModeLexical runs only BM25 retrieval.
	ModeLexical Mode = "lexical_only"
)

// Result is one retrieved chunk with its scores. Score is the value
// results are ordered by; the stage scores are kept for diagnostics.
type Result struct {
	Chunk       *store.Chunk
	Score       float64
	FusionScore float64
	RerankScore float64
	Reranked    bool
}

// Options control a single search call.
type Options struct {
	// TopK is the number of results to return. Zero uses the default.
	TopK int

	// Mode selects the retrieval stages. Empty means hybrid.
	Mode Mode

	// UseReranker enables the cross-encoder pass over the candidates.
	UseReranker bool
}

func (o Options) withDefaults() Options {
	if o.TopK <= 0 {
		o.TopK = DefaultTopK
	}
	if o.Mode == "" {
		o.Mode = ModeHybrid
	}
	return o
}

const (
	// DefaultTopK is the result count when the caller does not specify one.
	DefaultTopK = 5

	// candidatePool is how many fused candidates are materialized and
	// handed to the reranker.
	candidatePool = 40

	// stageDepth is how many hits each single retrieval stage contributes
	// before fusion.
	stageDepth = 20
)
