package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPReranker_Rerank(t *testing.T) {
	// given a server speaking the llama.cpp rerank wire format
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/rerank", r.URL.Path)

		var req rerankRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "umowa najmu", req.Query)
		assert.Len(t, req.Documents, 3)

		json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{
				{"index": 2, "relevance_score": 0.91},
				{"index": 0, "relevance_score": 0.40},
				{"index": 1, "relevance_score": 0.05},
			},
		})
	}))
	defer server.Close()

	reranker := NewHTTPReranker(RerankConfig{Endpoint: server.URL})

	// when reranking three candidates
	ranked, err := reranker.Rerank(context.Background(), "umowa najmu",
		[]string{"doc a", "doc b", "doc c"}, 0)

	// then verdicts come back best first
	require.NoError(t, err)
	require.Len(t, ranked, 3)
	assert.Equal(t, 2, ranked[0].Index)
	assert.InDelta(t, 0.91, ranked[0].Score, 1e-9)
	assert.Equal(t, 0, ranked[1].Index)
	assert.Equal(t, 1, ranked[2].Index)
}

func TestHTTPReranker_TopNTruncates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{
				{"index": 0, "relevance_score": 0.9},
				{"index": 1, "relevance_score": 0.8},
				{"index": 2, "relevance_score": 0.7},
			},
		})
	}))
	defer server.Close()

	reranker := NewHTTPReranker(RerankConfig{Endpoint: server.URL})

	ranked, err := reranker.Rerank(context.Background(), "q",
		[]string{"a", "b", "c"}, 2)

	require.NoError(t, err)
	assert.Len(t, ranked, 2)
}

func TestHTTPReranker_ServerErrorSurfaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer server.Close()

	reranker := NewHTTPReranker(RerankConfig{Endpoint: server.URL})

	_, err := reranker.Rerank(context.Background(), "q", []string{"a"}, 0)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestHTTPReranker_OutOfRangeIndexRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{{"index": 7, "relevance_score": 0.9}},
		})
	}))
	defer server.Close()

	reranker := NewHTTPReranker(RerankConfig{Endpoint: server.URL})

	_, err := reranker.Rerank(context.Background(), "q", []string{"a"}, 0)

	assert.Error(t, err)
}

func TestHTTPReranker_EmptyDocuments(t *testing.T) {
	reranker := NewHTTPReranker(RerankConfig{Endpoint: "http://unused.invalid"})

	ranked, err := reranker.Rerank(context.Background(), "q", nil, 0)

	require.NoError(t, err)
	assert.Empty(t, ranked)
}

func TestNoOpReranker_KeepsOrder(t *testing.T) {
	ranked, err := NoOpReranker{}.Rerank(context.Background(), "q",
		[]string{"a", "b", "c"}, 2)

	require.NoError(t, err)
	require.Len(t, ranked, 2)
	assert.Equal(t, 0, ranked[0].Index)
	assert.Equal(t, 1, ranked[1].Index)
	assert.False(t, NoOpReranker{}.Available())
}
