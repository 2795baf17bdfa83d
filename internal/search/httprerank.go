package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"
)

const defaultRerankTimeout = 30 * time.Second

// RerankConfig configures the HTTP cross-encoder client.
type RerankConfig struct {
	// Endpoint is the server base URL, e.g. "http://localhost:8012".
	Endpoint string

	// Model names the reranker model, forwarded verbatim to the server.
	Model string

	// Timeout bounds each rerank call.
	Timeout time.Duration
}

// HTTPReranker calls a llama.cpp style /v1/rerank endpoint. Any server
// speaking that wire format works, including TEI and vLLM.
type HTTPReranker struct {
	config RerankConfig
	client *http.Client
}

var _ Reranker = (*HTTPReranker)(nil)

type rerankRequest struct {
	Model     string   `json:"model,omitempty"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      int      `json:"top_n,omitempty"`
}

type rerankResponse struct {
	Results []struct {
		Index int     `json:"index"`
		Score float64 `json:"relevance_score"`
	} `json:"results"`
}

// NewHTTPReranker builds the client. It does not probe the endpoint;
// availability is checked lazily.
func NewHTTPReranker(cfg RerankConfig) *HTTPReranker {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultRerankTimeout
	}
	return &HTTPReranker{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (r *HTTPReranker) Rerank(ctx context.Context, query string, documents []string, topN int) ([]RankedDoc, error) {
	if len(documents) == 0 {
		return []RankedDoc{}, nil
	}

	body, err := json.Marshal(rerankRequest{
		Model:     r.config.Model,
		Query:     query,
		Documents: documents,
		TopN:      topN,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		r.config.Endpoint+"/v1/rerank", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call reranker: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("reranker returned %d: %s", resp.StatusCode, payload)
	}

	var parsed rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode rerank response: %w", err)
	}

	ranked := make([]RankedDoc, 0, len(parsed.Results))
	for _, res := range parsed.Results {
		if res.Index < 0 || res.Index >= len(documents) {
			return nil, fmt.Errorf("reranker returned out-of-range index %d", res.Index)
		}
		ranked = append(ranked, RankedDoc{Index: res.Index, Score: res.Score})
	}
	// Servers usually return results best first, but the contract only
	// promises scores.
	sort.SliceStable(ranked, func(a, b int) bool {
		return ranked[a].Score > ranked[b].Score
	})
	if topN > 0 && len(ranked) > topN {
		ranked = ranked[:topN]
	}
	return ranked, nil
}

// Available probes the endpoint's health route with a short timeout.
func (r *HTTPReranker) Available() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.config.Endpoint+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
