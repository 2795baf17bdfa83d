// Package preflight verifies the environment before the engine starts:
// data directory writability, database health, and reachability of the
// optional sidecar servers (embeddings, reranker, LLM).
package preflight

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/mzurek/szperacz/internal/config"
	"github.com/mzurek/szperacz/internal/store"
)

// CheckStatus is the outcome of one check.
type CheckStatus int

const (
	StatusPass CheckStatus = iota
	StatusWarn
	StatusFail
)

func (s CheckStatus) String() string {
	switch s {
	case StatusPass:
		return "PASS"
	case StatusWarn:
		return "WARN"
	case StatusFail:
		return "FAIL"
	default:
		return "UNKNOWN"
	}
}

// CheckResult is the outcome of a single check. Required failures should
// stop the caller; optional ones only degrade quality.
type CheckResult struct {
	Name     string
	Status   CheckStatus
	Message  string
	Required bool
}

// IsCritical reports whether this is a required check that failed.
func (r CheckResult) IsCritical() bool {
	return r.Required && r.Status == StatusFail
}

// Run executes every check against the configuration. Results come back in
// a fixed order so output is stable.
func Run(ctx context.Context, cfg *config.Config) []CheckResult {
	return []CheckResult{
		checkDataDir(cfg.Paths.DataDir),
		checkDatabase(cfg.ChunkDBPath()),
		checkHTTP(ctx, "embedding server", embeddingURL(cfg), false,
			"dense retrieval falls back to static hash embeddings"),
		checkHTTP(ctx, "reranker", rerankerURL(cfg), false,
			"searches run without the cross-encoder pass"),
		checkHTTP(ctx, "llm server", llmURL(cfg), false,
			"the ask command is unavailable, search still works"),
	}
}

// HasCriticalFailure reports whether any required check failed.
func HasCriticalFailure(results []CheckResult) bool {
	for _, r := range results {
		if r.IsCritical() {
			return true
		}
	}
	return false
}

func checkDataDir(dir string) CheckResult {
	result := CheckResult{Name: "data directory", Required: true}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("cannot create %s: %v", dir, err)
		return result
	}

	probe := filepath.Join(dir, ".preflight")
	if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("%s is not writable: %v", dir, err)
		return result
	}
	os.Remove(probe)

	result.Status = StatusPass
	result.Message = dir
	return result
}

func checkDatabase(path string) CheckResult {
	result := CheckResult{Name: "chunk database", Required: true}

	s, err := store.NewSQLiteChunkStore(path)
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("cannot open %s: %v", path, err)
		return result
	}
	defer s.Close()

	count, err := s.Count(context.Background())
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("database unreadable: %v", err)
		return result
	}

	result.Status = StatusPass
	result.Message = fmt.Sprintf("%d chunks", count)
	return result
}

func checkHTTP(ctx context.Context, name, url string, required bool, degraded string) CheckResult {
	result := CheckResult{Name: name, Required: required}
	if url == "" {
		result.Status = StatusWarn
		result.Message = "not configured; " + degraded
		return result
	}

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		result.Status = StatusFail
		result.Message = err.Error()
		return result
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		result.Status = statusForOptional(required)
		result.Message = fmt.Sprintf("unreachable (%v); %s", err, degraded)
		return result
	}
	resp.Body.Close()

	if resp.StatusCode >= 500 {
		result.Status = statusForOptional(required)
		result.Message = fmt.Sprintf("server error %d; %s", resp.StatusCode, degraded)
		return result
	}

	result.Status = StatusPass
	result.Message = url
	return result
}

func statusForOptional(required bool) CheckStatus {
	if required {
		return StatusFail
	}
	return StatusWarn
}

func embeddingURL(cfg *config.Config) string {
	if cfg.Embeddings.DisableOllama {
		return ""
	}
	base := cfg.Embeddings.OllamaURL
	if base == "" {
		base = "http://localhost:11434"
	}
	return base + "/api/tags"
}

func rerankerURL(cfg *config.Config) string {
	if cfg.Reranker.Endpoint == "" {
		return ""
	}
	return cfg.Reranker.Endpoint + "/health"
}

func llmURL(cfg *config.Config) string {
	switch cfg.LLM.Backend {
	case "openai":
		base := cfg.LLM.OpenAIURL
		if base == "" {
			base = "http://localhost:1234"
		}
		return base + "/v1/models"
	default:
		base := cfg.LLM.OllamaURL
		if base == "" {
			base = "http://localhost:11434"
		}
		return base + "/api/tags"
	}
}
