// Package config loads the engine configuration from a YAML file with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full application configuration.
type Config struct {
	Paths      PathsConfig      `yaml:"paths"`
	Search     SearchConfig     `yaml:"search"`
	Embeddings EmbeddingsConfig `yaml:"embeddings"`
	Reranker   RerankerConfig   `yaml:"reranker"`
	LLM        LLMConfig        `yaml:"llm"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// PathsConfig locates the on-disk state.
type PathsConfig struct {
	// DataDir holds the SQLite database, the vector snapshot and the
	// lexical cache.
	DataDir string `yaml:"data_dir"`
}

// SearchConfig tunes the retrieval pipeline.
type SearchConfig struct {
	TopK           int     `yaml:"top_k"`
	RRFK           int     `yaml:"rrf_k"`
	LexicalBackend string  `yaml:"lexical_backend"` // "memory" or "bleve"
	BM25K1         float64 `yaml:"bm25_k1"`
	BM25B          float64 `yaml:"bm25_b"`
	UseReranker    bool    `yaml:"use_reranker"`
}

// EmbeddingsConfig selects the embedding backend.
type EmbeddingsConfig struct {
	OllamaURL     string `yaml:"ollama_url"`
	Model         string `yaml:"model"`
	Dimensions    int    `yaml:"dimensions"`
	CacheSize     int    `yaml:"cache_size"`
	DisableOllama bool   `yaml:"disable_ollama"`
}

// RerankerConfig points at the cross-encoder server.
type RerankerConfig struct {
	Endpoint string `yaml:"endpoint"`
	Model    string `yaml:"model"`

	// TimeoutSeconds bounds each rerank call.
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// Timeout returns the rerank call timeout as a duration.
func (c RerankerConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// LLMConfig selects the answer generation backend.
type LLMConfig struct {
	Backend   string `yaml:"backend"` // "", "ollama", "openai"
	OllamaURL string `yaml:"ollama_url"`
	OpenAIURL string `yaml:"openai_url"`
	Model     string `yaml:"model"`
}

// LoggingConfig controls the slog setup.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or text
	File   string `yaml:"file"`   // empty logs to stderr
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Paths: PathsConfig{DataDir: defaultDataDir()},
		Search: SearchConfig{
			TopK:           5,
			RRFK:           60,
			LexicalBackend: "memory",
			BM25K1:         1.2,
			BM25B:          0.75,
			UseReranker:    false,
		},
		Embeddings: EmbeddingsConfig{
			Model:      "nomic-embed-text",
			Dimensions: 768,
			CacheSize:  4096,
		},
		Reranker: RerankerConfig{TimeoutSeconds: 30},
		Logging:  LoggingConfig{Level: "info", Format: "json"},
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".szperacz"
	}
	return filepath.Join(home, ".szperacz")
}

// Load reads path, falling back to defaults when the file does not exist,
// then applies environment overrides and validates.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Missing config file is fine, defaults apply.
		case err != nil:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides selected settings from SZPERACZ_* variables, which is
// how tests and containers point at alternate servers.
func (c *Config) applyEnv() {
	if v := os.Getenv("SZPERACZ_DATA_DIR"); v != "" {
		c.Paths.DataDir = v
	}
	if v := os.Getenv("SZPERACZ_OLLAMA_URL"); v != "" {
		c.Embeddings.OllamaURL = v
		c.LLM.OllamaURL = v
	}
	if v := os.Getenv("SZPERACZ_RERANKER_URL"); v != "" {
		c.Reranker.Endpoint = v
	}
	if v := os.Getenv("SZPERACZ_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("SZPERACZ_TOP_K"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Search.TopK = n
		}
	}
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	if c.Paths.DataDir == "" {
		return fmt.Errorf("paths.data_dir must not be empty")
	}
	if c.Search.TopK <= 0 {
		return fmt.Errorf("search.top_k must be positive, got %d", c.Search.TopK)
	}
	if c.Search.RRFK <= 0 {
		return fmt.Errorf("search.rrf_k must be positive, got %d", c.Search.RRFK)
	}
	switch c.Search.LexicalBackend {
	case "memory", "bleve":
	default:
		return fmt.Errorf("search.lexical_backend must be \"memory\" or \"bleve\", got %q",
			c.Search.LexicalBackend)
	}
	if c.Search.BM25K1 <= 0 {
		return fmt.Errorf("search.bm25_k1 must be positive, got %g", c.Search.BM25K1)
	}
	if c.Search.BM25B < 0 || c.Search.BM25B > 1 {
		return fmt.Errorf("search.bm25_b must be in [0,1], got %g", c.Search.BM25B)
	}
	if c.Embeddings.Dimensions <= 0 {
		return fmt.Errorf("embeddings.dimensions must be positive, got %d", c.Embeddings.Dimensions)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	return nil
}

// ChunkDBPath is the SQLite database location.
func (c *Config) ChunkDBPath() string {
	return filepath.Join(c.Paths.DataDir, "chunks.db")
}

// GraphPath is the HNSW snapshot location.
func (c *Config) GraphPath() string {
	return filepath.Join(c.Paths.DataDir, "vectors.hnsw")
}

// LexicalCachePath is the BM25 cache location. The bleve backend treats it
// as a directory, the memory backend as a gob file.
func (c *Config) LexicalCachePath() string {
	if c.Search.LexicalBackend == "bleve" {
		return filepath.Join(c.Paths.DataDir, "lexical.bleve")
	}
	return filepath.Join(c.Paths.DataDir, "lexical.gob")
}
