// Package config loads guidesearch configuration from a TOML file with
// environment-variable overrides.
package config

import (
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Corpus    CorpusConfig    `toml:"corpus"`
	Chunking  ChunkingConfig  `toml:"chunking"`
	Retrieval RetrievalConfig `toml:"retrieval"`
	Embedding EmbeddingConfig `toml:"embedding"`
	Postgres  PostgresConfig  `toml:"postgres"`
	Observer  ObserverConfig  `toml:"observer"`
}

type CorpusConfig struct {
	// Dir holds the published corpus (corpus.db plus vectors.bin).
	Dir string `toml:"dir"`
	// SourceDir is scanned for guideline documents during builds.
	SourceDir string `toml:"source_dir"`
}

type ChunkingConfig struct {
	WindowWords  int `toml:"window_words"`
	OverlapWords int `toml:"overlap_words"`
	MinTailWords int `toml:"min_tail_words"`
}

type RetrievalConfig struct {
	TopK            int     `toml:"top_k"`
	OverfetchFactor int     `toml:"overfetch_factor"`
	DedupOverlap    float64 `toml:"dedup_overlap"`
}

type EmbeddingConfig struct {
	Provider   string `toml:"provider"` // "openai" or "gemini"
	Model      string `toml:"model"`
	BaseURL    string `toml:"base_url"`
	APIKey     string `toml:"api_key"`
	Dimensions int    `toml:"dimensions"`
	BatchSize  int    `toml:"batch_size"`
}

type PostgresConfig struct {
	// URL enables the pgvector index when set; empty keeps the flat index.
	URL                string `toml:"url"`
	Table              string `toml:"table"`
	HNSWM              int    `toml:"hnsw_m"`
	HNSWEFConstruction int    `toml:"hnsw_ef_construction"`
	HNSWEFSearch       int    `toml:"hnsw_ef_search"`
}

type ObserverConfig struct {
	Enabled bool `toml:"enabled"`
}

// Default returns a Config with all defaults applied.
func Default() Config {
	return Config{
		Corpus:    CorpusConfig{Dir: "corpus", SourceDir: "guidelines"},
		Chunking:  ChunkingConfig{WindowWords: 800, OverlapWords: 100, MinTailWords: 50},
		Retrieval: RetrievalConfig{TopK: 5, OverfetchFactor: 4, DedupOverlap: 0.6},
		Embedding: EmbeddingConfig{
			Provider:   "openai",
			Model:      "text-embedding-3-small",
			BaseURL:    "https://api.openai.com/v1",
			Dimensions: 1536,
			BatchSize:  32,
		},
		Postgres: PostgresConfig{Table: "corpus_vectors"},
	}
}

// Load reads config: defaults -> TOML file -> env vars (env wins).
func Load(path string) Config {
	cfg := Default()

	if path == "" {
		path = "guidesearch.toml"
	}

	if data, err := os.ReadFile(path); err == nil {
		_ = toml.Unmarshal(data, &cfg)
	}

	// Env overrides
	if v := os.Getenv("GUIDESEARCH_CORPUS_DIR"); v != "" {
		cfg.Corpus.Dir = v
	}
	if v := os.Getenv("GUIDESEARCH_SOURCE_DIR"); v != "" {
		cfg.Corpus.SourceDir = v
	}
	if v := os.Getenv("GUIDESEARCH_EMBEDDING_API_KEY"); v != "" {
		cfg.Embedding.APIKey = v
	}
	if v := os.Getenv("GUIDESEARCH_EMBEDDING_BASE_URL"); v != "" {
		cfg.Embedding.BaseURL = v
	}
	if v := os.Getenv("GUIDESEARCH_EMBEDDING_MODEL"); v != "" {
		cfg.Embedding.Model = v
	}
	if v := os.Getenv("GUIDESEARCH_EMBEDDING_DIMENSIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Embedding.Dimensions = n
		}
	}
	if v := os.Getenv("GUIDESEARCH_POSTGRES_URL"); v != "" {
		cfg.Postgres.URL = v
	}
	if v := os.Getenv("GUIDESEARCH_OBSERVER_ENABLED"); v == "true" || v == "1" {
		cfg.Observer.Enabled = true
	}

	return cfg
}
