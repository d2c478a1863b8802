// Command guidesearch-build runs the offline ingestion pipeline: it loads
// every guideline document from a source directory, chunks and embeds the
// text, and publishes the corpus atomically for guidesearch to query.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	guidesearch "github.com/clinicalrag/guidesearch"
	"github.com/clinicalrag/guidesearch/index/pgvector"
	"github.com/clinicalrag/guidesearch/ingest"
	"github.com/clinicalrag/guidesearch/internal/config"
	"github.com/clinicalrag/guidesearch/observer"
	"github.com/clinicalrag/guidesearch/provider/gemini"
	"github.com/clinicalrag/guidesearch/provider/openaicompat"
)

func main() {
	configPath := flag.String("config", os.Getenv("GUIDESEARCH_CONFIG"), "path to guidesearch.toml")
	sourceDir := flag.String("source", "", "directory of guideline documents (overrides config)")
	corpusDir := flag.String("corpus", "", "output corpus directory (overrides config)")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	cfg := config.Load(*configPath)
	if *sourceDir != "" {
		cfg.Corpus.SourceDir = *sourceDir
	}
	if *corpusDir != "" {
		cfg.Corpus.Dir = *corpusDir
	}

	ctx := context.Background()
	embedder := newEmbedder(cfg)

	if cfg.Observer.Enabled {
		inst, shutdown, err := observer.Init(ctx)
		if err != nil {
			logger.Error("observer init failed", "error", err)
			os.Exit(1)
		}
		defer shutdown(ctx)
		embedder = observer.WrapEmbedding(embedder, cfg.Embedding.Model, inst)
	}

	sources, err := ingest.SourcesFromDir(cfg.Corpus.SourceDir)
	if err != nil {
		logger.Error("listing sources failed", "dir", cfg.Corpus.SourceDir, "error", err)
		os.Exit(1)
	}
	if len(sources) == 0 {
		logger.Error("no guideline documents found", "dir", cfg.Corpus.SourceDir)
		os.Exit(1)
	}

	opts := []ingest.BuilderOption{
		ingest.WithChunker(ingest.NewWindowChunker(
			ingest.WithWindowWords(cfg.Chunking.WindowWords),
			ingest.WithOverlapWords(cfg.Chunking.OverlapWords),
			ingest.WithMinTailWords(cfg.Chunking.MinTailWords),
		)),
		ingest.WithBatchSize(cfg.Embedding.BatchSize),
		ingest.WithLogger(logger),
	}

	// With Postgres configured, vectors go straight into a pgvector table
	// and only the corpus metadata is published to disk.
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.New(ctx, cfg.Postgres.URL)
		if err != nil {
			logger.Error("postgres connect failed", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		opts = append(opts, ingest.WithIndexFactory(func(dim int) guidesearch.VectorIndex {
			idx := pgvector.New(pool, dim,
				pgvector.WithTable(cfg.Postgres.Table),
				pgvector.WithHNSWM(cfg.Postgres.HNSWM),
				pgvector.WithEFConstruction(cfg.Postgres.HNSWEFConstruction),
				pgvector.WithEFSearch(cfg.Postgres.HNSWEFSearch),
			)
			if err := idx.Init(ctx); err != nil {
				logger.Error("pgvector init failed", "error", err)
				os.Exit(1)
			}
			if err := idx.Clear(ctx); err != nil {
				logger.Error("pgvector clear failed", "error", err)
				os.Exit(1)
			}
			return idx
		}))
	}

	builder := ingest.NewBuilder(embedder, opts...)

	result, err := builder.Build(ctx, sources)
	if err != nil {
		var buildErr *guidesearch.BuildError
		if errors.As(err, &buildErr) {
			for _, f := range buildErr.Failures {
				logger.Error("document failed", "document", f.Document, "error", f.Err)
			}
		}
		logger.Error("build failed", "error", err)
		os.Exit(1)
	}
	for _, f := range result.Failures {
		logger.Warn("document skipped", "document", f.Document, "error", f.Err)
	}

	if err := ingest.Publish(ctx, cfg.Corpus.Dir, result.Handle); err != nil {
		logger.Error("publish failed", "dir", cfg.Corpus.Dir, "error", err)
		os.Exit(1)
	}

	docs := result.Handle.Corpus().Documents()
	fmt.Printf("build %s: %d documents, %d chunks -> %s\n",
		result.BuildID, len(docs), result.Chunks, cfg.Corpus.Dir)
	for _, d := range docs {
		fmt.Printf("  %-40s %4d pages %5d chunks\n", d.Name, d.TotalPages, d.TotalChunks)
	}
	if len(result.Failures) > 0 {
		fmt.Printf("  %d document(s) skipped, see log\n", len(result.Failures))
	}
}

func newEmbedder(cfg config.Config) guidesearch.EmbeddingProvider {
	if cfg.Embedding.Provider == "gemini" {
		return gemini.NewEmbedding(cfg.Embedding.APIKey, cfg.Embedding.Model, cfg.Embedding.Dimensions)
	}
	return openaicompat.NewEmbedding(cfg.Embedding.APIKey, cfg.Embedding.Model,
		cfg.Embedding.BaseURL, cfg.Embedding.Dimensions)
}
