// Command guidesearch queries a published corpus from the command line.
//
// Usage:
//
//	guidesearch [-k 5] [-clinical] "optimal blood pressure targets"
//	guidesearch -doc "esc-htn-2024" "screening intervals"
//	guidesearch -similar esc-htn-2024_page12_chunk3
//	guidesearch -docs
//	guidesearch -status
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

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
	corpusDir := flag.String("corpus", "", "corpus directory (overrides config)")
	topK := flag.Int("k", 0, "number of results (overrides config)")
	clinical := flag.Bool("clinical", false, "extract clinical terms and expand the query")
	document := flag.String("doc", "", "restrict the search to one document (name substring)")
	similar := flag.String("similar", "", "find chunks similar to this chunk id instead of querying")
	listDocs := flag.Bool("docs", false, "list corpus documents and exit")
	status := flag.Bool("status", false, "print corpus status and exit")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	cfg := config.Load(*configPath)
	if *corpusDir != "" {
		cfg.Corpus.Dir = *corpusDir
	}
	if *topK <= 0 {
		*topK = cfg.Retrieval.TopK
	}

	ctx := context.Background()
	handle, err := openCorpus(ctx, cfg)
	if err != nil && !errors.Is(err, guidesearch.ErrCorpusNotFound) {
		logger.Error("corpus open failed", "dir", cfg.Corpus.Dir, "error", err)
		os.Exit(1)
	}

	engine := guidesearch.NewEngine(handle, newEmbedder(cfg),
		guidesearch.WithOverfetchFactor(cfg.Retrieval.OverfetchFactor),
		guidesearch.WithDedupOverlap(cfg.Retrieval.DedupOverlap),
		guidesearch.WithEngineLogger(logger),
	)

	if *status {
		st := engine.StatusReport()
		fmt.Printf("ready: %v\nchunks: %d\ndocuments: %d\n", st.Ready, st.TotalChunks, st.TotalDocuments)
		return
	}
	if *listDocs {
		docs, err := engine.ListDocuments()
		if err != nil {
			logger.Error("listing documents failed", "error", err)
			os.Exit(1)
		}
		for _, d := range docs {
			fmt.Printf("%-40s %4d pages %5d chunks\n", d.Name, d.TotalPages, d.TotalChunks)
		}
		return
	}

	query := strings.TrimSpace(strings.Join(flag.Args(), " "))
	if query == "" && *similar == "" {
		fmt.Fprintln(os.Stderr, "usage: guidesearch [flags] \"query text\"")
		os.Exit(2)
	}

	search := engine.Search
	searchDocument := engine.SearchDocument
	similarChunks := engine.SimilarChunks
	clinicalSearch := engine.ClinicalSearch
	if cfg.Observer.Enabled {
		inst, shutdown, err := observer.Init(ctx)
		if err != nil {
			logger.Error("observer init failed", "error", err)
			os.Exit(1)
		}
		defer shutdown(ctx)
		observed := observer.WrapEngine(engine, inst)
		search = observed.Search
		searchDocument = observed.SearchDocument
		similarChunks = observed.SimilarChunks
		clinicalSearch = observed.ClinicalSearch
	}

	var results []guidesearch.QueryResult
	switch {
	case *similar != "":
		rs, err := similarChunks(ctx, *similar, *topK)
		if err != nil {
			exitQuery(logger, err)
		}
		results = rs
	case *clinical:
		answer, err := clinicalSearch(ctx, query, *topK)
		if err != nil {
			exitQuery(logger, err)
		}
		if len(answer.Terms) > 0 {
			fmt.Printf("clinical terms: %s\n\n", strings.Join(answer.Terms, ", "))
		}
		results = answer.Results
	case *document != "":
		rs, err := searchDocument(ctx, *document, query, *topK)
		if err != nil {
			exitQuery(logger, err)
		}
		results = rs
	default:
		rs, err := search(ctx, query, *topK)
		if err != nil {
			exitQuery(logger, err)
		}
		results = rs
	}

	if len(results) == 0 {
		fmt.Println("no results")
		return
	}
	for i, r := range results {
		fmt.Printf("%d. [%.3f] %s p.%d", i+1, r.SimilarityScore, r.DocumentName, r.PageNumber)
		if r.SectionTitle != "" {
			fmt.Printf("  (%s)", r.SectionTitle)
		}
		fmt.Printf("\n   %s\n", excerpt(r.Text, 240))
	}
}

func exitQuery(logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, guidesearch.ErrNotReady):
		fmt.Fprintln(os.Stderr, "no corpus loaded; run guidesearch-build first")
	case errors.Is(err, guidesearch.ErrInvalidArgument):
		fmt.Fprintln(os.Stderr, err)
	default:
		logger.Error("query failed", "error", err)
	}
	os.Exit(1)
}

func excerpt(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= max {
		return s
	}
	cut := strings.LastIndex(s[:max], " ")
	if cut <= 0 {
		cut = max
	}
	return s[:cut] + "..."
}

// openCorpus pairs the on-disk corpus with its vectors: the sidecar file
// for flat builds, or the pgvector table when Postgres is configured.
func openCorpus(ctx context.Context, cfg config.Config) (*guidesearch.Handle, error) {
	if cfg.Postgres.URL == "" {
		return ingest.Open(ctx, cfg.Corpus.Dir)
	}
	pool, err := pgxpool.New(ctx, cfg.Postgres.URL)
	if err != nil {
		return nil, err
	}
	idx := pgvector.New(pool, cfg.Embedding.Dimensions,
		pgvector.WithTable(cfg.Postgres.Table),
		pgvector.WithEFSearch(cfg.Postgres.HNSWEFSearch),
	)
	if err := idx.Init(ctx); err != nil {
		return nil, err
	}
	return ingest.OpenWith(ctx, cfg.Corpus.Dir, idx)
}

func newEmbedder(cfg config.Config) guidesearch.EmbeddingProvider {
	if cfg.Embedding.Provider == "gemini" {
		return gemini.NewEmbedding(cfg.Embedding.APIKey, cfg.Embedding.Model, cfg.Embedding.Dimensions)
	}
	return openaicompat.NewEmbedding(cfg.Embedding.APIKey, cfg.Embedding.Model,
		cfg.Embedding.BaseURL, cfg.Embedding.Dimensions)
}
