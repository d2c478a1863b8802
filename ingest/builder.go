package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	guidesearch "github.com/clinicalrag/guidesearch"
	"github.com/clinicalrag/guidesearch/index/flat"
)

// nopLogger discards all output.
var nopLogger = slog.New(discardHandler{})

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }

// Source is one document given to a build: its corpus name, the filename
// used to pick a loader, and the raw bytes.
type Source struct {
	Name     string
	Filename string
	Content  []byte
}

// SourcesFromDir lists the loadable files of a directory as build sources,
// sorted by filename so builds are deterministic. File contents are read
// lazily by Build, not here.
func SourcesFromDir(dir string) ([]Source, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read source dir: %w", err)
	}
	var sources []Source
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".pdf", ".html", ".htm", ".md", ".markdown", ".txt":
			sources = append(sources, Source{
				Name:     DocumentNameFromFilename(e.Name()),
				Filename: filepath.Join(dir, e.Name()),
			})
		}
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i].Filename < sources[j].Filename })
	return sources, nil
}

// BuildResult is the outcome of one corpus build. Failures holds the
// documents that could not be loaded; the build proceeded without them.
type BuildResult struct {
	Handle   *guidesearch.Handle
	BuildID  string
	Chunks   int
	Failures []*guidesearch.LoadError
}

// Err returns the aggregated per-document failures as a BuildError, or nil
// when every document loaded.
func (r BuildResult) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}
	return &guidesearch.BuildError{Failures: r.Failures}
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithChunker sets the chunker. Default: NewWindowChunker().
func WithChunker(c *WindowChunker) BuilderOption {
	return func(b *Builder) { b.chunker = c }
}

// WithLoader overrides the loader for a filename extension (without dot).
func WithLoader(ext string, l Loader) BuilderOption {
	return func(b *Builder) { b.loaders[ext] = l }
}

// WithBatchSize sets the number of chunk texts per Embed call. Default: 32.
func WithBatchSize(n int) BuilderOption {
	return func(b *Builder) {
		if n > 0 {
			b.batchSize = n
		}
	}
}

// WithIndexFactory sets how the build's vector index is created. The factory
// receives the embedding dimension. Default: a brute-force cosine index.
func WithIndexFactory(f func(dim int) guidesearch.VectorIndex) BuilderOption {
	return func(b *Builder) { b.newIndex = f }
}

// WithLogger sets a structured logger. When unset, nothing is logged.
func WithLogger(l *slog.Logger) BuilderOption {
	return func(b *Builder) { b.logger = l }
}

// Builder runs the offline ingestion pipeline: load each source document
// page by page, chunk, embed in batches, and assemble a corpus handle.
// Per-document load failures are collected and the build continues with the
// remaining documents; embedder failures abort the build.
type Builder struct {
	embedder  guidesearch.EmbeddingProvider
	chunker   *WindowChunker
	loaders   map[string]Loader
	batchSize int
	newIndex  func(dim int) guidesearch.VectorIndex
	logger    *slog.Logger
}

// NewBuilder creates a Builder with the default loaders and chunker.
func NewBuilder(embedder guidesearch.EmbeddingProvider, opts ...BuilderOption) *Builder {
	b := &Builder{
		embedder:  embedder,
		chunker:   NewWindowChunker(),
		loaders:   map[string]Loader{},
		batchSize: 32,
		logger:    nopLogger,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

func (b *Builder) loaderFor(filename string) Loader {
	ext := filepath.Ext(filename)
	if l, ok := b.loaders[trimDot(ext)]; ok {
		return l
	}
	return LoaderForExtension(ext)
}

func trimDot(ext string) string {
	if len(ext) > 0 && ext[0] == '.' {
		return ext[1:]
	}
	return ext
}

// Build ingests all sources and returns an in-memory handle. The returned
// BuildResult carries per-document failures; check result.Err() to report
// them. Build itself fails only when nothing could be built at all or a
// consumed capability broke.
func (b *Builder) Build(ctx context.Context, sources []Source) (BuildResult, error) {
	if len(sources) == 0 {
		return BuildResult{}, fmt.Errorf("%w: no sources", guidesearch.ErrInvalidArgument)
	}

	buildID := guidesearch.NewBuildID()
	var (
		allChunks []guidesearch.Chunk
		documents []guidesearch.DocumentSummary
		failures  []*guidesearch.LoadError
		seenNames = map[string]bool{}
	)

	for _, src := range sources {
		name := src.Name
		if name == "" {
			name = DocumentNameFromFilename(src.Filename)
		}
		if seenNames[name] {
			failures = append(failures, &guidesearch.LoadError{
				Document: name,
				Err:      fmt.Errorf("duplicate document name"),
			})
			continue
		}

		content := src.Content
		if content == nil && src.Filename != "" {
			data, err := os.ReadFile(src.Filename)
			if err != nil {
				failures = append(failures, &guidesearch.LoadError{Document: name, Err: err})
				continue
			}
			content = data
		}

		pages, err := b.loaderFor(src.Filename).Load(name, content)
		if err != nil {
			b.logger.Error("document load failed", "document", name, "error", err)
			failures = append(failures, &guidesearch.LoadError{Document: name, Err: err})
			continue
		}
		seenNames[name] = true

		chunks := b.chunker.ChunkDocument(name, pages)
		b.logger.Info("document chunked", "document", name, "pages", len(pages), "chunks", len(chunks))
		allChunks = append(allChunks, chunks...)
		documents = append(documents, guidesearch.DocumentSummary{
			Name:        name,
			Source:      src.Filename,
			TotalPages:  len(pages),
			TotalChunks: len(chunks),
			ProcessedAt: guidesearch.NowUnix(),
		})
	}

	if len(allChunks) == 0 {
		if len(failures) > 0 {
			return BuildResult{Failures: failures}, &guidesearch.BuildError{Failures: failures}
		}
		return BuildResult{}, fmt.Errorf("no text extracted from any source")
	}

	vectors, err := b.embedAll(ctx, allChunks)
	if err != nil {
		return BuildResult{Failures: failures}, err
	}

	corpus, err := guidesearch.NewCorpus(allChunks, documents)
	if err != nil {
		return BuildResult{Failures: failures}, fmt.Errorf("assemble corpus: %w", err)
	}

	idx := b.newIndexFor(len(vectors[0]))
	if err := idx.Add(vectors); err != nil {
		return BuildResult{Failures: failures}, &guidesearch.DependencyError{Capability: "index", Err: err}
	}

	handle, err := guidesearch.NewHandle(corpus, idx, buildID)
	if err != nil {
		return BuildResult{Failures: failures}, err
	}

	b.logger.Info("build completed",
		"build_id", buildID, "documents", len(documents), "chunks", len(allChunks), "failed_documents", len(failures))
	return BuildResult{Handle: handle, BuildID: buildID, Chunks: len(allChunks), Failures: failures}, nil
}

func (b *Builder) newIndexFor(dim int) guidesearch.VectorIndex {
	if b.newIndex != nil {
		return b.newIndex(dim)
	}
	return flat.New(dim, guidesearch.MetricCosine)
}

// embedAll embeds chunk texts in batches and validates the provider output
// against the chunk count and declared dimensions.
func (b *Builder) embedAll(ctx context.Context, chunks []guidesearch.Chunk) ([][]float32, error) {
	vectors := make([][]float32, 0, len(chunks))
	for i := 0; i < len(chunks); i += b.batchSize {
		end := i + b.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		texts := make([]string, end-i)
		for j := i; j < end; j++ {
			texts[j-i] = chunks[j].Text
		}

		batch, err := b.embedder.Embed(ctx, texts)
		if err != nil {
			return nil, &guidesearch.DependencyError{Capability: "embedder",
				Err: fmt.Errorf("batch %d-%d: %w", i, end, err)}
		}
		if len(batch) != len(texts) {
			return nil, &guidesearch.DependencyError{Capability: "embedder",
				Err: fmt.Errorf("batch %d-%d: expected %d vectors, got %d", i, end, len(texts), len(batch))}
		}
		for _, v := range batch {
			if d := b.embedder.Dimensions(); d > 0 && len(v) != d {
				return nil, &guidesearch.DependencyError{Capability: "embedder",
					Err: fmt.Errorf("dimension mismatch: expected %d, got %d", d, len(v))}
			}
		}
		vectors = append(vectors, batch...)
		b.logger.Debug("batch embedded", "from", i, "to", end)
	}
	return vectors, nil
}
