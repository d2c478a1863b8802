package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	guidesearch "github.com/clinicalrag/guidesearch"
)

// stubEmbedding returns deterministic per-text vectors.
type stubEmbedding struct {
	dims  int
	fail  error
	calls int
}

func (e *stubEmbedding) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.calls++
	if e.fail != nil {
		return nil, e.fail
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, e.dims)
		v[len(t)%e.dims] = 1
		out[i] = v
	}
	return out, nil
}

func (e *stubEmbedding) Dimensions() int { return e.dims }
func (e *stubEmbedding) Name() string    { return "stub" }

func words(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = "word"
	}
	return strings.Join(parts, " ")
}

func TestSourcesFromDirMatchesExtensionsCaseInsensitively(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"REPORT.PDF", "notes.TXT", "guide.md", "skip.dat"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	sources, err := SourcesFromDir(dir)
	if err != nil {
		t.Fatalf("SourcesFromDir: %v", err)
	}
	if len(sources) != 3 {
		t.Fatalf("got %d sources, want 3: %+v", len(sources), sources)
	}
	for _, s := range sources {
		if strings.HasSuffix(s.Filename, ".dat") {
			t.Errorf("unsupported file listed: %s", s.Filename)
		}
	}
}

func TestBuildAssemblesHandle(t *testing.T) {
	emb := &stubEmbedding{dims: 4}
	b := NewBuilder(emb, WithChunker(NewWindowChunker(
		WithWindowWords(20), WithOverlapWords(5), WithMinTailWords(2))))

	sources := []Source{
		{Name: "htn", Filename: "htn.txt", Content: []byte(words(50) + "\f" + words(30))},
		{Name: "af", Filename: "af.txt", Content: []byte(words(25))},
	}
	result, err := b.Build(context.Background(), sources)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(result.Failures) != 0 {
		t.Fatalf("failures: %v", result.Failures)
	}
	if result.Handle == nil || result.BuildID == "" {
		t.Fatal("missing handle or build id")
	}

	corpus := result.Handle.Corpus()
	if corpus.Len() != result.Handle.Index().Len() {
		t.Errorf("chunk count %d != vector count %d", corpus.Len(), result.Handle.Index().Len())
	}
	if result.Chunks != corpus.Len() {
		t.Errorf("result.Chunks = %d, corpus has %d", result.Chunks, corpus.Len())
	}

	docs := corpus.Documents()
	if len(docs) != 2 {
		t.Fatalf("got %d documents, want 2", len(docs))
	}
	if docs[0].Name != "htn" || docs[0].TotalPages != 2 {
		t.Errorf("doc summary = %+v", docs[0])
	}
	if docs[0].TotalChunks+docs[1].TotalChunks != corpus.Len() {
		t.Error("document chunk counts do not sum to corpus size")
	}
}

func TestBuildBatchesEmbedding(t *testing.T) {
	emb := &stubEmbedding{dims: 4}
	b := NewBuilder(emb,
		WithChunker(NewWindowChunker(WithWindowWords(10), WithOverlapWords(0), WithMinTailWords(1))),
		WithBatchSize(2))

	// 5 chunks with batch size 2 means 3 embed calls.
	result, err := b.Build(context.Background(), []Source{
		{Name: "doc", Filename: "doc.txt", Content: []byte(words(50))},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if result.Chunks != 5 {
		t.Fatalf("got %d chunks, want 5", result.Chunks)
	}
	if emb.calls != 3 {
		t.Errorf("embed calls = %d, want 3", emb.calls)
	}
}

func TestBuildContinuesPastFailedDocuments(t *testing.T) {
	emb := &stubEmbedding{dims: 4}
	b := NewBuilder(emb)

	sources := []Source{
		{Name: "good", Filename: "good.txt", Content: []byte(words(60))},
		{Name: "missing", Filename: "/nonexistent/novel.pdf"},
	}
	result, err := b.Build(context.Background(), sources)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(result.Failures) != 1 || result.Failures[0].Document != "missing" {
		t.Fatalf("failures = %v", result.Failures)
	}
	if result.Handle == nil {
		t.Fatal("build did not proceed with the remaining document")
	}

	var be *guidesearch.BuildError
	if !errors.As(result.Err(), &be) {
		t.Errorf("Err() = %v, want BuildError", result.Err())
	}
}

func TestBuildRejectsDuplicateNames(t *testing.T) {
	emb := &stubEmbedding{dims: 4}
	b := NewBuilder(emb)

	result, err := b.Build(context.Background(), []Source{
		{Name: "doc", Filename: "a.txt", Content: []byte(words(60))},
		{Name: "doc", Filename: "b.txt", Content: []byte(words(40))},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(result.Failures) != 1 {
		t.Fatalf("failures = %v, want the duplicate rejected", result.Failures)
	}
	if got := result.Handle.Corpus().Documents(); len(got) != 1 {
		t.Errorf("got %d documents, want 1", len(got))
	}
}

func TestBuildAllDocumentsFailed(t *testing.T) {
	emb := &stubEmbedding{dims: 4}
	b := NewBuilder(emb)

	_, err := b.Build(context.Background(), []Source{
		{Name: "one", Filename: "/nonexistent/one.txt"},
		{Name: "two", Filename: "/nonexistent/two.txt"},
	})
	var be *guidesearch.BuildError
	if !errors.As(err, &be) {
		t.Fatalf("got %v, want BuildError", err)
	}
	if len(be.Failures) != 2 {
		t.Errorf("got %d failures, want 2", len(be.Failures))
	}
}

func TestBuildNoSources(t *testing.T) {
	b := NewBuilder(&stubEmbedding{dims: 4})
	if _, err := b.Build(context.Background(), nil); !errors.Is(err, guidesearch.ErrInvalidArgument) {
		t.Errorf("got %v, want ErrInvalidArgument", err)
	}
}

func TestBuildEmbedderFailureAborts(t *testing.T) {
	emb := &stubEmbedding{dims: 4, fail: errors.New("quota exceeded")}
	b := NewBuilder(emb)

	_, err := b.Build(context.Background(), []Source{
		{Name: "doc", Filename: "doc.txt", Content: []byte(words(60))},
	})
	var dep *guidesearch.DependencyError
	if !errors.As(err, &dep) || dep.Capability != "embedder" {
		t.Fatalf("got %v, want embedder DependencyError", err)
	}
}
