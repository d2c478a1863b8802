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

func buildForPublish(t *testing.T) *guidesearch.Handle {
	t.Helper()
	b := NewBuilder(&stubEmbedding{dims: 4},
		WithChunker(NewWindowChunker(WithWindowWords(15), WithOverlapWords(3), WithMinTailWords(2))))
	result, err := b.Build(context.Background(), []Source{
		{Name: "htn", Filename: "htn.txt", Content: []byte("hypertension " + words(40))},
		{Name: "af", Filename: "af.txt", Content: []byte("fibrillation " + words(20))},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return result.Handle
}

func TestPublishOpenRoundtrip(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "corpus")
	built := buildForPublish(t)

	if err := Publish(ctx, dir, built); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	opened, err := Open(ctx, dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if opened.BuildID() != built.BuildID() {
		t.Errorf("build id %q, want %q", opened.BuildID(), built.BuildID())
	}
	if opened.Corpus().Len() != built.Corpus().Len() {
		t.Fatalf("chunk count %d, want %d", opened.Corpus().Len(), built.Corpus().Len())
	}
	if opened.Index().Len() != built.Index().Len() {
		t.Fatalf("vector count %d, want %d", opened.Index().Len(), built.Index().Len())
	}

	// Canonical order survives the roundtrip.
	want := built.Corpus().Chunks()
	got := opened.Corpus().Chunks()
	for i := range want {
		if got[i].ID != want[i].ID || got[i].Text != want[i].Text {
			t.Fatalf("chunk %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestPublishReplacesExistingCorpus(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "corpus")

	first := buildForPublish(t)
	if err := Publish(ctx, dir, first); err != nil {
		t.Fatalf("first Publish: %v", err)
	}
	second := buildForPublish(t)
	if err := Publish(ctx, dir, second); err != nil {
		t.Fatalf("second Publish: %v", err)
	}

	opened, err := Open(ctx, dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if opened.BuildID() != second.BuildID() {
		t.Errorf("opened build %q, want the replacement %q", opened.BuildID(), second.BuildID())
	}
}

func TestPublishRestoresPreviousCorpusOnSwapFailure(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "corpus")

	first := buildForPublish(t)
	if err := Publish(ctx, dir, first); err != nil {
		t.Fatalf("first Publish: %v", err)
	}

	// Fail the staging swap but let the retire and restore renames through.
	orig := renameDir
	renameDir = func(src, dst string) error {
		if dst == dir && !strings.HasSuffix(src, ".old") {
			return errors.New("swap failed")
		}
		return os.Rename(src, dst)
	}
	defer func() { renameDir = orig }()

	if err := Publish(ctx, dir, buildForPublish(t)); err == nil {
		t.Fatal("Publish succeeded, want swap failure")
	}
	renameDir = orig

	opened, err := Open(ctx, dir)
	if err != nil {
		t.Fatalf("Open after failed publish: %v", err)
	}
	if opened.BuildID() != first.BuildID() {
		t.Errorf("opened build %q, want the restored original %q", opened.BuildID(), first.BuildID())
	}
}

func TestOpenMissingCorpus(t *testing.T) {
	_, err := Open(context.Background(), filepath.Join(t.TempDir(), "nope"))
	if !errors.Is(err, guidesearch.ErrCorpusNotFound) {
		t.Errorf("got %v, want ErrCorpusNotFound", err)
	}
}

func TestOpenedCorpusServesQueries(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "corpus")
	if err := Publish(ctx, dir, buildForPublish(t)); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	handle, err := Open(ctx, dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	eng := guidesearch.NewEngine(handle, &stubEmbedding{dims: 4})
	results, err := eng.Search(ctx, "hypertension guidance", 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("no results from reopened corpus")
	}
	for _, r := range results {
		if r.ChunkID == "" || r.Text == "" {
			t.Errorf("incomplete result %+v", r)
		}
	}
}
