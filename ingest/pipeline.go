package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	guidesearch "github.com/clinicalrag/guidesearch"
	"github.com/clinicalrag/guidesearch/index/flat"
	"github.com/clinicalrag/guidesearch/store/sqlite"
)

// Corpus directory layout. The two files are always written and swapped in
// together so a reader never pairs chunks from one build with vectors from
// another.
const (
	corpusFile  = "corpus.db"
	vectorsFile = "vectors.bin"
)

// Publish writes the handle's corpus and vectors into dir atomically. It
// stages the files in a temporary sibling directory and renames it into
// place; an existing corpus at dir is replaced.
//
// Only a *flat.Index produces a vectors file. Other indexes (pgvector) are
// already persistent on their own side, so just the corpus is written;
// reopen such a corpus with OpenWith.
func Publish(ctx context.Context, dir string, handle *guidesearch.Handle) error {
	parent := filepath.Dir(dir)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return fmt.Errorf("create corpus parent dir: %w", err)
	}
	staging, err := os.MkdirTemp(parent, ".staging-*")
	if err != nil {
		return fmt.Errorf("create staging dir: %w", err)
	}
	defer os.RemoveAll(staging)

	store := sqlite.New(filepath.Join(staging, corpusFile))
	if err := store.Init(ctx); err != nil {
		store.Close()
		return fmt.Errorf("init corpus store: %w", err)
	}
	if err := store.SaveCorpus(ctx, handle.Corpus(), handle.BuildID()); err != nil {
		store.Close()
		return fmt.Errorf("save corpus: %w", err)
	}
	if err := store.Close(); err != nil {
		return fmt.Errorf("close corpus store: %w", err)
	}

	if idx, ok := handle.Index().(*flat.Index); ok {
		if err := idx.Save(filepath.Join(staging, vectorsFile)); err != nil {
			return fmt.Errorf("save vectors: %w", err)
		}
	}

	// Swap the staged directory into place. The old corpus is moved aside
	// first because rename cannot replace a non-empty directory. If the final
	// rename fails the retired corpus is put back, so dir never ends up empty
	// when it held a corpus before.
	old := dir + ".old"
	os.RemoveAll(old)
	retired := false
	if _, err := os.Stat(dir); err == nil {
		if err := renameDir(dir, old); err != nil {
			return fmt.Errorf("retire previous corpus: %w", err)
		}
		retired = true
	}
	if err := renameDir(staging, dir); err != nil {
		if retired {
			if restoreErr := renameDir(old, dir); restoreErr != nil {
				return fmt.Errorf("publish corpus: %w (restore previous: %v)", err, restoreErr)
			}
		}
		return fmt.Errorf("publish corpus: %w", err)
	}
	os.RemoveAll(old)
	return nil
}

// renameDir is swapped out in tests to exercise swap failures.
var renameDir = os.Rename

// Open loads a published corpus directory and returns a ready handle.
// A missing directory or corpus file reports ErrCorpusNotFound.
func Open(ctx context.Context, dir string) (*guidesearch.Handle, error) {
	dbPath := filepath.Join(dir, corpusFile)
	if !sqlite.Exists(dbPath) {
		return nil, fmt.Errorf("corpus dir %s: %w", dir, guidesearch.ErrCorpusNotFound)
	}

	store := sqlite.New(dbPath)
	defer store.Close()
	corpus, buildID, err := store.LoadCorpus(ctx)
	if err != nil {
		return nil, err
	}

	idx, err := flat.Load(filepath.Join(dir, vectorsFile))
	if err != nil {
		return nil, err
	}

	return guidesearch.NewHandle(corpus, idx, buildID)
}

// OpenWith loads a published corpus directory and pairs it with an
// externally persistent index, such as a pgvector table holding the same
// build's vectors. The count check in NewHandle still applies.
func OpenWith(ctx context.Context, dir string, idx guidesearch.VectorIndex) (*guidesearch.Handle, error) {
	dbPath := filepath.Join(dir, corpusFile)
	if !sqlite.Exists(dbPath) {
		return nil, fmt.Errorf("corpus dir %s: %w", dir, guidesearch.ErrCorpusNotFound)
	}

	store := sqlite.New(dbPath)
	defer store.Close()
	corpus, buildID, err := store.LoadCorpus(ctx)
	if err != nil {
		return nil, err
	}
	return guidesearch.NewHandle(corpus, idx, buildID)
}
