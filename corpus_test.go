package guidesearch

import (
	"errors"
	"testing"
)

func TestNewCorpusValidation(t *testing.T) {
	good := []Chunk{
		testChunk("doc", 1, 0, "alpha"),
		testChunk("doc", 1, 1, "beta"),
	}
	if _, err := NewCorpus(good, nil); err != nil {
		t.Fatalf("NewCorpus: %v", err)
	}

	dup := []Chunk{
		testChunk("doc", 1, 0, "alpha"),
		testChunk("doc", 1, 0, "beta"),
	}
	if _, err := NewCorpus(dup, nil); err == nil {
		t.Error("duplicate chunk id accepted")
	}

	empty := []Chunk{{ID: "x", DocumentName: "doc", Text: ""}}
	if _, err := NewCorpus(empty, nil); err == nil {
		t.Error("empty chunk text accepted")
	}

	noID := []Chunk{{DocumentName: "doc", Text: "alpha"}}
	if _, err := NewCorpus(noID, nil); err == nil {
		t.Error("empty chunk id accepted")
	}
}

func TestCorpusLookup(t *testing.T) {
	chunks := []Chunk{
		testChunk("doc", 1, 0, "alpha"),
		testChunk("doc", 2, 1, "beta"),
	}
	c, err := NewCorpus(chunks, nil)
	if err != nil {
		t.Fatalf("NewCorpus: %v", err)
	}

	ch, ok := c.ChunkAt(1)
	if !ok || ch.Text != "beta" {
		t.Errorf("ChunkAt(1) = %+v, %v", ch, ok)
	}
	if _, ok := c.ChunkAt(2); ok {
		t.Error("ChunkAt out of range returned ok")
	}
	if _, ok := c.ChunkAt(-1); ok {
		t.Error("ChunkAt(-1) returned ok")
	}

	ch, ok = c.ChunkByID(chunks[0].ID)
	if !ok || ch.Text != "alpha" {
		t.Errorf("ChunkByID = %+v, %v", ch, ok)
	}
	if _, ok := c.ChunkByID("missing"); ok {
		t.Error("ChunkByID(missing) returned ok")
	}
}

func TestNewHandleCountMismatch(t *testing.T) {
	c, err := NewCorpus([]Chunk{testChunk("doc", 1, 0, "alpha")}, nil)
	if err != nil {
		t.Fatalf("NewCorpus: %v", err)
	}
	idx := &fakeIndex{}
	idx.Add([][]float32{{1, 0}, {0, 1}}) // two vectors, one chunk

	_, err = NewHandle(c, idx, "b1")
	var dep *DependencyError
	if !errors.As(err, &dep) || dep.Capability != "index" {
		t.Fatalf("got %v, want index DependencyError", err)
	}
}

func TestNewHandleRequiresBoth(t *testing.T) {
	c, _ := NewCorpus([]Chunk{testChunk("doc", 1, 0, "alpha")}, nil)
	if _, err := NewHandle(nil, &fakeIndex{}, "b1"); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("nil corpus: got %v, want ErrInvalidArgument", err)
	}
	if _, err := NewHandle(c, nil, "b1"); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("nil index: got %v, want ErrInvalidArgument", err)
	}
}
