package flat

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	guidesearch "github.com/clinicalrag/guidesearch"
)

func truncateFile(t *testing.T, path string, size int64) {
	t.Helper()
	if err := os.Truncate(path, size); err != nil {
		t.Fatalf("truncate: %v", err)
	}
}

func TestAddValidatesDimension(t *testing.T) {
	ix := New(3, guidesearch.MetricCosine)
	if err := ix.Add([][]float32{{1, 0, 0}, {0, 1}}); err == nil {
		t.Error("dimension mismatch accepted")
	}
	if ix.Len() != 0 {
		t.Errorf("Len = %d after rejected Add", ix.Len())
	}
	if err := ix.Add([][]float32{{1, 0, 0}}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if ix.Len() != 1 {
		t.Errorf("Len = %d, want 1", ix.Len())
	}
}

func TestSearchCosineOrdering(t *testing.T) {
	ix := New(2, guidesearch.MetricCosine)
	err := ix.Add([][]float32{
		{1, 0},     // 0: aligned with query
		{0, 1},     // 1: orthogonal
		{0.9, 0.1}, // 2: close
		{-1, 0},    // 3: opposite
	})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	hits, err := ix.Search([]float32{1, 0}, 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 3 {
		t.Fatalf("got %d hits, want 3", len(hits))
	}
	if hits[0].Position != 0 || hits[1].Position != 2 {
		t.Errorf("order = %d,%d, want 0,2", hits[0].Position, hits[1].Position)
	}
	if math.Abs(float64(hits[0].Score)-1) > 1e-6 {
		t.Errorf("aligned score = %f, want 1", hits[0].Score)
	}
	for i := 1; i < len(hits); i++ {
		if hits[i-1].Score < hits[i].Score {
			t.Errorf("hits not sorted: %f before %f", hits[i-1].Score, hits[i].Score)
		}
	}
}

func TestSearchL2Ordering(t *testing.T) {
	ix := New(1, guidesearch.MetricL2)
	if err := ix.Add([][]float32{{0}, {5}, {1}}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	hits, err := ix.Search([]float32{0}, 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	want := []int{0, 2, 1} // ascending distance
	for i, h := range hits {
		if h.Position != want[i] {
			t.Fatalf("order = %v, want %v", hits, want)
		}
	}
}

func TestSearchValidation(t *testing.T) {
	ix := New(2, guidesearch.MetricCosine)
	ix.Add([][]float32{{1, 0}})

	if _, err := ix.Search([]float32{1, 0, 0}, 1); err == nil {
		t.Error("query dimension mismatch accepted")
	}
	if _, err := ix.Search([]float32{1, 0}, 0); err == nil {
		t.Error("k = 0 accepted")
	}
	hits, err := ix.Search([]float32{1, 0}, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 {
		t.Errorf("k beyond size returned %d hits, want 1", len(hits))
	}
}

func TestSearchTieBreaksByPosition(t *testing.T) {
	ix := New(2, guidesearch.MetricCosine)
	ix.Add([][]float32{{2, 0}, {1, 0}, {3, 0}}) // all cosine 1 against the query
	hits, err := ix.Search([]float32{1, 0}, 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	for i, h := range hits {
		if h.Position != i {
			t.Fatalf("tie order = %v, want ascending positions", hits)
		}
	}
}

func TestSaveLoadRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vectors.bin")
	ix := New(3, guidesearch.MetricCosine)
	vectors := [][]float32{{1, 0, 0}, {0, 0.5, 0.25}, {-1, 2, 3}}
	if err := ix.Add(vectors); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := ix.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Len() != 3 || loaded.Metric() != guidesearch.MetricCosine {
		t.Fatalf("loaded Len=%d Metric=%v", loaded.Len(), loaded.Metric())
	}
	for i, v := range vectors {
		for j := range v {
			if loaded.vectors[i][j] != v[j] {
				t.Fatalf("vector %d differs after roundtrip: %v vs %v", i, loaded.vectors[i], v)
			}
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.bin"))
	if !errors.Is(err, guidesearch.ErrCorpusNotFound) {
		t.Errorf("got %v, want ErrCorpusNotFound", err)
	}
}

func TestLoadRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vectors.bin")
	ix := New(2, guidesearch.MetricCosine)
	ix.Add([][]float32{{1, 2}})
	if err := ix.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	truncateFile(t, path, 10)
	if _, err := Load(path); err == nil {
		t.Error("truncated file accepted")
	}
}
