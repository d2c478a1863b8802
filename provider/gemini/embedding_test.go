package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	guidesearch "github.com/clinicalrag/guidesearch"
)

func TestEmbedCallsPerText(t *testing.T) {
	var paths []string
	var bodies []map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		bodies = append(bodies, body)
		json.NewEncoder(w).Encode(map[string]any{
			"embedding": map[string]any{"values": []float64{0.1, 0.2, 0.3}},
		})
	}))
	defer srv.Close()

	e := NewEmbedding("key", "gemini-embedding-001", 3, WithBaseURL(srv.URL))
	vecs, err := e.Embed(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}

	if len(paths) != 2 {
		t.Fatalf("got %d requests, want one per text", len(paths))
	}
	if paths[0] != "/models/gemini-embedding-001:embedContent" {
		t.Errorf("path = %q", paths[0])
	}
	if dims, ok := bodies[0]["outputDimensionality"].(float64); !ok || dims != 3 {
		t.Errorf("outputDimensionality = %v", bodies[0]["outputDimensionality"])
	}
	if len(vecs) != 2 || len(vecs[0]) != 3 {
		t.Errorf("vectors = %v", vecs)
	}
	if vecs[0][1] != float32(0.2) {
		t.Errorf("vecs[0] = %v", vecs[0])
	}
}

func TestEmbedHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota", http.StatusForbidden)
	}))
	defer srv.Close()

	e := NewEmbedding("key", "m", 3, WithBaseURL(srv.URL))
	_, err := e.Embed(context.Background(), []string{"a"})
	var httpErr *guidesearch.HTTPError
	if !errors.As(err, &httpErr) || httpErr.Status != http.StatusForbidden {
		t.Fatalf("got %v, want 403 HTTPError", err)
	}
}

func TestEmbedMissingValues(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{})
	}))
	defer srv.Close()

	e := NewEmbedding("key", "m", 3, WithBaseURL(srv.URL))
	if _, err := e.Embed(context.Background(), []string{"a"}); err == nil {
		t.Error("response without embedding accepted")
	}
}

func TestEmbeddingMetadata(t *testing.T) {
	e := NewEmbedding("key", "gemini-embedding-001", 1536)
	if e.Name() != "gemini" {
		t.Errorf("Name = %q", e.Name())
	}
	if e.Dimensions() != 1536 {
		t.Errorf("Dimensions = %d", e.Dimensions())
	}
}
