// Package openaicompat implements guidesearch.EmbeddingProvider for any
// OpenAI-compatible embeddings API.
//
// Works with OpenAI, OpenRouter, Together, Fireworks, Mistral, Ollama,
// vLLM, LM Studio, Azure OpenAI, and any other provider that implements
// the OpenAI /embeddings endpoint.
package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	guidesearch "github.com/clinicalrag/guidesearch"
)

// Option configures an Embedding provider.
type Option func(*Embedding)

// WithName sets the provider name returned by Name() (default "openai").
// Use this to distinguish providers in logs and observability.
func WithName(name string) Option {
	return func(e *Embedding) { e.name = name }
}

// WithHTTPClient sets a custom HTTP client (e.g. for timeouts or proxies).
func WithHTTPClient(c *http.Client) Option {
	return func(e *Embedding) { e.client = c }
}

// Embedding calls an OpenAI-compatible /embeddings endpoint. One request
// embeds a whole batch of texts.
type Embedding struct {
	apiKey  string
	model   string
	baseURL string
	dims    int
	name    string
	client  *http.Client
}

var _ guidesearch.EmbeddingProvider = (*Embedding)(nil)

// NewEmbedding creates an OpenAI-compatible embedding provider.
//
// baseURL is the API base (e.g. "https://api.openai.com/v1",
// "http://localhost:11434/v1"). The /embeddings path is appended
// automatically. dims is the dimensionality the model returns; when the
// API supports it, it is also requested via the dimensions field.
func NewEmbedding(apiKey, model, baseURL string, dims int, opts ...Option) *Embedding {
	e := &Embedding{
		apiKey:  apiKey,
		model:   model,
		baseURL: strings.TrimRight(baseURL, "/"),
		dims:    dims,
		name:    "openai",
		client:  &http.Client{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name returns the provider name (default "openai", configurable via WithName).
func (e *Embedding) Name() string { return e.name }

// Dimensions returns the configured embedding dimensionality.
func (e *Embedding) Dimensions() int { return e.dims }

type embeddingsRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type embeddingsResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed embeds all texts in one API call and returns the vectors in input
// order. Non-2xx responses surface as *guidesearch.HTTPError.
func (e *Embedding) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	payload, err := json.Marshal(embeddingsRequest{
		Model:      e.model,
		Input:      texts,
		Dimensions: e.dims,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal embeddings request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		e.baseURL+"/embeddings", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create embeddings request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embeddings request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read embeddings response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &guidesearch.HTTPError{Status: resp.StatusCode, Body: string(body)}
	}

	var parsed embeddingsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parse embeddings response: %w", err)
	}
	if len(parsed.Data) != len(texts) {
		return nil, fmt.Errorf("embeddings response: expected %d vectors, got %d", len(texts), len(parsed.Data))
	}

	// The API is allowed to reorder data entries; index restores input order.
	vectors := make([][]float32, len(texts))
	for _, d := range parsed.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, fmt.Errorf("embeddings response: index %d out of range", d.Index)
		}
		vectors[d.Index] = d.Embedding
	}
	for i, v := range vectors {
		if v == nil {
			return nil, fmt.Errorf("embeddings response: missing vector for input %d", i)
		}
	}
	return vectors, nil
}
