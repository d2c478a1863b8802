// Package gemini implements guidesearch.EmbeddingProvider for Google's
// Gemini embedding models via the Generative Language API.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	guidesearch "github.com/clinicalrag/guidesearch"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Option configures an Embedding provider.
type Option func(*Embedding)

// WithBaseURL overrides the API base URL, mainly for tests.
func WithBaseURL(u string) Option {
	return func(e *Embedding) { e.baseURL = u }
}

// WithHTTPClient sets a custom HTTP client (e.g. for timeouts or proxies).
func WithHTTPClient(c *http.Client) Option {
	return func(e *Embedding) { e.client = c }
}

// Embedding calls the Gemini embedContent endpoint. The API embeds one
// content per request, so a batch becomes sequential calls.
type Embedding struct {
	apiKey  string
	model   string
	dims    int
	baseURL string
	client  *http.Client
}

var _ guidesearch.EmbeddingProvider = (*Embedding)(nil)

// NewEmbedding creates a Gemini embedding provider.
func NewEmbedding(apiKey, model string, dims int, opts ...Option) *Embedding {
	e := &Embedding{
		apiKey:  apiKey,
		model:   model,
		dims:    dims,
		baseURL: defaultBaseURL,
		client:  &http.Client{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name returns "gemini".
func (e *Embedding) Name() string { return "gemini" }

// Dimensions returns the configured embedding dimensionality.
func (e *Embedding) Dimensions() int { return e.dims }

type embedResponse struct {
	Embedding *struct {
		Values []float64 `json:"values"`
	} `json:"embedding"`
}

// Embed embeds each text sequentially and returns the embedding vectors.
// Non-2xx responses surface as *guidesearch.HTTPError.
func (e *Embedding) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	url := fmt.Sprintf("%s/models/%s:embedContent?key=%s", e.baseURL, e.model, e.apiKey)

	embeddings := make([][]float32, 0, len(texts))
	for i, text := range texts {
		body := map[string]any{
			"content": map[string]any{
				"parts": []map[string]any{
					{"text": text},
				},
			},
			"outputDimensionality": e.dims,
		}
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal embed body: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("create embed request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := e.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("embed request failed: %w", err)
		}
		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("read embed response: %w", err)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, &guidesearch.HTTPError{Status: resp.StatusCode, Body: string(respBody)}
		}

		var parsed embedResponse
		if err := json.Unmarshal(respBody, &parsed); err != nil {
			return nil, fmt.Errorf("parse embed response: %w", err)
		}
		if parsed.Embedding == nil {
			return nil, fmt.Errorf("embed response %d: missing embedding.values", i)
		}

		vec := make([]float32, len(parsed.Embedding.Values))
		for j, v := range parsed.Embedding.Values {
			vec[j] = float32(v)
		}
		embeddings = append(embeddings, vec)
	}
	return embeddings, nil
}
