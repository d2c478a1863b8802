package guidesearch

import "context"

// EmbeddingProvider abstracts the embedding model. The same provider and
// model version must be used at build time and query time; vectors from
// different model versions are not comparable.
type EmbeddingProvider interface {
	// Embed returns one fixed-length vector per input text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// Dimensions returns the embedding vector size.
	Dimensions() int
	// Name returns the provider name.
	Name() string
}

// EmbedOne embeds a single text and validates the provider's output shape.
// A wrong vector count or a dimension mismatch is malformed dependency
// output, not caller error, so it surfaces as a DependencyError.
func EmbedOne(ctx context.Context, p EmbeddingProvider, text string) ([]float32, error) {
	vecs, err := p.Embed(ctx, []string{text})
	if err != nil {
		return nil, &DependencyError{Capability: "embedder", Err: err}
	}
	if len(vecs) != 1 {
		return nil, &DependencyError{Capability: "embedder", Err: errCount(1, len(vecs))}
	}
	if d := p.Dimensions(); d > 0 && len(vecs[0]) != d {
		return nil, &DependencyError{Capability: "embedder", Err: errDim(d, len(vecs[0]))}
	}
	return vecs[0], nil
}
