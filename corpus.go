package guidesearch

import "fmt"

// Corpus is the ordered collection of chunks across all documents for one
// processed document collection. Slice order is the canonical chunk order:
// vector index positions resolve to chunks through it. A Corpus is read-only
// after construction and safe for concurrent use without locking.
type Corpus struct {
	chunks    []Chunk
	byID      map[string]int
	documents []DocumentSummary
}

// NewCorpus builds a corpus from chunks in canonical order. Chunk IDs must
// be globally unique and chunk texts non-empty.
func NewCorpus(chunks []Chunk, documents []DocumentSummary) (*Corpus, error) {
	byID := make(map[string]int, len(chunks))
	for i, ch := range chunks {
		if ch.ID == "" {
			return nil, fmt.Errorf("chunk %d: empty id", i)
		}
		if ch.Text == "" {
			return nil, fmt.Errorf("chunk %s: empty text", ch.ID)
		}
		if prev, ok := byID[ch.ID]; ok {
			return nil, fmt.Errorf("duplicate chunk id %s at positions %d and %d", ch.ID, prev, i)
		}
		byID[ch.ID] = i
	}
	return &Corpus{
		chunks:    chunks,
		byID:      byID,
		documents: documents,
	}, nil
}

// Len returns the number of chunks.
func (c *Corpus) Len() int { return len(c.chunks) }

// ChunkAt returns the chunk at a canonical position.
func (c *Corpus) ChunkAt(pos int) (Chunk, bool) {
	if pos < 0 || pos >= len(c.chunks) {
		return Chunk{}, false
	}
	return c.chunks[pos], true
}

// ChunkByID returns the chunk with the given identifier.
func (c *Corpus) ChunkByID(id string) (Chunk, bool) {
	pos, ok := c.byID[id]
	if !ok {
		return Chunk{}, false
	}
	return c.chunks[pos], true
}

// Chunks returns a copy of the canonical chunk sequence.
func (c *Corpus) Chunks() []Chunk {
	out := make([]Chunk, len(c.chunks))
	copy(out, c.chunks)
	return out
}

// Documents returns a copy of the per-document summaries in processing order.
func (c *Corpus) Documents() []DocumentSummary {
	out := make([]DocumentSummary, len(c.documents))
	copy(out, c.documents)
	return out
}

// Handle binds one corpus version to the vector index built from it. It is
// the unit a rebuild swaps atomically: a Handle is only constructable when
// chunk count and vector count agree, so no reader can observe a mismatched
// pair. Retrieval operations take a Handle explicitly instead of relying on
// process-global state, which lets tests hold several independent corpora.
type Handle struct {
	corpus *Corpus
	index  VectorIndex
	build  string
}

// NewHandle pairs a corpus with its index. A count mismatch means one of the
// persisted artifacts is stale or truncated, which is dependency failure,
// not caller error.
func NewHandle(corpus *Corpus, index VectorIndex, buildID string) (*Handle, error) {
	if corpus == nil || index == nil {
		return nil, fmt.Errorf("%w: corpus and index are required", ErrInvalidArgument)
	}
	if corpus.Len() != index.Len() {
		return nil, &DependencyError{
			Capability: "index",
			Err:        fmt.Errorf("vector count %d does not match chunk count %d", index.Len(), corpus.Len()),
		}
	}
	return &Handle{corpus: corpus, index: index, build: buildID}, nil
}

// Corpus returns the handle's corpus.
func (h *Handle) Corpus() *Corpus { return h.corpus }

// Index returns the handle's vector index.
func (h *Handle) Index() VectorIndex { return h.index }

// BuildID names the corpus build this handle serves; empty for in-memory
// handles that were never published.
func (h *Handle) BuildID() string { return h.build }
