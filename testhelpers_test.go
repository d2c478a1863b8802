package guidesearch

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
)

// fakeEmbedder embeds text as a bag-of-words count vector over a fixed
// vocabulary. Texts sharing words get high cosine similarity, which is
// enough signal to test ranking end to end without a real model.
type fakeEmbedder struct {
	vocab map[string]int
	fail  error
}

func newFakeEmbedder(words ...string) *fakeEmbedder {
	vocab := make(map[string]int, len(words))
	for i, w := range words {
		vocab[w] = i
	}
	return &fakeEmbedder{vocab: vocab}
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if f.fail != nil {
		return nil, f.fail
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, len(f.vocab))
		for _, w := range strings.Fields(strings.ToLower(t)) {
			w = strings.Trim(w, ".,?!")
			if j, ok := f.vocab[w]; ok {
				v[j]++
			}
		}
		out[i] = v
	}
	return out, nil
}

func (f *fakeEmbedder) Dimensions() int { return len(f.vocab) }
func (f *fakeEmbedder) Name() string    { return "fake" }

// fakeIndex is a brute-force cosine index for tests.
type fakeIndex struct {
	vectors [][]float32
	fail    error
}

func (ix *fakeIndex) Add(vectors [][]float32) error {
	ix.vectors = append(ix.vectors, vectors...)
	return nil
}

func (ix *fakeIndex) Len() int       { return len(ix.vectors) }
func (ix *fakeIndex) Metric() Metric { return MetricCosine }

func (ix *fakeIndex) Search(query []float32, k int) ([]Hit, error) {
	if ix.fail != nil {
		return nil, ix.fail
	}
	hits := make([]Hit, len(ix.vectors))
	for i, v := range ix.vectors {
		hits[i] = Hit{Position: i, Score: cosine32(query, v)}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Position < hits[j].Position
	})
	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k], nil
}

func cosine32(a, b []float32) float32 {
	var dot, an, bn float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		an += float64(a[i]) * float64(a[i])
		bn += float64(b[i]) * float64(b[i])
	}
	if an == 0 || bn == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(an) * math.Sqrt(bn)))
}

// buildTestHandle embeds the chunks with emb and indexes them.
func buildTestHandle(emb *fakeEmbedder, chunks []Chunk) (*Handle, error) {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vecs, err := emb.Embed(context.Background(), texts)
	if err != nil {
		return nil, err
	}
	corpus, err := NewCorpus(chunks, nil)
	if err != nil {
		return nil, err
	}
	idx := &fakeIndex{}
	if err := idx.Add(vecs); err != nil {
		return nil, err
	}
	return NewHandle(corpus, idx, "test-build")
}

func testChunk(doc string, page, seq int, text string) Chunk {
	return Chunk{
		ID:            ChunkID(doc, page, seq),
		DocumentName:  doc,
		PageNumber:    page,
		Text:          text,
		SequenceIndex: seq,
	}
}

var errBoom = fmt.Errorf("boom")
