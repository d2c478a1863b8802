// Package flat provides a brute-force in-memory vector index. Every search
// scores the query against all stored vectors, which is exact and fast
// enough for corpora in the tens of thousands of chunks.
package flat

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	guidesearch "github.com/clinicalrag/guidesearch"
)

// File format: magic, version, metric, dimension, count, then count*dim
// little-endian float32 values.
const (
	fileMagic   = "GSVI"
	fileVersion = uint32(1)
)

// Index is a flat (exhaustive) vector index. It is safe for concurrent
// reads once fully built; Add must not race with Search.
type Index struct {
	dim     int
	metric  guidesearch.Metric
	vectors [][]float32
}

var _ guidesearch.VectorIndex = (*Index)(nil)

// New creates an empty index for vectors of the given dimension.
func New(dim int, metric guidesearch.Metric) *Index {
	return &Index{dim: dim, metric: metric}
}

// Add appends vectors to the index. Positions are assigned in insertion
// order, continuing from the current length.
func (ix *Index) Add(vectors [][]float32) error {
	for i, v := range vectors {
		if len(v) != ix.dim {
			return fmt.Errorf("vector %d: dimension %d, index expects %d", i, len(v), ix.dim)
		}
	}
	ix.vectors = append(ix.vectors, vectors...)
	return nil
}

// Len returns the number of stored vectors.
func (ix *Index) Len() int { return len(ix.vectors) }

// Metric returns the distance metric the index scores with.
func (ix *Index) Metric() guidesearch.Metric { return ix.metric }

// Search scores the query against every stored vector and returns the k
// best hits, best first. Ties are broken by ascending position.
func (ix *Index) Search(query []float32, k int) ([]guidesearch.Hit, error) {
	if len(query) != ix.dim {
		return nil, fmt.Errorf("query dimension %d, index expects %d", len(query), ix.dim)
	}
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}
	if k > len(ix.vectors) {
		k = len(ix.vectors)
	}

	hits := make([]guidesearch.Hit, len(ix.vectors))
	for i, v := range ix.vectors {
		hits[i] = guidesearch.Hit{Position: i, Score: ix.score(query, v)}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return ix.better(hits[i].Score, hits[j].Score)
		}
		return hits[i].Position < hits[j].Position
	})
	return hits[:k], nil
}

// better reports whether score a beats score b under the index metric.
func (ix *Index) better(a, b float32) bool {
	if ix.metric == guidesearch.MetricL2 {
		return a < b
	}
	return a > b
}

func (ix *Index) score(q, v []float32) float32 {
	switch ix.metric {
	case guidesearch.MetricL2:
		var sum float64
		for i := range q {
			d := float64(q[i]) - float64(v[i])
			sum += d * d
		}
		return float32(math.Sqrt(sum))
	case guidesearch.MetricInnerProduct:
		var dot float64
		for i := range q {
			dot += float64(q[i]) * float64(v[i])
		}
		return float32(dot)
	default:
		return cosine(q, v)
	}
}

func cosine(q, v []float32) float32 {
	var dot, qn, vn float64
	for i := range q {
		dot += float64(q[i]) * float64(v[i])
		qn += float64(q[i]) * float64(q[i])
		vn += float64(v[i]) * float64(v[i])
	}
	if qn == 0 || vn == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(qn) * math.Sqrt(vn)))
}

// Save writes the index to path. The file is written to a temporary
// sibling and renamed, so readers never see a partial index.
func (ix *Index) Save(path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".vectors-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp index file: %w", err)
	}
	defer os.Remove(tmp.Name())

	header := make([]byte, 0, 20)
	header = append(header, fileMagic...)
	header = binary.LittleEndian.AppendUint32(header, fileVersion)
	header = binary.LittleEndian.AppendUint32(header, uint32(ix.metric))
	header = binary.LittleEndian.AppendUint32(header, uint32(ix.dim))
	header = binary.LittleEndian.AppendUint32(header, uint32(len(ix.vectors)))
	if _, err := tmp.Write(header); err != nil {
		tmp.Close()
		return fmt.Errorf("write index header: %w", err)
	}

	buf := make([]byte, 4*ix.dim)
	for _, v := range ix.vectors {
		for i, f := range v {
			binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
		}
		if _, err := tmp.Write(buf); err != nil {
			tmp.Close()
			return fmt.Errorf("write index vectors: %w", err)
		}
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp index file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("publish index file: %w", err)
	}
	return nil
}

// Load reads an index written by Save and validates its header.
func Load(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("index file %s: %w", path, guidesearch.ErrCorpusNotFound)
		}
		return nil, fmt.Errorf("read index file: %w", err)
	}
	if len(data) < 20 || string(data[:4]) != fileMagic {
		return nil, fmt.Errorf("index file %s: not a vector index", path)
	}
	version := binary.LittleEndian.Uint32(data[4:])
	if version != fileVersion {
		return nil, fmt.Errorf("index file %s: unsupported version %d", path, version)
	}
	metric := guidesearch.Metric(binary.LittleEndian.Uint32(data[8:]))
	dim := int(binary.LittleEndian.Uint32(data[12:]))
	count := int(binary.LittleEndian.Uint32(data[16:]))
	if dim <= 0 {
		return nil, fmt.Errorf("index file %s: invalid dimension %d", path, dim)
	}
	body := data[20:]
	if len(body) != count*dim*4 {
		return nil, fmt.Errorf("index file %s: expected %d vector bytes, got %d", path, count*dim*4, len(body))
	}

	ix := New(dim, metric)
	ix.vectors = make([][]float32, count)
	for i := 0; i < count; i++ {
		v := make([]float32, dim)
		off := i * dim * 4
		for j := 0; j < dim; j++ {
			v[j] = math.Float32frombits(binary.LittleEndian.Uint32(body[off+4*j:]))
		}
		ix.vectors[i] = v
	}
	return ix, nil
}
