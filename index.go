package guidesearch

import "fmt"

// Metric identifies the raw measure a VectorIndex reports with its hits.
// The Engine converts every metric to the single normalized similarity
// semantic callers see; index implementations never do that themselves.
type Metric int

const (
	// MetricCosine reports cosine similarity, higher is closer.
	MetricCosine Metric = iota
	// MetricL2 reports Euclidean distance, lower is closer.
	MetricL2
	// MetricInnerProduct reports the raw inner product, higher is closer.
	MetricInnerProduct
)

func (m Metric) String() string {
	switch m {
	case MetricCosine:
		return "cosine"
	case MetricL2:
		return "l2"
	case MetricInnerProduct:
		return "inner_product"
	}
	return fmt.Sprintf("metric(%d)", int(m))
}

// Hit is one raw nearest-neighbor result. Position addresses the vector in
// insertion order, which is also the corpus's canonical chunk order.
type Hit struct {
	Position int
	Score    float32
}

// VectorIndex stores vectors in an addressable order and returns the k
// vectors nearest to a query vector, best first in the index's raw metric.
type VectorIndex interface {
	// Add appends vectors in order. All vectors must share one dimension.
	Add(vectors [][]float32) error
	// Search returns up to k hits, best first.
	Search(vector []float32, k int) ([]Hit, error)
	// Len returns the number of stored vectors.
	Len() int
	// Metric identifies the scale of Hit.Score.
	Metric() Metric
}

func errCount(want, got int) error {
	return fmt.Errorf("expected %d vectors, got %d", want, got)
}

func errDim(want, got int) error {
	return fmt.Errorf("dimension mismatch: expected %d, got %d", want, got)
}
