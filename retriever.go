package guidesearch

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
)

// EngineOption configures an Engine.
type EngineOption func(*engineConfig)

type engineConfig struct {
	overfetchFactor int
	dedupOverlap    float64
	extractor       *TermExtractor
	logger          *slog.Logger
}

func defaultEngineConfig() engineConfig {
	return engineConfig{
		overfetchFactor: 4,
		dedupOverlap:    0.6,
		logger:          slog.New(discardHandler{}),
	}
}

// WithOverfetchFactor sets how many candidates are requested from the index
// per requested result, to compensate for deduplication losses from
// overlapping chunk windows. Values below 2 are raised to 2. Default: 4.
func WithOverfetchFactor(n int) EngineOption {
	return func(c *engineConfig) {
		if n < 2 {
			n = 2
		}
		c.overfetchFactor = n
	}
}

// WithDedupOverlap sets the token-overlap threshold above which two results
// from the same document page collapse into the higher-scoring one.
// Must be in (0, 1]. Default: 0.6.
func WithDedupOverlap(t float64) EngineOption {
	return func(c *engineConfig) {
		if t > 0 && t <= 1 {
			c.dedupOverlap = t
		}
	}
}

// WithTermExtractor sets the vocabulary used by ClinicalSearch.
// Default: DefaultVocabulary.
func WithTermExtractor(x *TermExtractor) EngineOption {
	return func(c *engineConfig) { c.extractor = x }
}

// WithEngineLogger sets a structured logger. When unset, nothing is logged.
func WithEngineLogger(l *slog.Logger) EngineOption {
	return func(c *engineConfig) { c.logger = l }
}

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }

// Engine serves ranked semantic search over one corpus handle. It is
// stateless per request: each call embeds the query, consults the index, and
// assembles results to completion. Safe for concurrent use; the handle and
// its corpus are read-only.
type Engine struct {
	handle   *Handle
	embedder EmbeddingProvider
	cfg      engineConfig
}

// NewEngine creates an Engine over a corpus handle. A nil handle is allowed
// and yields ErrNotReady from every query until an engine with a loaded
// handle replaces this one.
func NewEngine(handle *Handle, embedder EmbeddingProvider, opts ...EngineOption) *Engine {
	cfg := defaultEngineConfig()
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.extractor == nil {
		cfg.extractor = NewTermExtractor(nil)
	}
	return &Engine{handle: handle, embedder: embedder, cfg: cfg}
}

// Search returns the topK passages most similar to the query text, sorted by
// descending similarity with ties broken by (document, page, sequence)
// ascending. It fails with ErrInvalidArgument on empty query or non-positive
// topK, ErrNotReady when no corpus is loaded, and DependencyError when the
// embedder or index fails. It never silently truncates a result set.
func (e *Engine) Search(ctx context.Context, query string, topK int) ([]QueryResult, error) {
	if err := e.validate(query, topK); err != nil {
		return nil, err
	}
	return e.search(ctx, query, topK)
}

// ClinicalSearch recognizes clinical vocabulary in the question, expands the
// query with the detected terms and their synonyms before embedding, and
// returns the terms together with the same ranked result shape as Search.
// Zero detected terms is not an error; it degrades to a plain search.
func (e *Engine) ClinicalSearch(ctx context.Context, question string, topK int) (ClinicalAnswer, error) {
	if err := e.validate(question, topK); err != nil {
		return ClinicalAnswer{}, err
	}

	terms := e.cfg.extractor.Extract(question)
	query := question
	if len(terms) > 0 {
		query = e.cfg.extractor.ExpandQuery(question, terms)
		e.cfg.logger.Debug("query expanded", "question", question, "terms", terms)
	}

	results, err := e.search(ctx, query, topK)
	if err != nil {
		return ClinicalAnswer{}, err
	}
	return ClinicalAnswer{Terms: terms, Results: results}, nil
}

// SearchDocument restricts Search to chunks whose document name contains
// document, matched case-insensitively. A document that matches nothing
// yields an empty result set, not an error.
func (e *Engine) SearchDocument(ctx context.Context, document, query string, topK int) ([]QueryResult, error) {
	if strings.TrimSpace(document) == "" {
		return nil, fmt.Errorf("%w: empty document name", ErrInvalidArgument)
	}
	if err := e.validate(query, topK); err != nil {
		return nil, err
	}
	vec, err := EmbedOne(ctx, e.embedder, query)
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(document)
	return e.rank(vec, topK, func(ch Chunk) bool {
		return strings.Contains(strings.ToLower(ch.DocumentName), needle)
	})
}

// SimilarChunks returns the topK passages most similar to an existing chunk,
// identified by its id. The source chunk itself is always excluded. An
// unknown id fails with ErrInvalidArgument.
func (e *Engine) SimilarChunks(ctx context.Context, chunkID string, topK int) ([]QueryResult, error) {
	if strings.TrimSpace(chunkID) == "" {
		return nil, fmt.Errorf("%w: empty chunk id", ErrInvalidArgument)
	}
	if topK <= 0 {
		return nil, fmt.Errorf("%w: top_k must be positive, got %d", ErrInvalidArgument, topK)
	}
	if !e.ready() {
		return nil, ErrNotReady
	}
	source, ok := e.handle.corpus.ChunkByID(chunkID)
	if !ok {
		return nil, fmt.Errorf("%w: unknown chunk id %q", ErrInvalidArgument, chunkID)
	}
	vec, err := EmbedOne(ctx, e.embedder, source.Text)
	if err != nil {
		return nil, err
	}
	return e.rank(vec, topK, func(ch Chunk) bool {
		return ch.ID != chunkID
	})
}

// ListDocuments returns summaries of the corpus documents in processing
// order. Fails with ErrNotReady before a corpus is loaded.
func (e *Engine) ListDocuments() ([]DocumentSummary, error) {
	if !e.ready() {
		return nil, ErrNotReady
	}
	return e.handle.corpus.Documents(), nil
}

// StatusReport never fails; Ready is false until a corpus is loaded.
func (e *Engine) StatusReport() Status {
	if !e.ready() {
		return Status{}
	}
	return Status{
		Ready:          true,
		TotalChunks:    e.handle.corpus.Len(),
		TotalDocuments: len(e.handle.corpus.documents),
	}
}

func (e *Engine) validate(query string, topK int) error {
	if strings.TrimSpace(query) == "" {
		return fmt.Errorf("%w: empty query text", ErrInvalidArgument)
	}
	if topK <= 0 {
		return fmt.Errorf("%w: top_k must be positive, got %d", ErrInvalidArgument, topK)
	}
	if !e.ready() {
		return ErrNotReady
	}
	return nil
}

func (e *Engine) ready() bool {
	return e.handle != nil && e.handle.corpus.Len() > 0
}

// scored carries the sequence index alongside a result for tie-breaking.
type scored struct {
	QueryResult
	sequence int
}

func (e *Engine) search(ctx context.Context, query string, topK int) ([]QueryResult, error) {
	vec, err := EmbedOne(ctx, e.embedder, query)
	if err != nil {
		return nil, err
	}
	return e.rank(vec, topK, nil)
}

// rank runs the index lookup and result assembly for an already embedded
// query. A non-nil keep predicate drops candidates before dedup and
// truncation; filtered searches fetch the whole corpus since the index cannot
// apply the predicate itself.
func (e *Engine) rank(vec []float32, topK int, keep func(Chunk) bool) ([]QueryResult, error) {
	// Guard the multiply: a huge valid topK must clamp to the corpus size,
	// not wrap around.
	size := e.handle.corpus.Len()
	fetchK := size
	if keep == nil && topK <= size/e.cfg.overfetchFactor {
		fetchK = topK * e.cfg.overfetchFactor
	}

	hits, err := e.handle.index.Search(vec, fetchK)
	if err != nil {
		return nil, &DependencyError{Capability: "index", Err: err}
	}

	metric := e.handle.index.Metric()
	candidates := make([]scored, 0, len(hits))
	for _, h := range hits {
		ch, ok := e.handle.corpus.ChunkAt(h.Position)
		if !ok {
			return nil, &DependencyError{
				Capability: "index",
				Err:        fmt.Errorf("position %d out of corpus range %d", h.Position, e.handle.corpus.Len()),
			}
		}
		score, err := normalizeScore(h.Score, metric)
		if err != nil {
			return nil, &DependencyError{Capability: "index", Err: err}
		}
		if keep != nil && !keep(ch) {
			continue
		}
		candidates = append(candidates, scored{
			QueryResult: QueryResult{
				ChunkID:         ch.ID,
				SimilarityScore: score,
				DocumentName:    ch.DocumentName,
				PageNumber:      ch.PageNumber,
				SectionTitle:    ch.SectionTitle,
				Text:            ch.Text,
			},
			sequence: ch.SequenceIndex,
		})
	}

	sortResults(candidates)
	deduped := e.dedup(candidates)
	if len(deduped) > topK {
		deduped = deduped[:topK]
	}

	results := make([]QueryResult, len(deduped))
	for i, s := range deduped {
		results[i] = s.QueryResult
	}
	e.cfg.logger.Debug("search completed",
		"top_k", topK, "fetched", len(hits), "after_dedup", len(deduped))
	return results, nil
}

// sortResults orders by similarity descending; ties resolve by
// (document_name, page_number, sequence_index) ascending so identical
// queries always return identical orderings.
func sortResults(rs []scored) {
	sort.Slice(rs, func(i, j int) bool {
		a, b := rs[i], rs[j]
		if a.SimilarityScore != b.SimilarityScore {
			return a.SimilarityScore > b.SimilarityScore
		}
		if a.DocumentName != b.DocumentName {
			return a.DocumentName < b.DocumentName
		}
		if a.PageNumber != b.PageNumber {
			return a.PageNumber < b.PageNumber
		}
		return a.sequence < b.sequence
	})
}

// dedup collapses candidates that share a document and page and whose texts
// overlap above the configured threshold. Input is sorted best-first, so the
// first accepted candidate of a page is always its highest-scoring
// representative.
func (e *Engine) dedup(sorted []scored) []scored {
	type pageKey struct {
		doc  string
		page int
	}
	accepted := make(map[pageKey][]map[string]struct{})
	out := make([]scored, 0, len(sorted))

	for _, cand := range sorted {
		key := pageKey{cand.DocumentName, cand.PageNumber}
		toks := tokenSet(cand.Text)
		dup := false
		for _, prev := range accepted[key] {
			if tokenOverlap(toks, prev) >= e.cfg.dedupOverlap {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		accepted[key] = append(accepted[key], toks)
		out = append(out, cand)
	}
	return out
}

// normalizeScore maps a raw index metric onto the similarity scale callers
// see: bounded, higher is more relevant. Cosine and inner-product scores
// clamp into [0, 1]; L2 distances map through 1/(1+d). Changing this mapping
// changes the meaning of every stored similarity_score.
func normalizeScore(raw float32, m Metric) (float64, error) {
	v := float64(raw)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite score %v", v)
	}
	switch m {
	case MetricL2:
		if v < 0 {
			return 0, fmt.Errorf("negative l2 distance %v", v)
		}
		return 1 / (1 + v), nil
	default:
		if v < 0 {
			v = 0
		}
		if v > 1 {
			v = 1
		}
		return v, nil
	}
}

func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(s)) {
		set[w] = struct{}{}
	}
	return set
}

// tokenOverlap is the Jaccard coefficient of two token sets.
func tokenOverlap(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	inter := 0
	for t := range small {
		if _, ok := large[t]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}
