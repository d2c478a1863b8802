// Package pgvector implements guidesearch.VectorIndex on PostgreSQL with
// the pgvector extension, using an HNSW index with cosine distance. It is
// the index to reach for when a corpus outgrows the in-memory flat index
// or when several readers share one build.
//
// The index accepts an externally-owned *pgxpool.Pool via constructor
// injection. The caller creates and closes the pool.
package pgvector

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	guidesearch "github.com/clinicalrag/guidesearch"
)

// Option configures a pgvector Index.
type Option func(*pgConfig)

type pgConfig struct {
	table              string
	hnswM              int // 0 = pgvector default (16)
	hnswEFConstruction int // 0 = pgvector default (64)
	hnswEFSearch       int // 0 = pgvector default (40)
}

// WithTable sets the table name holding this build's vectors.
// Default: "corpus_vectors".
func WithTable(name string) Option {
	return func(c *pgConfig) { c.table = name }
}

// WithHNSWM sets the HNSW m parameter (max connections per node).
// Higher values improve recall at the cost of memory. Default: pgvector's 16.
func WithHNSWM(m int) Option {
	return func(c *pgConfig) { c.hnswM = m }
}

// WithEFConstruction sets the HNSW ef_construction parameter (build-time
// candidate list size). Higher values improve index quality at the cost of
// slower builds. Default: pgvector's 64.
func WithEFConstruction(ef int) Option {
	return func(c *pgConfig) { c.hnswEFConstruction = ef }
}

// WithEFSearch sets the HNSW ef_search parameter (query-time candidate list
// size). Higher values improve recall at the cost of latency. Default:
// pgvector's 40. Applied during Init().
func WithEFSearch(ef int) Option {
	return func(c *pgConfig) { c.hnswEFSearch = ef }
}

// Index stores vectors in a PostgreSQL table keyed by insertion position.
type Index struct {
	pool *pgxpool.Pool
	dim  int
	size int
	cfg  pgConfig
}

var _ guidesearch.VectorIndex = (*Index)(nil)

// New creates an Index for vectors of the given dimension using an
// existing pgxpool.Pool.
func New(pool *pgxpool.Pool, dim int, opts ...Option) *Index {
	cfg := pgConfig{table: "corpus_vectors"}
	for _, o := range opts {
		o(&cfg)
	}
	return &Index{pool: pool, dim: dim, cfg: cfg}
}

func (ix *Index) hnswWithClause() string {
	var parts []string
	if ix.cfg.hnswM > 0 {
		parts = append(parts, fmt.Sprintf("m = %d", ix.cfg.hnswM))
	}
	if ix.cfg.hnswEFConstruction > 0 {
		parts = append(parts, fmt.Sprintf("ef_construction = %d", ix.cfg.hnswEFConstruction))
	}
	if len(parts) == 0 {
		return ""
	}
	return " WITH (" + strings.Join(parts, ", ") + ")"
}

// Init creates the pgvector extension, the vector table, and its HNSW
// index, then counts any vectors already present. Safe to call multiple
// times (all statements are idempotent).
func (ix *Index) Init(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			position INTEGER PRIMARY KEY,
			embedding vector(%d) NOT NULL
		)`, ix.cfg.table, ix.dim),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_embedding_idx ON %s USING hnsw (embedding vector_cosine_ops)%s`,
			ix.cfg.table, ix.cfg.table, ix.hnswWithClause()),
	}
	for _, stmt := range stmts {
		if _, err := ix.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("pgvector: init: %w", err)
		}
	}
	if ix.cfg.hnswEFSearch > 0 {
		if _, err := ix.pool.Exec(ctx, fmt.Sprintf("SET hnsw.ef_search = %d", ix.cfg.hnswEFSearch)); err != nil {
			return fmt.Errorf("pgvector: set ef_search: %w", err)
		}
	}
	if err := ix.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT COUNT(*) FROM %s`, ix.cfg.table)).Scan(&ix.size); err != nil {
		return fmt.Errorf("pgvector: count vectors: %w", err)
	}
	return nil
}

// Add appends vectors in a single transaction, continuing the position
// sequence from the current length.
func (ix *Index) Add(vectors [][]float32) error {
	ctx := context.Background()
	for i, v := range vectors {
		if len(v) != ix.dim {
			return fmt.Errorf("vector %d: dimension %d, index expects %d", i, len(v), ix.dim)
		}
	}

	tx, err := ix.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("pgvector: begin add: %w", err)
	}
	defer tx.Rollback(ctx)

	for i, v := range vectors {
		if _, err := tx.Exec(ctx,
			fmt.Sprintf(`INSERT INTO %s (position, embedding) VALUES ($1, $2::vector)`, ix.cfg.table),
			ix.size+i, serializeEmbedding(v)); err != nil {
			return fmt.Errorf("pgvector: insert vector %d: %w", ix.size+i, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("pgvector: commit add: %w", err)
	}
	ix.size += len(vectors)
	return nil
}

// Len returns the number of stored vectors.
func (ix *Index) Len() int { return ix.size }

// Metric reports cosine: Search scores are 1 - cosine distance.
func (ix *Index) Metric() guidesearch.Metric { return guidesearch.MetricCosine }

// Search returns the k nearest vectors by cosine distance, best first.
func (ix *Index) Search(query []float32, k int) ([]guidesearch.Hit, error) {
	if len(query) != ix.dim {
		return nil, fmt.Errorf("query dimension %d, index expects %d", len(query), ix.dim)
	}
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}

	rows, err := ix.pool.Query(context.Background(),
		fmt.Sprintf(`SELECT position, 1 - (embedding <=> $1::vector) AS score
		 FROM %s
		 ORDER BY embedding <=> $1::vector, position
		 LIMIT $2`, ix.cfg.table),
		serializeEmbedding(query), k)
	if err != nil {
		return nil, fmt.Errorf("pgvector: search: %w", err)
	}
	defer rows.Close()

	var hits []guidesearch.Hit
	for rows.Next() {
		var h guidesearch.Hit
		var score float64
		if err := rows.Scan(&h.Position, &score); err != nil {
			return nil, fmt.Errorf("pgvector: scan hit: %w", err)
		}
		h.Score = float32(score)
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgvector: iterate hits: %w", err)
	}
	return hits, nil
}

// Clear removes all vectors, resetting the position sequence.
func (ix *Index) Clear(ctx context.Context) error {
	if _, err := ix.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s`, ix.cfg.table)); err != nil {
		return fmt.Errorf("pgvector: clear: %w", err)
	}
	ix.size = 0
	return nil
}

// serializeEmbedding renders a vector in pgvector's text format: [1,2,3].
func serializeEmbedding(embedding []float32) string {
	parts := make([]string, len(embedding))
	for i, v := range embedding {
		parts[i] = strconv.FormatFloat(float64(v), 'f', -1, 32)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
