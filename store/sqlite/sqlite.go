// Package sqlite persists built corpora using pure-Go SQLite.
// Zero CGO required. Vectors live in a sidecar index file, not here;
// the store holds chunk text, document summaries, and build metadata.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	guidesearch "github.com/clinicalrag/guidesearch"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// StoreOption configures a SQLite Store.
type StoreOption func(*Store)

// WithLogger sets a structured logger for the store.
// When set, the store emits debug logs for every operation including
// timing and row counts. If not set, no logs are emitted.
func WithLogger(l *slog.Logger) StoreOption {
	return func(s *Store) { s.logger = l }
}

// Store persists one corpus in a local SQLite file. Chunk rows carry a
// position column matching the vector index's insertion order; LoadCorpus
// reads back in that order so positions stay aligned.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// nopLogger is a logger that discards all output.
var nopLogger = slog.New(discardHandler{})

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }

// New creates a Store using a local SQLite file at dbPath.
// It opens a single shared connection pool with SetMaxOpenConns(1) so that
// all goroutines serialize through one connection, eliminating SQLITE_BUSY
// errors caused by concurrent writers opening independent connections.
func New(dbPath string, opts ...StoreOption) *Store {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		// sql.Open only fails when the driver is not registered; with the
		// blank import above that never happens.
		panic(fmt.Sprintf("sqlite: open driver: %v", err))
	}
	db.SetMaxOpenConns(1)
	s := &Store{db: db, logger: nopLogger}
	for _, o := range opts {
		o(s)
	}
	s.logger.Debug("sqlite: store opened", "path", dbPath)
	return s
}

// Init creates all required tables.
func (s *Store) Init(ctx context.Context) error {
	start := time.Now()
	tables := []string{
		`CREATE TABLE IF NOT EXISTS builds (
			id TEXT PRIMARY KEY,
			created_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS documents (
			name TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			total_pages INTEGER NOT NULL,
			total_chunks INTEGER NOT NULL,
			processed_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS chunks (
			id TEXT PRIMARY KEY,
			position INTEGER NOT NULL UNIQUE,
			document_name TEXT NOT NULL,
			page_number INTEGER NOT NULL,
			section_title TEXT NOT NULL,
			content TEXT NOT NULL,
			sequence_index INTEGER NOT NULL
		)`,
	}
	for _, ddl := range tables {
		if _, err := s.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	s.logger.Debug("sqlite: init completed", "duration", time.Since(start))
	return nil
}

// SaveCorpus writes the whole corpus and its build ID in a single
// transaction, replacing whatever was there before.
func (s *Store) SaveCorpus(ctx context.Context, corpus *guidesearch.Corpus, buildID string) error {
	start := time.Now()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"builds", "documents", "chunks"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO builds (id, created_at) VALUES (?, ?)`,
		buildID, time.Now().Unix()); err != nil {
		return fmt.Errorf("insert build: %w", err)
	}

	for _, d := range corpus.Documents() {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO documents (name, source, total_pages, total_chunks, processed_at)
			 VALUES (?, ?, ?, ?, ?)`,
			d.Name, d.Source, d.TotalPages, d.TotalChunks, d.ProcessedAt); err != nil {
			return fmt.Errorf("insert document %s: %w", d.Name, err)
		}
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (id, position, document_name, page_number, section_title, content, sequence_index)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare chunk insert: %w", err)
	}
	defer stmt.Close()

	for i, c := range corpus.Chunks() {
		if _, err := stmt.ExecContext(ctx,
			c.ID, i, c.DocumentName, c.PageNumber, c.SectionTitle, c.Text, c.SequenceIndex); err != nil {
			return fmt.Errorf("insert chunk %s: %w", c.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}
	s.logger.Debug("sqlite: corpus saved",
		"build_id", buildID, "chunks", corpus.Len(), "duration", time.Since(start))
	return nil
}

// LoadCorpus reads back the corpus in canonical position order along with
// its build ID.
func (s *Store) LoadCorpus(ctx context.Context) (*guidesearch.Corpus, string, error) {
	start := time.Now()

	var buildID string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM builds LIMIT 1`).Scan(&buildID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", guidesearch.ErrCorpusNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("read build: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, document_name, page_number, section_title, content, sequence_index
		 FROM chunks ORDER BY position`)
	if err != nil {
		return nil, "", fmt.Errorf("read chunks: %w", err)
	}
	defer rows.Close()

	var chunks []guidesearch.Chunk
	for rows.Next() {
		var c guidesearch.Chunk
		if err := rows.Scan(&c.ID, &c.DocumentName, &c.PageNumber, &c.SectionTitle, &c.Text, &c.SequenceIndex); err != nil {
			return nil, "", fmt.Errorf("scan chunk: %w", err)
		}
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, "", fmt.Errorf("iterate chunks: %w", err)
	}

	docRows, err := s.db.QueryContext(ctx,
		`SELECT name, source, total_pages, total_chunks, processed_at FROM documents ORDER BY name`)
	if err != nil {
		return nil, "", fmt.Errorf("read documents: %w", err)
	}
	defer docRows.Close()

	var documents []guidesearch.DocumentSummary
	for docRows.Next() {
		var d guidesearch.DocumentSummary
		if err := docRows.Scan(&d.Name, &d.Source, &d.TotalPages, &d.TotalChunks, &d.ProcessedAt); err != nil {
			return nil, "", fmt.Errorf("scan document: %w", err)
		}
		documents = append(documents, d)
	}
	if err := docRows.Err(); err != nil {
		return nil, "", fmt.Errorf("iterate documents: %w", err)
	}

	corpus, err := guidesearch.NewCorpus(chunks, documents)
	if err != nil {
		return nil, "", fmt.Errorf("reassemble corpus: %w", err)
	}
	s.logger.Debug("sqlite: corpus loaded",
		"build_id", buildID, "chunks", len(chunks), "duration", time.Since(start))
	return corpus, buildID, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// Exists reports whether a corpus database file is present at path.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
