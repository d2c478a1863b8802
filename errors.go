package guidesearch

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for classification with errors.Is. Callers receive them
// wrapped with operation detail.
var (
	// ErrInvalidArgument reports malformed caller input, such as an empty
	// query or a non-positive top-k.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotReady reports a query issued before a corpus and index were
	// loaded. It is distinct from an empty result set.
	ErrNotReady = errors.New("corpus not ready")

	// ErrCorpusNotFound reports a load from a path with no built artifact.
	ErrCorpusNotFound = errors.New("corpus not found")
)

// LoadError reports a source document that could not be opened or parsed at
// all. Unreadable individual pages are not LoadErrors; they yield empty page
// text and the rest of the document is still used.
type LoadError struct {
	Document string
	Err      error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Document, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// DependencyError reports a failure of a consumed capability: the embedding
// provider or the vector index returned an error or malformed output (wrong
// vector count, dimension mismatch, out-of-range position, NaN score).
// The core never retries these; they surface to the caller as-is.
type DependencyError struct {
	Capability string // "embedder" or "index"
	Err        error
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("%s: %v", e.Capability, e.Err)
}

func (e *DependencyError) Unwrap() error { return e.Err }

// HTTPError reports a non-2xx response from a remote embedding API.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http %d: %s", e.Status, e.Body)
}

// BuildError aggregates the per-document load failures of a corpus build.
// A build that fails for some documents still proceeds with the rest; the
// failures are collected here rather than aborting the whole ingestion.
type BuildError struct {
	Failures []*LoadError
}

func (e *BuildError) Error() string {
	if len(e.Failures) == 1 {
		return fmt.Sprintf("build: 1 document failed: %v", e.Failures[0])
	}
	msgs := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		msgs[i] = f.Error()
	}
	return fmt.Sprintf("build: %d documents failed: %s", len(e.Failures), strings.Join(msgs, "; "))
}

// Unwrap exposes the individual load failures to errors.Is / errors.As.
func (e *BuildError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f
	}
	return errs
}
