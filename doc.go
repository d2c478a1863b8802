// Package guidesearch is the core of a semantic search system over a fixed
// corpus of clinical guideline documents.
//
// The build path loads source documents page by page, splits each page into
// overlapping word-window chunks with positional metadata, embeds the chunks,
// and persists a metadata table plus a vector index as one atomically
// published corpus version. The query path embeds free text, looks up nearest
// neighbors in the vector index, normalizes raw metric scores to a single
// similarity scale, deduplicates near-identical passages from overlapping
// windows, and returns deterministically ranked results.
//
// The embedding model and the nearest-neighbor structure are consumed through
// the EmbeddingProvider and VectorIndex interfaces; implementations live in
// provider/ and index/. Persistence lives in store/, document loading and
// corpus construction in ingest/.
package guidesearch
