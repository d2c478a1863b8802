package guidesearch

// --- Domain types (corpus records) ---

// Chunk is the atomic retrievable unit: a bounded, overlap-aware passage of
// text extracted from one page of one source document. Its text is a
// contiguous run of words from the page it came from.
type Chunk struct {
	ID            string `json:"chunk_id"`
	DocumentName  string `json:"document_name"`
	PageNumber    int    `json:"page_number"`
	SectionTitle  string `json:"section_title"`
	Text          string `json:"text"`
	SequenceIndex int    `json:"sequence_index"`
}

// DocumentSummary describes one processed source document.
type DocumentSummary struct {
	Name        string `json:"document_name"`
	Source      string `json:"source"`
	TotalPages  int    `json:"total_pages"`
	TotalChunks int    `json:"total_chunks"`
	ProcessedAt int64  `json:"processed_at"`
}

// QueryResult is one ranked passage returned from a search.
// SimilarityScore is normalized so that higher always means more relevant,
// regardless of the raw metric the underlying vector index exposes.
type QueryResult struct {
	ChunkID         string  `json:"chunk_id"`
	SimilarityScore float64 `json:"similarity_score"`
	DocumentName    string  `json:"document_name"`
	PageNumber      int     `json:"page_number"`
	SectionTitle    string  `json:"section_title"`
	Text            string  `json:"text"`
}

// ClinicalAnswer pairs the clinical terms recognized in a question with the
// ranked passages retrieved for the expanded query.
type ClinicalAnswer struct {
	Terms   []string      `json:"medical_terms"`
	Results []QueryResult `json:"results"`
}

// Status reports whether the engine can serve queries and how much corpus
// it is serving.
type Status struct {
	Ready          bool `json:"ready"`
	TotalChunks    int  `json:"total_chunks"`
	TotalDocuments int  `json:"total_documents"`
}
