package ingest

import (
	"regexp"
	"strings"

	guidesearch "github.com/clinicalrag/guidesearch"
)

// ChunkerOption configures a WindowChunker.
type ChunkerOption func(*chunkerConfig)

type chunkerConfig struct {
	windowWords  int
	overlapWords int
	minTailWords int
}

func defaultChunkerConfig() chunkerConfig {
	return chunkerConfig{windowWords: 800, overlapWords: 100, minTailWords: 50}
}

// WithWindowWords sets the target chunk size in words. Default: 800.
func WithWindowWords(n int) ChunkerOption {
	return func(c *chunkerConfig) {
		if n > 0 {
			c.windowWords = n
		}
	}
}

// WithOverlapWords sets how many words consecutive chunks share. Must be
// smaller than the window. Default: 100.
func WithOverlapWords(n int) ChunkerOption {
	return func(c *chunkerConfig) {
		if n >= 0 {
			c.overlapWords = n
		}
	}
}

// WithMinTailWords sets the minimum word count of a page's final chunk.
// Shorter tails merge into the previous chunk instead of standing alone as
// near-empty, low-signal passages. Default: 50.
func WithMinTailWords(n int) ChunkerOption {
	return func(c *chunkerConfig) {
		if n >= 0 {
			c.minTailWords = n
		}
	}
}

// WindowChunker splits per-page text into overlapping word windows: chunks
// of the target size advance by window minus overlap, so consecutive chunks
// share their boundary words. Chunking is deterministic: identical input
// bytes always produce identical chunk sequences and chunk IDs.
type WindowChunker struct {
	cfg chunkerConfig
}

// NewWindowChunker creates a WindowChunker. An overlap at or above the
// window size is clamped to half the window so the stride stays positive.
func NewWindowChunker(opts ...ChunkerOption) *WindowChunker {
	cfg := defaultChunkerConfig()
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.overlapWords >= cfg.windowWords {
		cfg.overlapWords = cfg.windowWords / 2
	}
	return &WindowChunker{cfg: cfg}
}

// ChunkDocument chunks all pages of one document in reading order.
// The section heading carries forward across pages within the document;
// chunks seen before any heading get an empty section title.
func (c *WindowChunker) ChunkDocument(document string, pages []Page) []guidesearch.Chunk {
	var chunks []guidesearch.Chunk
	heading := ""
	sequence := 0
	for _, page := range pages {
		var pageChunks []guidesearch.Chunk
		pageChunks, heading, sequence = c.chunkPage(document, page, heading, sequence)
		chunks = append(chunks, pageChunks...)
	}
	return chunks
}

// chunkPage windows one page's words. Returns the page's chunks, the heading
// in effect after the page, and the next document-wide sequence index.
func (c *WindowChunker) chunkPage(document string, page Page, heading string, sequence int) ([]guidesearch.Chunk, string, int) {
	words, headingAt, lastHeading := scanPage(page.Text, heading)
	if len(words) == 0 {
		return nil, lastHeading, sequence
	}

	window, stride := c.cfg.windowWords, c.cfg.windowWords-c.cfg.overlapWords
	var chunks []guidesearch.Chunk
	type bounds struct{ start, end int }
	var emitted []bounds

	pageChunk := 0
	start := 0
	for start < len(words) {
		end := start + window
		if end > len(words) {
			end = len(words)
		}

		tail := end == len(words)
		if tail && len(chunks) > 0 && end-start < c.cfg.minTailWords {
			// Merge the short scrap into the previous chunk rather than
			// emitting a near-empty standalone chunk.
			prev := emitted[len(emitted)-1]
			chunks[len(chunks)-1].Text = strings.Join(words[prev.start:end], " ")
			break
		}

		chunks = append(chunks, guidesearch.Chunk{
			ID:            guidesearch.ChunkID(document, page.Number, pageChunk),
			DocumentName:  document,
			PageNumber:    page.Number,
			SectionTitle:  headingAt[start],
			Text:          strings.Join(words[start:end], " "),
			SequenceIndex: sequence,
		})
		emitted = append(emitted, bounds{start, end})
		pageChunk++
		sequence++

		if tail {
			break
		}
		start += stride
	}
	return chunks, lastHeading, sequence
}

// scanPage tokenizes a page into words and records the heading in effect at
// each word position, updating the heading whenever a heading-like line is
// seen.
func scanPage(text, heading string) (words []string, headingAt []string, last string) {
	last = heading
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if isHeadingLine(line) {
			last = line
		}
		for _, w := range strings.Fields(line) {
			words = append(words, w)
			headingAt = append(headingAt, last)
		}
	}
	return words, headingAt, last
}

var (
	// Numbered section titles: "3. Diagnosis", "8.2 Blood Pressure Targets".
	numberedHeadingRe = regexp.MustCompile(`^\d+(\.\d+)*\.?\s+[A-Z][^.]*$`)
	// Run-on capitals: "RECOMMENDATIONS FOR SCREENING".
	allCapsHeadingRe = regexp.MustCompile(`^[A-Z][A-Z0-9\s\-]{9,}$`)
)

// Connectives that stay lowercase inside title-case headings.
var titleStopwords = map[string]bool{
	"a": true, "an": true, "and": true, "for": true, "in": true,
	"of": true, "on": true, "the": true, "to": true, "with": true,
}

// isHeadingLine is the best-effort heading heuristic: numbered section
// titles, all-caps lines, or short title-case lines count as headings.
func isHeadingLine(line string) bool {
	if numberedHeadingRe.MatchString(line) || allCapsHeadingRe.MatchString(line) {
		return true
	}
	return isShortTitleCase(line)
}

func isShortTitleCase(line string) bool {
	if len(line) > 60 || strings.ContainsAny(line, ".!?;:") {
		return false
	}
	fields := strings.Fields(line)
	if len(fields) < 2 || len(fields) > 8 {
		return false
	}
	for i, f := range fields {
		if i > 0 && titleStopwords[f] {
			continue
		}
		r := rune(f[0])
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
