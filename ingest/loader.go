// Package ingest builds guideline corpora: it loads source documents page by
// page, chunks pages into overlapping word windows with section metadata,
// embeds the chunks in batches, and publishes the corpus artifacts
// atomically.
package ingest

import (
	"path/filepath"
	"regexp"
	"strings"
)

// Page is one page of extracted text from a source document, in reading
// order. Pages with no extractable text carry an empty Text, not an error.
type Page struct {
	Number int
	Text   string
}

// Loader extracts per-page text from one source document format. It fails
// only when the source container itself cannot be opened or parsed; partial
// extraction failures on individual pages yield empty pages instead.
type Loader interface {
	Load(name string, content []byte) ([]Page, error)
}

// LoaderForExtension returns the built-in loader for a filename extension.
// Unknown extensions fall back to plain text.
func LoaderForExtension(ext string) Loader {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "pdf":
		return &PDFLoader{}
	case "html", "htm":
		return &HTMLLoader{}
	case "md", "markdown":
		return &MarkdownLoader{}
	default:
		return &TextLoader{}
	}
}

// TextLoader treats content as plain text. Form feeds delimit pages, which
// matches the convention of pdftotext-style exports; content without form
// feeds is a single page.
type TextLoader struct{}

var _ Loader = (*TextLoader)(nil)

func (*TextLoader) Load(_ string, content []byte) ([]Page, error) {
	parts := strings.Split(string(content), "\f")
	pages := make([]Page, 0, len(parts))
	for i, p := range parts {
		pages = append(pages, Page{Number: i + 1, Text: CleanText(p)})
	}
	return pages, nil
}

var (
	pageFooterRe = regexp.MustCompile(`Page \d+ of \d+`)
	urlRe        = regexp.MustCompile(`https?://\S+`)
	doiRe        = regexp.MustCompile(`doi:\s*\S+`)
	intraSpaceRe = regexp.MustCompile(`[ \t]+`)
)

// CleanText strips boilerplate that carries no retrieval signal from
// extracted page text: running page footers, URLs, and DOIs. Whitespace is
// collapsed within lines but line breaks are preserved, because the chunker's
// heading heuristic works on lines.
func CleanText(text string) string {
	text = pageFooterRe.ReplaceAllString(text, "")
	text = urlRe.ReplaceAllString(text, "")
	text = doiRe.ReplaceAllString(text, "")

	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(intraSpaceRe.ReplaceAllString(line, " "))
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

// DocumentNameFromFilename derives the corpus document name from a source
// filename: the base name without its extension.
func DocumentNameFromFilename(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
