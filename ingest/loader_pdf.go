package ingest

import (
	"bytes"
	"fmt"
	"log/slog"

	"github.com/ledongthuc/pdf"
)

// PDFLoader extracts per-page text from PDF documents using ledongthuc/pdf
// (pure Go, no CGO). Pages whose text cannot be extracted are reported as
// empty pages; only an unreadable container fails the whole document.
type PDFLoader struct {
	// Logger, when set, records skipped pages. Nil disables logging.
	Logger *slog.Logger
}

var _ Loader = (*PDFLoader)(nil)

func (l *PDFLoader) Load(name string, content []byte) ([]Page, error) {
	if len(content) == 0 {
		return nil, fmt.Errorf("empty pdf content")
	}
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	pages := make([]Page, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			pages = append(pages, Page{Number: i})
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			if l.Logger != nil {
				l.Logger.Warn("pdf: page text extraction failed", "document", name, "page", i, "error", err)
			}
			pages = append(pages, Page{Number: i})
			continue
		}
		pages = append(pages, Page{Number: i, Text: CleanText(text)})
	}
	return pages, nil
}
