package ingest

import (
	"bytes"
	"fmt"

	readability "github.com/go-shiori/go-readability"
)

// HTMLLoader extracts the readable article text from an HTML guideline page
// using go-shiori/go-readability. HTML sources are not paginated, so the
// whole article is a single page.
type HTMLLoader struct{}

var _ Loader = (*HTMLLoader)(nil)

func (*HTMLLoader) Load(name string, content []byte) ([]Page, error) {
	article, err := readability.FromReader(bytes.NewReader(content), nil)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return []Page{{Number: 1, Text: CleanText(article.TextContent)}}, nil
}
