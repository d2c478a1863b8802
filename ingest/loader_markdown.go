package ingest

import (
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gmtext "github.com/yuin/goldmark/text"
)

// MarkdownLoader extracts plain text from markdown guideline sources by
// walking the goldmark AST. Headings are kept on their own lines so the
// chunker's heading heuristic can see them, and thematic breaks ("---")
// delimit pages so page numbers remain meaningful for non-paginated sources.
type MarkdownLoader struct{}

var _ Loader = (*MarkdownLoader)(nil)

func (*MarkdownLoader) Load(name string, content []byte) ([]Page, error) {
	md := goldmark.New()
	root := md.Parser().Parse(gmtext.NewReader(content))

	var pages []Page
	var buf strings.Builder
	flush := func() {
		text := CleanText(buf.String())
		buf.Reset()
		if text == "" && len(pages) == 0 {
			return
		}
		pages = append(pages, Page{Number: len(pages) + 1, Text: text})
	}

	err := ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch node := n.(type) {
		case *ast.ThematicBreak:
			if entering {
				flush()
			}
		case *ast.Heading:
			if entering {
				buf.WriteByte('\n')
				buf.WriteString(nodeText(node, content))
				buf.WriteByte('\n')
				return ast.WalkSkipChildren, nil
			}
		case *ast.Text:
			if entering {
				buf.Write(node.Segment.Value(content))
				if node.SoftLineBreak() || node.HardLineBreak() {
					buf.WriteByte('\n')
				} else {
					buf.WriteByte(' ')
				}
			}
		case *ast.Paragraph, *ast.ListItem:
			if !entering {
				buf.WriteByte('\n')
			}
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk markdown: %w", err)
	}

	flush()
	if len(pages) == 0 {
		pages = []Page{{Number: 1}}
	}
	return pages, nil
}

// nodeText collects the raw text of a node's descendants.
func nodeText(n ast.Node, source []byte) string {
	var b strings.Builder
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			b.Write(t.Segment.Value(source))
		} else {
			b.WriteString(nodeText(c, source))
		}
	}
	return b.String()
}
