package ingest

import (
	"strings"
	"testing"
)

func TestTextLoaderPagesByFormFeed(t *testing.T) {
	content := []byte("first page text\fsecond page text\fthird")
	pages, err := (&TextLoader{}).Load("doc", content)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(pages) != 3 {
		t.Fatalf("got %d pages, want 3", len(pages))
	}
	for i, p := range pages {
		if p.Number != i+1 {
			t.Errorf("page %d numbered %d", i, p.Number)
		}
	}
	if pages[1].Text != "second page text" {
		t.Errorf("page 2 text = %q", pages[1].Text)
	}
}

func TestTextLoaderSinglePage(t *testing.T) {
	pages, err := (&TextLoader{}).Load("doc", []byte("no form feeds here"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(pages) != 1 || pages[0].Number != 1 {
		t.Fatalf("pages = %+v", pages)
	}
}

func TestCleanText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"page footer removed", "guideline text Page 3 of 12 continues", "guideline text continues"},
		{"url removed", "see https://escardio.org/guidelines for details", "see for details"},
		{"doi removed", "published doi: 10.1093/eurheartj/ehac262 in 2022", "published in 2022"},
		{"intra-line whitespace collapsed", "blood   pressure\ttargets", "blood pressure targets"},
		{"line breaks preserved", "3. Diagnosis\nclinical assessment", "3. Diagnosis\nclinical assessment"},
		{"empty lines dropped", "first\n\n\nsecond", "first\nsecond"},
		{"all boilerplate", "Page 1 of 9", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanText(tt.in); got != tt.want {
				t.Errorf("CleanText(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestDocumentNameFromFilename(t *testing.T) {
	tests := []struct{ in, want string }{
		{"esc-htn-2024.pdf", "esc-htn-2024"},
		{"/data/guidelines/af_2024.md", "af_2024"},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		if got := DocumentNameFromFilename(tt.in); got != tt.want {
			t.Errorf("DocumentNameFromFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLoaderForExtension(t *testing.T) {
	if _, ok := LoaderForExtension(".pdf").(*PDFLoader); !ok {
		t.Error(".pdf did not select PDFLoader")
	}
	if _, ok := LoaderForExtension(".HTML").(*HTMLLoader); !ok {
		t.Error(".HTML did not select HTMLLoader")
	}
	if _, ok := LoaderForExtension("md").(*MarkdownLoader); !ok {
		t.Error("md did not select MarkdownLoader")
	}
	if _, ok := LoaderForExtension(".xyz").(*TextLoader); !ok {
		t.Error("unknown extension did not fall back to TextLoader")
	}
}

func TestMarkdownLoaderPagesAndHeadings(t *testing.T) {
	src := []byte("# Diagnosis\n\nInitial assessment text.\n\n---\n\n# Treatment\n\nTherapy text.\n")
	pages, err := (&MarkdownLoader{}).Load("doc", src)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(pages) != 2 {
		t.Fatalf("got %d pages, want 2 (split on thematic break): %+v", len(pages), pages)
	}
	if !strings.Contains(pages[0].Text, "Diagnosis") || !strings.Contains(pages[0].Text, "Initial assessment text.") {
		t.Errorf("page 1 = %q", pages[0].Text)
	}
	if !strings.Contains(pages[1].Text, "Treatment") {
		t.Errorf("page 2 = %q", pages[1].Text)
	}
	// Headings land on their own line so the chunker can detect them.
	if !strings.Contains(pages[0].Text, "Diagnosis\n") {
		t.Errorf("heading not on its own line: %q", pages[0].Text)
	}
}

func TestMarkdownLoaderEmpty(t *testing.T) {
	pages, err := (&MarkdownLoader{}).Load("doc", nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(pages) != 1 {
		t.Fatalf("got %d pages, want 1", len(pages))
	}
}

func TestPDFLoaderRejectsEmpty(t *testing.T) {
	if _, err := (&PDFLoader{}).Load("doc", nil); err == nil {
		t.Error("empty content accepted")
	}
	if _, err := (&PDFLoader{}).Load("doc", []byte("not a pdf")); err == nil {
		t.Error("garbage content accepted")
	}
}
