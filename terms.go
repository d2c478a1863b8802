package guidesearch

import (
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Concept is one entry in the clinical reference vocabulary: a canonical
// term plus the synonym phrases that map back to it.
type Concept struct {
	Canonical string
	Synonyms  []string
}

// DefaultVocabulary returns the cardiology vocabulary used for question
// expansion over the guideline corpus. Order matters: extracted terms are
// reported in vocabulary order.
func DefaultVocabulary() []Concept {
	return []Concept{
		{Canonical: "hypertension", Synonyms: []string{"high blood pressure", "elevated blood pressure", "arterial hypertension"}},
		{Canonical: "blood pressure", Synonyms: []string{"bp target", "blood pressure target"}},
		{Canonical: "myocardial infarction", Synonyms: []string{"heart attack", "MI", "acute MI", "STEMI", "NSTEMI"}},
		{Canonical: "atrial fibrillation", Synonyms: []string{"AF", "AFib", "irregular heartbeat"}},
		{Canonical: "heart failure", Synonyms: []string{"HF", "cardiac failure", "congestive heart failure", "CHF"}},
		{Canonical: "coronary artery disease", Synonyms: []string{"CAD", "coronary heart disease", "CHD"}},
		{Canonical: "acute coronary syndrome", Synonyms: []string{"ACS"}},
		{Canonical: "diabetes", Synonyms: []string{"diabetes mellitus", "DM", "diabetic"}},
		{Canonical: "stroke", Synonyms: []string{"cerebrovascular accident", "CVA"}},
		{Canonical: "anticoagulation", Synonyms: []string{"blood thinning", "anticoagulant therapy", "anticoagulant"}},
		{Canonical: "percutaneous coronary intervention", Synonyms: []string{"PCI", "stent", "stenting"}},
		{Canonical: "coronary artery bypass", Synonyms: []string{"CABG", "bypass surgery", "coronary artery bypass graft"}},
		{Canonical: "endocarditis", Synonyms: []string{"infective endocarditis"}},
		{Canonical: "beta-blocker", Synonyms: []string{"beta blocker", "beta blockers", "beta-blockers"}},
	}
}

// termPhrase is one matchable phrase and the vocabulary slot it belongs to.
type termPhrase struct {
	text    string // normalized, lowercase
	concept int
}

// TermExtractor recognizes vocabulary concepts in free text. It never fails
// on any input; unrecognized text simply contributes no terms.
type TermExtractor struct {
	concepts []Concept
	phrases  []termPhrase
}

// NewTermExtractor builds an extractor over the given vocabulary. A nil
// vocabulary uses DefaultVocabulary.
func NewTermExtractor(vocab []Concept) *TermExtractor {
	if vocab == nil {
		vocab = DefaultVocabulary()
	}
	x := &TermExtractor{concepts: vocab}
	for i, c := range vocab {
		x.phrases = append(x.phrases, termPhrase{text: normalizeTermText(c.Canonical), concept: i})
		for _, s := range c.Synonyms {
			x.phrases = append(x.phrases, termPhrase{text: normalizeTermText(s), concept: i})
		}
	}
	return x
}

// span is a matched phrase occurrence in the input text.
type span struct {
	start, end int
	concept    int
}

// Extract returns the canonical terms of every concept whose canonical form
// or any synonym occurs in text as a case-insensitive whole-word phrase.
// When two vocabulary phrases match overlapping spans, the longer match
// wins, so "HF" never fires inside "HFrEF" and "blood pressure" yields to
// "high blood pressure". Results are deduplicated per concept and ordered
// by vocabulary position. Empty input returns nil.
func (x *TermExtractor) Extract(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	haystack := normalizeTermText(text)

	var matches []span
	for _, p := range x.phrases {
		if p.text == "" {
			continue
		}
		from := 0
		for {
			i := strings.Index(haystack[from:], p.text)
			if i < 0 {
				break
			}
			start := from + i
			end := start + len(p.text)
			if wholeWord(haystack, start, end) {
				matches = append(matches, span{start: start, end: end, concept: p.concept})
			}
			from = start + 1
		}
	}
	if len(matches) == 0 {
		return nil
	}

	// Longest match claims its span first; shorter overlapping matches of
	// other concepts are discarded so one stretch of text counts once.
	sort.Slice(matches, func(i, j int) bool {
		li, lj := matches[i].end-matches[i].start, matches[j].end-matches[j].start
		if li != lj {
			return li > lj
		}
		return matches[i].start < matches[j].start
	})

	var claimed []span
	found := make(map[int]bool)
	for _, m := range matches {
		overlapsOther := false
		for _, c := range claimed {
			if m.start < c.end && c.start < m.end && m.concept != c.concept {
				overlapsOther = true
				break
			}
		}
		if overlapsOther {
			continue
		}
		claimed = append(claimed, m)
		found[m.concept] = true
	}

	var terms []string
	for i, c := range x.concepts {
		if found[i] {
			terms = append(terms, c.Canonical)
		}
	}
	return terms
}

// Synonyms returns the synonym phrases of a canonical term, or nil when the
// term is not in the vocabulary.
func (x *TermExtractor) Synonyms(canonical string) []string {
	for _, c := range x.concepts {
		if c.Canonical == canonical {
			out := make([]string, len(c.Synonyms))
			copy(out, c.Synonyms)
			return out
		}
	}
	return nil
}

// ExpandQuery appends the given terms and their synonyms to a query string,
// skipping phrases the query already contains. Used to improve recall for
// short telegraphic questions before embedding.
func (x *TermExtractor) ExpandQuery(query string, terms []string) string {
	lower := strings.ToLower(query)
	var extra []string
	seen := make(map[string]bool)
	add := func(phrase string) {
		key := strings.ToLower(phrase)
		if seen[key] || strings.Contains(lower, key) {
			return
		}
		seen[key] = true
		extra = append(extra, phrase)
	}
	for _, t := range terms {
		add(t)
		for _, s := range x.Synonyms(t) {
			add(s)
		}
	}
	if len(extra) == 0 {
		return query
	}
	return query + " " + strings.Join(extra, " ")
}

// normalizeTermText folds text to a canonical lowercase NFKC form so that
// matching is insensitive to case and unicode presentation variants.
func normalizeTermText(s string) string {
	return strings.ToLower(norm.NFKC.String(s))
}

// wholeWord reports whether haystack[start:end] is bounded by non-word
// bytes or string edges on both sides.
func wholeWord(haystack string, start, end int) bool {
	if start > 0 && isWordByte(haystack[start-1]) {
		return false
	}
	if end < len(haystack) && isWordByte(haystack[end]) {
		return false
	}
	return true
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}
