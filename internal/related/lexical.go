package related

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var caseFolder = cases.Fold()

// stopwords are excluded from overlap scoring; they carry no topical signal.
var stopwords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {}, "of": {},
	"to": {}, "in": {}, "on": {}, "at": {}, "for": {}, "with": {}, "by": {},
	"is": {}, "are": {}, "was": {}, "were": {}, "be": {}, "been": {}, "being": {},
	"it": {}, "its": {}, "this": {}, "that": {}, "these": {}, "those": {},
	"as": {}, "from": {}, "not": {}, "no": {}, "can": {}, "will": {}, "have": {},
	"has": {}, "had": {}, "do": {}, "does": {}, "did": {}, "they": {}, "their": {},
	"we": {}, "our": {}, "you": {}, "your": {}, "he": {}, "she": {}, "his": {},
	"her": {}, "what": {}, "which": {}, "who": {}, "when": {}, "where": {},
	"how": {}, "why": {}, "if": {}, "then": {}, "than": {}, "so": {}, "there": {},
	"all": {}, "each": {}, "more": {}, "most": {}, "other": {}, "some": {},
	"such": {}, "only": {}, "into": {}, "about": {}, "also": {}, "would": {},
	"could": {}, "should": {}, "may": {}, "might": {}, "must": {},
}

// lexicalOverlap computes a Jaccard similarity over normalized content terms.
// Returns 0 when either text has no content terms.
func lexicalOverlap(a, b string) float64 {
	setA := termSet(a)
	setB := termSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	shared := 0
	for t := range setA {
		if _, ok := setB[t]; ok {
			shared++
		}
	}
	union := len(setA) + len(setB) - shared
	if union == 0 {
		return 0
	}
	return float64(shared) / float64(union)
}

// termSet tokenizes text into a set of normalized terms: NFKC-normalized,
// case-folded, split on non-letter/digit runes, stopwords and single-rune
// tokens removed.
func termSet(text string) map[string]struct{} {
	normalized := caseFolder.String(norm.NFKC.String(text))
	tokens := strings.FieldsFunc(normalized, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	set := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		if len(tok) < 2 {
			continue
		}
		if _, ok := stopwords[tok]; ok {
			continue
		}
		set[tok] = struct{}{}
	}
	return set
}
