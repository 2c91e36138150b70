package textutil

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
)

// tokenSplitPattern matches non-alphanumeric character sequences for tokenization.
var tokenSplitPattern = regexp.MustCompile(`[^\p{L}\p{N}]+`)

// stopwords are dropped during normalization so fingerprints compare on
// content-bearing terms only.
var stopwords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {},
	"in": {}, "on": {}, "at": {}, "to": {}, "for": {}, "of": {},
	"with": {}, "by": {}, "from": {}, "up": {}, "about": {}, "into": {},
	"through": {}, "during": {}, "before": {}, "after": {}, "above": {},
	"below": {}, "between": {}, "among": {}, "is": {}, "are": {},
	"was": {}, "were": {}, "be": {}, "been": {}, "being": {},
	"have": {}, "has": {}, "had": {}, "do": {}, "does": {}, "did": {},
	"will": {}, "would": {}, "could": {}, "should": {}, "may": {},
	"might": {}, "must": {},
}

var caseFolder = cases.Fold()

// Normalize case-folds text, strips punctuation, drops stopwords and tokens
// shorter than 3 characters, and collapses whitespace. The result is a
// deterministic function of the input and the basis for fingerprints.
func Normalize(text string) string {
	return strings.Join(Tokenize(text), " ")
}

// Tokenize splits text into normalized content tokens.
func Tokenize(text string) []string {
	folded := caseFolder.String(text)
	raw := tokenSplitPattern.Split(folded, -1)
	terms := make([]string, 0, len(raw))
	for _, token := range raw {
		token = strings.TrimSpace(token)
		if len([]rune(token)) < 3 {
			continue
		}
		if _, ok := stopwords[token]; ok {
			continue
		}
		terms = append(terms, token)
	}
	return terms
}
