package resolver

import (
	"strings"
	"unicode"
)

// keywordWeights maps topic tokens to their complexity. Anything else weighs 1.
var keywordWeights = map[string]int{
	"chaos":     3,
	"conscious": 4,
	"spacetime": 3,
	"speak":     2,
}

// Classify returns the complexity of query: the heaviest keyword weight among
// its whitespace-separated tokens, or 1 when none match.
// Tokens are lowercased and stripped of surrounding punctuation, so
// "chaos?" weighs the same as "chaos".
func Classify(query string) int {
	complexity := 1
	for _, tok := range strings.Fields(strings.ToLower(query)) {
		tok = strings.TrimFunc(tok, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if w, ok := keywordWeights[tok]; ok && w > complexity {
			complexity = w
		}
	}
	return complexity
}
