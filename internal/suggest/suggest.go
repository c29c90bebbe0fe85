// Package suggest finds the closest known name for a misspelled one. It backs
// the "did you mean" hints of the config and catalog loaders.
package suggest

import (
	"strings"

	"github.com/antzucaro/matchr"
)

// DefaultThreshold is the minimum Jaro-Winkler similarity a candidate needs to
// be suggested.
const DefaultThreshold = 0.8

// Closest returns the candidate most similar to word and whether its
// Jaro-Winkler score reaches threshold. Comparison is case-insensitive.
// Candidates that equal word are ignored; a caller only asks for a suggestion
// after an exact lookup already failed.
func Closest(word string, candidates []string, threshold float64) (string, bool) {
	w := strings.ToLower(strings.TrimSpace(word))
	if w == "" {
		return "", false
	}
	var (
		best  string
		score float64
	)
	for _, c := range candidates {
		cl := strings.ToLower(c)
		if cl == "" || cl == w {
			continue
		}
		if s := matchr.JaroWinkler(w, cl, false); s > score {
			best, score = c, s
		}
	}
	if best == "" || score < threshold {
		return "", false
	}
	return best, true
}

// Hint formats a " (did you mean %q?)" suffix for error messages, or returns
// the empty string when no candidate is close enough.
func Hint(word string, candidates []string) string {
	if c, ok := Closest(word, candidates, DefaultThreshold); ok {
		return ` (did you mean "` + c + `"?)`
	}
	return ""
}
