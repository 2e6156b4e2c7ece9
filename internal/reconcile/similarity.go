// Package reconcile merges per-source raw records into canonical prospect
// entities, resolving field conflicts with authority rules and emitting an
// append-only audit trail.
package reconcile

import (
	"regexp"
	"strings"
)

// nameSuffixes lists generational suffixes stripped during normalization.
var nameSuffixes = []string{
	" JR", " JR.", " SR", " SR.",
	" II", " III", " IV", " V",
}

var multiSpaceRe = regexp.MustCompile(`\s{2,}`)

// NormalizeName standardizes a prospect name for matching by:
//  1. Trimming whitespace
//  2. Converting to uppercase
//  3. Removing generational suffixes (Jr, Sr, III, etc.)
//  4. Stripping punctuation (commas, periods, apostrophes, dashes)
//  5. Collapsing multiple spaces into single spaces
func NormalizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}

	name = strings.ToUpper(name)

	name = strings.NewReplacer(
		",", "",
		".", "",
		"'", "",
		"\"", "",
		"-", " ",
	).Replace(name)

	for _, suffix := range nameSuffixes {
		trimmed := strings.TrimSuffix(suffix, ".")
		if strings.HasSuffix(name, trimmed) {
			name = strings.TrimSuffix(name, trimmed)
			break
		}
	}

	name = multiSpaceRe.ReplaceAllString(name, " ")
	return strings.TrimSpace(name)
}

// Similarity scores two prospect names in [0,1] using token-set overlap
// over the normalized names. A single-letter token (an initial) matches any
// token starting with that letter, so "J. Doe" and "John Doe" score 1.0.
// This is the standard measure used for identity matching; the acceptance
// threshold is configuration, not code.
func Similarity(a, b string) float64 {
	tokensA := strings.Fields(NormalizeName(a))
	tokensB := strings.Fields(NormalizeName(b))

	if len(tokensA) == 0 || len(tokensB) == 0 {
		return 0
	}

	matchedB := make([]bool, len(tokensB))
	intersection := 0
	for _, ta := range tokensA {
		for j, tb := range tokensB {
			if matchedB[j] {
				continue
			}
			if tokensMatch(ta, tb) {
				matchedB[j] = true
				intersection++
				break
			}
		}
	}

	union := len(tokensA) + len(tokensB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// tokensMatch treats single-letter tokens as initials.
func tokensMatch(a, b string) bool {
	if a == b {
		return true
	}
	if len(a) == 1 && strings.HasPrefix(b, a) {
		return true
	}
	if len(b) == 1 && strings.HasPrefix(a, b) {
		return true
	}
	return false
}
