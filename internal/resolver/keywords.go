package resolver

import (
	"strings"
	"unicode"

	"github.com/zhe.chen/landmark-story/internal/landmarks"
)

// stopwords are too common across landmark names to identify one.
var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "from": true,
	"great": true, "old": true, "new": true, "saint": true, "national": true,
	"temple": true, "temples": true, "museum": true, "mosque": true, "church": true,
	"monastery": true, "pyramid": true, "pyramids": true, "tomb": true, "tombs": true,
	"valley": true, "island": true, "islands": true, "oasis": true, "park": true,
	"village": true, "city": true, "bay": true, "lake": true, "mountain": true,
	"palace": true, "tower": true, "bridge": true, "citadel": true, "complex": true,
}

// Keywords returns the distinct lowercase tokens of text that are at least
// three characters long and not stopwords, in order of first appearance.
func Keywords(text string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, tok := range tokens(text) {
		if len(tok) < 3 || stopwords[tok] || seen[tok] {
			continue
		}
		seen[tok] = true
		out = append(out, tok)
	}
	return out
}

// Score rates how strongly an analysis (given as token counts) points at lm.
// Each name keyword present in the analysis scores 3 plus one per occurrence.
// Category keywords score the same way but only once a name keyword matched.
func Score(lm landmarks.Landmark, counts map[string]int) int {
	score := 0
	for _, kw := range Keywords(lm.Name) {
		if n := counts[kw]; n > 0 {
			score += 3 + n
		}
	}
	if score == 0 {
		return 0
	}
	for _, kw := range Keywords(lm.Category) {
		if n := counts[kw]; n > 0 {
			score += 3 + n
		}
	}
	return score
}

func tokenCounts(text string) map[string]int {
	counts := make(map[string]int)
	for _, tok := range tokens(text) {
		counts[tok]++
	}
	return counts
}

func tokens(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
