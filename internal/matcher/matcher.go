// Package matcher picks the canned reply template that best fits a post.
package matcher

import (
	"strings"

	"reddit_responder/internal/model"
)

// Match returns the name of the template with the most keyword hits in text.
// Keywords match as case-insensitive substrings, so "aid" also hits "said".
// Ties go to the template that comes first in catalog. A template with no
// hits is never selected.
func Match(text string, catalog []model.Template) (string, bool) {
	lower := strings.ToLower(text)

	best, bestScore := "", 0
	for _, t := range catalog {
		score := score(lower, t.Keywords)
		if score > bestScore {
			best, bestScore = t.Name, score
		}
	}
	return best, bestScore > 0
}

// Score counts how many of the template's keywords occur in text.
func Score(text string, t model.Template) int {
	return score(strings.ToLower(text), t.Keywords)
}

// Hits returns the template's keywords that occur in text, in keyword order.
func Hits(text string, t model.Template) []string {
	lower := strings.ToLower(text)
	var hits []string
	for _, kw := range t.Keywords {
		if contains(lower, kw) {
			hits = append(hits, kw)
		}
	}
	return hits
}

// AnyKeyword reports whether text contains at least one keyword of any template.
func AnyKeyword(text string, catalog []model.Template) bool {
	_, ok := Match(text, catalog)
	return ok
}

func score(lower string, keywords []string) int {
	n := 0
	for _, kw := range keywords {
		if contains(lower, kw) {
			n++
		}
	}
	return n
}

func contains(lower, keyword string) bool {
	if keyword == "" {
		return false
	}
	return strings.Contains(lower, strings.ToLower(keyword))
}
