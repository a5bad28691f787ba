package errors

import (
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
)

// Closest returns the candidates within maxDistance edits of name, nearest first.
func Closest(name string, candidates []string, maxDistance int) []string {
	type scored struct {
		value    string
		distance int
	}

	name = strings.ToLower(name)
	matches := make([]scored, 0, len(candidates))
	for _, candidate := range candidates {
		d := levenshtein.ComputeDistance(name, strings.ToLower(candidate))
		if d <= maxDistance {
			matches = append(matches, scored{candidate, d})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].distance != matches[j].distance {
			return matches[i].distance < matches[j].distance
		}
		return matches[i].value < matches[j].value
	})

	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m.value
	}
	return out
}

// DidYouMean formats a suggestion suffix, or "" when nothing is close.
func DidYouMean(name string, candidates []string) string {
	limit := len(name) / 3
	if limit < 2 {
		limit = 2
	}
	closest := Closest(name, candidates, limit)
	if len(closest) == 0 {
		return ""
	}
	if len(closest) > 3 {
		closest = closest[:3]
	}
	return "did you mean " + strings.Join(closest, ", ") + "?"
}
