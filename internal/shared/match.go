package shared

import (
	"strings"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
)

// MatchThreshold is the minimum Jaro-Winkler similarity for a fuzzy name match.
const MatchThreshold = 0.85

// NormalizeName lowercases s and collapses runs of whitespace.
func NormalizeName(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// BestMatch returns the index of the candidate closest to query, or -1 when none reaches [MatchThreshold].
//
// An exact match after normalization always wins.
func BestMatch(query string, candidates []string) int {
	q := NormalizeName(query)
	if q == "" {
		return -1
	}

	best, bestScore := -1, 0.0
	for i, c := range candidates {
		cand := NormalizeName(c)
		if cand == q {
			return i
		}
		score := strutil.Similarity(q, cand, metrics.NewJaroWinkler())
		if score >= MatchThreshold && score > bestScore {
			best, bestScore = i, score
		}
	}
	return best
}
