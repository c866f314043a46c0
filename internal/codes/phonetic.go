package codes

import (
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/xrash/smetrics"
)

// Scorer picks the closest candidate for a normalized name by blending
// Jaro-Winkler and Levenshtein similarity, gated by a Soundex key.
type Scorer struct {
	// Threshold is the minimum blended score accepted when the candidate
	// sounds alike (same per-word Soundex key).
	Threshold float64

	// StrictThreshold is the minimum blended score accepted when the
	// Soundex keys differ.
	StrictThreshold float64
}

// DefaultScorer is used by resolvers unless replaced.
var DefaultScorer = Scorer{Threshold: 0.80, StrictThreshold: 0.92}

// Similarity returns a score in [0, 1] for two normalized strings.
func Similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	jw := smetrics.JaroWinkler(a, b, 0.7, 4)
	dist := levenshtein.ComputeDistance(a, b)
	longest := max(len([]rune(a)), len([]rune(b)))
	lev := 1 - float64(dist)/float64(longest)
	return 0.7*jw + 0.3*lev
}

// PhoneticKey returns the space-joined Soundex codes of each word in s.
func PhoneticKey(s string) string {
	words := strings.Fields(s)
	keys := make([]string, 0, len(words))
	for _, w := range words {
		keys = append(keys, smetrics.Soundex(w))
	}
	return strings.Join(keys, " ")
}

// Best returns the index of the best-scoring candidate above the applicable
// threshold, or -1. Ties keep the earliest candidate.
func (s Scorer) Best(name string, candidates []string) (int, float64) {
	key := PhoneticKey(name)
	best, bestScore := -1, 0.0
	for i, c := range candidates {
		score := Similarity(name, c)
		limit := s.StrictThreshold
		if PhoneticKey(c) == key {
			limit = s.Threshold
		}
		if score < limit {
			continue
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	return best, bestScore
}
