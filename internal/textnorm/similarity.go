package textnorm

import (
	"strings"

	"github.com/agnivade/levenshtein"
)

// Similarity thresholds and weights for the scoring cascade.
const (
	containmentWeight  = 0.9
	tokenOverlapBase   = 0.7
	tokenOverlapWeight = 0.2
	tokenOverlapCutoff = 0.5
	editDistanceCutoff = 0.6
)

// Similarity scores how alike two names are, in [0, 1]. The checks run
// cheapest and most confident first: exact normalized equality, then
// containment, then word-token overlap, then a Levenshtein-ratio
// fallback that only counts when it clears its cutoff. The function is
// symmetric in its arguments.
func Similarity(a, b string) float64 {
	na, nb := Normalize(a), Normalize(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}

	lenA, lenB := len([]rune(na)), len([]rune(nb))
	shorter, longer := float64(lenA), float64(lenB)
	if lenA > lenB {
		shorter, longer = longer, shorter
	}

	if strings.Contains(na, nb) || strings.Contains(nb, na) {
		return containmentWeight * (shorter / longer)
	}

	if ratio := tokenOverlap(na, nb); ratio > tokenOverlapCutoff {
		return tokenOverlapBase + tokenOverlapWeight*ratio
	}

	dist := levenshtein.ComputeDistance(na, nb)
	score := 1 - float64(dist)/longer
	if score > editDistanceCutoff {
		return score
	}
	return 0
}

// tokenOverlap returns the share of word tokens the two strings have in
// common, relative to the longer token list.
func tokenOverlap(a, b string) float64 {
	tokensA := strings.Fields(a)
	tokensB := strings.Fields(b)
	if len(tokensA) == 0 || len(tokensB) == 0 {
		return 0
	}

	setB := make(map[string]struct{}, len(tokensB))
	for _, t := range tokensB {
		setB[t] = struct{}{}
	}

	common := 0
	seen := make(map[string]struct{}, len(tokensA))
	for _, t := range tokensA {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := setB[t]; ok {
			common++
		}
	}

	denom := len(tokensA)
	if len(tokensB) > denom {
		denom = len(tokensB)
	}
	return float64(common) / float64(denom)
}
