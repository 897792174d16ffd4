package dedup

import (
	"strings"

	"github.com/agext/levenshtein"
	"github.com/antzucaro/matchr"
)

// Weights for the combined company-name similarity score.
const (
	weightJaroWinkler = 0.4
	weightLevenshtein = 0.3
	weightPhonetic    = 0.2
	bonusExactMatch   = 0.1
)

// Phonetic blend: Soundex equality is a coarse binary signal, the
// Double-Metaphone code comparison carries more information.
const (
	phoneticSoundexWeight   = 0.4
	phoneticMetaphoneWeight = 0.6
)

// LevenshteinSimilarity returns 1 − editDistance/maxLen for the two names.
func LevenshteinSimilarity(a, b string) float64 {
	return levenshtein.Similarity(a, b, levenshtein.NewParams())
}

// JaroWinklerSimilarity returns the Jaro score boosted by a shared-prefix
// bonus (prefix length capped at 4, scale 0.1).
func JaroWinklerSimilarity(a, b string) float64 {
	return matchr.JaroWinkler(a, b, false)
}

// PhoneticSimilarity blends Soundex equality with Double-Metaphone
// primary/alternate code agreement.
func PhoneticSimilarity(a, b string) float64 {
	var soundex float64
	if matchr.Soundex(a) == matchr.Soundex(b) {
		soundex = 1.0
	}

	p1, alt1 := matchr.DoubleMetaphone(a)
	p2, alt2 := matchr.DoubleMetaphone(b)

	var metaphone float64
	switch {
	case p1 != "" && p1 == p2:
		metaphone = 1.0
	case (p1 != "" && p1 == alt2) || (p2 != "" && p2 == alt1):
		metaphone = 0.8
	case alt1 != "" && alt1 == alt2:
		metaphone = 0.6
	}

	return phoneticSoundexWeight*soundex + phoneticMetaphoneWeight*metaphone
}

// CombinedSimilarity scores how likely two company names refer to the same
// real-world entity, in [0,1]. Names are normalized (lowercase, diacritics
// and legal suffixes stripped) before the string metrics run; an exact match
// after aggressive normalization adds a flat bonus.
//
// This score is a signal, not the round-duplicate decision itself: the dedup
// engine resolves companies by slug/alias lookup and uses this primitive for
// cross-source aggregation and ad hoc "same company?" queries.
func CombinedSimilarity(a, b string) float64 {
	na := strings.Join(stripTrailing(tokens(a), legalSuffixes), " ")
	nb := strings.Join(stripTrailing(tokens(b), legalSuffixes), " ")
	if na == "" || nb == "" {
		return 0
	}

	score := weightJaroWinkler*JaroWinklerSimilarity(na, nb) +
		weightLevenshtein*LevenshteinSimilarity(na, nb) +
		weightPhonetic*PhoneticSimilarity(na, nb)

	if agg := NormalizeAggressive(a); agg != "" && agg == NormalizeAggressive(b) {
		score += bonusExactMatch
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}
