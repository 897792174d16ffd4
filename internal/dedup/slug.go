// Package dedup implements fuzzy identity resolution for companies and
// funding rounds: deciding whether a freshly scraped record refers to an
// entity the store already knows, without any shared identifier.
package dedup

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// legalSuffixes are corporate-form suffixes stripped during slug
// normalization. Matched as whole trailing tokens, case-insensitive.
var legalSuffixes = map[string]bool{
	"sas": true, "sarl": true, "sa": true, "inc": true, "ltd": true,
	"llc": true, "gmbh": true, "ag": true, "bv": true, "ab": true,
	"oy": true, "as": true, "aps": true, "srl": true, "spa": true,
	"plc": true, "corp": true, "co": true, "kk": true, "pty": true,
	"limited": true, "incorporated": true, "corporation": true,
}

// genericSuffixes extends legalSuffixes for the aggressive normalization
// used by the exact-match bonus in CombinedSimilarity.
var genericSuffixes = map[string]bool{
	"company": true, "group": true, "holdings": true, "holding": true,
	"ventures": true, "venture": true, "capital": true, "partners": true,
	"labs": true, "lab": true, "technologies": true, "technology": true,
	"tech": true, "software": true, "systems": true, "solutions": true,
	"media": true, "studio": true, "studios": true, "app": true,
	"ai": true, "io": true, "hq": true, "the": true,
}

var deaccent = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// stripDiacritics removes combining marks ("Café" -> "Cafe").
func stripDiacritics(s string) string {
	out, _, err := transform.String(deaccent, s)
	if err != nil {
		return s
	}
	return out
}

// tokens lowercases, removes diacritics and punctuation, and splits a
// company name into bare words.
func tokens(name string) []string {
	s := strings.ToLower(stripDiacritics(name))
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return fields
}

// stripTrailing removes trailing tokens found in the given suffix set.
// At least one token always survives.
func stripTrailing(words []string, suffixes map[string]bool) []string {
	for len(words) > 1 && suffixes[words[len(words)-1]] {
		words = words[:len(words)-1]
	}
	return words
}

// Slugify produces the normalized identity slug for a company name:
// legal suffixes, diacritics, and punctuation stripped; lowercase;
// hyphen-joined. Slugify("Acmé Robotics SAS") == "acme-robotics".
func Slugify(name string) string {
	words := stripTrailing(tokens(name), legalSuffixes)
	return strings.Join(words, "-")
}

// NormalizeAggressive reduces a name to bare alphanumeric tokens with the
// extended legal/generic suffix list stripped, joined without separators.
// Used for the exact-match bonus: two names that survive this reduction
// identically are almost certainly the same company.
func NormalizeAggressive(name string) string {
	words := tokens(name)
	words = stripTrailing(words, legalSuffixes)
	words = stripTrailing(words, genericSuffixes)
	return strings.Join(words, "")
}
