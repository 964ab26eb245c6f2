package utils

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NormalizeContent is the form every filter and duplicate comparison works
// on: punycode link hosts decoded, lower-cased, diacritics stripped.
func NormalizeContent(input string) string {
	lowered := strings.ToLower(DecodeURLHosts(input))
	// transformers are stateful, so build a fresh chain per call
	chain := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(chain, lowered)
	if err != nil {
		return lowered
	}
	return out
}
