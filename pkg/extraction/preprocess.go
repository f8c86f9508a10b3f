package extraction

import (
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Normalize applies NFKC normalization, the first and least risky step of
// preprocessing (§4.4).
func Normalize(s string) string {
	return norm.NFKC.String(s)
}

// umlautDictionary lists common German surnames/words whose "ae/oe/ue"
// digraph form should be restored to an umlaut. Restoration is conservative
// per §9: never rewrite a token unless the dictionary validates it.
var umlautDictionary = map[string]string{
	"mueller":  "müller",
	"schaefer": "schäfer",
	"baecker":  "bäcker",
	"moeller":  "möller",
	"koehler":  "köhler",
	"huebner":  "hübner",
	"krueger":  "krüger",
	"schoen":   "schön",
	"gruen":    "grün",
	"koeln":    "köln",
	"muenchen": "münchen",
}

// RestoreUmlauts rewrites an ASCII-transliterated word to its umlaut form
// only when the dictionary validates the result. "Feuer" is never rewritten
// because it is not itself a digraph-transliterated dictionary entry.
func RestoreUmlauts(word string) string {
	lower := strings.ToLower(word)
	restored, ok := umlautDictionary[lower]
	if !ok {
		return word
	}
	return matchCase(word, restored)
}

// matchCase re-applies the capitalization pattern of original onto replacement.
func matchCase(original, replacement string) string {
	if original == strings.ToUpper(original) {
		return strings.ToUpper(replacement)
	}
	if len(original) > 0 && strings.ToUpper(original[:1]) == original[:1] {
		return strings.ToUpper(replacement[:1]) + replacement[1:]
	}
	return replacement
}

// digitSubstitutions maps leetspeak-style digit substitutions back to
// letters. Applied to name fields only (§4.4, §9) — never to amounts.
var digitSubstitutions = map[rune]rune{
	'3': 'e',
	'0': 'o',
	'1': 'l',
}

// RestoreNameDigits reverses common digit-for-letter substitutions in a name
// field. Never applied outside name fields — amount parsing must see the
// original digits.
func RestoreNameDigits(name string) string {
	var b strings.Builder
	for _, r := range name {
		if replacement, ok := digitSubstitutions[r]; ok {
			b.WriteRune(replacement)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ParseGermanAmount parses an amount string preferring de_DE decimal-comma
// form ("1.234,56") with an en_US fallback ("1,234.56"). Returns an error
// for anything that parses as neither.
func ParseGermanAmount(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimSuffix(s, "EUR")
	s = strings.TrimSuffix(s, "€")
	s = strings.TrimSpace(s)

	if v, err := parseDeDE(s); err == nil {
		return v, nil
	}
	return parseEnUS(s)
}

// parseDeDE parses "1.234,56" (dot thousands separator, comma decimal) and
// "2.500" (dot thousands separator, no decimal part).
func parseDeDE(s string) (float64, error) {
	dotIdx := strings.LastIndex(s, ".")
	commaIdx := strings.LastIndex(s, ",")

	// Both separators present and the dot comes after the comma: that is
	// en_US shape (comma thousands, dot decimal), not ours to parse.
	if dotIdx != -1 && commaIdx != -1 && dotIdx > commaIdx {
		return 0, strconv.ErrSyntax
	}

	if commaIdx == -1 {
		normalized := strings.ReplaceAll(s, ".", "")
		return strconv.ParseFloat(normalized, 64)
	}

	normalized := strings.ReplaceAll(s[:commaIdx], ".", "") + "." + s[commaIdx+1:]
	return strconv.ParseFloat(normalized, 64)
}

// parseEnUS parses "1,234.56" (comma thousands separator, dot decimal).
func parseEnUS(s string) (float64, error) {
	normalized := strings.ReplaceAll(s, ",", "")
	return strconv.ParseFloat(normalized, 64)
}
