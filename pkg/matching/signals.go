package matching

import (
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
	"github.com/sahilm/fuzzy"
)

// normalizeForMatch lowercases and strips punctuation, the shared
// preparation step for every fuzzy-name comparison (§4.7).
func normalizeForMatch(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// levenshteinRatio returns a [0,1] similarity ratio derived from edit
// distance, used as the token-sort comparison and the reference fallback.
func levenshteinRatio(a, b string) float64 {
	if a == "" && b == "" {
		return 1.0
	}
	dist := levenshtein.ComputeDistance(a, b)
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 1.0
	}
	return 1.0 - float64(dist)/float64(maxLen)
}

// tokenSortRatio compares the two strings with their words sorted, catching
// reordered name components ("Hans Müller" vs "Müller, Hans").
func tokenSortRatio(a, b string) float64 {
	return levenshteinRatio(sortedTokens(a), sortedTokens(b))
}

func sortedTokens(s string) string {
	tokens := strings.Fields(s)
	// simple insertion sort; name token counts are small
	for i := 1; i < len(tokens); i++ {
		for j := i; j > 0 && tokens[j-1] > tokens[j]; j-- {
			tokens[j-1], tokens[j] = tokens[j], tokens[j-1]
		}
	}
	return strings.Join(tokens, " ")
}

// partialRatio approximates a partial-ratio comparison: fuzzy.RankFind
// locates where the shorter string aligns inside the longer one, and the
// matched span is then scored against the shorter string by Levenshtein, so
// a short name fully contained in a longer one scores near 1.0 instead of
// being diluted by whole-string edit distance.
func partialRatio(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	shorter, longer := a, b
	if len(b) < len(a) {
		shorter, longer = b, a
	}

	wholeScore := levenshteinRatio(shorter, longer)

	matches := fuzzy.RankFind(shorter, []string{longer})
	if len(matches) == 0 {
		return wholeScore
	}

	span := matchedSpan(longer, matches[0].MatchedIndexes)
	if spanScore := levenshteinRatio(shorter, span); spanScore > wholeScore {
		return spanScore
	}
	return wholeScore
}

// matchedSpan returns the substring of s running from the first to the last
// rune index in indexes, the aligned region fuzzy.RankFind matched shorter
// against.
func matchedSpan(s string, indexes []int) string {
	if len(indexes) == 0 {
		return s
	}
	runes := []rune(s)
	min, max := indexes[0], indexes[0]
	for _, idx := range indexes {
		if idx < min {
			min = idx
		}
		if idx > max {
			max = idx
		}
	}
	if min < 0 || max >= len(runes) {
		return s
	}
	return string(runes[min : max+1])
}

// tokenSetRatio compares the two strings via their unique token sets,
// insensitive to duplicated or extra words.
func tokenSetRatio(a, b string) float64 {
	setA := uniqueTokens(a)
	setB := uniqueTokens(b)
	return levenshteinRatio(strings.Join(setA, " "), strings.Join(setB, " "))
}

func uniqueTokens(s string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, tok := range strings.Fields(s) {
		if !seen[tok] {
			seen[tok] = true
			out = append(out, tok)
		}
	}
	return out
}

// ClientNameScore is the client-name signal: the max of token-sort,
// partial, and token-set ratios over normalized forms (§4.7).
func ClientNameScore(inquiryName, extractedName string) float64 {
	a := normalizeForMatch(inquiryName)
	b := normalizeForMatch(extractedName)
	if a == "" || b == "" {
		return 0
	}

	scores := []float64{
		tokenSortRatio(a, b),
		partialRatio(a, b),
		tokenSetRatio(a, b),
	}
	best := 0.0
	for _, s := range scores {
		if s > best {
			best = s
		}
	}
	return best
}

// referenceFuzzyCutoff is the minimum fuzzy ratio for a reference number to
// count as a match when it is not an exact match (§4.7).
const referenceFuzzyCutoff = 0.80

// ReferenceScore scores a single extracted reference number against an
// inquiry's reference number: exact (after trim/upper) is 1.0, else the max
// of partial-ratio and token-sort-ratio gated by a 0.80 cutoff.
func ReferenceScore(inquiryRef, extractedRef string) float64 {
	if inquiryRef == "" || extractedRef == "" {
		return 0
	}
	a := strings.ToUpper(strings.TrimSpace(inquiryRef))
	b := strings.ToUpper(strings.TrimSpace(extractedRef))
	if a == b {
		return 1.0
	}

	score := partialRatio(a, b)
	if s := tokenSortRatio(a, b); s > score {
		score = s
	}
	if score < referenceFuzzyCutoff {
		return 0
	}
	return score
}

// BestReferenceScore scores every extracted reference against the
// inquiry's reference number and returns the best result.
func BestReferenceScore(inquiryRef string, extractedRefs []string) float64 {
	best := 0.0
	for _, ref := range extractedRefs {
		if s := ReferenceScore(inquiryRef, ref); s > best {
			best = s
		}
	}
	return best
}
