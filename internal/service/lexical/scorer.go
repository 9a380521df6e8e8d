package lexical

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

type keyword struct {
	phrase string
	weight int
}

// Scorer is a pure keyword scorer over a weight table. Matching is
// case-insensitive, token-bounded ("war" never matches inside
// "warranty"), and non-overlapping with longer phrases taking
// precedence ("100% tariff" consumes the "tariff" inside it).
type Scorer struct {
	keywords []keyword
}

// NewScorer builds a scorer from a keyword -> weight table. Phrases are
// matched longest first so multi-word entries win over their parts.
func NewScorer(table map[string]int) *Scorer {
	kws := make([]keyword, 0, len(table))
	for k, w := range table {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" || w == 0 {
			continue
		}
		kws = append(kws, keyword{phrase: k, weight: w})
	}
	sort.Slice(kws, func(i, j int) bool {
		if len(kws[i].phrase) != len(kws[j].phrase) {
			return len(kws[i].phrase) > len(kws[j].phrase)
		}
		return kws[i].phrase < kws[j].phrase
	})
	return &Scorer{keywords: kws}
}

// Score sums the weights of all non-overlapping keyword occurrences in
// text. Identical input always yields an identical score.
func (s *Scorer) Score(text string) int {
	if text == "" || len(s.keywords) == 0 {
		return 0
	}
	lower := strings.ToLower(text)
	covered := make([]bool, len(lower))
	total := 0

	for _, kw := range s.keywords {
		for start := 0; start <= len(lower)-len(kw.phrase); {
			i := strings.Index(lower[start:], kw.phrase)
			if i < 0 {
				break
			}
			i += start
			end := i + len(kw.phrase)
			if tokenBounded(lower, i, end) && !anyCovered(covered, i, end) {
				for j := i; j < end; j++ {
					covered[j] = true
				}
				total += kw.weight
			}
			start = i + 1
		}
	}
	return total
}

// tokenBounded reports whether [i,end) sits on token boundaries: the
// runes adjacent to the match must not be letters, digits, or '_'.
func tokenBounded(s string, i, end int) bool {
	if i > 0 {
		if r, _ := utf8.DecodeLastRuneInString(s[:i]); isTokenRune(r) {
			return false
		}
	}
	if end < len(s) {
		if r, _ := utf8.DecodeRuneInString(s[end:]); isTokenRune(r) {
			return false
		}
	}
	return true
}

func isTokenRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

func anyCovered(covered []bool, i, end int) bool {
	for j := i; j < end; j++ {
		if covered[j] {
			return true
		}
	}
	return false
}
