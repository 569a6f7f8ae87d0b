package resolve

import (
	"context"
	"sort"
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"

	"github.com/orderhub/order-intake/internal/catalog"
)

// DefaultFuzzyCutoff is the lowest score a fuzzy match may have.
const DefaultFuzzyCutoff = 25

// FuzzyStrategy picks the catalog name with the best weighted similarity
// score, provided it reaches the cutoff. Ties go to the earlier catalog
// entry.
type FuzzyStrategy struct {
	cutoff float64
}

func NewFuzzyStrategy(cutoff float64) FuzzyStrategy {
	if cutoff <= 0 {
		cutoff = DefaultFuzzyCutoff
	}
	return FuzzyStrategy{cutoff: cutoff}
}

func (FuzzyStrategy) Name() string { return "fuzzy" }

func (f FuzzyStrategy) Resolve(_ context.Context, token string, c *catalog.Catalog) (string, bool, error) {
	var (
		best      string
		bestScore float64
	)
	for _, name := range c.Names() {
		if s := Score(token, name); s > bestScore {
			best, bestScore = name, s
		}
	}
	if best == "" || bestScore < f.cutoff {
		return "", false, nil
	}
	return best, true, nil
}

// Score rates the similarity of a and b from 0 to 100. It is the best of the
// plain edit-distance ratio, a token-order-insensitive ratio and, when one
// string is much longer, the best ratio of the shorter against any window of
// the longer.
func Score(a, b string) float64 {
	a, b = simplify(a), simplify(b)
	if a == "" || b == "" {
		return 0
	}

	score := ratio(a, b)
	if s := 0.95 * ratio(sortTokens(a), sortTokens(b)); s > score {
		score = s
	}

	la, lb := len([]rune(a)), len([]rune(b))
	long, short := max(la, lb), min(la, lb)
	if float64(long)/float64(short) >= 1.5 {
		if s := 0.9 * partialRatio(a, b); s > score {
			score = s
		}
	}
	return score
}

func ratio(a, b string) float64 {
	n := max(len([]rune(a)), len([]rune(b)))
	if n == 0 {
		return 0
	}
	return 100 * (1 - float64(matchr.Levenshtein(a, b))/float64(n))
}

func partialRatio(a, b string) float64 {
	short, long := []rune(a), []rune(b)
	if len(short) > len(long) {
		short, long = long, short
	}
	var best float64
	for i := 0; i+len(short) <= len(long); i++ {
		if r := ratio(string(short), string(long[i:i+len(short)])); r > best {
			best = r
		}
	}
	return best
}

func sortTokens(s string) string {
	fields := strings.Fields(s)
	sort.Strings(fields)
	return strings.Join(fields, " ")
}

func simplify(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, s)
	return strings.Join(strings.Fields(s), " ")
}
