// Package parse extracts quantity, unit and product from one normalized order
// line by deterministic pattern matching against the catalog.
package parse

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/orderhub/order-intake/internal/catalog"
	"github.com/orderhub/order-intake/internal/order"
)

var (
	quantityPattern = regexp.MustCompile(`\d+(\.\d+)?`)
	numberWord      = regexp.MustCompile(`\d+(?:\.\d+)?\s*([a-zA-Z]+)\b`)
	nonWord         = regexp.MustCompile(`[^a-z0-9\s]`)
)

// minUnitWord keeps one- and two-letter abbreviations ("p", "kg") from
// matching stray words; those only count right after the number.
const minUnitWord = 3

// Parsed is the parser's view of one line.
type Parsed struct {
	// Raw is the trimmed line.
	Raw string
	// Token is Raw without its leading quantity and unit. It is what the
	// resolver matches and what issue messages quote.
	Token    string
	Quantity order.Optional[float64]
	Unit     order.Optional[order.Unit]
	Product  order.Optional[string]
	// Locked is set when Product came from the special-case table.
	Locked bool
	// RawMatches lists every distinct catalog name found in the line, longest
	// first.
	RawMatches []string
}

// Parser is safe for concurrent use; it holds only immutable tables.
type Parser struct {
	units     catalog.UnitTable
	specials  catalog.SpecialCases
	unitWords *regexp.Regexp
}

func New(units catalog.UnitTable, specials catalog.SpecialCases) *Parser {
	p := &Parser{units: units, specials: specials}
	if words := units.Words(minUnitWord); len(words) > 0 {
		quoted := make([]string, len(words))
		for i, w := range words {
			quoted[i] = regexp.QuoteMeta(w)
		}
		p.unitWords = regexp.MustCompile(`\b(` + strings.Join(quoted, "|") + `)\b`)
	}
	return p
}

// Parse extracts fields from line. It fails only for an empty line.
func (p *Parser) Parse(line string, c *catalog.Catalog) (Parsed, error) {
	raw := strings.TrimSpace(line)
	if raw == "" {
		return Parsed{}, order.ErrEmptyLine
	}

	out := Parsed{Raw: raw, Token: p.units.StripQuantity(raw)}
	if out.Token == "" {
		out.Token = raw
	}

	out.Quantity = quantity(raw)

	out.RawMatches = products(raw, c)
	if len(out.RawMatches) > 0 {
		out.Product = order.Some(out.RawMatches[0])
	}

	out.Unit = p.unit(raw)

	if special, ok := p.specials.Lookup(raw); ok {
		out.Product = order.Some(special)
		out.Locked = true
	}
	return out, nil
}

func quantity(line string) order.Optional[float64] {
	m := quantityPattern.FindString(line)
	if m == "" {
		return order.None[float64]()
	}
	q, err := strconv.ParseFloat(m, 64)
	if err != nil || q < 0 || math.IsInf(q, 0) || math.IsNaN(q) {
		return order.None[float64]()
	}
	return order.Some(q)
}

// products finds whole-word catalog names, longest first. A name found only
// inside a longer name already matched ("Onion" in "Onion Spring") is not
// counted again.
func products(line string, c *catalog.Catalog) []string {
	text := fold(line)

	var (
		matches []string
		claimed [][2]int
	)
	for _, e := range c.ByLength() {
		name := fold(e.Name)
		if name == "" {
			continue
		}
		distinct := false
		for _, loc := range wordIndexes(text, name) {
			if !overlaps(loc, claimed) {
				distinct = true
				claimed = append(claimed, loc)
			}
		}
		if distinct {
			matches = append(matches, e.Name)
		}
	}
	return matches
}

// fold lower-cases s, turns punctuation into spaces and collapses runs of
// spaces, so names and lines compare word by word.
func fold(s string) string {
	s = nonWord.ReplaceAllString(strings.ToLower(s), " ")
	return strings.Join(strings.Fields(s), " ")
}

// wordIndexes returns the spans where word occurs in text on word boundaries.
func wordIndexes(text, word string) [][2]int {
	var out [][2]int
	for start := 0; start <= len(text)-len(word); {
		i := strings.Index(text[start:], word)
		if i < 0 {
			break
		}
		i += start
		end := i + len(word)
		if (i == 0 || !isWordByte(text[i-1])) && (end == len(text) || !isWordByte(text[end])) {
			out = append(out, [2]int{i, end})
		}
		start = i + 1
	}
	return out
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9'
}

func overlaps(loc [2]int, spans [][2]int) bool {
	for _, s := range spans {
		if loc[0] < s[1] && s[0] < loc[1] {
			return true
		}
	}
	return false
}

// unit looks first for a unit table key right after the number, then for a
// unit word from the table anywhere in the line.
func (p *Parser) unit(line string) order.Optional[order.Unit] {
	if m := numberWord.FindStringSubmatch(line); m != nil {
		if u, ok := p.units.Lookup(m[1]); ok {
			return order.Some(u)
		}
	}
	if p.unitWords == nil {
		return order.None[order.Unit]()
	}
	if m := p.unitWords.FindStringSubmatch(strings.ToLower(line)); m != nil {
		if u, ok := p.units.Lookup(m[1]); ok {
			return order.Some(u)
		}
	}
	return order.None[order.Unit]()
}
