package catalog

import (
	"regexp"
	"strings"
)

// defaultSpecialCases maps shorthand and common misspellings to canonical
// product names. Hits bypass every other matching strategy.
var defaultSpecialCases = map[string]string{
	"donia":         "Coriander",
	"tom":           "Tomato",
	"green pepper":  "Pepper Green",
	"red pepper":    "Pepper Red",
	"spring onion":  "Onion Spring",
	"spanish onion": "Onion Spanish",
	"potato":        "Potato White",
}

var (
	leadingQuantity = regexp.MustCompile(`^\d+(?:\.\d+)?\s*`)
	leadingWord     = regexp.MustCompile(`^([a-zA-Z]+)\b\s*`)
	spaceRun        = regexp.MustCompile(`\s+`)
)

// StripQuantity removes a leading "<quantity><unit>" prefix from s. The word
// after the number is only removed when it is a known unit, so "3 tom"
// becomes "tom" and "3bg Onion" becomes "Onion".
func (t UnitTable) StripQuantity(s string) string {
	s = strings.TrimSpace(s)
	loc := leadingQuantity.FindStringIndex(s)
	if loc == nil {
		return s
	}
	rest := s[loc[1]:]
	if m := leadingWord.FindStringSubmatchIndex(rest); m != nil {
		if _, ok := t.Lookup(rest[m[2]:m[3]]); ok {
			rest = rest[m[1]:]
		}
	}
	return strings.TrimSpace(rest)
}

// SpecialCases is an immutable override table from raw tokens to canonical
// product names.
type SpecialCases struct {
	cases  map[string]string
	values map[string]bool
	units  UnitTable
}

// DefaultSpecialCases returns the built-in override table.
func DefaultSpecialCases(units UnitTable) SpecialCases {
	return NewSpecialCases(defaultSpecialCases, units)
}

// NewSpecialCases copies m into a new table. units is used to strip a
// leading quantity and unit from looked-up tokens.
func NewSpecialCases(m map[string]string, units UnitTable) SpecialCases {
	sc := SpecialCases{
		cases:  make(map[string]string, len(m)),
		values: make(map[string]bool, len(m)),
		units:  units,
	}
	for k, v := range m {
		key := cleanToken(k)
		v = strings.TrimSpace(v)
		if key == "" || v == "" {
			continue
		}
		sc.cases[key] = v
		sc.values[v] = true
	}
	return sc
}

// Lookup strips any leading quantity and unit from raw, lower-cases it and
// returns the mapped product on an exact hit.
func (s SpecialCases) Lookup(raw string) (string, bool) {
	key := cleanToken(s.units.StripQuantity(raw))
	if key == "" {
		return "", false
	}
	v, ok := s.cases[key]
	return v, ok
}

// IsValue reports whether product is one of the table's canonical targets.
// Such products are locked and skip catalog membership checks.
func (s SpecialCases) IsValue(product string) bool {
	return s.values[product]
}

// Len returns the number of overrides.
func (s SpecialCases) Len() int {
	return len(s.cases)
}

func cleanToken(s string) string {
	return spaceRun.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), " ")
}
