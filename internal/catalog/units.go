package catalog

import (
	"sort"
	"strings"

	"github.com/orderhub/order-intake/internal/order"
)

// defaultUnits maps the abbreviations and unit words clients type to the
// canonical unit. Trays and bunches are counted in pieces.
var defaultUnits = map[string]order.Unit{
	"p":        order.UnitPieces,
	"pc":       order.UnitPieces,
	"pcs":      order.UnitPieces,
	"piece":    order.UnitPieces,
	"pieces":   order.UnitPieces,
	"tray":     order.UnitPieces,
	"trays":    order.UnitPieces,
	"bunch":    order.UnitPieces,
	"bunches":  order.UnitPieces,
	"bg":       order.UnitBag,
	"bag":      order.UnitBag,
	"bags":     order.UnitBag,
	"kg":       order.UnitKilogram,
	"kgs":      order.UnitKilogram,
	"k":        order.UnitKilogram,
	"kilo":     order.UnitKilogram,
	"kilos":    order.UnitKilogram,
	"kilogram": order.UnitKilogram,
	"bx":       order.UnitBox,
	"box":      order.UnitBox,
	"boxes":    order.UnitBox,
}

// preferredAbbreviations is what the rewrite prompt asks the model to emit.
var preferredAbbreviations = map[order.Unit]string{
	order.UnitPieces:   "pc",
	order.UnitBag:      "bg",
	order.UnitKilogram: "kg",
	order.UnitBox:      "bx",
}

// UnitTable resolves unit abbreviations to canonical units. It is immutable
// after construction.
type UnitTable struct {
	units map[string]order.Unit
}

// DefaultUnits returns the built-in unit table.
func DefaultUnits() UnitTable {
	return NewUnitTable(defaultUnits)
}

// NewUnitTable copies m into a new table. Keys are lower-cased.
func NewUnitTable(m map[string]order.Unit) UnitTable {
	units := make(map[string]order.Unit, len(m))
	for k, v := range m {
		units[strings.ToLower(strings.TrimSpace(k))] = v
	}
	return UnitTable{units: units}
}

// Lookup resolves an abbreviation case-insensitively.
func (t UnitTable) Lookup(abbr string) (order.Unit, bool) {
	u, ok := t.units[strings.ToLower(strings.TrimSpace(abbr))]
	return u, ok
}

// Words returns the keys of at least minLen letters, longest first, so an
// alternation built from them prefers "kilos" over "kilo".
func (t UnitTable) Words(minLen int) []string {
	out := make([]string, 0, len(t.units))
	for k := range t.units {
		if len(k) >= minLen {
			out = append(out, k)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if len(out[i]) != len(out[j]) {
			return len(out[i]) > len(out[j])
		}
		return out[i] < out[j]
	})
	return out
}

// Abbreviation returns the short form of u used in normalized lines
// ("3bg Onion"). Units without a preferred form get their shortest key.
func (t UnitTable) Abbreviation(u order.Unit) string {
	if abbr, ok := preferredAbbreviations[u]; ok {
		if got, known := t.units[abbr]; known && got == u {
			return abbr
		}
	}
	best := ""
	for abbr, unit := range t.units {
		if unit != u {
			continue
		}
		if best == "" || len(abbr) < len(best) || (len(abbr) == len(best) && abbr < best) {
			best = abbr
		}
	}
	return best
}

// Legend renders "Unit → abbr" lines for every canonical unit, sorted by unit.
func (t UnitTable) Legend() string {
	seen := map[order.Unit]bool{}
	for _, u := range t.units {
		seen[u] = true
	}
	units := make([]string, 0, len(seen))
	for u := range seen {
		units = append(units, string(u))
	}
	sort.Strings(units)

	var b strings.Builder
	for _, u := range units {
		b.WriteString(u)
		b.WriteString(" → ")
		b.WriteString(t.Abbreviation(order.Unit(u)))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
