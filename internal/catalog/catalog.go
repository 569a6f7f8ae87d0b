// Package catalog holds the read-only lookup data the order pipeline matches
// against: the product catalog, the unit abbreviation table and the
// special-case override table. All three are immutable once built; a refresh
// builds a new Catalog and swaps it into a Snapshot.
package catalog

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/orderhub/order-intake/internal/order"
)

// Entry is one sellable product. The first unit synonym is the primary unit.
type Entry struct {
	Name         string   `json:"name" yaml:"name"`
	UnitSynonyms []string `json:"unitSynonyms" yaml:"units"`
}

// PrimaryUnit returns the first unit synonym, if any.
func (e Entry) PrimaryUnit() (string, bool) {
	if len(e.UnitSynonyms) == 0 {
		return "", false
	}
	return e.UnitSynonyms[0], true
}

// Catalog is an immutable, ordered product list.
type Catalog struct {
	entries  []Entry
	byName   map[string]int
	byLength []Entry
	version  string
}

// New builds a catalog from entries, keeping their order. Blank names are
// skipped and a repeated name (case-insensitive) keeps its first entry.
func New(entries []Entry) *Catalog {
	c := &Catalog{byName: make(map[string]int, len(entries))}
	for _, e := range entries {
		name := strings.TrimSpace(e.Name)
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		if _, dup := c.byName[key]; dup {
			continue
		}
		units := make([]string, 0, len(e.UnitSynonyms))
		for _, u := range e.UnitSynonyms {
			if u = strings.TrimSpace(u); u != "" {
				units = append(units, u)
			}
		}
		c.byName[key] = len(c.entries)
		c.entries = append(c.entries, Entry{Name: name, UnitSynonyms: units})
	}

	c.byLength = make([]Entry, len(c.entries))
	copy(c.byLength, c.entries)
	sort.SliceStable(c.byLength, func(i, j int) bool {
		return len(c.byLength[i].Name) > len(c.byLength[j].Name)
	})

	h := sha256.New()
	for _, e := range c.entries {
		h.Write([]byte(e.Name))
		h.Write([]byte{0})
		h.Write([]byte(strings.Join(e.UnitSynonyms, ",")))
		h.Write([]byte{'\n'})
	}
	c.version = hex.EncodeToString(h.Sum(nil))[:16]
	return c
}

// Len returns the number of products.
func (c *Catalog) Len() int {
	return len(c.entries)
}

// Entries returns a copy of the products in catalog order.
func (c *Catalog) Entries() []Entry {
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Names returns the canonical product names in catalog order.
func (c *Catalog) Names() []string {
	out := make([]string, len(c.entries))
	for i, e := range c.entries {
		out[i] = e.Name
	}
	return out
}

// ByLength returns the products sorted by name length, longest first. Equal
// lengths keep catalog order.
func (c *Catalog) ByLength() []Entry {
	return c.byLength
}

// Lookup finds a product by name, ignoring case.
func (c *Catalog) Lookup(name string) (Entry, bool) {
	i, ok := c.byName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Entry{}, false
	}
	return c.entries[i], true
}

// Contains reports whether name is exactly a canonical product name.
func (c *Catalog) Contains(name string) bool {
	e, ok := c.Lookup(name)
	return ok && e.Name == name
}

// PrimaryUnit maps the product's primary unit synonym through units.
func (c *Catalog) PrimaryUnit(name string, units UnitTable) (order.Unit, bool) {
	e, ok := c.Lookup(name)
	if !ok {
		return "", false
	}
	syn, ok := e.PrimaryUnit()
	if !ok {
		return "", false
	}
	return units.Lookup(syn)
}

// PrimaryUnitLegend renders "product → primary unit synonym" lines for the
// rewrite prompt.
func (c *Catalog) PrimaryUnitLegend() string {
	var b strings.Builder
	for _, e := range c.entries {
		syn, ok := e.PrimaryUnit()
		if !ok {
			continue
		}
		b.WriteString(strings.ToLower(e.Name))
		b.WriteString(" → ")
		b.WriteString(syn)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// ContainsProductText reports whether line contains any product name as a
// case-insensitive substring.
func (c *Catalog) ContainsProductText(line string) bool {
	text := strings.ToLower(line)
	for key := range c.byName {
		if strings.Contains(text, key) {
			return true
		}
	}
	return false
}

// Version identifies the catalog contents. Caches keyed on catalog answers
// include it so a refresh invalidates them.
func (c *Catalog) Version() string {
	return c.version
}
