package catalog

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/orderhub/order-intake/internal/order"
)

// File is the YAML layout of a catalog file:
//
//	products:
//	  - name: Onion
//	    units: [bag, kg]
//	special_cases:
//	  tom: Tomato
//	units:
//	  bg: Bag
//
// special_cases and units are optional and fall back to the built-in tables.
type File struct {
	Products     []Entry           `yaml:"products"`
	SpecialCases map[string]string `yaml:"special_cases"`
	Units        map[string]string `yaml:"units"`
}

// ReadFile parses the catalog file at path.
func ReadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file %q: %w", path, err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog file %q: %w", path, err)
	}
	return &f, nil
}

// UnitTable returns the file's unit table, or the built-in one when the file
// has none. Unknown unit names are rejected.
func (f *File) UnitTable() (UnitTable, error) {
	if len(f.Units) == 0 {
		return DefaultUnits(), nil
	}
	m := make(map[string]order.Unit, len(f.Units))
	for abbr, name := range f.Units {
		u := order.Unit(name)
		switch u {
		case order.UnitPieces, order.UnitBag, order.UnitKilogram, order.UnitBox:
			m[abbr] = u
		default:
			return UnitTable{}, fmt.Errorf("unit %q: unknown canonical unit %q", abbr, name)
		}
	}
	return NewUnitTable(m), nil
}

// SpecialCaseTable returns the file's overrides, or the built-in ones.
func (f *File) SpecialCaseTable(units UnitTable) SpecialCases {
	if len(f.SpecialCases) == 0 {
		return DefaultSpecialCases(units)
	}
	return NewSpecialCases(f.SpecialCases, units)
}

// FileProvider re-reads a catalog file on every call, so a Snapshot watching
// it picks up edits.
type FileProvider struct {
	Path string
}

func (p FileProvider) Products(context.Context) ([]Entry, error) {
	f, err := ReadFile(p.Path)
	if err != nil {
		return nil, err
	}
	return f.Products, nil
}
