package resolve

import (
	"context"

	"github.com/orderhub/order-intake/internal/catalog"
)

// SpecialCaseStrategy looks the token up in the override table.
type SpecialCaseStrategy struct {
	cases catalog.SpecialCases
}

func NewSpecialCaseStrategy(cases catalog.SpecialCases) *SpecialCaseStrategy {
	return &SpecialCaseStrategy{cases: cases}
}

func (s *SpecialCaseStrategy) Name() string { return "special_case" }

func (s *SpecialCaseStrategy) Resolve(_ context.Context, token string, _ *catalog.Catalog) (string, bool, error) {
	product, ok := s.cases.Lookup(token)
	return product, ok, nil
}
