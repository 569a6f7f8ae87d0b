package resolve

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/orderhub/order-intake/internal/catalog"
)

// DefaultSuggestTimeout bounds one suggestion call.
const DefaultSuggestTimeout = 12 * time.Second

// Suggester proposes the catalog name a misspelled token most likely means.
// "" or "none" mean no suggestion.
type Suggester interface {
	Suggest(ctx context.Context, token string, names []string) (string, error)
}

// SuggestionStrategy asks a Suggester and accepts the answer only when it
// names a catalog product.
type SuggestionStrategy struct {
	suggester Suggester
	timeout   time.Duration
}

func NewSuggestionStrategy(s Suggester) *SuggestionStrategy {
	return &SuggestionStrategy{suggester: s, timeout: DefaultSuggestTimeout}
}

// WithTimeout overrides the per-call timeout.
func (s *SuggestionStrategy) WithTimeout(d time.Duration) *SuggestionStrategy {
	if d > 0 {
		s.timeout = d
	}
	return s
}

func (s *SuggestionStrategy) Name() string { return "suggest" }

func (s *SuggestionStrategy) Resolve(ctx context.Context, token string, c *catalog.Catalog) (string, bool, error) {
	if c.Len() == 0 {
		return "", false, nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	answer, err := s.suggester.Suggest(ctx, token, c.Names())
	if err != nil {
		return "", false, fmt.Errorf("suggest %q: %w", token, err)
	}
	answer = strings.TrimSpace(answer)
	if answer == "" || strings.EqualFold(answer, "none") {
		return "", false, nil
	}
	e, ok := c.Lookup(answer)
	if !ok {
		return "", false, nil
	}
	return e.Name, true, nil
}
