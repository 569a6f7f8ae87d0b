// Package resolve maps a free-text product token onto a canonical catalog
// name. Strategies run in a fixed order and the first hit wins: special
// cases, then the AI suggester, then phonetic and fuzzy matching.
package resolve

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/orderhub/order-intake/internal/catalog"
)

// Strategy is one step of the cascade. A strategy that cannot decide
// returns ok == false; an error means an external dependency failed and the
// cascade moves on.
type Strategy interface {
	Name() string
	Resolve(ctx context.Context, token string, c *catalog.Catalog) (product string, ok bool, err error)
}

// Result describes a successful resolution.
type Result struct {
	Product  string
	Strategy string
	// Locked is set for special-case hits, which are never reported as
	// corrections.
	Locked bool
	// Corrected is set when Product differs from the token beyond case.
	Corrected bool
	// Degraded names the strategies that failed along the way.
	Degraded []string
}

// HitObserver is told which strategy resolved each token.
type HitObserver interface {
	ObserveResolverHit(strategy string)
}

// Resolver runs the cascade.
type Resolver struct {
	strategies []Strategy
	observer   HitObserver
	logger     *zap.Logger
}

// New returns a Resolver running strategies in the given order.
func New(logger *zap.Logger, strategies ...Strategy) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{strategies: strategies, logger: logger}
}

// Default builds the standard cascade. suggester may be nil, in which case
// the AI step is left out.
func Default(specials catalog.SpecialCases, suggester Suggester, cutoff float64, logger *zap.Logger) *Resolver {
	strategies := []Strategy{NewSpecialCaseStrategy(specials)}
	if suggester != nil {
		strategies = append(strategies, NewSuggestionStrategy(suggester))
	}
	strategies = append(strategies, PhoneticStrategy{}, NewFuzzyStrategy(cutoff))
	return New(logger, strategies...)
}

// WithObserver attaches o and returns r.
func (r *Resolver) WithObserver(o HitObserver) *Resolver {
	r.observer = o
	return r
}

// Resolve runs every strategy until one succeeds. The returned Result is
// also meaningful when ok is false: it carries the degraded strategies.
func (r *Resolver) Resolve(ctx context.Context, token string, c *catalog.Catalog) (Result, bool) {
	var res Result
	token = strings.TrimSpace(token)
	if token == "" {
		return res, false
	}

	for _, s := range r.strategies {
		product, ok, err := s.Resolve(ctx, token, c)
		if err != nil {
			r.logger.Warn("resolver strategy failed, falling through",
				zap.String("strategy", s.Name()),
				zap.String("token", token),
				zap.Error(err))
			res.Degraded = append(res.Degraded, s.Name())
			continue
		}
		if !ok {
			continue
		}

		_, locked := s.(*SpecialCaseStrategy)
		res.Product = product
		res.Strategy = s.Name()
		res.Locked = locked
		res.Corrected = !locked && !strings.EqualFold(token, product)
		if r.observer != nil {
			r.observer.ObserveResolverHit(s.Name())
		}
		r.logger.Debug("token resolved",
			zap.String("token", token),
			zap.String("product", product),
			zap.String("strategy", s.Name()))
		return res, true
	}
	return res, false
}
