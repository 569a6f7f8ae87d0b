// Package validate turns a parsed line into a terminal order.Line. It fills
// what it safely can (a missing unit from the product's primary unit, a
// misspelled product through the resolver) and records everything else as
// red alerts for a human.
package validate

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/orderhub/order-intake/internal/catalog"
	"github.com/orderhub/order-intake/internal/order"
	"github.com/orderhub/order-intake/internal/parse"
	"github.com/orderhub/order-intake/internal/resolve"
)

// ProductResolver is satisfied by *resolve.Resolver.
type ProductResolver interface {
	Resolve(ctx context.Context, token string, c *catalog.Catalog) (resolve.Result, bool)
}

// Validator applies the validation rules to one parsed line at a time.
type Validator struct {
	resolver ProductResolver
	units    catalog.UnitTable
	specials catalog.SpecialCases
	logger   *zap.Logger
}

func New(resolver ProductResolver, units catalog.UnitTable, specials catalog.SpecialCases, logger *zap.Logger) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Validator{resolver: resolver, units: units, specials: specials, logger: logger}
}

// Validate never fails. Issues end up in the returned line's Corrections and
// RedAlerts, and its Action is decided before returning.
func (v *Validator) Validate(ctx context.Context, p parse.Parsed, c *catalog.Catalog) order.Line {
	line := order.Line{
		RawText:        p.Raw,
		NormalizedText: p.Raw,
		Quantity:       p.Quantity,
		Unit:           p.Unit,
		Product:        p.Product,
	}

	// The product is settled first because unit auto-assignment depends on
	// it; its messages are still recorded after the unit's.
	note := v.resolveProduct(ctx, &line, p, c)

	if !line.Quantity.IsSet() {
		line.Flag(order.IssueMissingField, "Missing quantity")
	}

	if !line.Unit.IsSet() {
		if u, ok := v.primaryUnit(line.Product, c); ok {
			line.Unit = order.Some(u)
			line.Correct(fmt.Sprintf("Unit auto-assigned: %s", u))
		} else {
			line.Flag(order.IssueMissingField, "Missing unit")
		}
	}

	switch {
	case note.unknown:
		line.Flag(order.IssueUnresolvedProduct, note.message)
	case note.message != "":
		line.Correct(note.message)
	}

	if len(p.RawMatches) > 1 {
		line.Flag(order.IssueAmbiguousLine, "Multiple products detected: "+strings.Join(p.RawMatches, ", "))
	}

	if !line.Quantity.IsSet() && !line.Unit.IsSet() && !line.Product.IsSet() {
		line.Flag(order.IssueNotAnOrder, "Message does not contain a valid order")
	}

	line.Decide()
	v.logger.Debug("line validated",
		zap.String("line", p.Raw),
		zap.String("action", string(line.Action)),
		zap.Strings("corrections", line.Corrections),
		zap.Strings("red_alerts", line.RedAlerts))
	return line
}

type productNote struct {
	message string
	unknown bool
}

// resolveProduct settles line.Product and returns the message to record.
func (v *Validator) resolveProduct(ctx context.Context, line *order.Line, p parse.Parsed, c *catalog.Catalog) productNote {
	name, ok := p.Product.Get()
	if p.Locked || ok && v.specials.IsValue(name) {
		return productNote{}
	}
	if ok && c.Contains(name) {
		return productNote{}
	}

	res, resolved := v.resolver.Resolve(ctx, p.Token, c)
	for _, d := range res.Degraded {
		line.Degrade(d)
	}
	if !resolved {
		line.Product = order.None[string]()
		return productNote{message: "Unknown product: " + p.Token, unknown: true}
	}

	line.Product = order.Some(res.Product)
	if !res.Corrected {
		return productNote{}
	}
	return productNote{message: fmt.Sprintf("Product corrected from '%s' to '%s'", p.Token, res.Product)}
}

func (v *Validator) primaryUnit(product order.Optional[string], c *catalog.Catalog) (order.Unit, bool) {
	name, ok := product.Get()
	if !ok {
		return "", false
	}
	return c.PrimaryUnit(name, v.units)
}
