// Package normalize rewrites raw order lines into the canonical
// "<quantity><unit> <Product>" shape before parsing. Lines that already look
// clean are left alone; the rest are sent to a Rewriter, and any line whose
// rewrite fails keeps its raw text.
package normalize

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/orderhub/order-intake/internal/catalog"
)

// RewriteRequest is what the rewrite service is given for one line.
type RewriteRequest struct {
	Line string
	// UnitLegend lists "Unit → abbr" pairs the model may emit.
	UnitLegend string
	// PrimaryUnitLegend lists "product → primary unit" pairs used when the
	// client gave no unit.
	PrimaryUnitLegend string
}

// Rewriter rewrites one order line. An empty result means "no rewrite".
type Rewriter interface {
	Rewrite(ctx context.Context, req RewriteRequest) (string, error)
}

// Result maps one normalized line back to its raw input.
type Result struct {
	Raw        string `json:"raw"`
	Normalized string `json:"normalized"`
	Rewritten  bool   `json:"rewritten"`
	Degraded   bool   `json:"degraded"`
}

var errEmptyRewrite = errors.New("rewriter returned an empty line")

var (
	digit         = regexp.MustCompile(`\d`)
	numberUnit    = regexp.MustCompile(`\d+(?:\.\d+)?\s*([a-zA-Z]+)\b`)
	gluedFraction = regexp.MustCompile(`(\d)([\x{00BC}-\x{00BE}\x{2150}-\x{215E}])`)
	mixedFraction = regexp.MustCompile(`(\d+)\s+(\d+)⁄(\d+)`)
	fraction      = regexp.MustCompile(`(\d+)⁄(\d+)`)
	spaces        = regexp.MustCompile(`\s+`)
)

// Normalizer decides which lines need rewriting and rewrites them.
type Normalizer struct {
	rewriter Rewriter
	units    catalog.UnitTable
	timeout  time.Duration
	logger   *zap.Logger
}

// New returns a Normalizer. rewriter may be nil, in which case lines are only
// cleaned deterministically. timeout bounds each rewrite call.
func New(rewriter Rewriter, units catalog.UnitTable, timeout time.Duration, logger *zap.Logger) *Normalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Normalizer{rewriter: rewriter, units: units, timeout: timeout, logger: logger}
}

// Normalize returns one Result per input line, in input order. Order-like
// lines, clean ones included, come back folded (NFKC, vulgar fractions,
// collapsed whitespace); only unclean ones are sent to the rewriter. Lines
// that are not order-like pass through raw.
func (n *Normalizer) Normalize(ctx context.Context, lines []string, c *catalog.Catalog) []Result {
	results := make([]Result, len(lines))
	pending := make([]int, 0, len(lines))

	for i, line := range lines {
		clean := Fold(line)
		if !IsOrderLike(clean, c) {
			results[i] = Result{Raw: line, Normalized: line}
			continue
		}
		results[i] = Result{Raw: line, Normalized: clean}
		if n.IsClean(clean, c) {
			continue
		}
		pending = append(pending, i)
	}

	if len(pending) == 0 {
		n.logger.Debug("all order lines already clean, skipping rewrite", zap.Int("lines", len(lines)))
		return results
	}
	if n.rewriter == nil {
		return results
	}

	req := RewriteRequest{
		UnitLegend:        n.units.Legend(),
		PrimaryUnitLegend: c.PrimaryUnitLegend(),
	}
	for _, i := range pending {
		req.Line = results[i].Normalized
		out, err := n.rewrite(ctx, req)
		if err == nil && out == "" {
			err = errEmptyRewrite
		}
		if err != nil {
			n.logger.Warn("line rewrite failed, keeping raw line",
				zap.String("line", results[i].Raw),
				zap.Error(err))
			results[i].Degraded = true
			continue
		}
		results[i].Normalized = out
		results[i].Rewritten = out != req.Line
	}
	return results
}

func (n *Normalizer) rewrite(ctx context.Context, req RewriteRequest) (string, error) {
	if n.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.timeout)
		defer cancel()
	}
	out, err := n.rewriter.Rewrite(ctx, req)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// IsOrderLike reports whether line has a digit or mentions a product.
func IsOrderLike(line string, c *catalog.Catalog) bool {
	return digit.MatchString(line) || c.ContainsProductText(line)
}

// IsClean reports whether line has a number followed directly by a known
// unit, or a number and a known product.
func (n *Normalizer) IsClean(line string, c *catalog.Catalog) bool {
	if !digit.MatchString(line) {
		return false
	}
	if m := numberUnit.FindStringSubmatch(line); m != nil {
		if _, ok := n.units.Lookup(m[1]); ok {
			return true
		}
	}
	return c.ContainsProductText(line)
}

// Fold applies the deterministic clean-up every line gets: NFKC folding
// (full-width digits, "½" → "1⁄2"), fractions to decimals, collapsed
// whitespace.
func Fold(line string) string {
	s := gluedFraction.ReplaceAllString(line, "$1 $2")
	s = norm.NFKC.String(s)
	s = mixedFraction.ReplaceAllStringFunc(s, func(m string) string {
		p := mixedFraction.FindStringSubmatch(m)
		whole, _ := strconv.ParseFloat(p[1], 64)
		return formatDecimal(whole + ratio(p[2], p[3]))
	})
	s = fraction.ReplaceAllStringFunc(s, func(m string) string {
		p := fraction.FindStringSubmatch(m)
		return formatDecimal(ratio(p[1], p[2]))
	})
	return strings.TrimSpace(spaces.ReplaceAllString(s, " "))
}

func ratio(num, den string) float64 {
	a, _ := strconv.ParseFloat(num, 64)
	b, _ := strconv.ParseFloat(den, 64)
	if b == 0 {
		return 0
	}
	return a / b
}

func formatDecimal(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
