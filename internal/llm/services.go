package llm

import (
	"context"
	"strings"

	"github.com/orderhub/order-intake/internal/normalize"
)

// Rewrite implements normalize.Rewriter.
func (c *Client) Rewrite(ctx context.Context, req normalize.RewriteRequest) (string, error) {
	out, err := c.complete(ctx, completion{
		operation: "rewrite",
		system:    rewriteSystem,
		prompt:    rewritePrompt(req.Line, req.UnitLegend, req.PrimaryUnitLegend),
		maxTokens: 40,
	})
	if err != nil {
		return "", err
	}
	out = cleanReply(out)
	if strings.HasPrefix(strings.ToLower(out), "output:") {
		out = strings.TrimSpace(out[len("output:"):])
	}
	return out, nil
}

// Suggest implements resolve.Suggester. It returns "" when the model answers
// none. The answer is not checked against names; callers do that.
func (c *Client) Suggest(ctx context.Context, token string, names []string) (string, error) {
	out, err := c.complete(ctx, completion{
		operation: "suggest",
		system:    suggestSystem,
		prompt:    suggestPrompt(token, names),
		maxTokens: 20,
	})
	if err != nil {
		return "", err
	}
	out = strings.TrimRight(cleanReply(out), ".")
	if strings.EqualFold(out, "none") {
		return "", nil
	}
	return out, nil
}
