// Package pipeline runs one inbound message through normalization, parsing
// and validation, then hands every line to the store and every red-alert line
// to the escalator. Lines are processed in message order.
package pipeline

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/orderhub/order-intake/internal/alert"
	"github.com/orderhub/order-intake/internal/catalog"
	"github.com/orderhub/order-intake/internal/normalize"
	"github.com/orderhub/order-intake/internal/order"
	"github.com/orderhub/order-intake/internal/parse"
	"github.com/orderhub/order-intake/internal/store"
	"github.com/orderhub/order-intake/internal/validate"
)

// Escalator delivers red-alert lines to a human.
type Escalator interface {
	Escalate(ctx context.Context, a alert.Alert) error
}

// Store persists every validated line.
type Store interface {
	SaveLine(ctx context.Context, r order.Restaurant, l order.Line) error
}

// Directory finds the restaurant behind a sender address.
type Directory interface {
	RestaurantByPhone(ctx context.Context, phone string) (order.Restaurant, error)
}

// Observer counts outcomes.
type Observer interface {
	ObserveLine(action string)
	ObserveSinkError(sink string)
}

// Message is one inbound chat message.
type Message struct {
	ID   string `json:"messageId"`
	From string `json:"from"`
	Body string `json:"body"`
}

// Result is what Process produced for a message.
type Result struct {
	MessageID  string           `json:"messageId"`
	Restaurant order.Restaurant `json:"restaurant"`
	Lines      []order.Line     `json:"lines"`
}

// Escalated reports whether any line raised a red alert.
func (r Result) Escalated() bool {
	for _, l := range r.Lines {
		if l.Action == order.ActionRedAlert {
			return true
		}
	}
	return false
}

// Deps are the collaborators of a Pipeline. Catalog, Normalizer, Parser and
// Validator are required; the rest may be nil.
type Deps struct {
	Catalog    *catalog.Snapshot
	Normalizer *normalize.Normalizer
	Parser     *parse.Parser
	Validator  *validate.Validator
	Store      Store
	Escalator  Escalator
	Directory  Directory
	Observer   Observer
	Logger     *zap.Logger
}

// Pipeline holds no per-message state and is safe for concurrent use.
type Pipeline struct {
	Deps
	now func() time.Time
}

func New(deps Deps) *Pipeline {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Pipeline{Deps: deps, now: time.Now}
}

// Process interprets msg. It fails only for a message with no text; sink
// failures are logged and counted.
func (p *Pipeline) Process(ctx context.Context, msg Message) (Result, error) {
	lines := SplitLines(msg.Body)
	if len(lines) == 0 {
		return Result{}, order.ErrEmptyMessage
	}

	res := Result{
		MessageID:  msg.ID,
		Restaurant: p.restaurant(ctx, msg.From),
		Lines:      make([]order.Line, 0, len(lines)),
	}
	if res.MessageID == "" {
		res.MessageID = uuid.NewString()
	}
	logger := p.Logger.With(
		zap.String("message_id", res.MessageID),
		zap.String("restaurant", res.Restaurant.Name))

	c := p.Catalog.Load()
	for _, n := range p.Normalizer.Normalize(ctx, lines, c) {
		parsed, err := p.Parser.Parse(n.Normalized, c)
		if err != nil {
			logger.Warn("skipping unparseable line", zap.String("line", n.Raw), zap.Error(err))
			continue
		}

		line := p.Validator.Validate(ctx, parsed, c)
		line.MessageID = res.MessageID
		line.RawText = n.Raw
		line.NormalizedText = n.Normalized
		if n.Degraded {
			line.Degrade("rewrite")
		}

		p.forward(ctx, logger, res.Restaurant, line)
		res.Lines = append(res.Lines, line)
	}

	logger.Info("message processed",
		zap.Int("lines", len(res.Lines)),
		zap.Bool("escalated", res.Escalated()))
	return res, nil
}

func (p *Pipeline) forward(ctx context.Context, logger *zap.Logger, r order.Restaurant, line order.Line) {
	if p.Observer != nil {
		p.Observer.ObserveLine(string(line.Action))
	}

	if issues := line.Issues(); len(issues) > 0 {
		logger.Warn("order line needs review",
			zap.String("line", line.RawText),
			zap.String("action", string(line.Action)),
			zap.String("issues", strings.Join(issues, "; ")))
	}

	if p.Store != nil {
		if err := p.Store.SaveLine(ctx, r, line); err != nil {
			p.sinkFailed(logger, "store", line, err)
		}
	}

	if line.Action != order.ActionRedAlert || p.Escalator == nil {
		return
	}
	a := alert.Alert{
		Restaurant: r,
		MessageID:  line.MessageID,
		Message:    line.RawText,
		Reasons:    line.RedAlerts,
		At:         p.now(),
	}
	if err := p.Escalator.Escalate(ctx, a); err != nil {
		p.sinkFailed(logger, "escalator", line, err)
	}
}

func (p *Pipeline) sinkFailed(logger *zap.Logger, sink string, line order.Line, err error) {
	logger.Error("sink failed",
		zap.String("sink", sink),
		zap.String("line", line.RawText),
		zap.Error(err))
	if p.Observer != nil {
		p.Observer.ObserveSinkError(sink)
	}
}

func (p *Pipeline) restaurant(ctx context.Context, from string) order.Restaurant {
	if p.Directory == nil || strings.TrimSpace(from) == "" {
		return order.UnknownRestaurant
	}
	r, err := p.Directory.RestaurantByPhone(ctx, from)
	if err != nil {
		if !errors.Is(err, store.ErrRestaurantNotFound) {
			p.Logger.Warn("restaurant lookup failed", zap.String("from", from), zap.Error(err))
		}
		return order.UnknownRestaurant
	}
	return r
}

// SplitLines returns the trimmed non-blank lines of body, in order.
func SplitLines(body string) []string {
	var out []string
	for _, l := range strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}
