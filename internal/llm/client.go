// Package llm talks to the OpenAI chat completions API on behalf of the
// pipeline. It implements the line rewriter used by normalization and the
// product suggester used by resolution. Every call is rate limited, retried
// with jittered backoff and bounded by one overall timeout, so a slow API
// degrades a single line instead of the whole message.
package llm

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	DefaultModel      = "gpt-4o-mini"
	DefaultTimeout    = 12 * time.Second
	DefaultMaxRetries = 2
)

// ErrNoChoices is returned when the API answers without any completion.
var ErrNoChoices = errors.New("llm: response has no choices")

// Config configures a Client.
type Config struct {
	APIKey     string
	Model      string
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	RateLimit  float64
	RateBurst  int
}

// Observer receives one call per completed API operation.
type Observer interface {
	ObserveAI(operation, outcome string, elapsed time.Duration)
}

type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Client wraps the OpenAI API.
type Client struct {
	api        chatCompleter
	model      string
	timeout    time.Duration
	maxRetries int
	limiter    *rate.Limiter
	backoff    func(attempt int) time.Duration
	observer   Observer
	logger     *zap.Logger
}

// New builds a client from cfg. Zero values fall back to the package
// defaults.
func New(cfg Config, logger *zap.Logger) *Client {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	return newClient(openai.NewClientWithConfig(oc), cfg, logger)
}

func newClient(api chatCompleter, cfg Config, logger *zap.Logger) *Client {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	// 3 requests per second, burst of 5
	limit, burst := rate.Limit(3), 5
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	if cfg.RateBurst > 0 {
		burst = cfg.RateBurst
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		api:        api,
		model:      cfg.Model,
		timeout:    cfg.Timeout,
		maxRetries: cfg.MaxRetries,
		limiter:    rate.NewLimiter(limit, burst),
		backoff:    jitteredBackoff,
		logger:     logger,
	}
}

// WithObserver attaches o to the client and returns it.
func (c *Client) WithObserver(o Observer) *Client {
	c.observer = o
	return c
}

func jitteredBackoff(attempt int) time.Duration {
	base := time.Duration(attempt) * 500 * time.Millisecond
	return base + time.Duration(rand.Intn(500))*time.Millisecond
}

type completion struct {
	operation string
	system    string
	prompt    string
	maxTokens int
}

// complete sends one chat completion and returns the first choice's content.
// All attempts share a single deadline of c.timeout.
func (c *Client) complete(ctx context.Context, req completion) (string, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.system != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.system})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.prompt})

	var (
		resp openai.ChatCompletionResponse
		err  error
	)
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if err = c.limiter.Wait(ctx); err != nil {
			break
		}

		resp, err = c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       c.model,
			Messages:    messages,
			MaxTokens:   req.maxTokens,
			Temperature: 0,
		})
		if err == nil && len(resp.Choices) > 0 {
			break
		}
		if err == nil {
			err = ErrNoChoices
		}

		c.logger.Warn("openai attempt failed",
			zap.String("operation", req.operation),
			zap.Int("attempt", attempt),
			zap.Error(err))

		if attempt < c.maxRetries {
			select {
			case <-ctx.Done():
			case <-time.After(c.backoff(attempt)):
			}
			if ctx.Err() != nil {
				err = ctx.Err()
				break
			}
		}
	}

	elapsed := time.Since(start)
	if err != nil {
		c.observe(req.operation, "error", elapsed)
		return "", fmt.Errorf("openai %s: %w", req.operation, err)
	}

	c.observe(req.operation, "ok", elapsed)
	c.logger.Debug("openai call completed",
		zap.String("operation", req.operation),
		zap.Duration("elapsed", elapsed))
	return resp.Choices[0].Message.Content, nil
}

func (c *Client) observe(operation, outcome string, elapsed time.Duration) {
	if c.observer != nil {
		c.observer.ObserveAI(operation, outcome, elapsed)
	}
}

// cleanReply strips code fences and quotes and keeps the first non-empty
// line of a model reply.
func cleanReply(raw string) string {
	s := strings.ReplaceAll(raw, "```", "")
	s = strings.ReplaceAll(s, "'''", "")
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		return strings.Trim(line, "\"'`")
	}
	return ""
}
