// Package alert delivers red-alert lines to the people who must act on them.
// Delivery is best effort: callers log a failed Escalate and move on.
package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/orderhub/order-intake/internal/order"
)

// Alert is one escalated order line.
type Alert struct {
	Restaurant order.Restaurant `json:"restaurant"`
	MessageID  string           `json:"messageId,omitempty"`
	// Message is the raw text the restaurant sent for this line.
	Message string    `json:"message"`
	Reasons []string  `json:"reasons"`
	At      time.Time `json:"at"`
}

// Body renders the alert as the text a manager reads.
func (a Alert) Body() string {
	return fmt.Sprintf("ORDER ALERT\n\nRestaurant: %s\nOriginal message: %s\nIssues: %s",
		a.Restaurant.Name, a.Message, strings.Join(a.Reasons, ", "))
}

// payload is the JSON sent to brokers. It carries the rendered Body so
// consumers forward the text without formatting it again.
func (a Alert) payload() ([]byte, error) {
	data, err := json.Marshal(struct {
		Alert
		Body string `json:"body"`
	}{a, a.Body()})
	if err != nil {
		return nil, fmt.Errorf("encode alert: %w", err)
	}
	return data, nil
}

// LogEscalator writes alerts to the log. It is the fallback sink when no
// broker is configured.
type LogEscalator struct {
	logger *zap.Logger
}

func NewLogEscalator(logger *zap.Logger) *LogEscalator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogEscalator{logger: logger}
}

func (e *LogEscalator) Escalate(_ context.Context, a Alert) error {
	e.logger.Error("ORDER ALERT",
		zap.String("restaurant", a.Restaurant.Name),
		zap.Int64("restaurant_id", a.Restaurant.ID),
		zap.String("message_id", a.MessageID),
		zap.String("message", a.Message),
		zap.Strings("issues", a.Reasons))
	return nil
}
