package orderintake

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/cloudevents/sdk-go/v2/event"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/orderhub/order-intake/internal/app"
	"github.com/orderhub/order-intake/internal/config"
	"github.com/orderhub/order-intake/internal/logging"
	"github.com/orderhub/order-intake/internal/order"
	"github.com/orderhub/order-intake/internal/pipeline"
	"github.com/orderhub/order-intake/internal/store"
)

// ProcessedTTL bounds how long a message ID is remembered for deduplication.
const ProcessedTTL = 24 * time.Hour

var (
	setupOnce sync.Once
	handler   *Handler
	setupErr  error
)

func init() {
	functions.CloudEvent("order-intake", orderIntake)
}

type MessagePublishedData struct {
	Message PubSubMessage `json:"message"`
}

// PubSubMessage carries a JSON pipeline.Message in Data. The messageId and
// from attributes fill in fields the payload leaves empty.
type PubSubMessage struct {
	Data       []byte            `json:"data"`
	Attributes map[string]string `json:"attributes"`
}

// Processor interprets one message.
type Processor interface {
	Process(ctx context.Context, msg pipeline.Message) (pipeline.Result, error)
}

// Marker records processed message keys. *redis.Client satisfies it.
type Marker interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

// Handler turns Pub/Sub events into pipeline runs, skipping messages it has
// already seen when a Redis client is available.
type Handler struct {
	processor Processor
	seen      Marker
	log       *zap.SugaredLogger
}

func NewHandler(p Processor, seen Marker, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{processor: p, seen: seen, log: logger.Sugar()}
}

// Use installs h as the handler behind the registered function instead of
// building one from the environment. It has no effect after the first event.
func Use(h *Handler) {
	setupOnce.Do(func() { handler = h })
}

func orderIntake(ctx context.Context, e event.Event) error {
	setupOnce.Do(func() { handler, setupErr = setup(ctx) })
	if setupErr != nil {
		return setupErr
	}
	return handler.Handle(ctx, e)
}

// setup builds the process-wide handler. The application lives as long as
// the function instance, so it is never closed.
func setup(ctx context.Context) (*Handler, error) {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}

	a, err := app.New(ctx, cfg, logger, prometheus.DefaultRegisterer)
	if err != nil {
		return nil, err
	}
	a.WatchCatalog(context.Background())

	var seen Marker
	if a.Redis != nil {
		seen = a.Redis
	}
	return NewHandler(a.Pipeline, seen, logger), nil
}

// Handle processes one event. Only failures worth a redelivery are returned.
func (h *Handler) Handle(ctx context.Context, e event.Event) error {
	var data MessagePublishedData
	if err := e.DataAs(&data); err != nil {
		return fmt.Errorf("event.DataAs: %w", err)
	}

	msg, err := decodeMessage(data.Message)
	if err != nil {
		h.log.Errorf("Dropping event %s with unreadable payload: %v", e.ID(), err)
		return nil
	}
	if msg.ID == "" {
		msg.ID = e.ID()
	}

	if !h.firstDelivery(ctx, msg) {
		h.log.Infof("Message %s from %s already processed, skipping", msg.ID, msg.From)
		return nil
	}

	res, err := h.processor.Process(ctx, msg)
	if errors.Is(err, order.ErrEmptyMessage) {
		h.log.Infof("Message %s from %s has no text, nothing to do", msg.ID, msg.From)
		return nil
	}
	if err != nil {
		return fmt.Errorf("process message %s: %w", msg.ID, err)
	}

	h.log.Infof("Processed message %s for %s: %d lines, escalated=%t",
		res.MessageID, res.Restaurant.Name, len(res.Lines), res.Escalated())
	return nil
}

// firstDelivery marks msg as processed and reports whether it was unmarked.
// Without Redis, or when Redis fails, every delivery counts as the first.
func (h *Handler) firstDelivery(ctx context.Context, msg pipeline.Message) bool {
	if h.seen == nil {
		return true
	}
	ok, err := h.seen.SetNX(ctx, processedKey(msg), "1", ProcessedTTL).Result()
	if err != nil {
		h.log.Warnf("Idempotency check for message %s failed, processing anyway: %v", msg.ID, err)
		return true
	}
	return ok
}

func processedKey(msg pipeline.Message) string {
	return fmt.Sprintf("%s:%s:processed", store.NormalizePhone(msg.From), msg.ID)
}

func decodeMessage(m PubSubMessage) (pipeline.Message, error) {
	var msg pipeline.Message
	if len(m.Data) > 0 {
		if err := json.Unmarshal(m.Data, &msg); err != nil {
			return pipeline.Message{}, fmt.Errorf("decode message: %w", err)
		}
	}
	if msg.ID == "" {
		msg.ID = m.Attributes["messageId"]
	}
	if msg.From == "" {
		msg.From = m.Attributes["from"]
	}
	return msg, nil
}
