package alert

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
)

// DefaultKafkaTopic is the topic alerts are written to by default.
const DefaultKafkaTopic = "orderhub.alerts"

// Writer abstracts kafka.Writer for testing.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaEscalator writes each alert as one JSON message keyed by restaurant.
type KafkaEscalator struct {
	writer Writer
	topic  string
}

// NewKafkaEscalator builds a writer for brokers. The writer is synchronous so
// a failed delivery is reported to the caller.
func NewKafkaEscalator(brokers []string, topic string) (*KafkaEscalator, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka escalator: brokers required")
	}
	if topic == "" {
		topic = DefaultKafkaTopic
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		MaxAttempts:  3,
		WriteTimeout: 10 * time.Second,
	}
	return newKafkaEscalator(w, topic), nil
}

func newKafkaEscalator(w Writer, topic string) *KafkaEscalator {
	return &KafkaEscalator{writer: w, topic: topic}
}

func (e *KafkaEscalator) Escalate(ctx context.Context, a Alert) error {
	value, err := a.payload()
	if err != nil {
		return err
	}
	key := a.Restaurant.Name
	if a.Restaurant.ID != 0 {
		key = strconv.FormatInt(a.Restaurant.ID, 10)
	}

	msg := kafka.Message{
		Topic: e.topic,
		Key:   []byte(key),
		Value: value,
		Headers: []kafka.Header{
			{Key: "content-type", Value: []byte("application/json")},
		},
		Time: a.At,
	}
	if msg.Time.IsZero() {
		msg.Time = time.Now()
	}
	if err := e.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka write %s: %w", e.topic, err)
	}
	return nil
}

func (e *KafkaEscalator) Close() error {
	return e.writer.Close()
}
