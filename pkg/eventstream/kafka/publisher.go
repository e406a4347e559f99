// Package kafka publishes turn events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/papercomputeco/ssechat/pkg/eventstream"
)

// Config configures the Kafka publisher.
type Config struct {
	Brokers []string
	Topic   string

	// WriteTimeout bounds a single publish. Defaults to 10s.
	WriteTimeout time.Duration

	Logger *zap.Logger
}

// messageWriter is the subset of *kafkago.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Publisher writes one message per turn event, keyed by the turn record ID
// so that every event of a turn lands on the same partition.
type Publisher struct {
	writer  messageWriter
	topic   string
	timeout time.Duration
	logger  *zap.Logger
}

// NewPublisher creates a publisher backed by a kafka-go Writer.
func NewPublisher(cfg Config) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka publisher requires at least one broker")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka publisher requires a topic")
	}

	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireOne,
		AllowAutoTopicCreation: true,
	}

	return newPublisher(w, cfg), nil
}

func newPublisher(w messageWriter, cfg Config) *Publisher {
	timeout := cfg.WriteTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Publisher{
		writer:  w,
		topic:   cfg.Topic,
		timeout: timeout,
		logger:  logger,
	}
}

// PublishTurn encodes event as JSON and writes it to the topic.
func (p *Publisher) PublishTurn(ctx context.Context, event *eventstream.TurnAssembledEvent) error {
	if event == nil {
		return eventstream.ErrNilTurnEvent
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling turn event: %w", err)
	}

	key := event.EventID
	if event.Record != nil {
		key = event.Record.ID
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	msg := kafkago.Message{
		Key:   []byte(key),
		Value: payload,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "schema_version", Value: []byte(fmt.Sprint(event.SchemaVersion))},
		},
		Time: event.EmittedAt,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publishing turn event to %s: %w", p.topic, err)
	}

	p.logger.Debug("published turn event",
		zap.String("topic", p.topic),
		zap.String("event_id", event.EventID),
		zap.String("key", key),
	)
	return nil
}

// Close flushes pending messages and closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
