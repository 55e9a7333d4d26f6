// Package broker wraps a topic-oriented message broker (segmentio/kafka-go)
// for this system's four topics: raw_articles, trade_signals,
// summarized_news, stock_analysis. Messages are JSON, keyed by ticker.
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// Producer publishes JSON-encoded messages to a single topic, keyed by
// ticker.
type Producer struct {
	writer *kafka.Writer
	log    zerolog.Logger
}

// NewProducer builds a producer for topic against the given bootstrap
// address.
func NewProducer(bootstrapAddr, topic string, log zerolog.Logger) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(bootstrapAddr),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			BatchTimeout: 10 * time.Millisecond,
		},
		log: log.With().Str("component", "broker_producer").Str("topic", topic).Logger(),
	}
}

// Publish JSON-encodes value and writes it keyed by key (conventionally the
// ticker).
func (p *Producer) Publish(ctx context.Context, key string, value any) error {
	body, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("broker: marshal: %w", err)
	}
	msg := kafka.Message{Key: []byte(key), Value: body, Time: time.Now()}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("broker: publish to %s: %w", p.writer.Topic, err)
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (p *Producer) Close() error { return p.writer.Close() }

// Consumer reads and JSON-decodes messages from a single topic under a
// consumer group.
type Consumer struct {
	reader *kafka.Reader
	log    zerolog.Logger
}

// NewConsumer builds a consumer for topic under groupID.
func NewConsumer(bootstrapAddr, topic, groupID string, log zerolog.Logger) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  []string{bootstrapAddr},
			Topic:    topic,
			GroupID:  groupID,
			MinBytes: 1,
			MaxBytes: 10e6,
			MaxWait:  500 * time.Millisecond,
		}),
		log: log.With().Str("component", "broker_consumer").Str("topic", topic).Logger(),
	}
}

// Close closes the underlying reader.
func (c *Consumer) Close() error { return c.reader.Close() }

// Handler processes one decoded message. Returning an error leaves the
// message's offset uncommitted on backends where that matters; this
// module's consumer always commits fetched offsets (at-least-once,
// duplicate-tolerant by design).
type Handler func(ctx context.Context, key string, value json.RawMessage) error

// Run reads messages until ctx is canceled, invoking handle for each. A
// handler error is logged and does not stop the loop: components never
// crash the process on a per-record failure.
func (c *Consumer) Run(ctx context.Context, handle Handler) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("broker: fetch: %w", err)
		}

		if err := handle(ctx, string(msg.Key), msg.Value); err != nil {
			c.log.Error().Err(err).Str("key", string(msg.Key)).Msg("message handler failed")
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.log.Error().Err(err).Msg("commit offset failed")
		}
	}
}
