package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/camagru/camagru/internal/config"
	"github.com/segmentio/kafka-go"
)

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Consumer reads activity events from the topic as part of a consumer group
type Consumer struct {
	reader messageReader
}

// NewConsumer creates a consumer in the given group
func NewConsumer(cfg config.EventsConfig, groupID string) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers: cfg.Brokers,
			Topic:   cfg.Topic,
			GroupID: groupID,
		}),
	}
}

// Run delivers events to handler until ctx is cancelled. Malformed messages
// and handler errors are passed to onError and do not stop the loop.
func (c *Consumer) Run(ctx context.Context, handler func(context.Context, Event) error, onError func(error)) error {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed to read event: %w", err)
		}

		var event Event
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			onError(fmt.Errorf("failed to decode event at offset %d: %w", msg.Offset, err))
			continue
		}

		if err := handler(ctx, event); err != nil {
			onError(err)
		}
	}
}

// Close closes the underlying reader
func (c *Consumer) Close() error {
	return c.reader.Close()
}
