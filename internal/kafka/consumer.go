package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"ms-seating/internal/logger"
)

// MessageReader is the part of *kafka.Reader the consumer uses.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Handler func(ctx context.Context, msg kafka.Message) error

// skipError marks a message that can never be handled.
type skipError struct{ err error }

func (e skipError) Error() string { return e.err.Error() }
func (e skipError) Unwrap() error { return e.err }

// Skip wraps err so the consumer logs the message and commits past it
// instead of retrying.
func Skip(err error) error {
	return skipError{err: err}
}

type Consumer struct {
	Reader MessageReader
	Logger *logger.Logger
	// Retries is how many more times a failed message is handed to the
	// handler before Start gives up.
	Retries int
	Backoff time.Duration
}

// NewConsumer creates a new Kafka consumer for the given topic and group
func NewConsumer(brokers []string, topic, groupID string, log *logger.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{Reader: reader, Logger: log, Retries: 3, Backoff: time.Second}
}

// Start hands every message to handler until ctx is done. A message is
// committed after handler accepts it or rejects it with Skip. Any other
// failure is retried; if it persists Start returns without committing, so
// the group redelivers the message on the next start.
func (c *Consumer) Start(ctx context.Context, handler Handler) error {
	c.Logger.Info("KAFKA", "Consumer started")
	for {
		msg, err := c.Reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("fetch message: %w", err)
		}

		err = c.handle(ctx, handler, msg)
		var skip skipError
		switch {
		case errors.As(err, &skip):
			c.Logger.Warn("KAFKA", fmt.Sprintf("Skipping %s@%d/%d: %v", msg.Topic, msg.Partition, msg.Offset, skip.err))
		case err != nil:
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("handle %s@%d/%d: %w", msg.Topic, msg.Partition, msg.Offset, err)
		}

		if err := c.Reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("commit message: %w", err)
		}
		c.Logger.LogKafka("CONSUME", msg.Topic, string(msg.Key))
	}
}

func (c *Consumer) handle(ctx context.Context, handler Handler, msg kafka.Message) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = handler(ctx, msg)
		var skip skipError
		if err == nil || errors.As(err, &skip) || attempt >= c.Retries {
			return err
		}
		c.Logger.Error("KAFKA", fmt.Sprintf("Handler failed for %s@%d/%d (attempt %d): %v", msg.Topic, msg.Partition, msg.Offset, attempt+1, err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.Backoff):
		}
	}
}

// Close gracefully shuts down the Kafka reader
func (c *Consumer) Close() error {
	return c.Reader.Close()
}
