package kafka

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Handler processes one message. Returning an error wrapped with Drop
// commits the message without retrying it; any other error is retried.
type Handler func(ctx context.Context, key, value []byte) error

type dropError struct{ err error }

func (e dropError) Error() string { return "drop message: " + e.err.Error() }
func (e dropError) Unwrap() error { return e.err }

// Drop marks err as permanent for the message being handled.
func Drop(err error) error {
	if err == nil {
		return nil
	}
	return dropError{err: err}
}

func IsDrop(err error) bool {
	var d dropError
	return errors.As(err, &d)
}

// Consumer delivers messages from one topic to a Handler at least once, in
// partition order. A message is committed only after the handler succeeded
// or dropped it; failures are retried with backoff until ctx ends.
type Consumer struct {
	r     messageReader
	topic string

	minBackoff time.Duration
	maxBackoff time.Duration
}

func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	cfg := kafka.ReaderConfig{
		Brokers:           brokers,
		GroupID:           groupID,
		HeartbeatInterval: 3 * time.Second,
		SessionTimeout:    30 * time.Second,
	}
	if groupID != "" {
		cfg.GroupTopics = []string{topic}
	} else {
		cfg.Topic = topic
	}
	c := newConsumerWithReader(kafka.NewReader(cfg))
	c.topic = topic
	return c
}

func newConsumerWithReader(r messageReader) *Consumer {
	return &Consumer{r: r, minBackoff: 200 * time.Millisecond, maxBackoff: 10 * time.Second}
}

// WithBackoff sets the first and the largest delay between handler retries.
func (c *Consumer) WithBackoff(min, max time.Duration) *Consumer {
	if min > 0 {
		c.minBackoff = min
	}
	if max >= c.minBackoff {
		c.maxBackoff = max
	}
	return c
}

func (c *Consumer) Close() error {
	return c.r.Close()
}

// Consume runs until fetching or committing fails or ctx ends.
func (c *Consumer) Consume(ctx context.Context, handler Handler) error {
	for {
		msg, err := c.r.FetchMessage(ctx)
		if err != nil {
			return errors.Wrap(err, "fetch message")
		}
		if err := c.handle(ctx, handler, msg); err != nil {
			return err
		}
		if err := c.r.CommitMessages(ctx, msg); err != nil {
			return errors.Wrap(err, "commit message")
		}
	}
}

func (c *Consumer) handle(ctx context.Context, handler Handler, msg kafka.Message) error {
	backoff := c.minBackoff
	for attempt := 1; ; attempt++ {
		err := handler(ctx, msg.Key, msg.Value)
		if err == nil {
			return nil
		}
		if IsDrop(err) {
			slog.Warn("kafka message dropped", c.logAttrs(msg, "error", err.Error())...)
			return nil
		}
		slog.Error("kafka handler failed", c.logAttrs(msg, "attempt", attempt, "retry_in", backoff.String(), "error", err.Error())...)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		if backoff *= 2; backoff > c.maxBackoff {
			backoff = c.maxBackoff
		}
	}
}

func (c *Consumer) logAttrs(msg kafka.Message, kv ...any) []any {
	topic := msg.Topic
	if topic == "" {
		topic = c.topic
	}
	return append([]any{"topic", topic, "partition", msg.Partition, "offset", msg.Offset}, kv...)
}
