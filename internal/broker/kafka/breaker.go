package kafka

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"
	"github.com/sony/gobreaker"
)

type publisher interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// GuardedProducer fails fast while the broker keeps rejecting writes, so
// best-effort publishers do not stall the request path on every call.
type GuardedProducer struct {
	p  publisher
	cb *gobreaker.CircuitBreaker
}

func NewGuardedProducer(p publisher, name string, failures uint32, openFor time.Duration) *GuardedProducer {
	if failures == 0 {
		failures = 5
	}
	if openFor <= 0 {
		openFor = 30 * time.Second
	}
	return &GuardedProducer{
		p: p,
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        name,
			MaxRequests: 1,
			Timeout:     openFor,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= failures
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				slog.Warn("kafka circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
			},
		}),
	}
}

func (g *GuardedProducer) Publish(ctx context.Context, topic string, key, value []byte) error {
	_, err := g.cb.Execute(func() (interface{}, error) {
		return nil, g.p.Publish(ctx, topic, key, value)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return errors.Wrap(err, "kafka publish skipped")
	}
	return err
}

func (g *GuardedProducer) State() gobreaker.State {
	return g.cb.State()
}
