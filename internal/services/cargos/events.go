package cargos

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/BearBump/CargoTrack/internal/broker/messages"
	"github.com/BearBump/CargoTrack/internal/models"
)

type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

const defaultPublishTimeout = 500 * time.Millisecond

// StatusPublisher announces status transitions on a topic, keyed by cargo ID.
// It runs inside the update request, so each publish is bounded by timeout.
type StatusPublisher struct {
	producer Producer
	topic    string
	timeout  time.Duration
	now      func() time.Time
}

func NewStatusPublisher(p Producer, topic string) *StatusPublisher {
	return &StatusPublisher{producer: p, topic: topic, timeout: defaultPublishTimeout, now: time.Now}
}

func (p *StatusPublisher) WithTimeout(d time.Duration) *StatusPublisher {
	if d > 0 {
		p.timeout = d
	}
	return p
}

func (p *StatusPublisher) AfterUpdate(ctx context.Context, updated, original *models.Cargo, actor *models.Actor) {
	if updated.CurrentStatus == original.CurrentStatus {
		return
	}

	b, err := json.Marshal(messages.CargoStatusChanged{
		CargoID:      updated.ID,
		TrackingCode: updated.TrackingCode,
		From:         string(original.CurrentStatus),
		To:           string(updated.CurrentStatus),
		Location:     updated.Origin,
		ActorID:      actor.ActorID(),
		ChangedAt:    p.now().UTC(),
	})
	if err != nil {
		slog.Error("marshal status changed", "cargo_id", updated.ID, "error", err.Error())
		return
	}

	pubCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	if err := p.producer.Publish(pubCtx, p.topic, []byte(updated.ID), b); err != nil {
		slog.Error("publish status changed", "cargo_id", updated.ID, "topic", p.topic, "error", err.Error())
	}
}
