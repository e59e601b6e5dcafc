package audit

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/BearBump/CargoTrack/internal/models"
	"github.com/pkg/errors"
)

type LogStore interface {
	CreateStatusLog(ctx context.Context, l *models.StatusLog) (*models.StatusLog, error)
}

// Recorder appends status history after cargo writes. Its failures are
// logged and counted, never returned: the cargo write has already happened.
type Recorder struct {
	store   LogStore
	metrics *Metrics
}

func NewRecorder(store LogStore, metrics *Metrics) *Recorder {
	return &Recorder{store: store, metrics: metrics}
}

func (r *Recorder) AfterCreate(ctx context.Context, c *models.Cargo, actor *models.Actor) {
	defer r.recoverTo(triggerCreated, c)

	l := CreationLog(c, actor)
	if _, err := r.append(ctx, triggerCreated, &l); err != nil {
		return
	}
	slog.Info("initial status log created", "cargo_id", c.ID, "tracking_code", c.TrackingCode)
}

func (r *Recorder) AfterUpdate(ctx context.Context, updated, original *models.Cargo, actor *models.Actor) {
	defer r.recoverTo(triggerUpdated, updated)

	l, ok := TransitionLog(updated, original, actor)
	if !ok {
		return
	}
	if _, err := r.append(ctx, triggerUpdated, &l); err != nil {
		return
	}
	slog.Info("status log created",
		"cargo_id", updated.ID,
		"tracking_code", updated.TrackingCode,
		"from", string(original.CurrentStatus),
		"to", string(updated.CurrentStatus),
	)
}

// Record stores an entry built outside a cargo write, such as a checkpoint
// added by staff. An entry without an author is attributed to actor. Unlike
// the cargo hooks, the caller gets the error.
func (r *Recorder) Record(ctx context.Context, l *models.StatusLog, actor *models.Actor) (*models.StatusLog, error) {
	if l.CargoID == "" {
		return nil, errors.Wrap(models.ErrInvalidInput, "status log needs a cargo")
	}
	if l.UpdatedBy == "" {
		l.UpdatedBy = actor.ActorID()
	}
	out, err := r.append(ctx, triggerManual, l)
	if err != nil {
		return nil, errors.Wrap(err, "record status log")
	}
	return out, nil
}

func (r *Recorder) append(ctx context.Context, trigger string, l *models.StatusLog) (*models.StatusLog, error) {
	out, err := r.store.CreateStatusLog(ctx, l)
	if err != nil {
		r.fail(trigger, l.CargoID, err)
		return nil, err
	}
	if r.metrics != nil {
		r.metrics.LogsWritten.WithLabelValues(trigger).Inc()
	}
	return out, nil
}

func (r *Recorder) recoverTo(trigger string, c *models.Cargo) {
	if v := recover(); v != nil {
		r.fail(trigger, c.ID, fmt.Errorf("panic: %v", v))
	}
}

func (r *Recorder) fail(trigger, cargoID string, err error) {
	slog.Error("create status log", "trigger", trigger, "cargo_id", cargoID, "error", err.Error())
	if r.metrics != nil {
		r.metrics.LogFailures.WithLabelValues(trigger).Inc()
	}
}
