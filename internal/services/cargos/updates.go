package cargos

import (
	"context"
	"log/slog"

	"github.com/BearBump/CargoTrack/internal/broker/messages"
	"github.com/BearBump/CargoTrack/internal/models"
	"github.com/pkg/errors"
)

// ApplyStatusUpdate handles an inbound status command. Malformed commands and
// unknown cargos are logged and dropped so they do not block the partition;
// any other error is returned for redelivery.
func (s *Service) ApplyStatusUpdate(ctx context.Context, msg messages.CargoStatusUpdate) error {
	status := models.CargoStatus(msg.Status)
	if msg.CargoID == "" || !status.Valid() {
		slog.Warn("drop status update", "cargo_id", msg.CargoID, "status", msg.Status)
		return nil
	}

	var actor *models.Actor
	if msg.ActorID != "" {
		actor = &models.Actor{ID: msg.ActorID}
	}

	_, err := s.UpdateCargoStatus(ctx, msg.CargoID, status, actor)
	if errors.Is(err, models.ErrCargoNotFound) {
		slog.Warn("drop status update for unknown cargo", "cargo_id", msg.CargoID)
		return nil
	}
	return err
}
