package audit

import (
	"fmt"

	"github.com/BearBump/CargoTrack/internal/models"
)

const noteCargoCreated = "Cargo created"

// CreationLog builds the first history entry of a freshly inserted cargo.
// The creator wins over the acting principal.
func CreationLog(c *models.Cargo, actor *models.Actor) models.StatusLog {
	status := c.CurrentStatus
	if status == "" {
		status = models.CargoStatusPending
	}

	updatedBy := c.CreatedBy
	if updatedBy == "" {
		updatedBy = actor.ActorID()
	}

	return models.StatusLog{
		CargoID:   c.ID,
		Status:    status,
		Location:  c.Origin,
		Note:      noteCargoCreated,
		UpdatedBy: updatedBy,
	}
}

// TransitionLog builds the history entry for an update. ok is false when the
// status did not change, whatever else did.
// The acting principal wins over the creator.
func TransitionLog(updated, original *models.Cargo, actor *models.Actor) (log models.StatusLog, ok bool) {
	if updated.CurrentStatus == original.CurrentStatus {
		return models.StatusLog{}, false
	}

	updatedBy := actor.ActorID()
	if updatedBy == "" {
		updatedBy = updated.CreatedBy
	}

	return models.StatusLog{
		CargoID:   updated.ID,
		Status:    updated.CurrentStatus,
		Location:  updated.Origin,
		Note:      fmt.Sprintf("Status changed from %s to %s", original.CurrentStatus, updated.CurrentStatus),
		UpdatedBy: updatedBy,
	}, true
}
