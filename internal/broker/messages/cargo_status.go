package messages

import "time"

// CargoStatusUpdate asks cargo-api to move a cargo to Status. An empty
// ActorID marks a system-originated update.
type CargoStatusUpdate struct {
	CargoID     string    `json:"cargo_id"`
	Status      string    `json:"status"`
	ActorID     string    `json:"actor_id,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}

// CargoStatusChanged is published after a status transition has been stored.
type CargoStatusChanged struct {
	CargoID      string    `json:"cargo_id"`
	TrackingCode string    `json:"tracking_code"`
	From         string    `json:"from"`
	To           string    `json:"to"`
	Location     string    `json:"location,omitempty"`
	ActorID      string    `json:"actor_id,omitempty"`
	ChangedAt    time.Time `json:"changed_at"`
}
