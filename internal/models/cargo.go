package models

import (
	"time"

	"github.com/pkg/errors"
)

type CargoStatus string

const (
	CargoStatusPending          CargoStatus = "Pending"
	CargoStatusInTransit        CargoStatus = "In Transit"
	CargoStatusArrived          CargoStatus = "Arrived"
	CargoStatusDelivered        CargoStatus = "Delivered"
	CargoStatusDelayed          CargoStatus = "Delayed"
	CargoStatusCustomsClearance CargoStatus = "Customs Clearance"
)

var cargoStatuses = map[CargoStatus]struct{}{
	CargoStatusPending:          {},
	CargoStatusInTransit:        {},
	CargoStatusArrived:          {},
	CargoStatusDelivered:        {},
	CargoStatusDelayed:          {},
	CargoStatusCustomsClearance: {},
}

func (s CargoStatus) Valid() bool {
	_, ok := cargoStatuses[s]
	return ok
}

var (
	ErrCargoNotFound = errors.New("cargo not found")
	ErrInvalidStatus = errors.New("invalid cargo status")
	ErrForbidden     = errors.New("forbidden")
	ErrInvalidInput  = errors.New("invalid input")
)

type Cargo struct {
	ID           string
	TrackingCode string

	SenderName    string
	SenderPhone   string
	ReceiverName  string
	ReceiverPhone string

	Origin      string
	Destination string

	CurrentStatus         CargoStatus
	EstimatedDeliveryDate *time.Time

	// CreatedBy is empty when the cargo was written without an actor.
	CreatedBy string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// StatusLog is an append-only audit entry; UpdatedBy is empty when no actor is known.
type StatusLog struct {
	ID        uint64
	CargoID   string
	Status    CargoStatus
	Location  string
	Note      string
	UpdatedBy string
	CreatedAt time.Time
}

// StatusLogInput is a history entry added by hand. Empty Status means the
// cargo's current status; empty UpdatedBy means the requesting actor.
type StatusLogInput struct {
	Status    CargoStatus
	Location  string
	Note      string
	UpdatedBy string
}

type CargoCreateInput struct {
	TrackingCode string

	SenderName    string
	SenderPhone   string
	ReceiverName  string
	ReceiverPhone string

	Origin      string
	Destination string

	CurrentStatus         CargoStatus
	EstimatedDeliveryDate *time.Time
}

// CargoPatch holds the mutable cargo fields; nil means "leave as is".
// TrackingCode and CreatedBy are deliberately absent.
type CargoPatch struct {
	SenderName    *string
	SenderPhone   *string
	ReceiverName  *string
	ReceiverPhone *string

	Origin      *string
	Destination *string

	CurrentStatus         *CargoStatus
	EstimatedDeliveryDate *time.Time
}

func (p CargoPatch) Apply(c *Cargo) {
	if p.SenderName != nil {
		c.SenderName = *p.SenderName
	}
	if p.SenderPhone != nil {
		c.SenderPhone = *p.SenderPhone
	}
	if p.ReceiverName != nil {
		c.ReceiverName = *p.ReceiverName
	}
	if p.ReceiverPhone != nil {
		c.ReceiverPhone = *p.ReceiverPhone
	}
	if p.Origin != nil {
		c.Origin = *p.Origin
	}
	if p.Destination != nil {
		c.Destination = *p.Destination
	}
	if p.CurrentStatus != nil {
		c.CurrentStatus = *p.CurrentStatus
	}
	if p.EstimatedDeliveryDate != nil {
		t := *p.EstimatedDeliveryDate
		c.EstimatedDeliveryDate = &t
	}
}

type CargoFilter struct {
	Status    CargoStatus
	CreatedBy string
	Limit     int
	Offset    int
}
