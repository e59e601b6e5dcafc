package cargos_api

import (
	"time"

	"github.com/BearBump/CargoTrack/internal/models"
)

type CreateCargoRequest struct {
	TrackingCode          string     `json:"trackingCode,omitempty"`
	SenderName            string     `json:"senderName"`
	SenderPhone           string     `json:"senderPhone"`
	ReceiverName          string     `json:"receiverName"`
	ReceiverPhone         string     `json:"receiverPhone"`
	Origin                string     `json:"origin"`
	Destination           string     `json:"destination"`
	CurrentStatus         string     `json:"currentStatus,omitempty"`
	EstimatedDeliveryDate *time.Time `json:"estimatedDeliveryDate,omitempty"`
}

func (r CreateCargoRequest) toInput() models.CargoCreateInput {
	return models.CargoCreateInput{
		TrackingCode:          r.TrackingCode,
		SenderName:            r.SenderName,
		SenderPhone:           r.SenderPhone,
		ReceiverName:          r.ReceiverName,
		ReceiverPhone:         r.ReceiverPhone,
		Origin:                r.Origin,
		Destination:           r.Destination,
		CurrentStatus:         models.CargoStatus(r.CurrentStatus),
		EstimatedDeliveryDate: r.EstimatedDeliveryDate,
	}
}

type UpdateCargoRequest struct {
	SenderName            *string    `json:"senderName,omitempty"`
	SenderPhone           *string    `json:"senderPhone,omitempty"`
	ReceiverName          *string    `json:"receiverName,omitempty"`
	ReceiverPhone         *string    `json:"receiverPhone,omitempty"`
	Origin                *string    `json:"origin,omitempty"`
	Destination           *string    `json:"destination,omitempty"`
	CurrentStatus         *string    `json:"currentStatus,omitempty"`
	EstimatedDeliveryDate *time.Time `json:"estimatedDeliveryDate,omitempty"`
}

func (r UpdateCargoRequest) toPatch() models.CargoPatch {
	p := models.CargoPatch{
		SenderName:            r.SenderName,
		SenderPhone:           r.SenderPhone,
		ReceiverName:          r.ReceiverName,
		ReceiverPhone:         r.ReceiverPhone,
		Origin:                r.Origin,
		Destination:           r.Destination,
		EstimatedDeliveryDate: r.EstimatedDeliveryDate,
	}
	if r.CurrentStatus != nil {
		s := models.CargoStatus(*r.CurrentStatus)
		p.CurrentStatus = &s
	}
	return p
}

type CargoDTO struct {
	ID                    string     `json:"id"`
	TrackingCode          string     `json:"trackingCode"`
	SenderName            string     `json:"senderName"`
	SenderPhone           string     `json:"senderPhone"`
	ReceiverName          string     `json:"receiverName"`
	ReceiverPhone         string     `json:"receiverPhone"`
	Origin                string     `json:"origin"`
	Destination           string     `json:"destination"`
	CurrentStatus         string     `json:"currentStatus"`
	EstimatedDeliveryDate *time.Time `json:"estimatedDeliveryDate,omitempty"`
	CreatedBy             string     `json:"createdBy,omitempty"`
	CreatedAt             time.Time  `json:"createdAt"`
	UpdatedAt             time.Time  `json:"updatedAt"`
}

func toCargoDTO(c *models.Cargo) CargoDTO {
	return CargoDTO{
		ID:                    c.ID,
		TrackingCode:          c.TrackingCode,
		SenderName:            c.SenderName,
		SenderPhone:           c.SenderPhone,
		ReceiverName:          c.ReceiverName,
		ReceiverPhone:         c.ReceiverPhone,
		Origin:                c.Origin,
		Destination:           c.Destination,
		CurrentStatus:         string(c.CurrentStatus),
		EstimatedDeliveryDate: c.EstimatedDeliveryDate,
		CreatedBy:             c.CreatedBy,
		CreatedAt:             c.CreatedAt,
		UpdatedAt:             c.UpdatedAt,
	}
}

// PublicCargoDTO is what anyone holding the tracking code can see: no
// contact details and no internal identifiers.
type PublicCargoDTO struct {
	TrackingCode          string     `json:"trackingCode"`
	Origin                string     `json:"origin"`
	Destination           string     `json:"destination"`
	CurrentStatus         string     `json:"currentStatus"`
	EstimatedDeliveryDate *time.Time `json:"estimatedDeliveryDate,omitempty"`
	UpdatedAt             time.Time  `json:"updatedAt"`
}

func toPublicCargoDTO(c *models.Cargo) PublicCargoDTO {
	return PublicCargoDTO{
		TrackingCode:          c.TrackingCode,
		Origin:                c.Origin,
		Destination:           c.Destination,
		CurrentStatus:         string(c.CurrentStatus),
		EstimatedDeliveryDate: c.EstimatedDeliveryDate,
		UpdatedAt:             c.UpdatedAt,
	}
}

type StatusLogDTO struct {
	ID        uint64    `json:"id"`
	Status    string    `json:"status"`
	Location  string    `json:"location"`
	Note      string    `json:"note"`
	UpdatedBy string    `json:"updatedBy,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func toStatusLogDTO(l *models.StatusLog) StatusLogDTO {
	return StatusLogDTO{
		ID:        l.ID,
		Status:    string(l.Status),
		Location:  l.Location,
		Note:      l.Note,
		UpdatedBy: l.UpdatedBy,
		CreatedAt: l.CreatedAt,
	}
}

func toStatusLogDTOs(logs []*models.StatusLog) []StatusLogDTO {
	out := make([]StatusLogDTO, 0, len(logs))
	for _, l := range logs {
		out = append(out, toStatusLogDTO(l))
	}
	return out
}

// CreateStatusLogRequest adds a checkpoint to a cargo's history without
// changing the cargo.
type CreateStatusLogRequest struct {
	Status    string `json:"status,omitempty"`
	Location  string `json:"location"`
	Note      string `json:"note"`
	UpdatedBy string `json:"updatedBy,omitempty"`
}

func (r CreateStatusLogRequest) toInput() models.StatusLogInput {
	return models.StatusLogInput{
		Status:    models.CargoStatus(r.Status),
		Location:  r.Location,
		Note:      r.Note,
		UpdatedBy: r.UpdatedBy,
	}
}

type TrackingDTO struct {
	Cargo   PublicCargoDTO `json:"cargo"`
	History []StatusLogDTO `json:"history"`
}
