package model

import (
	"github.com/google/uuid"
)

// Service is a bookable offering (haircut, consult, class, ...).
// Capacity > 1 enables group bookings on one session.
type Service struct {
	Base
	BusinessID           uuid.UUID `db:"business_id" json:"business_id"`
	Name                 string    `db:"name" json:"name"`
	Description          string    `db:"description" json:"description,omitempty"`
	DefaultLengthMinutes int       `db:"default_length_minutes" json:"default_length_minutes"`
	Price                float64   `db:"price" json:"price"`
	BufferMinutes        int       `db:"buffer_minutes" json:"buffer_minutes"`
	Capacity             int       `db:"capacity" json:"capacity"`
}

// EffectiveCapacity defaults to 1, which makes the group-merge rule a
// no-op for ordinary one-on-one services.
func (s *Service) EffectiveCapacity() int {
	if s == nil || s.Capacity < 1 {
		return 1
	}
	return s.Capacity
}

type CreateServiceRequest struct {
	Name                 string  `json:"name" binding:"required,max=255"`
	Description          string  `json:"description" binding:"max=2000"`
	DefaultLengthMinutes int     `json:"default_length_minutes" binding:"required,gte=5,lte=480"`
	Price                float64 `json:"price" binding:"gte=0"`
	BufferMinutes        int     `json:"buffer_minutes" binding:"gte=0,lte=120"`
	Capacity             int     `json:"capacity" binding:"gte=0,lte=100"`
}

type UpdateServiceRequest struct {
	Name                 *string  `json:"name"`
	Description          *string  `json:"description"`
	DefaultLengthMinutes *int     `json:"default_length_minutes"`
	Price                *float64 `json:"price"`
	BufferMinutes        *int     `json:"buffer_minutes"`
	Capacity             *int     `json:"capacity"`
}
