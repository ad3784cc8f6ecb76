package model

import (
	"time"

	"github.com/google/uuid"
)

type Staff struct {
	Base
	BusinessID uuid.UUID `db:"business_id" json:"business_id"`
	Name       string    `db:"name" json:"name"`
	Email      string    `db:"email" json:"email,omitempty"`
	IsActive   bool      `db:"is_active" json:"is_active"`

	// Services this staff member is qualified to perform.
	ServiceIDs []uuid.UUID `db:"-" json:"service_ids,omitempty"`
}

// StaffOperatingHours overrides the business hours for one day bucket
// when present. Times are "HH:MM".
type StaffOperatingHours struct {
	ID        uuid.UUID `db:"id" json:"id"`
	StaffID   uuid.UUID `db:"staff_id" json:"staff_id"`
	DayBucket DayBucket `db:"day_bucket" json:"day_bucket"`
	OpenTime  string    `db:"open_time" json:"open_time"`
	CloseTime string    `db:"close_time" json:"close_time"`
}

// StaffBlock excludes a window within a single day for one staff member,
// finer-grained than a whole-day business block.
type StaffBlock struct {
	ID        uuid.UUID `db:"id" json:"id"`
	StaffID   uuid.UUID `db:"staff_id" json:"staff_id"`
	BlockDate time.Time `db:"block_date" json:"block_date"`
	StartTime string    `db:"start_time" json:"start_time"`
	EndTime   string    `db:"end_time" json:"end_time"`
	Reason    string    `db:"reason" json:"reason,omitempty"`
}

type CreateStaffRequest struct {
	Name       string   `json:"name" binding:"required,max=255"`
	Email      string   `json:"email" binding:"omitempty,email"`
	ServiceIDs []string `json:"service_ids" binding:"dive,uuid"`
}

type CreateStaffBlockRequest struct {
	BlockDate string `json:"block_date" binding:"required"`
	StartTime string `json:"start_time" binding:"required,clocktime"`
	EndTime   string `json:"end_time" binding:"required,clocktime"`
	Reason    string `json:"reason" binding:"max=255"`
}
