package model

import (
	"time"

	"github.com/google/uuid"
)

// DayBucket groups dates into the three operating-hours buckets.
type DayBucket string

const (
	DayBucketMonFri DayBucket = "mon_fri"
	DayBucketSat    DayBucket = "sat"
	DayBucketSun    DayBucket = "sun"
)

// BucketFor classifies a date's weekday into its operating-hours bucket.
func BucketFor(date time.Time) DayBucket {
	switch date.Weekday() {
	case time.Saturday:
		return DayBucketSat
	case time.Sunday:
		return DayBucketSun
	default:
		return DayBucketMonFri
	}
}

type DepositType string

const (
	DepositTypeFixed      DepositType = "fixed"
	DepositTypePercentage DepositType = "percentage"
)

type Business struct {
	Base
	OwnerEmail            string      `db:"owner_email" json:"owner_email"`
	Name                  string      `db:"name" json:"name"`
	Slug                  string      `db:"slug" json:"slug"`
	Description           string      `db:"description" json:"description,omitempty"`
	BufferMinutes         int         `db:"buffer_minutes" json:"buffer_minutes"`
	DepositEnabled        bool        `db:"deposit_enabled" json:"deposit_enabled"`
	DepositType           DepositType `db:"deposit_type" json:"deposit_type"`
	DepositAmount         float64     `db:"deposit_amount" json:"deposit_amount"`
	DepositPercentage     float64     `db:"deposit_percentage" json:"deposit_percentage"`
	RescheduleWindowHours int         `db:"reschedule_window_hours" json:"reschedule_window_hours"`
	MerchantID            string      `db:"merchant_id" json:"-"`
	MerchantKey           string      `db:"merchant_key" json:"-"`
	OwnerPushID           string      `db:"owner_push_id" json:"-"`
}

// HasMerchantCredentials reports whether the business can take payments.
// Deposits are silently disabled without credentials.
func (b *Business) HasMerchantCredentials() bool {
	return b.MerchantID != "" && b.MerchantKey != ""
}

// OperatingHours is the business's open/close window for one day bucket.
// At most one row exists per (business, bucket). Times are "HH:MM".
type OperatingHours struct {
	ID         uuid.UUID `db:"id" json:"id"`
	BusinessID uuid.UUID `db:"business_id" json:"business_id"`
	DayBucket  DayBucket `db:"day_bucket" json:"day_bucket"`
	OpenTime   string    `db:"open_time" json:"open_time"`
	CloseTime  string    `db:"close_time" json:"close_time"`
}

// BusinessBlock is a whole-day blackout: no bookings at all on that date.
type BusinessBlock struct {
	ID         uuid.UUID `db:"id" json:"id"`
	BusinessID uuid.UUID `db:"business_id" json:"business_id"`
	BlockDate  time.Time `db:"block_date" json:"block_date"`
	Reason     string    `db:"reason" json:"reason,omitempty"`
}

type CreateBusinessRequest struct {
	OwnerEmail            string  `json:"owner_email" binding:"required,email"`
	Name                  string  `json:"name" binding:"required,max=255"`
	Description           string  `json:"description" binding:"max=2000"`
	BufferMinutes         int     `json:"buffer_minutes" binding:"gte=0,lte=120"`
	DepositEnabled        bool    `json:"deposit_enabled"`
	DepositType           string  `json:"deposit_type" binding:"omitempty,oneof=fixed percentage"`
	DepositAmount         float64 `json:"deposit_amount" binding:"gte=0"`
	DepositPercentage     float64 `json:"deposit_percentage" binding:"gte=0,lte=100"`
	RescheduleWindowHours int     `json:"reschedule_window_hours" binding:"gte=0"`
}

type UpdateBusinessRequest struct {
	Name                  *string  `json:"name"`
	Description           *string  `json:"description"`
	BufferMinutes         *int     `json:"buffer_minutes"`
	DepositEnabled        *bool    `json:"deposit_enabled"`
	DepositType           *string  `json:"deposit_type" binding:"omitempty,oneof=fixed percentage"`
	DepositAmount         *float64 `json:"deposit_amount"`
	DepositPercentage     *float64 `json:"deposit_percentage"`
	RescheduleWindowHours *int     `json:"reschedule_window_hours"`
	MerchantID            *string  `json:"merchant_id"`
	MerchantKey           *string  `json:"merchant_key"`
}

type SetOperatingHoursRequest struct {
	DayBucket string `json:"day_bucket" binding:"required,daybucket"`
	OpenTime  string `json:"open_time" binding:"required,clocktime"`
	CloseTime string `json:"close_time" binding:"required,clocktime"`
}

type CreateBusinessBlockRequest struct {
	BlockDate string `json:"block_date" binding:"required"`
	Reason    string `json:"reason" binding:"max=255"`
}
