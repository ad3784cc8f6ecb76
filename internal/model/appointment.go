package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/getmebooked/booking-api/internal/timeutil"
)

type AppointmentStatus string

const (
	AppointmentStatusPending             AppointmentStatus = "pending"
	AppointmentStatusConfirmed           AppointmentStatus = "confirmed"
	AppointmentStatusDeclined            AppointmentStatus = "declined"
	AppointmentStatusRescheduleRequested AppointmentStatus = "reschedule_requested"
	AppointmentStatusCompleted           AppointmentStatus = "completed"
	AppointmentStatusCancelled           AppointmentStatus = "cancelled"
)

// PendingHoldWindow is how long an unpaid pending appointment keeps
// blocking its slot. The availability engine and the cleanup sweep both
// use this constant; they must agree.
const PendingHoldWindow = 2 * time.Hour

// Terminal reports whether no further transitions are allowed.
func (s AppointmentStatus) Terminal() bool {
	switch s {
	case AppointmentStatusDeclined, AppointmentStatusCompleted, AppointmentStatusCancelled:
		return true
	}
	return false
}

// Appointment is the central mutable entity. Rows are never deleted;
// every terminal outcome is a status value.
type Appointment struct {
	Base
	BusinessID uuid.UUID  `db:"business_id" json:"business_id"`
	ServiceID  uuid.UUID  `db:"service_id" json:"service_id"`
	StaffID    *uuid.UUID `db:"staff_id" json:"staff_id,omitempty"`

	// Date (midnight, business-local) and start time-of-day ("HH:MM").
	AppointmentDate time.Time `db:"appointment_date" json:"appointment_date"`
	StartTime       string    `db:"start_time" json:"start_time"`

	// Snapshotted from the service at booking time so a later change to
	// the service's duration cannot shift existing bookings.
	LengthMinutes int `db:"length_minutes" json:"length_minutes"`

	Attendees int               `db:"attendees" json:"attendees"`
	Status    AppointmentStatus `db:"status" json:"status"`
	Notes     string            `db:"notes" json:"notes,omitempty"`

	GuestName  string `db:"guest_name" json:"guest_name"`
	GuestEmail string `db:"guest_email" json:"guest_email"`
	GuestPhone string `db:"guest_phone" json:"guest_phone,omitempty"`

	DepositPaid bool    `db:"deposit_paid" json:"deposit_paid"`
	AmountToPay float64 `db:"amount_to_pay" json:"amount_to_pay"`

	Reminder24hSent bool `db:"reminder_24h_sent" json:"reminder_24h_sent"`
	Reminder2hSent  bool `db:"reminder_2h_sent" json:"reminder_2h_sent"`

	// Opaque token embedded in guest self-service links.
	RescheduleToken string `db:"reschedule_token" json:"-"`
}

// StartAt combines the date and start time into a business-local
// instant. Start times are validated on every write path, so an error
// here means the row itself is bad.
func (a *Appointment) StartAt(loc *time.Location) (time.Time, error) {
	hh, mm, err := timeutil.ParseClock(a.StartTime)
	if err != nil {
		return time.Time{}, err
	}
	d := a.AppointmentDate
	return time.Date(d.Year(), d.Month(), d.Day(), hh, mm, 0, 0, loc), nil
}

// EndAt is StartAt plus the snapshotted length.
func (a *Appointment) EndAt(loc *time.Location) (time.Time, error) {
	start, err := a.StartAt(loc)
	if err != nil {
		return time.Time{}, err
	}
	return start.Add(time.Duration(a.LengthMinutes) * time.Minute), nil
}

// EffectiveAttendees defaults to 1 for rows written before group
// bookings existed.
func (a *Appointment) EffectiveAttendees() int {
	if a.Attendees < 1 {
		return 1
	}
	return a.Attendees
}

// TimeSlot is one bookable window offered to the customer.
type TimeSlot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type CreateAppointmentRequest struct {
	BusinessID string `json:"business_id" binding:"required,uuid"`
	ServiceID  string `json:"service_id" binding:"required,uuid"`
	StaffID    string `json:"staff_id" binding:"omitempty,uuid"`
	Date       string `json:"date" binding:"required"`
	StartTime  string `json:"start_time" binding:"required,clocktime"`
	Attendees  int    `json:"attendees" binding:"gte=0,lte=100"`
	GuestName  string `json:"guest_name" binding:"required,max=255"`
	GuestEmail string `json:"guest_email" binding:"required,email"`
	GuestPhone string `json:"guest_phone" binding:"max=32"`
	Notes      string `json:"notes" binding:"max=1000"`
}

type RescheduleAppointmentRequest struct {
	Date      string `json:"date" binding:"required"`
	StartTime string `json:"start_time" binding:"required,clocktime"`

	// Must be set when the reschedule lands inside the forfeiture window.
	AcknowledgeForfeit bool `json:"acknowledge_forfeit"`
}

type AppointmentFilters struct {
	BusinessID uuid.UUID
	StaffID    *uuid.UUID
	Status     AppointmentStatus
	DateFrom   time.Time
	DateTo     time.Time
}

// BookingResult is what a booking request returns: the appointment plus,
// when a deposit is owed, the payment redirect URL.
type BookingResult struct {
	Appointment     *Appointment `json:"appointment"`
	PaymentRequired bool         `json:"payment_required"`
	PaymentURL      string       `json:"payment_url,omitempty"`
	ActionToken     string       `json:"action_token"`
}
