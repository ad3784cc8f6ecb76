package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "PENDING"
	OutboxStatusProcessed OutboxStatus = "PROCESSED"
	OutboxStatusFailed    OutboxStatus = "FAILED"
)

// OutboxEvent is written in the same transaction as the state change it
// describes; a worker drains the table and publishes to the broker.
type OutboxEvent struct {
	ID           uuid.UUID         `db:"id" json:"id"`
	EventType    string            `db:"event_type" json:"event_type"`
	Payload      json.RawMessage   `db:"payload" json:"payload"`
	Headers      map[string]string `json:"headers" db:"headers"`
	Status       string            `db:"status" json:"status"`
	ErrorMessage *string           `db:"error_message" json:"error_message,omitempty"`
	CreatedAt    time.Time         `db:"created_at" json:"created_at"`
	ProcessedAt  *time.Time        `db:"processed_at" json:"processed_at,omitempty"`
	UpdatedAt    time.Time         `db:"updated_at" json:"updated_at"`
	RetryCount   int               `db:"retry_count" json:"retry_count"`
	RetryAt      *time.Time        `db:"retry_at" json:"retry_at,omitempty"`
}

// Appointment lifecycle event types carried through the outbox.
const (
	EventAppointmentBooked      = "appointment.booked"
	EventAppointmentConfirmed   = "appointment.confirmed"
	EventAppointmentDeclined    = "appointment.declined"
	EventAppointmentCancelled   = "appointment.cancelled"
	EventAppointmentCompleted   = "appointment.completed"
	EventAppointmentRescheduled = "appointment.rescheduled"
	EventDepositPaid            = "appointment.deposit_paid"
)
