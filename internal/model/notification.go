package model

import (
	"time"

	"github.com/google/uuid"
)

type NotificationChannel string

const (
	NotificationChannelEmail NotificationChannel = "email"
	NotificationChannelPush  NotificationChannel = "push"
)

type NotificationStatus string

const (
	NotificationStatusPending NotificationStatus = "pending"
	NotificationStatusSent    NotificationStatus = "sent"
	NotificationStatusFailed  NotificationStatus = "failed"
)

// Notification records every customer- or owner-facing message the
// platform attempted, for the owner dashboard and for debugging
// delivery problems. Failures never block the triggering operation.
type Notification struct {
	ID            uuid.UUID           `db:"id" json:"id"`
	BusinessID    uuid.UUID           `db:"business_id" json:"business_id"`
	AppointmentID *uuid.UUID          `db:"appointment_id" json:"appointment_id,omitempty"`
	Channel       NotificationChannel `db:"channel" json:"channel"`
	Recipient     string              `db:"recipient" json:"recipient"`
	Subject       string              `db:"subject" json:"subject"`
	Body          string              `db:"body" json:"body"`
	Status        NotificationStatus  `db:"status" json:"status"`
	LastError     string              `db:"last_error" json:"last_error,omitempty"`
	SentAt        *time.Time          `db:"sent_at" json:"sent_at,omitempty"`
	CreatedAt     time.Time           `db:"created_at" json:"created_at"`
}
