package model

import (
	"github.com/google/uuid"
)

// ClientProfile tracks a customer of one business, keyed by email.
// Owners can mark trusted clients deposit-exempt: their bookings skip
// the payment step and confirm immediately.
type ClientProfile struct {
	Base
	BusinessID    uuid.UUID `db:"business_id" json:"business_id"`
	Email         string    `db:"email" json:"email"`
	Name          string    `db:"name" json:"name,omitempty"`
	Phone         string    `db:"phone" json:"phone,omitempty"`
	DepositExempt bool      `db:"deposit_exempt" json:"deposit_exempt"`
}
