package email

import (
	"context"
)

// Service sends customer- and owner-facing mail. Implementations must
// be safe for concurrent use; callers treat failures as non-fatal.
type Service interface {
	SendBookingReceived(ctx context.Context, to, guestName, businessName, when, manageURL string) error
	SendDepositRequest(ctx context.Context, to, guestName, businessName, when string, amount float64, paymentURL string) error
	SendConfirmation(ctx context.Context, to, guestName, businessName, when, manageURL string) error
	SendDeclined(ctx context.Context, to, guestName, businessName, when string) error
	SendCancellation(ctx context.Context, to, guestName, businessName, when string) error
	SendReminder(ctx context.Context, to, guestName, businessName, when, lead string) error
	SendOwnerNewBooking(ctx context.Context, to, businessName, guestName, when string) error
	SendOwnerDepositPaid(ctx context.Context, to, businessName, guestName, when string, amount float64) error
	SendCustom(ctx context.Context, to, subject, content string) error
}
