package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/getmebooked/booking-api/internal/email"
	"github.com/getmebooked/booking-api/internal/model"
	"github.com/getmebooked/booking-api/internal/repository"
	"github.com/getmebooked/booking-api/pkg/logger"
	"github.com/getmebooked/booking-api/pkg/messaging"
)

// Service delivers guest and owner notifications. Every delivery is
// fire-and-forget: failures are recorded and logged, never surfaced to
// the operation that triggered them.
type Service struct {
	repo   repository.NotificationRepository
	email  email.Service
	broker messaging.Broker
	logger *logger.Logger
}

func NewService(repo repository.NotificationRepository, emailSvc email.Service, broker messaging.Broker, l *logger.Logger) *Service {
	return &Service{repo: repo, email: emailSvc, broker: broker, logger: l}
}

// When renders an appointment's date and start for message bodies.
func When(appt *model.Appointment) string {
	return fmt.Sprintf("%s at %s", appt.AppointmentDate.Format("Mon 2 Jan 2006"), appt.StartTime)
}

func (s *Service) deliver(ctx context.Context, business *model.Business, appt *model.Appointment, recipient, subject string, send func(context.Context) error) {
	record := &model.Notification{
		BusinessID: business.ID,
		Channel:    model.NotificationChannelEmail,
		Recipient:  recipient,
		Subject:    subject,
	}
	if appt != nil {
		record.AppointmentID = &appt.ID
	}
	if err := s.repo.Create(ctx, record); err != nil {
		s.logger.Error(err, "failed to record notification", "recipient", recipient)
	}

	if err := send(ctx); err != nil {
		s.logger.Error(err, "notification delivery failed", "recipient", recipient, "subject", subject)
		if record.ID != uuid.Nil {
			_ = s.repo.MarkFailed(ctx, record.ID, err.Error())
		}
		return
	}
	if record.ID != uuid.Nil {
		_ = s.repo.MarkSent(ctx, record.ID, time.Now())
	}
}

// pushOwner publishes to the push channel when the owner has a device
// registered. Broker outages are swallowed.
func (s *Service) pushOwner(ctx context.Context, business *model.Business, title, body string) {
	if s.broker == nil || business.OwnerPushID == "" {
		return
	}
	msg := map[string]string{
		"push_id": business.OwnerPushID,
		"title":   title,
		"body":    body,
	}
	if err := s.broker.Publish(ctx, messaging.ChannelPush, msg); err != nil {
		s.logger.Error(err, "failed to publish push notification", "business_id", business.ID)
	}
}

func (s *Service) BookingReceived(ctx context.Context, business *model.Business, appt *model.Appointment, manageURL string) {
	s.deliver(ctx, business, appt, appt.GuestEmail, "booking received", func(ctx context.Context) error {
		return s.email.SendBookingReceived(ctx, appt.GuestEmail, appt.GuestName, business.Name, When(appt), manageURL)
	})
	s.OwnerNewBooking(ctx, business, appt)
}

func (s *Service) DepositRequest(ctx context.Context, business *model.Business, appt *model.Appointment, paymentURL string) {
	s.deliver(ctx, business, appt, appt.GuestEmail, "deposit request", func(ctx context.Context) error {
		return s.email.SendDepositRequest(ctx, appt.GuestEmail, appt.GuestName, business.Name, When(appt), appt.AmountToPay, paymentURL)
	})
}

func (s *Service) Confirmation(ctx context.Context, business *model.Business, appt *model.Appointment, manageURL string) {
	s.deliver(ctx, business, appt, appt.GuestEmail, "booking confirmed", func(ctx context.Context) error {
		return s.email.SendConfirmation(ctx, appt.GuestEmail, appt.GuestName, business.Name, When(appt), manageURL)
	})
}

func (s *Service) Declined(ctx context.Context, business *model.Business, appt *model.Appointment) {
	s.deliver(ctx, business, appt, appt.GuestEmail, "booking declined", func(ctx context.Context) error {
		return s.email.SendDeclined(ctx, appt.GuestEmail, appt.GuestName, business.Name, When(appt))
	})
}

func (s *Service) Cancellation(ctx context.Context, business *model.Business, appt *model.Appointment) {
	s.deliver(ctx, business, appt, appt.GuestEmail, "booking cancelled", func(ctx context.Context) error {
		return s.email.SendCancellation(ctx, appt.GuestEmail, appt.GuestName, business.Name, When(appt))
	})
}

func (s *Service) Reminder(ctx context.Context, business *model.Business, appt *model.Appointment, lead string) {
	s.deliver(ctx, business, appt, appt.GuestEmail, "booking reminder", func(ctx context.Context) error {
		return s.email.SendReminder(ctx, appt.GuestEmail, appt.GuestName, business.Name, When(appt), lead)
	})
}

func (s *Service) OwnerNewBooking(ctx context.Context, business *model.Business, appt *model.Appointment) {
	s.deliver(ctx, business, appt, business.OwnerEmail, "new booking request", func(ctx context.Context) error {
		return s.email.SendOwnerNewBooking(ctx, business.OwnerEmail, business.Name, appt.GuestName, When(appt))
	})
	s.pushOwner(ctx, business, "New booking request",
		fmt.Sprintf("%s requested %s", appt.GuestName, When(appt)))
}

func (s *Service) OwnerDepositPaid(ctx context.Context, business *model.Business, appt *model.Appointment) {
	s.deliver(ctx, business, appt, business.OwnerEmail, "deposit paid", func(ctx context.Context) error {
		return s.email.SendOwnerDepositPaid(ctx, business.OwnerEmail, business.Name, appt.GuestName, When(appt), appt.AmountToPay)
	})
	s.pushOwner(ctx, business, "Deposit paid",
		fmt.Sprintf("%s paid R%.2f, booking confirmed", appt.GuestName, appt.AmountToPay))
}
