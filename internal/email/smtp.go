package email

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/getmebooked/booking-api/pkg/logger"
)

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type smtpService struct {
	cfg    SMTPConfig
	dialer *gomail.Dialer
	logger *logger.Logger
}

func NewSMTPService(cfg SMTPConfig, l *logger.Logger) Service {
	return &smtpService{
		cfg:    cfg,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		logger: l,
	}
}

func (s *smtpService) send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m := gomail.NewMessage()
	m.SetHeader("From", s.cfg.From)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		s.logger.Error(err, "failed to send email", "to", to)
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

func (s *smtpService) SendBookingReceived(ctx context.Context, to, guestName, businessName, when, manageURL string) error {
	body := fmt.Sprintf(
		"Hi %s,\n\nWe received your booking request at %s for %s.\n"+
			"You'll get another email once the booking is confirmed.\n\n"+
			"Manage your booking: %s\n",
		guestName, businessName, when, manageURL)
	return s.send(ctx, to, fmt.Sprintf("Booking request received - %s", businessName), body)
}

func (s *smtpService) SendDepositRequest(ctx context.Context, to, guestName, businessName, when string, amount float64, paymentURL string) error {
	body := fmt.Sprintf(
		"Hi %s,\n\nYour booking at %s for %s needs a deposit of R%.2f to be secured.\n"+
			"Pay here: %s\n\nUnpaid bookings are released after two hours.\n",
		guestName, businessName, when, amount, paymentURL)
	return s.send(ctx, to, fmt.Sprintf("Deposit required - %s", businessName), body)
}

func (s *smtpService) SendConfirmation(ctx context.Context, to, guestName, businessName, when, manageURL string) error {
	body := fmt.Sprintf(
		"Hi %s,\n\nYour booking at %s for %s is confirmed.\n\n"+
			"Need to change it? %s\n",
		guestName, businessName, when, manageURL)
	return s.send(ctx, to, fmt.Sprintf("Booking confirmed - %s", businessName), body)
}

func (s *smtpService) SendDeclined(ctx context.Context, to, guestName, businessName, when string) error {
	body := fmt.Sprintf(
		"Hi %s,\n\nUnfortunately %s could not accept your booking for %s.\n"+
			"Feel free to pick another time.\n",
		guestName, businessName, when)
	return s.send(ctx, to, fmt.Sprintf("Booking declined - %s", businessName), body)
}

func (s *smtpService) SendCancellation(ctx context.Context, to, guestName, businessName, when string) error {
	body := fmt.Sprintf(
		"Hi %s,\n\nYour booking at %s for %s has been cancelled.\n",
		guestName, businessName, when)
	return s.send(ctx, to, fmt.Sprintf("Booking cancelled - %s", businessName), body)
}

func (s *smtpService) SendReminder(ctx context.Context, to, guestName, businessName, when, lead string) error {
	body := fmt.Sprintf(
		"Hi %s,\n\nReminder: your booking at %s is coming up in %s, on %s.\n",
		guestName, businessName, lead, when)
	return s.send(ctx, to, fmt.Sprintf("Upcoming booking - %s", businessName), body)
}

func (s *smtpService) SendOwnerNewBooking(ctx context.Context, to, businessName, guestName, when string) error {
	body := fmt.Sprintf(
		"New booking request at %s:\n\n%s for %s.\n\nConfirm or decline it from your dashboard.\n",
		businessName, guestName, when)
	return s.send(ctx, to, "New booking request", body)
}

func (s *smtpService) SendOwnerDepositPaid(ctx context.Context, to, businessName, guestName, when string, amount float64) error {
	body := fmt.Sprintf(
		"%s paid a deposit of R%.2f for their booking at %s on %s. The booking is now confirmed.\n",
		guestName, amount, businessName, when)
	return s.send(ctx, to, "Deposit paid", body)
}

func (s *smtpService) SendCustom(ctx context.Context, to, subject, content string) error {
	return s.send(ctx, to, subject, content)
}
