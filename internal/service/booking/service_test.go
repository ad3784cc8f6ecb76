package booking

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmebooked/booking-api/internal/email"
	"github.com/getmebooked/booking-api/internal/model"
	"github.com/getmebooked/booking-api/internal/payment"
	"github.com/getmebooked/booking-api/internal/repository/repositorytest"
	"github.com/getmebooked/booking-api/internal/service/availability"
	"github.com/getmebooked/booking-api/internal/service/deposit"
	"github.com/getmebooked/booking-api/internal/service/event"
	"github.com/getmebooked/booking-api/internal/service/notification"
	"github.com/getmebooked/booking-api/pkg/clock"
	apperrors "github.com/getmebooked/booking-api/pkg/errors"
	"github.com/getmebooked/booking-api/pkg/logger"
	"github.com/getmebooked/booking-api/pkg/token"
)

type emailLog struct {
	sent []string
}

func (e *emailLog) record(kind, to string) error {
	e.sent = append(e.sent, kind+":"+to)
	return nil
}

func (e *emailLog) SendBookingReceived(_ context.Context, to, _, _, _, _ string) error {
	return e.record("received", to)
}
func (e *emailLog) SendDepositRequest(_ context.Context, to, _, _, _ string, _ float64, _ string) error {
	return e.record("deposit", to)
}
func (e *emailLog) SendConfirmation(_ context.Context, to, _, _, _, _ string) error {
	return e.record("confirmed", to)
}
func (e *emailLog) SendDeclined(_ context.Context, to, _, _, _ string) error {
	return e.record("declined", to)
}
func (e *emailLog) SendCancellation(_ context.Context, to, _, _, _ string) error {
	return e.record("cancelled", to)
}
func (e *emailLog) SendReminder(_ context.Context, to, _, _, _, _ string) error {
	return e.record("reminder", to)
}
func (e *emailLog) SendOwnerNewBooking(_ context.Context, to, _, _, _ string) error {
	return e.record("owner_new", to)
}
func (e *emailLog) SendOwnerDepositPaid(_ context.Context, to, _, _, _ string, _ float64) error {
	return e.record("owner_paid", to)
}
func (e *emailLog) SendCustom(_ context.Context, to, _, _ string) error {
	return e.record("custom", to)
}

var _ email.Service = (*emailLog)(nil)

type fixture struct {
	svc          *Service
	appointments *repositorytest.AppointmentRepo
	businesses   *repositorytest.BusinessRepo
	services     *repositorytest.ServiceRepo
	clients      *repositorytest.ClientRepo
	outbox       *repositorytest.OutboxRepo
	emails       *emailLog
	clock        *clock.Fake

	business *model.Business
	offering *model.Service
}

var (
	testDay = "2025-06-02" // a Monday
	testNow = time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
)

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		appointments: repositorytest.NewAppointmentRepo(),
		businesses:   repositorytest.NewBusinessRepo(),
		services:     repositorytest.NewServiceRepo(),
		clients:      repositorytest.NewClientRepo(),
		outbox:       repositorytest.NewOutboxRepo(),
		emails:       &emailLog{},
		clock:        clock.NewFake(testNow),
	}
	staffRepo := repositorytest.NewStaffRepo()
	notifRepo := repositorytest.NewNotificationRepo()

	l := logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: io.Discard})
	availabilitySvc := availability.NewService(f.businesses, staffRepo, f.services, f.appointments, f.clock, nil)
	depositSvc := deposit.NewService(f.clients, nil)
	notifier := notification.NewService(notifRepo, f.emails, nil, l)
	events := event.NewService(f.outbox, l)
	gateway := payment.New(payment.Config{Sandbox: true, Passphrase: "secret"})
	tokens := token.NewService("test-signing-key")

	f.svc = NewService(
		f.businesses, staffRepo, f.services, f.clients, f.appointments,
		availabilitySvc, depositSvc, notifier, events, gateway, tokens,
		f.clock, nil, l, Config{PublicBaseURL: "https://book.example.com"})

	f.business = &model.Business{
		OwnerEmail:            "owner@example.com",
		Name:                  "Shear Genius",
		Slug:                  "shear-genius",
		RescheduleWindowHours: 24,
	}
	require.NoError(t, f.businesses.Create(context.Background(), f.business))
	require.NoError(t, f.businesses.SetOperatingHours(context.Background(), &model.OperatingHours{
		BusinessID: f.business.ID,
		DayBucket:  model.DayBucketMonFri,
		OpenTime:   "09:00",
		CloseTime:  "17:00",
	}))

	f.offering = &model.Service{
		BusinessID:           f.business.ID,
		Name:                 "Haircut",
		DefaultLengthMinutes: 60,
		Price:                300,
	}
	require.NoError(t, f.services.Create(context.Background(), f.offering))
	return f
}

func (f *fixture) enableDeposits() {
	f.business.DepositEnabled = true
	f.business.DepositType = model.DepositTypePercentage
	f.business.DepositPercentage = 50
	f.business.MerchantID = "10000100"
	f.business.MerchantKey = "46f0cd694581a"
}

func (f *fixture) bookRequest() *model.CreateAppointmentRequest {
	return &model.CreateAppointmentRequest{
		BusinessID: f.business.ID.String(),
		ServiceID:  f.offering.ID.String(),
		Date:       testDay,
		StartTime:  "10:00",
		GuestName:  "Naledi M",
		GuestEmail: "naledi@example.com",
	}
}

func TestBookWithoutDepositStartsPending(t *testing.T) {
	f := newFixture(t)

	result, err := f.svc.Book(context.Background(), f.bookRequest())
	require.NoError(t, err)

	assert.Equal(t, model.AppointmentStatusPending, result.Appointment.Status)
	assert.False(t, result.PaymentRequired)
	assert.NotEmpty(t, result.ActionToken)
	assert.Equal(t, 60, result.Appointment.LengthMinutes)
	assert.Equal(t, 1, result.Appointment.Attendees)

	// Guest acknowledgement plus owner alert, and a booked event.
	assert.Contains(t, f.emails.sent, "received:naledi@example.com")
	assert.Contains(t, f.emails.sent, "owner_new:owner@example.com")
	require.Len(t, f.outbox.Events, 1)
	assert.Equal(t, model.EventAppointmentBooked, f.outbox.Events[0].EventType)
}

func TestBookWithDepositReturnsPaymentURL(t *testing.T) {
	f := newFixture(t)
	f.enableDeposits()

	result, err := f.svc.Book(context.Background(), f.bookRequest())
	require.NoError(t, err)

	assert.Equal(t, model.AppointmentStatusPending, result.Appointment.Status)
	assert.True(t, result.PaymentRequired)
	assert.Contains(t, result.PaymentURL, "sandbox.payfast.co.za")
	assert.Equal(t, 150.0, result.Appointment.AmountToPay)
	assert.Contains(t, f.emails.sent, "deposit:naledi@example.com")
}

func TestBookExemptClientConfirmsImmediately(t *testing.T) {
	f := newFixture(t)
	f.enableDeposits()

	profile := &model.ClientProfile{BusinessID: f.business.ID, Email: "naledi@example.com"}
	require.NoError(t, f.clients.Upsert(context.Background(), profile))
	require.NoError(t, f.clients.SetDepositExempt(context.Background(), profile.ID, true))

	result, err := f.svc.Book(context.Background(), f.bookRequest())
	require.NoError(t, err)

	assert.Equal(t, model.AppointmentStatusConfirmed, result.Appointment.Status)
	assert.False(t, result.PaymentRequired)
	assert.Zero(t, result.Appointment.AmountToPay)
	assert.Contains(t, f.emails.sent, "confirmed:naledi@example.com")
}

func TestBookTakenSlotFails(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Book(context.Background(), f.bookRequest())
	require.NoError(t, err)

	req := f.bookRequest()
	req.GuestEmail = "other@example.com"
	_, err = f.svc.Book(context.Background(), req)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrSlotUnavailable))
}

func TestBookClosedDayFails(t *testing.T) {
	f := newFixture(t)

	req := f.bookRequest()
	req.Date = "2025-06-01" // Sunday, no hours configured
	_, err := f.svc.Book(context.Background(), req)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrBusinessClosed))
}

func TestBookPastSlotFails(t *testing.T) {
	f := newFixture(t)
	f.clock.Current = time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)

	_, err := f.svc.Book(context.Background(), f.bookRequest())
	require.Error(t, err)
}

func TestBookOverCapacityFails(t *testing.T) {
	f := newFixture(t)
	f.offering.Capacity = 3

	req := f.bookRequest()
	req.Attendees = 4
	_, err := f.svc.Book(context.Background(), req)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrSlotUnavailable))
}

func TestConfirmPendingAppointment(t *testing.T) {
	f := newFixture(t)
	result, err := f.svc.Book(context.Background(), f.bookRequest())
	require.NoError(t, err)

	appt, err := f.svc.Confirm(context.Background(), result.Appointment.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusConfirmed, appt.Status)
	assert.Contains(t, f.emails.sent, "confirmed:naledi@example.com")

	// Confirming twice is rejected.
	_, err = f.svc.Confirm(context.Background(), appt.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidTransition))
}

func TestDeclinePendingAppointment(t *testing.T) {
	f := newFixture(t)
	result, err := f.svc.Book(context.Background(), f.bookRequest())
	require.NoError(t, err)

	appt, err := f.svc.Decline(context.Background(), result.Appointment.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusDeclined, appt.Status)
	assert.Contains(t, f.emails.sent, "declined:naledi@example.com")
}

func TestCompleteRequiresConfirmed(t *testing.T) {
	f := newFixture(t)
	result, err := f.svc.Book(context.Background(), f.bookRequest())
	require.NoError(t, err)

	_, err = f.svc.Complete(context.Background(), result.Appointment.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidTransition))

	_, err = f.svc.Confirm(context.Background(), result.Appointment.ID)
	require.NoError(t, err)
	appt, err := f.svc.Complete(context.Background(), result.Appointment.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCompleted, appt.Status)
}

func TestCancelReleasesSlot(t *testing.T) {
	f := newFixture(t)
	result, err := f.svc.Book(context.Background(), f.bookRequest())
	require.NoError(t, err)

	_, err = f.svc.Cancel(context.Background(), result.Appointment.ID)
	require.NoError(t, err)
	assert.Contains(t, f.emails.sent, "cancelled:naledi@example.com")

	// Slot is free again.
	req := f.bookRequest()
	req.GuestEmail = "other@example.com"
	_, err = f.svc.Book(context.Background(), req)
	assert.NoError(t, err)

	// Cancelled is terminal.
	_, err = f.svc.Cancel(context.Background(), result.Appointment.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidTransition))
}

func TestEarlyRescheduleMutatesInPlace(t *testing.T) {
	f := newFixture(t)
	result, err := f.svc.Book(context.Background(), f.bookRequest())
	require.NoError(t, err)
	_, err = f.svc.Confirm(context.Background(), result.Appointment.ID)
	require.NoError(t, err)

	moved, err := f.svc.Reschedule(context.Background(), result.Appointment.ID, &model.RescheduleAppointmentRequest{
		Date:      "2025-06-03",
		StartTime: "14:00",
	})
	require.NoError(t, err)

	assert.Equal(t, result.Appointment.ID, moved.Appointment.ID)
	assert.Equal(t, model.AppointmentStatusPending, moved.Appointment.Status)
	assert.Equal(t, "14:00", moved.Appointment.StartTime)
	assert.Equal(t, "2025-06-03", moved.Appointment.AppointmentDate.Format("2006-01-02"))
}

func TestRescheduleToOwnSlotSucceeds(t *testing.T) {
	f := newFixture(t)
	result, err := f.svc.Book(context.Background(), f.bookRequest())
	require.NoError(t, err)
	_, err = f.svc.Confirm(context.Background(), result.Appointment.ID)
	require.NoError(t, err)

	// Same day, same time: the appointment must not conflict with itself.
	moved, err := f.svc.Reschedule(context.Background(), result.Appointment.ID, &model.RescheduleAppointmentRequest{
		Date:      testDay,
		StartTime: "10:00",
	})
	require.NoError(t, err)
	assert.Equal(t, result.Appointment.ID, moved.Appointment.ID)
}

func TestLateRescheduleNeedsForfeitAcknowledgement(t *testing.T) {
	f := newFixture(t)
	f.enableDeposits()
	result, err := f.svc.Book(context.Background(), f.bookRequest())
	require.NoError(t, err)
	require.NoError(t, f.svc.HandlePaymentComplete(context.Background(), result.Appointment.ID, "pf-1"))

	// Move the clock inside the 24h reschedule window.
	f.clock.Current = time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

	_, err = f.svc.Reschedule(context.Background(), result.Appointment.ID, &model.RescheduleAppointmentRequest{
		Date:      "2025-06-03",
		StartTime: "14:00",
	})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrDepositRequired))

	moved, err := f.svc.Reschedule(context.Background(), result.Appointment.ID, &model.RescheduleAppointmentRequest{
		Date:               "2025-06-03",
		StartTime:          "14:00",
		AcknowledgeForfeit: true,
	})
	require.NoError(t, err)

	// A fresh appointment was created; the original is cancelled and
	// annotated.
	assert.NotEqual(t, result.Appointment.ID, moved.Appointment.ID)
	assert.True(t, moved.PaymentRequired)

	original, err := f.svc.Get(context.Background(), result.Appointment.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCancelled, original.Status)
	assert.Contains(t, original.Notes, "deposit forfeited")
}

func TestLateRescheduleAppliesWithoutPaidDeposit(t *testing.T) {
	f := newFixture(t)
	result, err := f.svc.Book(context.Background(), f.bookRequest())
	require.NoError(t, err)
	_, err = f.svc.Confirm(context.Background(), result.Appointment.ID)
	require.NoError(t, err)

	// Inside the 24h window. Lateness is about timing, not about
	// whether a deposit was ever collected.
	f.clock.Current = time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

	_, err = f.svc.Reschedule(context.Background(), result.Appointment.ID, &model.RescheduleAppointmentRequest{
		Date:      "2025-06-03",
		StartTime: "14:00",
	})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrDepositRequired))

	moved, err := f.svc.Reschedule(context.Background(), result.Appointment.ID, &model.RescheduleAppointmentRequest{
		Date:               "2025-06-03",
		StartTime:          "14:00",
		AcknowledgeForfeit: true,
	})
	require.NoError(t, err)
	assert.NotEqual(t, result.Appointment.ID, moved.Appointment.ID)

	original, err := f.svc.Get(context.Background(), result.Appointment.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCancelled, original.Status)
}

func TestRescheduleTerminalFails(t *testing.T) {
	f := newFixture(t)
	result, err := f.svc.Book(context.Background(), f.bookRequest())
	require.NoError(t, err)
	_, err = f.svc.Cancel(context.Background(), result.Appointment.ID)
	require.NoError(t, err)

	_, err = f.svc.Reschedule(context.Background(), result.Appointment.ID, &model.RescheduleAppointmentRequest{
		Date:      "2025-06-03",
		StartTime: "14:00",
	})
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidTransition))
}

func TestPaymentCompleteConfirms(t *testing.T) {
	f := newFixture(t)
	f.enableDeposits()
	result, err := f.svc.Book(context.Background(), f.bookRequest())
	require.NoError(t, err)

	require.NoError(t, f.svc.HandlePaymentComplete(context.Background(), result.Appointment.ID, "pf-1"))

	appt, err := f.svc.Get(context.Background(), result.Appointment.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusConfirmed, appt.Status)
	assert.True(t, appt.DepositPaid)
	assert.Contains(t, f.emails.sent, "confirmed:naledi@example.com")
	assert.Contains(t, f.emails.sent, "owner_paid:owner@example.com")
}

func TestPaymentCompleteIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.enableDeposits()
	result, err := f.svc.Book(context.Background(), f.bookRequest())
	require.NoError(t, err)

	require.NoError(t, f.svc.HandlePaymentComplete(context.Background(), result.Appointment.ID, "pf-1"))
	emailsAfterFirst := len(f.emails.sent)

	// Replayed webhook: no state change, no duplicate mail.
	require.NoError(t, f.svc.HandlePaymentComplete(context.Background(), result.Appointment.ID, "pf-1"))
	assert.Len(t, f.emails.sent, emailsAfterFirst)
}

func TestLatePaymentOnRetakenSlotCancels(t *testing.T) {
	f := newFixture(t)
	f.enableDeposits()
	result, err := f.svc.Book(context.Background(), f.bookRequest())
	require.NoError(t, err)

	// The hold lapses and another guest takes the slot.
	f.clock.Advance(3 * time.Hour)
	exemptProfile := &model.ClientProfile{BusinessID: f.business.ID, Email: "fast@example.com"}
	require.NoError(t, f.clients.Upsert(context.Background(), exemptProfile))
	require.NoError(t, f.clients.SetDepositExempt(context.Background(), exemptProfile.ID, true))
	req := f.bookRequest()
	req.GuestEmail = "fast@example.com"
	winner, err := f.svc.Book(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, model.AppointmentStatusConfirmed, winner.Appointment.Status)

	// The original payer's deposit finally clears.
	require.NoError(t, f.svc.HandlePaymentComplete(context.Background(), result.Appointment.ID, "pf-2"))

	appt, err := f.svc.Get(context.Background(), result.Appointment.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCancelled, appt.Status)
	assert.True(t, appt.DepositPaid)
	assert.Contains(t, f.emails.sent, "cancelled:naledi@example.com")
}

func TestGetByToken(t *testing.T) {
	f := newFixture(t)
	result, err := f.svc.Book(context.Background(), f.bookRequest())
	require.NoError(t, err)

	appt, err := f.svc.GetByToken(context.Background(), result.ActionToken)
	require.NoError(t, err)
	assert.Equal(t, result.Appointment.ID, appt.ID)

	_, err = f.svc.GetByToken(context.Background(), "garbage")
	assert.Error(t, err)
}

func TestBookingUpsertsClientProfile(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Book(context.Background(), f.bookRequest())
	require.NoError(t, err)

	profile, err := f.clients.GetByEmail(context.Background(), f.business.ID, "naledi@example.com")
	require.NoError(t, err)
	require.NotNil(t, profile)
	assert.Equal(t, "Naledi M", profile.Name)
}

func TestRequestReschedule(t *testing.T) {
	f := newFixture(t)
	result, err := f.svc.Book(context.Background(), f.bookRequest())
	require.NoError(t, err)
	_, err = f.svc.Confirm(context.Background(), result.Appointment.ID)
	require.NoError(t, err)

	appt, err := f.svc.RequestReschedule(context.Background(), result.Appointment.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusRescheduleRequested, appt.Status)

	// The slot stays blocked while a reschedule is pending.
	req := f.bookRequest()
	req.GuestEmail = "other@example.com"
	_, err = f.svc.Book(context.Background(), req)
	assert.True(t, apperrors.Is(err, apperrors.ErrSlotUnavailable))
}
