package scheduler

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmebooked/booking-api/internal/email"
	"github.com/getmebooked/booking-api/internal/model"
	"github.com/getmebooked/booking-api/internal/repository/repositorytest"
	"github.com/getmebooked/booking-api/internal/service/event"
	"github.com/getmebooked/booking-api/internal/service/notification"
	"github.com/getmebooked/booking-api/pkg/clock"
	"github.com/getmebooked/booking-api/pkg/logger"
)

type reminderLog struct {
	email.Service
	reminders []string
	cancelled []string
}

func (r *reminderLog) SendReminder(_ context.Context, to, _, _, _, lead string) error {
	r.reminders = append(r.reminders, to+":"+lead)
	return nil
}

func (r *reminderLog) SendCancellation(_ context.Context, to, _, _, _ string) error {
	r.cancelled = append(r.cancelled, to)
	return nil
}

type fixture struct {
	sweeper      *Sweeper
	appointments *repositorytest.AppointmentRepo
	outbox       *repositorytest.OutboxRepo
	emails       *reminderLog
	clock        *clock.Fake
	business     *model.Business
}

var testNow = time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		appointments: repositorytest.NewAppointmentRepo(),
		outbox:       repositorytest.NewOutboxRepo(),
		emails:       &reminderLog{},
		clock:        clock.NewFake(testNow),
	}
	businesses := repositorytest.NewBusinessRepo()
	l := logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: io.Discard})
	notifier := notification.NewService(repositorytest.NewNotificationRepo(), f.emails, nil, l)
	events := event.NewService(f.outbox, l)

	f.business = &model.Business{OwnerEmail: "owner@example.com", Name: "Shear Genius"}
	require.NoError(t, businesses.Create(context.Background(), f.business))

	f.sweeper = NewSweeper(f.appointments, businesses, notifier, events, f.clock, nil, l, time.Minute)
	return f
}

func (f *fixture) addAppointment(t *testing.T, date time.Time, start string, status model.AppointmentStatus) *model.Appointment {
	t.Helper()
	appt := &model.Appointment{
		Base:            model.Base{CreatedAt: f.clock.Now()},
		BusinessID:      f.business.ID,
		ServiceID:       f.business.ID, // only identity matters here
		AppointmentDate: date,
		StartTime:       start,
		LengthMinutes:   60,
		Status:          status,
		GuestName:       "Naledi",
		GuestEmail:      "naledi@example.com",
	}
	require.NoError(t, f.appointments.Create(context.Background(), appt))
	return appt
}

func TestSends24hReminderOnce(t *testing.T) {
	f := newFixture(t)
	day := time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC)
	appt := f.addAppointment(t, day, "07:30", model.AppointmentStatusConfirmed)

	f.sweeper.RunOnce(context.Background())
	assert.Equal(t, []string{"naledi@example.com:24 hours"}, f.emails.reminders)

	stored, err := f.appointments.Get(context.Background(), appt.ID)
	require.NoError(t, err)
	assert.True(t, stored.Reminder24hSent)

	// Second sweep finds the claim already taken.
	f.sweeper.RunOnce(context.Background())
	assert.Len(t, f.emails.reminders, 1)
}

func TestInsideTwoHourWindowSendsOnlyTheTwoHourReminder(t *testing.T) {
	f := newFixture(t)
	day := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	appt := f.addAppointment(t, day, "09:30", model.AppointmentStatusConfirmed)

	f.sweeper.RunOnce(context.Background())

	// 1.5 hours out: the 24h reminder's moment has passed, so a single
	// sweep must not send both.
	assert.Equal(t, []string{"naledi@example.com:2 hours"}, f.emails.reminders)

	stored, err := f.appointments.Get(context.Background(), appt.ID)
	require.NoError(t, err)
	assert.False(t, stored.Reminder24hSent)
	assert.True(t, stored.Reminder2hSent)
}

func TestNoReminderForPending(t *testing.T) {
	f := newFixture(t)
	day := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	f.addAppointment(t, day, "09:30", model.AppointmentStatusPending)

	f.sweeper.RunOnce(context.Background())
	assert.Empty(t, f.emails.reminders)
}

func TestAutoCompletesAfterGrace(t *testing.T) {
	f := newFixture(t)
	day := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	finished := f.addAppointment(t, day, "04:00", model.AppointmentStatusConfirmed) // ended 05:00
	recent := f.addAppointment(t, day, "06:30", model.AppointmentStatusConfirmed)   // ended 07:30

	f.sweeper.RunOnce(context.Background())

	stored, err := f.appointments.Get(context.Background(), finished.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCompleted, stored.Status)

	stored, err = f.appointments.Get(context.Background(), recent.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusConfirmed, stored.Status)

	require.NotEmpty(t, f.outbox.Events)
	assert.Equal(t, model.EventAppointmentCompleted, f.outbox.Events[0].EventType)
}

func TestCleansUpExpiredUnpaidHolds(t *testing.T) {
	f := newFixture(t)
	day := time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC)

	stale := f.addAppointment(t, day, "10:00", model.AppointmentStatusPending)
	stale.AmountToPay = 150
	stale.CreatedAt = testNow.Add(-3 * time.Hour)
	require.NoError(t, f.appointments.Update(context.Background(), stale))

	fresh := f.addAppointment(t, day, "12:00", model.AppointmentStatusPending)
	fresh.AmountToPay = 150
	require.NoError(t, f.appointments.Update(context.Background(), fresh))

	// Pending without a deposit owed is the owner's to decline, not the
	// sweep's to cancel.
	unpaid := f.addAppointment(t, day, "14:00", model.AppointmentStatusPending)
	unpaid.CreatedAt = testNow.Add(-3 * time.Hour)
	require.NoError(t, f.appointments.Update(context.Background(), unpaid))

	f.sweeper.RunOnce(context.Background())

	stored, err := f.appointments.Get(context.Background(), stale.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCancelled, stored.Status)
	assert.Contains(t, f.emails.cancelled, "naledi@example.com")

	stored, err = f.appointments.Get(context.Background(), fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusPending, stored.Status)

	stored, err = f.appointments.Get(context.Background(), unpaid.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusPending, stored.Status)
}
