// Package scheduler runs the periodic sweep over appointments:
// reminders, auto-completion, and cleanup of unpaid holds.
package scheduler

import (
	"context"
	"time"

	"github.com/getmebooked/booking-api/internal/model"
	"github.com/getmebooked/booking-api/internal/repository"
	"github.com/getmebooked/booking-api/internal/service/event"
	"github.com/getmebooked/booking-api/internal/service/notification"
	"github.com/getmebooked/booking-api/pkg/clock"
	"github.com/getmebooked/booking-api/pkg/logger"
	"github.com/getmebooked/booking-api/pkg/metrics"
)

// AutoCompleteGrace is how long after an appointment's end the sweep
// waits before marking it completed.
const AutoCompleteGrace = 2 * time.Hour

type Sweeper struct {
	appointmentRepo repository.AppointmentRepository
	businessRepo    repository.BusinessRepository
	notifier        *notification.Service
	events          *event.Service
	clock           clock.Clock
	metrics         *metrics.Metrics
	logger          *logger.Logger
	interval        time.Duration
}

func NewSweeper(
	appointmentRepo repository.AppointmentRepository,
	businessRepo repository.BusinessRepository,
	notifier *notification.Service,
	events *event.Service,
	clk clock.Clock,
	m *metrics.Metrics,
	l *logger.Logger,
	interval time.Duration,
) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{
		appointmentRepo: appointmentRepo,
		businessRepo:    businessRepo,
		notifier:        notifier,
		events:          events,
		clock:           clk,
		metrics:         m,
		logger:          l,
		interval:        interval,
	}
}

// Start blocks, sweeping on the configured interval until the context
// is cancelled.
func (s *Sweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("scheduler sweeper started", "interval", s.interval.String())
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler sweeper stopped")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce executes a single sweep. Each phase handles its rows
// independently: one bad appointment is logged and skipped, never
// aborting the rest of the sweep.
func (s *Sweeper) RunOnce(ctx context.Context) {
	started := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.SweepDuration.Observe(time.Since(started).Seconds())
		}
	}()

	s.sendReminders(ctx, "24h")
	s.sendReminders(ctx, "2h")
	s.autoComplete(ctx)
	s.cleanupExpiredHolds(ctx)
}

// sendReminders claims and sends one reminder kind. The claim is a
// conditional update: overlapping sweeps race on it and only the winner
// sends, so a guest never gets the same reminder twice.
func (s *Sweeper) sendReminders(ctx context.Context, kind string) {
	now := s.clock.Now()

	var (
		due []*model.Appointment
		err error
	)
	if kind == "24h" {
		due, err = s.appointmentRepo.ListDue24hReminders(ctx, now)
	} else {
		due, err = s.appointmentRepo.ListDue2hReminders(ctx, now)
	}
	if err != nil {
		s.logger.Error(err, "failed to list due reminders", "kind", kind)
		return
	}

	for _, appt := range due {
		var claimed bool
		if kind == "24h" {
			claimed, err = s.appointmentRepo.Claim24hReminder(ctx, appt.ID)
		} else {
			claimed, err = s.appointmentRepo.Claim2hReminder(ctx, appt.ID)
		}
		if err != nil {
			s.itemFailed(err, "failed to claim reminder", appt)
			continue
		}
		if !claimed {
			continue
		}

		business, err := s.businessRepo.Get(ctx, appt.BusinessID)
		if err != nil {
			s.itemFailed(err, "failed to load business for reminder", appt)
			continue
		}

		lead := "24 hours"
		if kind == "2h" {
			lead = "2 hours"
		}
		s.notifier.Reminder(ctx, business, appt, lead)
		if s.metrics != nil {
			s.metrics.RemindersSent.WithLabelValues(kind).Inc()
		}
	}
}

// autoComplete closes out confirmed appointments whose end passed long
// enough ago that a no-show dispute is unlikely.
func (s *Sweeper) autoComplete(ctx context.Context) {
	cutoff := s.clock.Now().Add(-AutoCompleteGrace)
	due, err := s.appointmentRepo.ListForAutoCompletion(ctx, cutoff)
	if err != nil {
		s.logger.Error(err, "failed to list appointments for auto-completion")
		return
	}

	for _, appt := range due {
		ok, err := s.appointmentRepo.UpdateStatusFrom(
			ctx, appt.ID, model.AppointmentStatusConfirmed, model.AppointmentStatusCompleted)
		if err != nil {
			s.itemFailed(err, "failed to auto-complete appointment", appt)
			continue
		}
		if !ok {
			continue
		}
		appt.Status = model.AppointmentStatusCompleted
		s.events.EmitAppointment(ctx, model.EventAppointmentCompleted, appt)
		if s.metrics != nil {
			s.metrics.AutoCompletions.Inc()
		}
	}
}

// cleanupExpiredHolds cancels pending appointments whose deposit never
// arrived within the hold window. The availability engine already
// stopped counting them; this makes the ledger match.
func (s *Sweeper) cleanupExpiredHolds(ctx context.Context) {
	cutoff := s.clock.Now().Add(-model.PendingHoldWindow)
	expired, err := s.appointmentRepo.ListExpiredPending(ctx, cutoff)
	if err != nil {
		s.logger.Error(err, "failed to list expired pending appointments")
		return
	}

	for _, appt := range expired {
		ok, err := s.appointmentRepo.UpdateStatusFrom(
			ctx, appt.ID, model.AppointmentStatusPending, model.AppointmentStatusCancelled)
		if err != nil {
			s.itemFailed(err, "failed to cancel expired pending appointment", appt)
			continue
		}
		if !ok {
			continue
		}
		appt.Status = model.AppointmentStatusCancelled
		s.events.EmitAppointment(ctx, model.EventAppointmentCancelled, appt)
		if s.metrics != nil {
			s.metrics.ExpiredCleanups.Inc()
		}

		if business, berr := s.businessRepo.Get(ctx, appt.BusinessID); berr == nil {
			s.notifier.Cancellation(ctx, business, appt)
		}
	}
}

func (s *Sweeper) itemFailed(err error, msg string, appt *model.Appointment) {
	s.logger.Error(err, msg, "appointment_id", appt.ID)
	if s.metrics != nil {
		s.metrics.SweepItemFailures.Inc()
	}
}
