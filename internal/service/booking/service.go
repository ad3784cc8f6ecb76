package booking

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/getmebooked/booking-api/internal/model"
	"github.com/getmebooked/booking-api/internal/payment"
	"github.com/getmebooked/booking-api/internal/repository"
	"github.com/getmebooked/booking-api/internal/service/availability"
	"github.com/getmebooked/booking-api/internal/service/deposit"
	"github.com/getmebooked/booking-api/internal/service/event"
	"github.com/getmebooked/booking-api/internal/service/notification"
	"github.com/getmebooked/booking-api/internal/timeutil"
	"github.com/getmebooked/booking-api/pkg/clock"
	apperrors "github.com/getmebooked/booking-api/pkg/errors"
	"github.com/getmebooked/booking-api/pkg/logger"
	"github.com/getmebooked/booking-api/pkg/metrics"
	"github.com/getmebooked/booking-api/pkg/token"
)

// ActionTokenTTL bounds how long guest self-service links stay valid.
const ActionTokenTTL = 90 * 24 * time.Hour

type Service struct {
	businessRepo    repository.BusinessRepository
	staffRepo       repository.StaffRepository
	serviceRepo     repository.ServiceRepository
	clientRepo      repository.ClientRepository
	appointmentRepo repository.AppointmentRepository

	availability *availability.Service
	deposits     *deposit.Service
	notifier     *notification.Service
	events       *event.Service
	gateway      *payment.PayFast
	tokens       token.Service

	clock         clock.Clock
	metrics       *metrics.Metrics
	logger        *logger.Logger
	publicBaseURL string
}

type Config struct {
	PublicBaseURL string
}

func NewService(
	businessRepo repository.BusinessRepository,
	staffRepo repository.StaffRepository,
	serviceRepo repository.ServiceRepository,
	clientRepo repository.ClientRepository,
	appointmentRepo repository.AppointmentRepository,
	availabilitySvc *availability.Service,
	depositSvc *deposit.Service,
	notifier *notification.Service,
	events *event.Service,
	gateway *payment.PayFast,
	tokens token.Service,
	clk clock.Clock,
	m *metrics.Metrics,
	l *logger.Logger,
	cfg Config,
) *Service {
	return &Service{
		businessRepo:    businessRepo,
		staffRepo:       staffRepo,
		serviceRepo:     serviceRepo,
		clientRepo:      clientRepo,
		appointmentRepo: appointmentRepo,
		availability:    availabilitySvc,
		deposits:        depositSvc,
		notifier:        notifier,
		events:          events,
		gateway:         gateway,
		tokens:          tokens,
		clock:           clk,
		metrics:         m,
		logger:          l,
		publicBaseURL:   cfg.PublicBaseURL,
	}
}

// Book places a new appointment. The slot is verified twice: once
// before taking the lock (fast rejection) and once inside the locked
// transaction (correctness under concurrency). The appointment starts
// pending unless the guest is deposit-exempt, in which case it
// confirms immediately.
func (s *Service) Book(ctx context.Context, req *model.CreateAppointmentRequest) (*model.BookingResult, error) {
	businessID, err := uuid.Parse(req.BusinessID)
	if err != nil {
		return nil, apperrors.NewBadRequest("invalid business id", err)
	}
	serviceID, err := uuid.Parse(req.ServiceID)
	if err != nil {
		return nil, apperrors.NewBadRequest("invalid service id", err)
	}

	business, err := s.businessRepo.Get(ctx, businessID)
	if err != nil {
		return nil, apperrors.NewNotFound("business", err)
	}
	svc, err := s.serviceRepo.Get(ctx, serviceID)
	if err != nil {
		return nil, apperrors.NewNotFound("service", err)
	}
	if svc.BusinessID != business.ID {
		return nil, apperrors.NewBadRequest("service does not belong to business", nil)
	}

	var staffID *uuid.UUID
	if req.StaffID != "" {
		id, err := uuid.Parse(req.StaffID)
		if err != nil {
			return nil, apperrors.NewBadRequest("invalid staff id", err)
		}
		staff, err := s.staffRepo.Get(ctx, id)
		if err != nil {
			return nil, apperrors.NewNotFound("staff", err)
		}
		if staff.BusinessID != business.ID {
			return nil, apperrors.NewBadRequest("staff does not belong to business", nil)
		}
		staffID = &id
	}

	now := s.clock.Now()
	loc := now.Location()
	date, err := timeutil.ParseDate(req.Date, loc)
	if err != nil {
		return nil, apperrors.NewBadRequest("invalid date", err)
	}
	start, err := timeutil.CombineDateTime(date, req.StartTime, loc)
	if err != nil {
		return nil, apperrors.NewBadRequest("invalid start time", err)
	}
	if start.Before(now) {
		return nil, apperrors.NewBadRequest("cannot book in the past", nil)
	}

	attendees := req.Attendees
	if attendees < 1 {
		attendees = 1
	}
	if attendees > svc.EffectiveCapacity() {
		return nil, apperrors.SlotUnavailable(
			fmt.Sprintf("%d attendees exceed service capacity %d", attendees, svc.EffectiveCapacity()))
	}

	if err := s.availability.EnsureOpen(ctx, business, staffID, date); err != nil {
		return nil, err
	}

	assessment, err := s.deposits.Assess(ctx, business, svc, req.GuestEmail)
	if err != nil {
		return nil, err
	}

	if err := s.clientRepo.Upsert(ctx, &model.ClientProfile{
		BusinessID: business.ID,
		Email:      req.GuestEmail,
		Name:       req.GuestName,
		Phone:      req.GuestPhone,
	}); err != nil {
		s.logger.Error(err, "failed to upsert client profile", "email", req.GuestEmail)
	}

	status := model.AppointmentStatusPending
	if assessment.Exempt {
		status = model.AppointmentStatusConfirmed
	}

	appt := &model.Appointment{
		BusinessID:      business.ID,
		ServiceID:       svc.ID,
		StaffID:         staffID,
		AppointmentDate: date,
		StartTime:       req.StartTime,
		LengthMinutes:   svc.DefaultLengthMinutes,
		Attendees:       attendees,
		Status:          status,
		Notes:           req.Notes,
		GuestName:       req.GuestName,
		GuestEmail:      req.GuestEmail,
		GuestPhone:      req.GuestPhone,
		AmountToPay:     assessment.Amount,
	}
	appt.ID = uuid.New()

	actionToken, err := s.tokens.IssueAppointmentToken(appt.ID, ActionTokenTTL)
	if err != nil {
		return nil, apperrors.NewInternal(err)
	}
	appt.RescheduleToken = actionToken

	query := availability.Query{
		BusinessID: business.ID,
		ServiceID:  svc.ID,
		StaffID:    staffID,
		Date:       date,
		Attendees:  attendees,
	}
	err = s.appointmentRepo.WithSlotLock(ctx, business.ID, date, func(tx *sqlx.Tx) error {
		current, err := s.appointmentRepo.ListRelevantForDayTx(
			ctx, tx, business.ID, staffID, date, s.availability.PendingCutoff(), nil)
		if err != nil {
			return err
		}
		open, err := s.availability.SlotStillOpen(ctx, query, start, current)
		if err != nil {
			return err
		}
		if !open {
			if s.metrics != nil {
				s.metrics.BookingConflicts.Inc()
			}
			return apperrors.SlotUnavailable(req.StartTime + " on " + req.Date)
		}
		if err := s.appointmentRepo.CreateTx(ctx, tx, appt); err != nil {
			return err
		}
		return s.events.EmitTx(ctx, tx, model.EventAppointmentBooked, event.AppointmentPayload(appt))
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.BookingsCreated.Inc()
	}

	result := &model.BookingResult{
		Appointment: appt,
		ActionToken: actionToken,
	}

	switch {
	case assessment.Required():
		paymentURL, err := s.gateway.PaymentURL(business, appt,
			fmt.Sprintf("%s deposit", svc.Name), now)
		if err != nil {
			// The booking stands; the guest can retry payment via the
			// deposit email once credentials are fixed.
			s.logger.Error(err, "failed to build payment url", "appointment_id", appt.ID)
		} else {
			result.PaymentRequired = true
			result.PaymentURL = paymentURL
			s.notifier.DepositRequest(ctx, business, appt, paymentURL)
		}
	case assessment.Exempt:
		s.notifier.Confirmation(ctx, business, appt, s.manageURL(actionToken))
		s.notifier.OwnerNewBooking(ctx, business, appt)
	default:
		s.notifier.BookingReceived(ctx, business, appt, s.manageURL(actionToken))
	}

	return result, nil
}

// GetByToken resolves a guest self-service token to its appointment.
func (s *Service) GetByToken(ctx context.Context, rawToken string) (*model.Appointment, error) {
	id, err := s.tokens.ParseAppointmentToken(rawToken)
	if err != nil {
		return nil, apperrors.NewBadRequest("invalid or expired link", err)
	}
	appt, err := s.appointmentRepo.Get(ctx, id)
	if err != nil {
		return nil, apperrors.NewNotFound("appointment", err)
	}
	return appt, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	appt, err := s.appointmentRepo.Get(ctx, id)
	if err != nil {
		return nil, apperrors.NewNotFound("appointment", err)
	}
	return appt, nil
}

func (s *Service) List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	return s.appointmentRepo.List(ctx, filters)
}

// Confirm moves a pending appointment to confirmed (owner approval).
func (s *Service) Confirm(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	return s.transition(ctx, id, model.AppointmentStatusPending, model.AppointmentStatusConfirmed,
		model.EventAppointmentConfirmed, func(ctx context.Context, business *model.Business, appt *model.Appointment) {
			s.notifier.Confirmation(ctx, business, appt, s.manageURL(appt.RescheduleToken))
		})
}

// Decline rejects a pending appointment.
func (s *Service) Decline(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	return s.transition(ctx, id, model.AppointmentStatusPending, model.AppointmentStatusDeclined,
		model.EventAppointmentDeclined, func(ctx context.Context, business *model.Business, appt *model.Appointment) {
			s.notifier.Declined(ctx, business, appt)
		})
}

// Complete marks a confirmed appointment as done.
func (s *Service) Complete(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	return s.transition(ctx, id, model.AppointmentStatusConfirmed, model.AppointmentStatusCompleted,
		model.EventAppointmentCompleted, nil)
}

// RequestReschedule asks the guest to move a confirmed appointment.
// The slot stays occupied until the guest acts.
func (s *Service) RequestReschedule(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	return s.transition(ctx, id, model.AppointmentStatusConfirmed, model.AppointmentStatusRescheduleRequested,
		model.EventAppointmentRescheduled, func(ctx context.Context, business *model.Business, appt *model.Appointment) {
			s.notifier.Reminder(ctx, business, appt, "a reschedule was requested for")
		})
}

// Cancel ends a live appointment from any non-terminal state.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	appt, err := s.appointmentRepo.Get(ctx, id)
	if err != nil {
		return nil, apperrors.NewNotFound("appointment", err)
	}
	if appt.Status.Terminal() {
		return nil, apperrors.InvalidTransition(string(appt.Status), string(model.AppointmentStatusCancelled))
	}

	ok, err := s.appointmentRepo.UpdateStatusFrom(ctx, id, appt.Status, model.AppointmentStatusCancelled)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.InvalidTransition(string(appt.Status), string(model.AppointmentStatusCancelled))
	}
	appt.Status = model.AppointmentStatusCancelled
	s.recordTransition(model.AppointmentStatusCancelled)
	s.events.EmitAppointment(ctx, model.EventAppointmentCancelled, appt)

	if business, berr := s.businessRepo.Get(ctx, appt.BusinessID); berr == nil {
		s.notifier.Cancellation(ctx, business, appt)
	}
	return appt, nil
}

// Reschedule moves an appointment to a new slot on the guest's behalf.
// Early reschedules (outside the business's reschedule window) mutate
// the appointment in place and send it back to pending. Late ones
// forfeit the deposit: the old appointment is cancelled with a note and
// a brand-new appointment goes through the full booking flow.
func (s *Service) Reschedule(ctx context.Context, id uuid.UUID, req *model.RescheduleAppointmentRequest) (*model.BookingResult, error) {
	appt, err := s.appointmentRepo.Get(ctx, id)
	if err != nil {
		return nil, apperrors.NewNotFound("appointment", err)
	}
	if appt.Status.Terminal() {
		return nil, apperrors.InvalidTransition(string(appt.Status), "rescheduled")
	}
	business, err := s.businessRepo.Get(ctx, appt.BusinessID)
	if err != nil {
		return nil, apperrors.NewNotFound("business", err)
	}

	now := s.clock.Now()
	loc := now.Location()
	newDate, err := timeutil.ParseDate(req.Date, loc)
	if err != nil {
		return nil, apperrors.NewBadRequest("invalid date", err)
	}
	newStart, err := timeutil.CombineDateTime(newDate, req.StartTime, loc)
	if err != nil {
		return nil, apperrors.NewBadRequest("invalid start time", err)
	}
	if newStart.Before(now) {
		return nil, apperrors.NewBadRequest("cannot reschedule into the past", nil)
	}

	if err := s.availability.EnsureOpen(ctx, business, appt.StaffID, newDate); err != nil {
		return nil, err
	}

	startAt, err := appt.StartAt(loc)
	if err != nil {
		return nil, apperrors.NewInternal(err)
	}

	// Lateness is purely a matter of timing; whether a deposit was
	// collected only changes what there is to forfeit.
	window := time.Duration(business.RescheduleWindowHours) * time.Hour
	late := !now.Add(window).Before(startAt)

	if late {
		if !req.AcknowledgeForfeit {
			return nil, apperrors.DepositRequired(appt.AmountToPay)
		}
		return s.lateReschedule(ctx, business, appt, req, newDate)
	}
	return s.earlyReschedule(ctx, business, appt, req, newDate, newStart)
}

func (s *Service) earlyReschedule(ctx context.Context, business *model.Business, appt *model.Appointment, req *model.RescheduleAppointmentRequest, newDate time.Time, newStart time.Time) (*model.BookingResult, error) {
	query := availability.Query{
		BusinessID:           business.ID,
		ServiceID:            appt.ServiceID,
		StaffID:              appt.StaffID,
		Date:                 newDate,
		Attendees:            appt.EffectiveAttendees(),
		ExcludeAppointmentID: &appt.ID,
	}

	err := s.appointmentRepo.WithSlotLock(ctx, business.ID, newDate, func(tx *sqlx.Tx) error {
		current, err := s.appointmentRepo.ListRelevantForDayTx(
			ctx, tx, business.ID, appt.StaffID, newDate, s.availability.PendingCutoff(), &appt.ID)
		if err != nil {
			return err
		}
		open, err := s.availability.SlotStillOpen(ctx, query, newStart, current)
		if err != nil {
			return err
		}
		if !open {
			if s.metrics != nil {
				s.metrics.BookingConflicts.Inc()
			}
			return apperrors.SlotUnavailable(req.StartTime + " on " + req.Date)
		}

		appt.AppointmentDate = newDate
		appt.StartTime = req.StartTime
		// Re-approval required after any move.
		appt.Status = model.AppointmentStatusPending
		if err := s.appointmentRepo.UpdateTx(ctx, tx, appt); err != nil {
			return err
		}
		return s.events.EmitTx(ctx, tx, model.EventAppointmentRescheduled, event.AppointmentPayload(appt))
	})
	if err != nil {
		return nil, err
	}

	s.recordTransition(model.AppointmentStatusPending)
	s.notifier.BookingReceived(ctx, business, appt, s.manageURL(appt.RescheduleToken))

	return &model.BookingResult{Appointment: appt, ActionToken: appt.RescheduleToken}, nil
}

// lateReschedule books a fresh appointment through the normal flow
// (fresh deposit included) and cancels the old one with an annotation.
func (s *Service) lateReschedule(ctx context.Context, business *model.Business, appt *model.Appointment, req *model.RescheduleAppointmentRequest, newDate time.Time) (*model.BookingResult, error) {
	staffID := ""
	if appt.StaffID != nil {
		staffID = appt.StaffID.String()
	}
	result, err := s.Book(ctx, &model.CreateAppointmentRequest{
		BusinessID: appt.BusinessID.String(),
		ServiceID:  appt.ServiceID.String(),
		StaffID:    staffID,
		Date:       req.Date,
		StartTime:  req.StartTime,
		Attendees:  appt.EffectiveAttendees(),
		GuestName:  appt.GuestName,
		GuestEmail: appt.GuestEmail,
		GuestPhone: appt.GuestPhone,
		Notes:      appt.Notes,
	})
	if err != nil {
		return nil, err
	}

	ok, err := s.appointmentRepo.UpdateStatusFrom(ctx, appt.ID, appt.Status, model.AppointmentStatusCancelled)
	if err != nil || !ok {
		s.logger.Error(err, "failed to cancel original appointment after late reschedule",
			"appointment_id", appt.ID, "replacement_id", result.Appointment.ID)
	} else {
		appt.Status = model.AppointmentStatusCancelled
		appt.Notes = annotate(appt.Notes,
			fmt.Sprintf("rescheduled late to %s %s, deposit forfeited, replacement %s",
				req.Date, req.StartTime, result.Appointment.ID))
		if uerr := s.appointmentRepo.Update(ctx, appt); uerr != nil {
			s.logger.Error(uerr, "failed to annotate cancelled appointment", "appointment_id", appt.ID)
		}
		s.recordTransition(model.AppointmentStatusCancelled)
		s.events.EmitAppointment(ctx, model.EventAppointmentCancelled, appt)
	}

	return result, nil
}

// HandlePaymentComplete confirms an appointment once its deposit
// cleared. A payer can come back after their pending hold lapsed and
// someone else took the slot; in that case the appointment is cancelled
// instead and the guest notified.
func (s *Service) HandlePaymentComplete(ctx context.Context, appointmentID uuid.UUID, gatewayRef string) error {
	appt, err := s.appointmentRepo.Get(ctx, appointmentID)
	if err != nil {
		return apperrors.NewNotFound("appointment", err)
	}
	business, err := s.businessRepo.Get(ctx, appt.BusinessID)
	if err != nil {
		return apperrors.NewNotFound("business", err)
	}

	if appt.Status != model.AppointmentStatusPending {
		// Replayed webhook or an appointment that already moved on.
		s.logger.Info("ignoring payment for non-pending appointment",
			"appointment_id", appt.ID, "status", string(appt.Status), "gateway_ref", gatewayRef)
		return nil
	}

	loc := s.clock.Now().Location()
	query := availability.Query{
		BusinessID:           appt.BusinessID,
		ServiceID:            appt.ServiceID,
		StaffID:              appt.StaffID,
		Date:                 appt.AppointmentDate,
		Attendees:            appt.EffectiveAttendees(),
		ExcludeAppointmentID: &appt.ID,
	}
	start, err := appt.StartAt(loc)
	if err != nil {
		return apperrors.NewInternal(err)
	}

	var lost bool
	err = s.appointmentRepo.WithSlotLock(ctx, appt.BusinessID, appt.AppointmentDate, func(tx *sqlx.Tx) error {
		current, err := s.appointmentRepo.ListRelevantForDayTx(
			ctx, tx, appt.BusinessID, appt.StaffID, appt.AppointmentDate, s.availability.PendingCutoff(), &appt.ID)
		if err != nil {
			return err
		}
		open, err := s.availability.SlotStillOpen(ctx, query, start, current)
		if err != nil {
			return err
		}

		appt.DepositPaid = true
		if !open {
			lost = true
			appt.Status = model.AppointmentStatusCancelled
			appt.Notes = annotate(appt.Notes, "slot was taken before the deposit cleared")
		} else {
			appt.Status = model.AppointmentStatusConfirmed
		}
		if err := s.appointmentRepo.UpdateTx(ctx, tx, appt); err != nil {
			return err
		}
		evtType := model.EventDepositPaid
		if lost {
			evtType = model.EventAppointmentCancelled
		}
		return s.events.EmitTx(ctx, tx, evtType, event.AppointmentPayload(appt))
	})
	if err != nil {
		return err
	}

	if lost {
		s.recordTransition(model.AppointmentStatusCancelled)
		s.notifier.Cancellation(ctx, business, appt)
		s.logger.Warn("late payment on retaken slot, appointment cancelled",
			"appointment_id", appt.ID, "gateway_ref", gatewayRef)
		return nil
	}

	s.recordTransition(model.AppointmentStatusConfirmed)
	s.notifier.Confirmation(ctx, business, appt, s.manageURL(appt.RescheduleToken))
	s.notifier.OwnerDepositPaid(ctx, business, appt)
	return nil
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, from, to model.AppointmentStatus, eventType string, notify func(context.Context, *model.Business, *model.Appointment)) (*model.Appointment, error) {
	appt, err := s.appointmentRepo.Get(ctx, id)
	if err != nil {
		return nil, apperrors.NewNotFound("appointment", err)
	}

	ok, err := s.appointmentRepo.UpdateStatusFrom(ctx, id, from, to)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.InvalidTransition(string(appt.Status), string(to))
	}
	appt.Status = to
	s.recordTransition(to)
	s.events.EmitAppointment(ctx, eventType, appt)

	if notify != nil {
		if business, berr := s.businessRepo.Get(ctx, appt.BusinessID); berr == nil {
			notify(ctx, business, appt)
		}
	}
	return appt, nil
}

func (s *Service) recordTransition(to model.AppointmentStatus) {
	if s.metrics != nil {
		s.metrics.StatusTransitions.WithLabelValues(string(to)).Inc()
	}
}

func (s *Service) manageURL(actionToken string) string {
	return fmt.Sprintf("%s/bookings/manage?token=%s", s.publicBaseURL, url.QueryEscape(actionToken))
}

func annotate(notes, addition string) string {
	if notes == "" {
		return addition
	}
	return notes + "\n" + addition
}
