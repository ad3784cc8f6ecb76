package event

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/getmebooked/booking-api/internal/model"
	"github.com/getmebooked/booking-api/internal/repository"
	"github.com/getmebooked/booking-api/pkg/logger"
)

// Service writes domain events to the outbox table. Events written via
// EmitTx share the transaction of the state change they describe, so an
// event exists exactly when its change committed.
type Service struct {
	outboxRepo repository.OutboxRepository
	logger     *logger.Logger
}

func NewService(outboxRepo repository.OutboxRepository, l *logger.Logger) *Service {
	return &Service{outboxRepo: outboxRepo, logger: l}
}

func (s *Service) Emit(ctx context.Context, eventType string, payload interface{}) error {
	evt, err := build(eventType, payload)
	if err != nil {
		return err
	}
	return s.outboxRepo.Create(ctx, evt)
}

func (s *Service) EmitTx(ctx context.Context, tx *sqlx.Tx, eventType string, payload interface{}) error {
	evt, err := build(eventType, payload)
	if err != nil {
		return err
	}
	return s.outboxRepo.CreateTx(ctx, tx, evt)
}

// EmitAppointment is Emit with the standard appointment payload. A
// failed write is logged, not propagated: the state change already
// committed and must not be rolled back over a missing event.
func (s *Service) EmitAppointment(ctx context.Context, eventType string, appt *model.Appointment) {
	if err := s.Emit(ctx, eventType, AppointmentPayload(appt)); err != nil {
		s.logger.Error(err, "failed to emit event", "event_type", eventType, "appointment_id", appt.ID)
	}
}

// AppointmentPayload trims an appointment down to the fields consumers
// care about.
func AppointmentPayload(appt *model.Appointment) map[string]interface{} {
	return map[string]interface{}{
		"appointment_id": appt.ID,
		"business_id":    appt.BusinessID,
		"service_id":     appt.ServiceID,
		"date":           appt.AppointmentDate.Format("2006-01-02"),
		"start_time":     appt.StartTime,
		"status":         appt.Status,
		"guest_email":    appt.GuestEmail,
	}
}

func build(eventType string, payload interface{}) (*model.OutboxEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event payload: %w", err)
	}
	return &model.OutboxEvent{
		EventType: eventType,
		Payload:   data,
	}, nil
}
