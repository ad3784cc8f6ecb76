package postgres

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/getmebooked/booking-api/internal/model"
)

const appointmentColumns = `
	id, business_id, service_id, staff_id, appointment_date, start_time,
	length_minutes, attendees, status, notes, guest_name, guest_email,
	guest_phone, deposit_paid, amount_to_pay, reminder_24h_sent,
	reminder_2h_sent, reschedule_token, created_at, updated_at
`

// startAtExpr computes the appointment's start instant in SQL from the
// stored date and "HH:MM" string.
const startAtExpr = `(appointment_date + start_time::time)`
const endAtExpr = startAtExpr + ` + make_interval(mins => length_minutes)`

func (r *appointmentRepository) Create(ctx context.Context, appointment *model.Appointment) error {
	return createAppointment(ctx, r.db, appointment)
}

func (r *appointmentRepository) CreateTx(ctx context.Context, tx *sqlx.Tx, appointment *model.Appointment) error {
	return createAppointment(ctx, tx, appointment)
}

func createAppointment(ctx context.Context, q sqlx.ExtContext, appointment *model.Appointment) error {
	query := `
		INSERT INTO appointments (` + appointmentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	`
	if appointment.ID == uuid.Nil {
		appointment.ID = uuid.New()
	}
	appointment.CreatedAt = time.Now()
	appointment.UpdatedAt = time.Now()

	_, err := q.ExecContext(ctx, query,
		appointment.ID,
		appointment.BusinessID,
		appointment.ServiceID,
		appointment.StaffID,
		appointment.AppointmentDate,
		appointment.StartTime,
		appointment.LengthMinutes,
		appointment.Attendees,
		appointment.Status,
		appointment.Notes,
		appointment.GuestName,
		appointment.GuestEmail,
		appointment.GuestPhone,
		appointment.DepositPaid,
		appointment.AmountToPay,
		appointment.Reminder24hSent,
		appointment.Reminder2hSent,
		appointment.RescheduleToken,
		appointment.CreatedAt,
		appointment.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create appointment: %w", err)
	}
	return nil
}

func (r *appointmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1`
	var appointment model.Appointment
	if err := r.db.GetContext(ctx, &appointment, query, id); err != nil {
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	return &appointment, nil
}

func (r *appointmentRepository) Update(ctx context.Context, appointment *model.Appointment) error {
	return updateAppointment(ctx, r.db, appointment)
}

func (r *appointmentRepository) UpdateTx(ctx context.Context, tx *sqlx.Tx, appointment *model.Appointment) error {
	return updateAppointment(ctx, tx, appointment)
}

func updateAppointment(ctx context.Context, q sqlx.ExtContext, appointment *model.Appointment) error {
	query := `
		UPDATE appointments
		SET appointment_date = $1, start_time = $2, length_minutes = $3,
			attendees = $4, status = $5, notes = $6,
			deposit_paid = $7, amount_to_pay = $8,
			reminder_24h_sent = $9, reminder_2h_sent = $10,
			updated_at = $11
		WHERE id = $12
	`
	appointment.UpdatedAt = time.Now()

	result, err := q.ExecContext(ctx, query,
		appointment.AppointmentDate,
		appointment.StartTime,
		appointment.LengthMinutes,
		appointment.Attendees,
		appointment.Status,
		appointment.Notes,
		appointment.DepositPaid,
		appointment.AmountToPay,
		appointment.Reminder24hSent,
		appointment.Reminder2hSent,
		appointment.UpdatedAt,
		appointment.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update appointment: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("appointment not found")
	}
	return nil
}

func (r *appointmentRepository) List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE business_id = $1`
	args := []interface{}{filters.BusinessID}

	if filters.StaffID != nil {
		args = append(args, *filters.StaffID)
		query += fmt.Sprintf(" AND staff_id = $%d", len(args))
	}
	if filters.Status != "" {
		args = append(args, filters.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if !filters.DateFrom.IsZero() {
		args = append(args, filters.DateFrom)
		query += fmt.Sprintf(" AND appointment_date >= $%d", len(args))
	}
	if !filters.DateTo.IsZero() {
		args = append(args, filters.DateTo)
		query += fmt.Sprintf(" AND appointment_date <= $%d", len(args))
	}
	query += " ORDER BY appointment_date, start_time"

	var appointments []*model.Appointment
	if err := r.db.SelectContext(ctx, &appointments, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return appointments, nil
}

func (r *appointmentRepository) UpdateStatusFrom(ctx context.Context, id uuid.UUID, from, to model.AppointmentStatus) (bool, error) {
	query := `
		UPDATE appointments
		SET status = $1, updated_at = $2
		WHERE id = $3 AND status = $4
	`
	result, err := r.db.ExecContext(ctx, query, to, time.Now(), id, from)
	if err != nil {
		return false, fmt.Errorf("failed to update appointment status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

func (r *appointmentRepository) ListRelevantForDay(ctx context.Context, businessID uuid.UUID, staffID *uuid.UUID, date time.Time, pendingCutoff time.Time, excludeID *uuid.UUID) ([]*model.Appointment, error) {
	return listRelevantForDay(ctx, r.db, businessID, staffID, date, pendingCutoff, excludeID)
}

func (r *appointmentRepository) ListRelevantForDayTx(ctx context.Context, tx *sqlx.Tx, businessID uuid.UUID, staffID *uuid.UUID, date time.Time, pendingCutoff time.Time, excludeID *uuid.UUID) ([]*model.Appointment, error) {
	return listRelevantForDay(ctx, tx, businessID, staffID, date, pendingCutoff, excludeID)
}

// listRelevantForDay fetches the rows that block availability on a day:
// confirmed and reschedule_requested outright, pending only while its
// hold is fresh.
func listRelevantForDay(ctx context.Context, q sqlx.ExtContext, businessID uuid.UUID, staffID *uuid.UUID, date time.Time, pendingCutoff time.Time, excludeID *uuid.UUID) ([]*model.Appointment, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE business_id = $1
		AND appointment_date = $2
		AND (
			status IN ('confirmed', 'reschedule_requested')
			OR (status = 'pending' AND created_at > $3)
		)`)
	args := []interface{}{businessID, date, pendingCutoff}

	if staffID != nil {
		args = append(args, *staffID)
		sb.WriteString(fmt.Sprintf(" AND staff_id = $%d", len(args)))
	}
	if excludeID != nil {
		args = append(args, *excludeID)
		sb.WriteString(fmt.Sprintf(" AND id <> $%d", len(args)))
	}
	sb.WriteString(" ORDER BY start_time")

	var appointments []*model.Appointment
	if err := sqlx.SelectContext(ctx, q, &appointments, sb.String(), args...); err != nil {
		return nil, fmt.Errorf("failed to list appointments for day: %w", err)
	}
	return appointments, nil
}

// WithSlotLock runs fn in a transaction holding a pg_advisory_xact_lock
// keyed on the contended calendar: one business day. The key carries no
// staff component: a booking without a staff preference conflicts with
// staff-assigned rows, so both paths must serialize on the same lock.
// The winner's insert is visible to the loser's in-transaction conflict
// re-check.
func (r *appointmentRepository) WithSlotLock(ctx context.Context, businessID uuid.UUID, date time.Time, fn func(tx *sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, slotLockKey(businessID, date)); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to acquire slot lock: %w", err)
	}

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func slotLockKey(businessID uuid.UUID, date time.Time) int64 {
	h := fnv.New64a()
	h.Write(businessID[:])
	h.Write([]byte(date.Format("2006-01-02")))
	return int64(h.Sum64())
}

// ListDue24hReminders only looks at appointments still more than two
// hours out; closer than that the 2h reminder is the one that applies,
// and a single sweep must not send both.
func (r *appointmentRepository) ListDue24hReminders(ctx context.Context, now time.Time) ([]*model.Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE status = 'confirmed'
		AND reminder_24h_sent = false
		AND ` + startAtExpr + ` > $1
		AND ` + startAtExpr + ` <= $2
		ORDER BY appointment_date, start_time
	`
	var appointments []*model.Appointment
	err := r.db.SelectContext(ctx, &appointments, query, now.Add(2*time.Hour), now.Add(24*time.Hour))
	if err != nil {
		return nil, fmt.Errorf("failed to list due 24h reminders: %w", err)
	}
	return appointments, nil
}

func (r *appointmentRepository) ListDue2hReminders(ctx context.Context, now time.Time) ([]*model.Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE status = 'confirmed'
		AND reminder_2h_sent = false
		AND ` + startAtExpr + ` > $1
		AND ` + startAtExpr + ` <= $2
		ORDER BY appointment_date, start_time
	`
	var appointments []*model.Appointment
	err := r.db.SelectContext(ctx, &appointments, query, now, now.Add(2*time.Hour))
	if err != nil {
		return nil, fmt.Errorf("failed to list due 2h reminders: %w", err)
	}
	return appointments, nil
}

func (r *appointmentRepository) Claim24hReminder(ctx context.Context, id uuid.UUID) (bool, error) {
	return r.claimReminder(ctx, id, "reminder_24h_sent")
}

func (r *appointmentRepository) Claim2hReminder(ctx context.Context, id uuid.UUID) (bool, error) {
	return r.claimReminder(ctx, id, "reminder_2h_sent")
}

func (r *appointmentRepository) claimReminder(ctx context.Context, id uuid.UUID, column string) (bool, error) {
	query := fmt.Sprintf(`
		UPDATE appointments
		SET %s = true, updated_at = $1
		WHERE id = $2 AND %s = false AND status = 'confirmed'
	`, column, column)
	result, err := r.db.ExecContext(ctx, query, time.Now(), id)
	if err != nil {
		return false, fmt.Errorf("failed to claim reminder: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

func (r *appointmentRepository) ListForAutoCompletion(ctx context.Context, endedBefore time.Time) ([]*model.Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE status = 'confirmed'
		AND ` + endAtExpr + ` < $1
		ORDER BY appointment_date, start_time
	`
	var appointments []*model.Appointment
	if err := r.db.SelectContext(ctx, &appointments, query, endedBefore); err != nil {
		return nil, fmt.Errorf("failed to list appointments for auto-completion: %w", err)
	}
	return appointments, nil
}

func (r *appointmentRepository) ListExpiredPending(ctx context.Context, createdBefore time.Time) ([]*model.Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE status = 'pending'
		AND deposit_paid = false
		AND amount_to_pay > 0
		AND created_at < $1
		ORDER BY created_at
	`
	var appointments []*model.Appointment
	if err := r.db.SelectContext(ctx, &appointments, query, createdBefore); err != nil {
		return nil, fmt.Errorf("failed to list expired pending appointments: %w", err)
	}
	return appointments, nil
}
