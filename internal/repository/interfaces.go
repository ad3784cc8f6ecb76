package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/getmebooked/booking-api/internal/model"
)

// All repository interfaces in one file
type (
	BusinessRepository interface {
		Create(ctx context.Context, business *model.Business) error
		Get(ctx context.Context, id uuid.UUID) (*model.Business, error)
		GetBySlug(ctx context.Context, slug string) (*model.Business, error)
		Update(ctx context.Context, business *model.Business) error
		List(ctx context.Context) ([]*model.Business, error)

		SetOperatingHours(ctx context.Context, hours *model.OperatingHours) error
		ListOperatingHours(ctx context.Context, businessID uuid.UUID) ([]*model.OperatingHours, error)
		GetOperatingHoursForBucket(ctx context.Context, businessID uuid.UUID, bucket model.DayBucket) (*model.OperatingHours, error)
		DeleteOperatingHours(ctx context.Context, businessID uuid.UUID, bucket model.DayBucket) error

		CreateBlock(ctx context.Context, block *model.BusinessBlock) error
		DeleteBlock(ctx context.Context, id uuid.UUID) error
		ListBlocks(ctx context.Context, businessID uuid.UUID, from, to time.Time) ([]*model.BusinessBlock, error)
		HasBlockOn(ctx context.Context, businessID uuid.UUID, date time.Time) (bool, error)
	}

	StaffRepository interface {
		Create(ctx context.Context, staff *model.Staff) error
		Get(ctx context.Context, id uuid.UUID) (*model.Staff, error)
		Update(ctx context.Context, staff *model.Staff) error
		Delete(ctx context.Context, id uuid.UUID) error
		ListByBusiness(ctx context.Context, businessID uuid.UUID) ([]*model.Staff, error)
		ListForService(ctx context.Context, businessID, serviceID uuid.UUID) ([]*model.Staff, error)

		SetServices(ctx context.Context, staffID uuid.UUID, serviceIDs []uuid.UUID) error
		GetServiceIDs(ctx context.Context, staffID uuid.UUID) ([]uuid.UUID, error)

		SetOperatingHours(ctx context.Context, hours *model.StaffOperatingHours) error
		GetOperatingHoursForBucket(ctx context.Context, staffID uuid.UUID, bucket model.DayBucket) (*model.StaffOperatingHours, error)

		CreateBlock(ctx context.Context, block *model.StaffBlock) error
		DeleteBlock(ctx context.Context, id uuid.UUID) error
		ListBlocksOn(ctx context.Context, staffID uuid.UUID, date time.Time) ([]*model.StaffBlock, error)
	}

	ServiceRepository interface {
		Create(ctx context.Context, svc *model.Service) error
		Get(ctx context.Context, id uuid.UUID) (*model.Service, error)
		Update(ctx context.Context, svc *model.Service) error
		Delete(ctx context.Context, id uuid.UUID) error
		ListByBusiness(ctx context.Context, businessID uuid.UUID) ([]*model.Service, error)
	}

	ClientRepository interface {
		Upsert(ctx context.Context, client *model.ClientProfile) error
		GetByEmail(ctx context.Context, businessID uuid.UUID, email string) (*model.ClientProfile, error)
		SetDepositExempt(ctx context.Context, id uuid.UUID, exempt bool) error
		ListByBusiness(ctx context.Context, businessID uuid.UUID) ([]*model.ClientProfile, error)
	}

	AppointmentRepository interface {
		Create(ctx context.Context, appointment *model.Appointment) error
		Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
		Update(ctx context.Context, appointment *model.Appointment) error
		List(ctx context.Context, filters *model.AppointmentFilters) ([]*model.Appointment, error)

		// UpdateStatusFrom transitions only if the row is still in the
		// expected state; false means the row had moved on.
		UpdateStatusFrom(ctx context.Context, id uuid.UUID, from, to model.AppointmentStatus) (bool, error)

		// ListRelevantForDay returns the appointments that occupy slots on
		// a given day: confirmed and reschedule_requested rows, plus
		// pending rows created after pendingCutoff. excludeID drops one
		// appointment from the result, used when rescheduling.
		ListRelevantForDay(ctx context.Context, businessID uuid.UUID, staffID *uuid.UUID, date time.Time, pendingCutoff time.Time, excludeID *uuid.UUID) ([]*model.Appointment, error)

		// WithSlotLock serializes bookings contending for the same
		// business day via a transaction-scoped advisory lock. The lock
		// ignores any staff filter: staff-assigned and unassigned
		// bookings overlap in their conflict sets, so both paths must
		// take the same lock.
		WithSlotLock(ctx context.Context, businessID uuid.UUID, date time.Time, fn func(tx *sqlx.Tx) error) error
		CreateTx(ctx context.Context, tx *sqlx.Tx, appointment *model.Appointment) error
		UpdateTx(ctx context.Context, tx *sqlx.Tx, appointment *model.Appointment) error
		ListRelevantForDayTx(ctx context.Context, tx *sqlx.Tx, businessID uuid.UUID, staffID *uuid.UUID, date time.Time, pendingCutoff time.Time, excludeID *uuid.UUID) ([]*model.Appointment, error)

		// Sweep queries. Reminder claims are conditional updates so that
		// overlapping sweeps cannot double-send.
		ListDue24hReminders(ctx context.Context, now time.Time) ([]*model.Appointment, error)
		ListDue2hReminders(ctx context.Context, now time.Time) ([]*model.Appointment, error)
		Claim24hReminder(ctx context.Context, id uuid.UUID) (bool, error)
		Claim2hReminder(ctx context.Context, id uuid.UUID) (bool, error)
		ListForAutoCompletion(ctx context.Context, endedBefore time.Time) ([]*model.Appointment, error)
		ListExpiredPending(ctx context.Context, createdBefore time.Time) ([]*model.Appointment, error)
	}

	NotificationRepository interface {
		Create(ctx context.Context, n *model.Notification) error
		MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error
		MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
		ListByBusiness(ctx context.Context, businessID uuid.UUID, limit int) ([]*model.Notification, error)
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		CreateTx(ctx context.Context, tx *sqlx.Tx, event *model.OutboxEvent) error
		GetPendingEvents(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		GetPendingEventsWithLock(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		BeginTx(ctx context.Context) (*sql.Tx, error)
		UpdateStatusTx(ctx context.Context, tx *sql.Tx, id uuid.UUID, status string, errorMessage *string, retryAt *time.Time) error
		MoveToDeadLetter(ctx context.Context, tx *sql.Tx, evt *model.OutboxEvent) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}
)
