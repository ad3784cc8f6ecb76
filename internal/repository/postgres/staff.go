package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/getmebooked/booking-api/internal/model"
)

func (r *staffRepository) Create(ctx context.Context, staff *model.Staff) error {
	query := `
		INSERT INTO staff (id, business_id, name, email, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	staff.ID = uuid.New()
	staff.IsActive = true
	staff.CreatedAt = time.Now()
	staff.UpdatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		staff.ID, staff.BusinessID, staff.Name, staff.Email,
		staff.IsActive, staff.CreatedAt, staff.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create staff: %w", err)
	}
	return nil
}

func (r *staffRepository) Get(ctx context.Context, id uuid.UUID) (*model.Staff, error) {
	query := `SELECT * FROM staff WHERE id = $1`
	var staff model.Staff
	if err := r.db.GetContext(ctx, &staff, query, id); err != nil {
		return nil, fmt.Errorf("failed to get staff: %w", err)
	}
	ids, err := r.GetServiceIDs(ctx, staff.ID)
	if err != nil {
		return nil, err
	}
	staff.ServiceIDs = ids
	return &staff, nil
}

func (r *staffRepository) Update(ctx context.Context, staff *model.Staff) error {
	query := `
		UPDATE staff
		SET name = $1, email = $2, is_active = $3, updated_at = $4
		WHERE id = $5
	`
	staff.UpdatedAt = time.Now()

	result, err := r.db.ExecContext(ctx, query,
		staff.Name, staff.Email, staff.IsActive, staff.UpdatedAt, staff.ID)
	if err != nil {
		return fmt.Errorf("failed to update staff: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("staff not found")
	}
	return nil
}

// Delete deactivates rather than removes: historical appointments keep
// their staff reference.
func (r *staffRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE staff SET is_active = false, updated_at = $1 WHERE id = $2`
	result, err := r.db.ExecContext(ctx, query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to deactivate staff: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("staff not found")
	}
	return nil
}

func (r *staffRepository) ListByBusiness(ctx context.Context, businessID uuid.UUID) ([]*model.Staff, error) {
	query := `SELECT * FROM staff WHERE business_id = $1 AND is_active = true ORDER BY name`
	var staff []*model.Staff
	if err := r.db.SelectContext(ctx, &staff, query, businessID); err != nil {
		return nil, fmt.Errorf("failed to list staff: %w", err)
	}
	return staff, nil
}

func (r *staffRepository) ListForService(ctx context.Context, businessID, serviceID uuid.UUID) ([]*model.Staff, error) {
	query := `
		SELECT s.*
		FROM staff s
		JOIN staff_services ss ON ss.staff_id = s.id
		WHERE s.business_id = $1 AND ss.service_id = $2 AND s.is_active = true
		ORDER BY s.name
	`
	var staff []*model.Staff
	if err := r.db.SelectContext(ctx, &staff, query, businessID, serviceID); err != nil {
		return nil, fmt.Errorf("failed to list staff for service: %w", err)
	}
	return staff, nil
}

func (r *staffRepository) SetServices(ctx context.Context, staffID uuid.UUID, serviceIDs []uuid.UUID) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM staff_services WHERE staff_id = $1`, staffID); err != nil {
		return fmt.Errorf("failed to clear staff services: %w", err)
	}
	for _, serviceID := range serviceIDs {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO staff_services (staff_id, service_id) VALUES ($1, $2)`,
			staffID, serviceID)
		if err != nil {
			return fmt.Errorf("failed to assign service to staff: %w", err)
		}
	}
	return tx.Commit()
}

func (r *staffRepository) GetServiceIDs(ctx context.Context, staffID uuid.UUID) ([]uuid.UUID, error) {
	query := `SELECT service_id FROM staff_services WHERE staff_id = $1`
	var ids []uuid.UUID
	if err := r.db.SelectContext(ctx, &ids, query, staffID); err != nil {
		return nil, fmt.Errorf("failed to get staff services: %w", err)
	}
	return ids, nil
}

func (r *staffRepository) SetOperatingHours(ctx context.Context, hours *model.StaffOperatingHours) error {
	query := `
		INSERT INTO staff_operating_hours (id, staff_id, day_bucket, open_time, close_time)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (staff_id, day_bucket)
		DO UPDATE SET open_time = EXCLUDED.open_time, close_time = EXCLUDED.close_time
	`
	if hours.ID == uuid.Nil {
		hours.ID = uuid.New()
	}
	_, err := r.db.ExecContext(ctx, query,
		hours.ID, hours.StaffID, hours.DayBucket, hours.OpenTime, hours.CloseTime)
	if err != nil {
		return fmt.Errorf("failed to set staff operating hours: %w", err)
	}
	return nil
}

// GetOperatingHoursForBucket returns (nil, nil) when the staff member
// has no override for the bucket; the caller falls back to business
// hours.
func (r *staffRepository) GetOperatingHoursForBucket(ctx context.Context, staffID uuid.UUID, bucket model.DayBucket) (*model.StaffOperatingHours, error) {
	query := `
		SELECT id, staff_id, day_bucket, open_time, close_time
		FROM staff_operating_hours
		WHERE staff_id = $1 AND day_bucket = $2
	`
	var hours model.StaffOperatingHours
	err := r.db.GetContext(ctx, &hours, query, staffID, bucket)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get staff operating hours: %w", err)
	}
	return &hours, nil
}

func (r *staffRepository) CreateBlock(ctx context.Context, block *model.StaffBlock) error {
	query := `
		INSERT INTO staff_blocks (id, staff_id, block_date, start_time, end_time, reason)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	block.ID = uuid.New()
	_, err := r.db.ExecContext(ctx, query,
		block.ID, block.StaffID, block.BlockDate, block.StartTime, block.EndTime, block.Reason)
	if err != nil {
		return fmt.Errorf("failed to create staff block: %w", err)
	}
	return nil
}

func (r *staffRepository) DeleteBlock(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM staff_blocks WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete staff block: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("staff block not found")
	}
	return nil
}

func (r *staffRepository) ListBlocksOn(ctx context.Context, staffID uuid.UUID, date time.Time) ([]*model.StaffBlock, error) {
	query := `
		SELECT id, staff_id, block_date, start_time, end_time, reason
		FROM staff_blocks
		WHERE staff_id = $1 AND block_date = $2
		ORDER BY start_time
	`
	var blocks []*model.StaffBlock
	if err := r.db.SelectContext(ctx, &blocks, query, staffID, date); err != nil {
		return nil, fmt.Errorf("failed to list staff blocks: %w", err)
	}
	return blocks, nil
}
