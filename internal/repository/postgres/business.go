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

func (r *businessRepository) Create(ctx context.Context, business *model.Business) error {
	query := `
		INSERT INTO businesses (
			id, owner_email, name, slug, description, buffer_minutes,
			deposit_enabled, deposit_type, deposit_amount, deposit_percentage,
			reschedule_window_hours, merchant_id, merchant_key, owner_push_id,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`
	business.ID = uuid.New()
	business.CreatedAt = time.Now()
	business.UpdatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		business.ID,
		business.OwnerEmail,
		business.Name,
		business.Slug,
		business.Description,
		business.BufferMinutes,
		business.DepositEnabled,
		business.DepositType,
		business.DepositAmount,
		business.DepositPercentage,
		business.RescheduleWindowHours,
		business.MerchantID,
		business.MerchantKey,
		business.OwnerPushID,
		business.CreatedAt,
		business.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create business: %w", err)
	}
	return nil
}

func (r *businessRepository) Get(ctx context.Context, id uuid.UUID) (*model.Business, error) {
	query := `SELECT * FROM businesses WHERE id = $1`
	var business model.Business
	if err := r.db.GetContext(ctx, &business, query, id); err != nil {
		return nil, fmt.Errorf("failed to get business: %w", err)
	}
	return &business, nil
}

func (r *businessRepository) GetBySlug(ctx context.Context, slug string) (*model.Business, error) {
	query := `SELECT * FROM businesses WHERE slug = $1`
	var business model.Business
	if err := r.db.GetContext(ctx, &business, query, slug); err != nil {
		return nil, fmt.Errorf("failed to get business by slug: %w", err)
	}
	return &business, nil
}

func (r *businessRepository) Update(ctx context.Context, business *model.Business) error {
	query := `
		UPDATE businesses
		SET name = $1, description = $2, buffer_minutes = $3,
			deposit_enabled = $4, deposit_type = $5, deposit_amount = $6,
			deposit_percentage = $7, reschedule_window_hours = $8,
			merchant_id = $9, merchant_key = $10, owner_push_id = $11,
			updated_at = $12
		WHERE id = $13
	`
	business.UpdatedAt = time.Now()

	result, err := r.db.ExecContext(ctx, query,
		business.Name,
		business.Description,
		business.BufferMinutes,
		business.DepositEnabled,
		business.DepositType,
		business.DepositAmount,
		business.DepositPercentage,
		business.RescheduleWindowHours,
		business.MerchantID,
		business.MerchantKey,
		business.OwnerPushID,
		business.UpdatedAt,
		business.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update business: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("business not found")
	}
	return nil
}

func (r *businessRepository) List(ctx context.Context) ([]*model.Business, error) {
	query := `SELECT * FROM businesses ORDER BY created_at DESC`
	var businesses []*model.Business
	if err := r.db.SelectContext(ctx, &businesses, query); err != nil {
		return nil, fmt.Errorf("failed to list businesses: %w", err)
	}
	return businesses, nil
}

func (r *businessRepository) SetOperatingHours(ctx context.Context, hours *model.OperatingHours) error {
	query := `
		INSERT INTO business_operating_hours (id, business_id, day_bucket, open_time, close_time)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (business_id, day_bucket)
		DO UPDATE SET open_time = EXCLUDED.open_time, close_time = EXCLUDED.close_time
	`
	if hours.ID == uuid.Nil {
		hours.ID = uuid.New()
	}
	_, err := r.db.ExecContext(ctx, query,
		hours.ID, hours.BusinessID, hours.DayBucket, hours.OpenTime, hours.CloseTime)
	if err != nil {
		return fmt.Errorf("failed to set operating hours: %w", err)
	}
	return nil
}

func (r *businessRepository) ListOperatingHours(ctx context.Context, businessID uuid.UUID) ([]*model.OperatingHours, error) {
	query := `
		SELECT id, business_id, day_bucket, open_time, close_time
		FROM business_operating_hours
		WHERE business_id = $1
	`
	var hours []*model.OperatingHours
	if err := r.db.SelectContext(ctx, &hours, query, businessID); err != nil {
		return nil, fmt.Errorf("failed to list operating hours: %w", err)
	}
	return hours, nil
}

// GetOperatingHoursForBucket returns (nil, nil) when no row exists:
// absence means closed, not an error.
func (r *businessRepository) GetOperatingHoursForBucket(ctx context.Context, businessID uuid.UUID, bucket model.DayBucket) (*model.OperatingHours, error) {
	query := `
		SELECT id, business_id, day_bucket, open_time, close_time
		FROM business_operating_hours
		WHERE business_id = $1 AND day_bucket = $2
	`
	var hours model.OperatingHours
	err := r.db.GetContext(ctx, &hours, query, businessID, bucket)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get operating hours: %w", err)
	}
	return &hours, nil
}

func (r *businessRepository) DeleteOperatingHours(ctx context.Context, businessID uuid.UUID, bucket model.DayBucket) error {
	query := `DELETE FROM business_operating_hours WHERE business_id = $1 AND day_bucket = $2`
	if _, err := r.db.ExecContext(ctx, query, businessID, bucket); err != nil {
		return fmt.Errorf("failed to delete operating hours: %w", err)
	}
	return nil
}

func (r *businessRepository) CreateBlock(ctx context.Context, block *model.BusinessBlock) error {
	query := `
		INSERT INTO business_blocks (id, business_id, block_date, reason)
		VALUES ($1, $2, $3, $4)
	`
	block.ID = uuid.New()
	_, err := r.db.ExecContext(ctx, query, block.ID, block.BusinessID, block.BlockDate, block.Reason)
	if err != nil {
		return fmt.Errorf("failed to create business block: %w", err)
	}
	return nil
}

func (r *businessRepository) DeleteBlock(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM business_blocks WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete business block: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("business block not found")
	}
	return nil
}

func (r *businessRepository) ListBlocks(ctx context.Context, businessID uuid.UUID, from, to time.Time) ([]*model.BusinessBlock, error) {
	query := `
		SELECT id, business_id, block_date, reason
		FROM business_blocks
		WHERE business_id = $1 AND block_date >= $2 AND block_date <= $3
		ORDER BY block_date
	`
	var blocks []*model.BusinessBlock
	if err := r.db.SelectContext(ctx, &blocks, query, businessID, from, to); err != nil {
		return nil, fmt.Errorf("failed to list business blocks: %w", err)
	}
	return blocks, nil
}

func (r *businessRepository) HasBlockOn(ctx context.Context, businessID uuid.UUID, date time.Time) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM business_blocks WHERE business_id = $1 AND block_date = $2)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, businessID, date); err != nil {
		return false, fmt.Errorf("failed to check business block: %w", err)
	}
	return exists, nil
}
