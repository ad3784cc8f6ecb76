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

func (r *clientRepository) Upsert(ctx context.Context, client *model.ClientProfile) error {
	query := `
		INSERT INTO client_profiles (
			id, business_id, email, name, phone, deposit_exempt, created_at, updated_at
		) VALUES ($1, $2, lower($3), $4, $5, $6, $7, $8)
		ON CONFLICT (business_id, email)
		DO UPDATE SET
			name = COALESCE(NULLIF(EXCLUDED.name, ''), client_profiles.name),
			phone = COALESCE(NULLIF(EXCLUDED.phone, ''), client_profiles.phone),
			updated_at = EXCLUDED.updated_at
		RETURNING id, deposit_exempt
	`
	if client.ID == uuid.Nil {
		client.ID = uuid.New()
		client.CreatedAt = time.Now()
	}
	client.UpdatedAt = time.Now()

	row := r.db.QueryRowxContext(ctx, query,
		client.ID, client.BusinessID, client.Email, client.Name,
		client.Phone, client.DepositExempt, client.CreatedAt, client.UpdatedAt)
	if err := row.Scan(&client.ID, &client.DepositExempt); err != nil {
		return fmt.Errorf("failed to upsert client profile: %w", err)
	}
	return nil
}

// GetByEmail returns (nil, nil) for an unknown client.
func (r *clientRepository) GetByEmail(ctx context.Context, businessID uuid.UUID, email string) (*model.ClientProfile, error) {
	query := `SELECT * FROM client_profiles WHERE business_id = $1 AND email = lower($2)`
	var client model.ClientProfile
	err := r.db.GetContext(ctx, &client, query, businessID, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get client profile: %w", err)
	}
	return &client, nil
}

func (r *clientRepository) SetDepositExempt(ctx context.Context, id uuid.UUID, exempt bool) error {
	query := `UPDATE client_profiles SET deposit_exempt = $1, updated_at = $2 WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, exempt, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to set deposit exemption: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("client profile not found")
	}
	return nil
}

func (r *clientRepository) ListByBusiness(ctx context.Context, businessID uuid.UUID) ([]*model.ClientProfile, error) {
	query := `SELECT * FROM client_profiles WHERE business_id = $1 ORDER BY email`
	var clients []*model.ClientProfile
	if err := r.db.SelectContext(ctx, &clients, query, businessID); err != nil {
		return nil, fmt.Errorf("failed to list client profiles: %w", err)
	}
	return clients, nil
}
