package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/getmebooked/booking-api/internal/model"
)

func (r *notificationRepository) Create(ctx context.Context, n *model.Notification) error {
	query := `
		INSERT INTO notifications (
			id, business_id, appointment_id, channel, recipient,
			subject, body, status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	n.ID = uuid.New()
	n.CreatedAt = time.Now()
	if n.Status == "" {
		n.Status = model.NotificationStatusPending
	}

	_, err := r.db.ExecContext(ctx, query,
		n.ID, n.BusinessID, n.AppointmentID, n.Channel,
		n.Recipient, n.Subject, n.Body, n.Status, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

func (r *notificationRepository) MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `UPDATE notifications SET status = $1, sent_at = $2 WHERE id = $3`
	if _, err := r.db.ExecContext(ctx, query, model.NotificationStatusSent, at, id); err != nil {
		return fmt.Errorf("failed to mark notification sent: %w", err)
	}
	return nil
}

func (r *notificationRepository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	query := `UPDATE notifications SET status = $1, last_error = $2 WHERE id = $3`
	if _, err := r.db.ExecContext(ctx, query, model.NotificationStatusFailed, reason, id); err != nil {
		return fmt.Errorf("failed to mark notification failed: %w", err)
	}
	return nil
}

func (r *notificationRepository) ListByBusiness(ctx context.Context, businessID uuid.UUID, limit int) ([]*model.Notification, error) {
	query := `
		SELECT id, business_id, appointment_id, channel, recipient,
			   subject, body, status, last_error, sent_at, created_at
		FROM notifications
		WHERE business_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	var notifications []*model.Notification
	if err := r.db.SelectContext(ctx, &notifications, query, businessID, limit); err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return notifications, nil
}
