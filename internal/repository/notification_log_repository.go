package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/compliance-api/internal/models"
)

// NotificationLogUpdate records one delivery attempt outcome.
type NotificationLogUpdate struct {
	ID        string
	Status    models.NotificationStatus
	Attempts  int
	LastError *string
	UpdatedAt time.Time
}

// InsertNotificationLog stores a pending outbound message.
func (q *Queries) InsertNotificationLog(ctx context.Context, log *models.NotificationLog) error {
	now := time.Now().UTC()
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.Status == "" {
		log.Status = models.NotificationStatusPending
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = now
	}
	if log.UpdatedAt.IsZero() {
		log.UpdatedAt = log.CreatedAt
	}
	const query = `INSERT INTO notification_logs
	(id, company_id, assignment_id, worker_id, channel, recipient, subject, body, attachment_ref, status, attempts, last_error,
	 created_at, updated_at)
	VALUES (:id, :company_id, :assignment_id, :worker_id, :channel, :recipient, :subject, :body, :attachment_ref, :status, :attempts,
	 :last_error, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, q.db, query, log); err != nil {
		return fmt.Errorf("insert notification log: %w", err)
	}
	return nil
}

// GetNotificationLog fetches a notification log entry.
func (q *Queries) GetNotificationLog(ctx context.Context, id string) (*models.NotificationLog, error) {
	var log models.NotificationLog
	const query = `SELECT id, company_id, assignment_id, worker_id, channel, recipient, subject, body, attachment_ref, status, attempts,
	last_error, created_at, updated_at FROM notification_logs WHERE id = $1`
	if err := sqlx.GetContext(ctx, q.db, &log, query, id); err != nil {
		return nil, err
	}
	return &log, nil
}

// UpdateNotificationLog stores the latest delivery outcome.
func (q *Queries) UpdateNotificationLog(ctx context.Context, update NotificationLogUpdate) error {
	result, err := q.db.ExecContext(ctx,
		"UPDATE notification_logs SET status = $2, attempts = $3, last_error = $4, updated_at = $5 WHERE id = $1",
		update.ID, update.Status, update.Attempts, update.LastError, update.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update notification log: %w", err)
	}
	return requireAffected(result, "update notification log")
}
