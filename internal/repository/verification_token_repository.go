package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/compliance-api/internal/models"
)

const tokenColumns = `worker_id, token, snapshot_id, created_at, updated_at`

// GetVerificationTokenByWorker returns the worker's token row.
func (q *Queries) GetVerificationTokenByWorker(ctx context.Context, workerID string) (*models.VerificationToken, error) {
	var token models.VerificationToken
	query := "SELECT " + tokenColumns + " FROM verification_tokens WHERE worker_id = $1"
	if err := sqlx.GetContext(ctx, q.db, &token, query, workerID); err != nil {
		return nil, err
	}
	return &token, nil
}

// GetVerificationToken looks a token up by its opaque value.
func (q *Queries) GetVerificationToken(ctx context.Context, value string) (*models.VerificationToken, error) {
	var token models.VerificationToken
	query := "SELECT " + tokenColumns + " FROM verification_tokens WHERE token = $1"
	if err := sqlx.GetContext(ctx, q.db, &token, query, value); err != nil {
		return nil, err
	}
	return &token, nil
}

// InsertVerificationToken provisions the worker's token. The worker_id primary
// key rejects a second token for the same worker.
func (q *Queries) InsertVerificationToken(ctx context.Context, token *models.VerificationToken) error {
	now := time.Now().UTC()
	if token.CreatedAt.IsZero() {
		token.CreatedAt = now
	}
	if token.UpdatedAt.IsZero() {
		token.UpdatedAt = token.CreatedAt
	}
	const query = `INSERT INTO verification_tokens (worker_id, token, snapshot_id, created_at, updated_at)
	VALUES (:worker_id, :token, :snapshot_id, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, q.db, query, token); err != nil {
		return fmt.Errorf("insert verification token: %w", err)
	}
	return nil
}

// PointVerificationToken repoints the worker's existing token at a snapshot.
// The token value itself never changes. A missing row yields sql.ErrNoRows.
func (q *Queries) PointVerificationToken(ctx context.Context, workerID, snapshotID string, at time.Time) error {
	result, err := q.db.ExecContext(ctx,
		"UPDATE verification_tokens SET snapshot_id = $2, updated_at = $3 WHERE worker_id = $1",
		workerID, snapshotID, at)
	if err != nil {
		return fmt.Errorf("point verification token: %w", err)
	}
	return requireAffected(result, "point verification token")
}
