package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/compliance-api/internal/models"
)

const snapshotColumns = `id, worker_id, company_id, status, payload, snapshot_hash, source, created_at, created_by_id`

// InsertSnapshot appends an immutable snapshot row. There is no update or delete path.
func (q *Queries) InsertSnapshot(ctx context.Context, snapshot *models.Snapshot) error {
	if snapshot.ID == "" {
		snapshot.ID = uuid.NewString()
	}
	if snapshot.CreatedAt.IsZero() {
		snapshot.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO compliance_snapshots (id, worker_id, company_id, status, payload, snapshot_hash, source, created_at, created_by_id)
	VALUES (:id, :worker_id, :company_id, :status, :payload, :snapshot_hash, :source, :created_at, :created_by_id)`
	if _, err := sqlx.NamedExecContext(ctx, q.db, query, snapshot); err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

// GetSnapshot fetches one snapshot by id.
func (q *Queries) GetSnapshot(ctx context.Context, id string) (*models.Snapshot, error) {
	var snapshot models.Snapshot
	query := "SELECT " + snapshotColumns + " FROM compliance_snapshots WHERE id = $1"
	if err := sqlx.GetContext(ctx, q.db, &snapshot, query, id); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// LatestSnapshotAt returns when the worker's newest snapshot was created, or nil if none exists.
func (q *Queries) LatestSnapshotAt(ctx context.Context, workerID string) (*time.Time, error) {
	var createdAt time.Time
	const query = `SELECT created_at FROM compliance_snapshots WHERE worker_id = $1 ORDER BY created_at DESC LIMIT 1`
	if err := sqlx.GetContext(ctx, q.db, &createdAt, query, workerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("latest snapshot: %w", err)
	}
	return &createdAt, nil
}

// ListSnapshotsByWorker pages a worker's snapshots newest first, with the total count.
func (q *Queries) ListSnapshotsByWorker(ctx context.Context, workerID string, limit, offset int) ([]models.Snapshot, int, error) {
	limit, offset = clampPage(limit, offset)
	query := fmt.Sprintf("SELECT %s FROM compliance_snapshots WHERE worker_id = $1 ORDER BY created_at DESC, id DESC LIMIT %d OFFSET %d", snapshotColumns, limit, offset)
	var snapshots []models.Snapshot
	if err := sqlx.SelectContext(ctx, q.db, &snapshots, query, workerID); err != nil {
		return nil, 0, fmt.Errorf("list snapshots: %w", err)
	}

	var total int
	if err := sqlx.GetContext(ctx, q.db, &total, "SELECT COUNT(*) FROM compliance_snapshots WHERE worker_id = $1", workerID); err != nil {
		return nil, 0, fmt.Errorf("count snapshots: %w", err)
	}
	return snapshots, total, nil
}
