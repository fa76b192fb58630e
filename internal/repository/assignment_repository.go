package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/compliance-api/internal/models"
)

const assignmentColumns = `id, work_order_id, worker_id, compliance_status, gap_summary, override_acknowledged,
	override_reason, override_actor_id, override_at, compliance_snapshot_hash, assigned_by_id, assigned_at,
	unassigned_at, unassigned_by_id`

// GetWorkOrder fetches the work order a worker is being dispatched to.
func (q *Queries) GetWorkOrder(ctx context.Context, id string) (*models.WorkOrder, error) {
	var order models.WorkOrder
	const query = `SELECT id, company_id, number, title, site_address, scheduled_start, instructions FROM work_orders WHERE id = $1`
	if err := sqlx.GetContext(ctx, q.db, &order, query, id); err != nil {
		return nil, err
	}
	return &order, nil
}

// GetActiveAssignment returns the worker's current assignment on a work order.
func (q *Queries) GetActiveAssignment(ctx context.Context, workOrderID, workerID string) (*models.Assignment, error) {
	var assignment models.Assignment
	query := "SELECT " + assignmentColumns + " FROM work_order_assignments WHERE work_order_id = $1 AND worker_id = $2 AND unassigned_at IS NULL"
	if err := sqlx.GetContext(ctx, q.db, &assignment, query, workOrderID, workerID); err != nil {
		return nil, err
	}
	return &assignment, nil
}

// GetAssignment fetches an assignment by id, removed or not.
func (q *Queries) GetAssignment(ctx context.Context, id string) (*models.Assignment, error) {
	var assignment models.Assignment
	query := "SELECT " + assignmentColumns + " FROM work_order_assignments WHERE id = $1"
	if err := sqlx.GetContext(ctx, q.db, &assignment, query, id); err != nil {
		return nil, err
	}
	return &assignment, nil
}

// InsertAssignment records a dispatch decision.
func (q *Queries) InsertAssignment(ctx context.Context, assignment *models.Assignment) error {
	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}
	if assignment.AssignedAt.IsZero() {
		assignment.AssignedAt = time.Now().UTC()
	}
	const query = `INSERT INTO work_order_assignments
	(id, work_order_id, worker_id, compliance_status, gap_summary, override_acknowledged, override_reason,
	 override_actor_id, override_at, compliance_snapshot_hash, assigned_by_id, assigned_at)
	VALUES (:id, :work_order_id, :worker_id, :compliance_status, :gap_summary, :override_acknowledged, :override_reason,
	 :override_actor_id, :override_at, :compliance_snapshot_hash, :assigned_by_id, :assigned_at)`
	if _, err := sqlx.NamedExecContext(ctx, q.db, query, assignment); err != nil {
		return fmt.Errorf("insert assignment: %w", err)
	}
	return nil
}

// MarkAssignmentUnassigned soft-removes an active assignment. Already removed
// or missing rows yield sql.ErrNoRows.
func (q *Queries) MarkAssignmentUnassigned(ctx context.Context, id, actorID string, at time.Time) error {
	result, err := q.db.ExecContext(ctx,
		"UPDATE work_order_assignments SET unassigned_at = $2, unassigned_by_id = $3 WHERE id = $1 AND unassigned_at IS NULL",
		id, at, actorID)
	if err != nil {
		return fmt.Errorf("unassign worker: %w", err)
	}
	return requireAffected(result, "unassign worker")
}

// ListAssignmentsByWorkOrder returns every assignment on the work order including removed ones.
func (q *Queries) ListAssignmentsByWorkOrder(ctx context.Context, workOrderID string) ([]models.Assignment, error) {
	query := "SELECT " + assignmentColumns + " FROM work_order_assignments WHERE work_order_id = $1 ORDER BY assigned_at ASC, id ASC"
	var assignments []models.Assignment
	if err := sqlx.SelectContext(ctx, q.db, &assignments, query, workOrderID); err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	return assignments, nil
}
