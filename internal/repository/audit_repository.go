package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/compliance-api/internal/models"
)

// InsertAuditActivity appends one audit entry. The log has no update or delete path.
func (q *Queries) InsertAuditActivity(ctx context.Context, activity *models.AuditActivity) error {
	if activity.ID == "" {
		activity.ID = uuid.NewString()
	}
	if activity.CreatedAt.IsZero() {
		activity.CreatedAt = time.Now().UTC()
	}
	if len(activity.Metadata) == 0 {
		activity.Metadata = []byte("{}")
	}
	const query = `INSERT INTO audit_activities
	(id, company_id, actor_id, type, related_employee_id, related_certification_id, metadata, request_id, created_at)
	VALUES (:id, :company_id, :actor_id, :type, :related_employee_id, :related_certification_id, :metadata, :request_id, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, q.db, query, activity); err != nil {
		return fmt.Errorf("insert audit activity: %w", err)
	}
	return nil
}

// ListAuditActivities returns entries for a company, newest first.
func (q *Queries) ListAuditActivities(ctx context.Context, filter models.AuditActivityFilter) ([]models.AuditActivity, error) {
	builder := strings.Builder{}
	args := []interface{}{filter.CompanyID}
	builder.WriteString(`SELECT id, company_id, actor_id, type, related_employee_id, related_certification_id, metadata, request_id, created_at
	FROM audit_activities WHERE company_id = $1`)

	if filter.EmployeeID != "" {
		args = append(args, filter.EmployeeID)
		builder.WriteString(fmt.Sprintf(" AND related_employee_id = $%d", len(args)))
	}
	if len(filter.Types) > 0 {
		types := make([]string, len(filter.Types))
		for i, t := range filter.Types {
			types[i] = string(t)
		}
		args = append(args, pq.Array(types))
		builder.WriteString(fmt.Sprintf(" AND type = ANY($%d)", len(args)))
	}

	limit, offset := clampPage(filter.Limit, filter.Offset)
	builder.WriteString(fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT %d OFFSET %d", limit, offset))

	var activities []models.AuditActivity
	if err := sqlx.SelectContext(ctx, q.db, &activities, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list audit activities: %w", err)
	}
	return activities, nil
}
