package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/compliance-api/internal/models"
)

const workerColumns = `id, company_id, first_name, last_name, email, phone, job_title, active,
	compliance_status, last_verified_at, compliance_hash, updated_by_id, created_at, updated_at`

// GetWorker fetches a worker by id. Missing rows surface as sql.ErrNoRows.
func (q *Queries) GetWorker(ctx context.Context, id string) (*models.Worker, error) {
	var worker models.Worker
	query := "SELECT " + workerColumns + " FROM workers WHERE id = $1"
	if err := sqlx.GetContext(ctx, q.db, &worker, query, id); err != nil {
		return nil, err
	}
	return &worker, nil
}

// GetWorkerForUpdate locks the worker row for the rest of the transaction so
// concurrent gate checks on the same worker serialize.
func (q *Queries) GetWorkerForUpdate(ctx context.Context, id string) (*models.Worker, error) {
	var worker models.Worker
	query := "SELECT " + workerColumns + " FROM workers WHERE id = $1 FOR UPDATE"
	if err := sqlx.GetContext(ctx, q.db, &worker, query, id); err != nil {
		return nil, err
	}
	return &worker, nil
}

// ListActiveWorkerIDs returns active worker ids, optionally scoped to one company.
func (q *Queries) ListActiveWorkerIDs(ctx context.Context, companyID string) ([]string, error) {
	query := "SELECT id FROM workers WHERE active = TRUE"
	args := []interface{}{}
	if companyID != "" {
		query += " AND company_id = $1"
		args = append(args, companyID)
	}
	query += " ORDER BY id"

	var ids []string
	if err := sqlx.SelectContext(ctx, q.db, &ids, query, args...); err != nil {
		return nil, fmt.Errorf("list active workers: %w", err)
	}
	return ids, nil
}

// UpdateWorkerCompliance writes the denormalized cache columns.
func (q *Queries) UpdateWorkerCompliance(ctx context.Context, update models.WorkerComplianceUpdate) error {
	const query = `UPDATE workers SET
	compliance_status = :compliance_status,
	compliance_hash = COALESCE(:compliance_hash, compliance_hash),
	last_verified_at = COALESCE(:last_verified_at, last_verified_at),
	updated_by_id = COALESCE(:updated_by_id, updated_by_id),
	updated_at = :updated_at
	WHERE id = :id`
	result, err := sqlx.NamedExecContext(ctx, q.db, query, map[string]interface{}{
		"id":                update.WorkerID,
		"compliance_status": update.ComplianceStatus,
		"compliance_hash":   update.ComplianceHash,
		"last_verified_at":  update.LastVerifiedAt,
		"updated_by_id":     update.UpdatedByID,
		"updated_at":        update.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("update worker compliance: %w", err)
	}
	return requireAffected(result, "update worker compliance")
}

// GetCompany fetches a company by id.
func (q *Queries) GetCompany(ctx context.Context, id string) (*models.Company, error) {
	var company models.Company
	if err := sqlx.GetContext(ctx, q.db, &company, "SELECT id, name FROM companies WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &company, nil
}

// ListCompanies returns all companies ordered by name.
func (q *Queries) ListCompanies(ctx context.Context) ([]models.Company, error) {
	var companies []models.Company
	if err := sqlx.SelectContext(ctx, q.db, &companies, "SELECT id, name FROM companies ORDER BY name"); err != nil {
		return nil, fmt.Errorf("list companies: %w", err)
	}
	return companies, nil
}
