package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/compliance-api/internal/models"
)

const certificationColumns = `id, worker_id, preset_key, name, required, issue_date, expires_at, status, created_at, updated_at`

// ListCertificationsByWorker returns every certification owned by the worker.
func (q *Queries) ListCertificationsByWorker(ctx context.Context, workerID string) ([]models.Certification, error) {
	query := "SELECT " + certificationColumns + " FROM certifications WHERE worker_id = $1 ORDER BY id"
	var certs []models.Certification
	if err := sqlx.SelectContext(ctx, q.db, &certs, query, workerID); err != nil {
		return nil, fmt.Errorf("list certifications: %w", err)
	}
	return certs, nil
}

// ListProofsByWorker returns proof artifacts for all of the worker's certifications.
func (q *Queries) ListProofsByWorker(ctx context.Context, workerID string) ([]models.ProofArtifact, error) {
	const query = `SELECT p.id, p.certification_id, p.file_key, p.content_type, p.digest, p.uploaded_at
	FROM proof_artifacts p
	JOIN certifications c ON c.id = p.certification_id
	WHERE c.worker_id = $1
	ORDER BY p.certification_id, p.id`
	var proofs []models.ProofArtifact
	if err := sqlx.SelectContext(ctx, q.db, &proofs, query, workerID); err != nil {
		return nil, fmt.Errorf("list proof artifacts: %w", err)
	}
	return proofs, nil
}

// UpdateCertificationStatus refreshes the cached status column.
func (q *Queries) UpdateCertificationStatus(ctx context.Context, id string, status models.CertificationStatus, at time.Time) error {
	result, err := q.db.ExecContext(ctx, "UPDATE certifications SET status = $2, updated_at = $3 WHERE id = $1", id, status, at)
	if err != nil {
		return fmt.Errorf("update certification status: %w", err)
	}
	return requireAffected(result, "update certification status")
}

// ListExpiringCertifications lists certifications of active workers in the
// company whose expiry falls before the cutoff, soonest first. Already
// expired rows are included.
func (q *Queries) ListExpiringCertifications(ctx context.Context, companyID string, before time.Time) ([]models.ExpiringCertification, error) {
	const query = `SELECT c.id, c.worker_id, c.preset_key, c.name, c.required, c.issue_date, c.expires_at, c.status,
	c.created_at, c.updated_at,
	w.first_name AS worker_first_name, w.last_name AS worker_last_name,
	(SELECT COUNT(*) FROM proof_artifacts p WHERE p.certification_id = c.id) AS proof_count
	FROM certifications c
	JOIN workers w ON w.id = c.worker_id
	WHERE w.company_id = $1 AND w.active = TRUE AND c.expires_at IS NOT NULL AND c.expires_at <= $2
	ORDER BY c.expires_at ASC, c.id ASC`
	var certs []models.ExpiringCertification
	if err := sqlx.SelectContext(ctx, q.db, &certs, query, companyID, before); err != nil {
		return nil, fmt.Errorf("list expiring certifications: %w", err)
	}
	return certs, nil
}
