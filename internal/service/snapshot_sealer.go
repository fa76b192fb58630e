package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/noah-isme/compliance-api/internal/compliance"
	"github.com/noah-isme/compliance-api/internal/dto"
	"github.com/noah-isme/compliance-api/internal/models"
	"github.com/noah-isme/compliance-api/internal/repository"
	appErrors "github.com/noah-isme/compliance-api/pkg/errors"
)

type sealedSnapshot struct {
	snapshot *models.Snapshot
	payload  compliance.Payload
	token    string
}

// sealSnapshot builds, hashes and persists a snapshot, repoints the worker's
// token, refreshes the worker caches and appends SNAPSHOT_CREATED. It must run
// inside the caller's transaction so all four writes land together.
func sealSnapshot(ctx context.Context, q repository.ComplianceQueries, policy Policy, facts *workerFacts, source models.SnapshotSource, actor Actor, now time.Time) (*sealedSnapshot, error) {
	worker := facts.worker

	token, err := q.GetVerificationTokenByWorker(ctx, worker.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrMissingVerificationToken, "worker has no verification token provisioned")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load verification token")
	}

	company, err := q.GetCompany(ctx, worker.CompanyID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load company")
	}
	categories, err := q.ListCompanyDocumentCategories(ctx, worker.CompanyID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load company documents")
	}
	prior, err := q.LatestSnapshotAt(ctx, worker.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load previous snapshot")
	}

	reasons := compliance.EvaluateFailures(compliance.FailureInput{
		Worker:           *worker,
		Certifications:   facts.certs,
		CompanyDocuments: categories,
		PriorSnapshotAt:  prior,
		Now:              now,
		FreshnessWindow:  policy.SnapshotFreshness,
	})
	status := compliance.OverallStatus(reasons)

	payload := compliance.BuildPayload(compliance.PayloadInput{
		Company:        *company,
		Worker:         *worker,
		Certifications: facts.certs,
		FailureReasons: reasons,
		Status:         status,
		GeneratedAt:    now,
	})
	raw, hash, err := compliance.Seal(payload)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to seal snapshot")
	}

	actorID := actorOrSystem(actor)
	snapshot := &models.Snapshot{
		WorkerID:     worker.ID,
		CompanyID:    worker.CompanyID,
		Status:       status,
		Payload:      raw,
		SnapshotHash: hash,
		Source:       source,
		CreatedAt:    payload.GeneratedAt,
		CreatedByID:  actorID,
	}
	if err := q.InsertSnapshot(ctx, snapshot); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist snapshot")
	}
	if err := q.PointVerificationToken(ctx, worker.ID, snapshot.ID, now); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to repoint verification token")
	}

	verifiedAt := payload.GeneratedAt
	if err := q.UpdateWorkerCompliance(ctx, models.WorkerComplianceUpdate{
		WorkerID:         worker.ID,
		ComplianceStatus: status,
		ComplianceHash:   &hash,
		LastVerifiedAt:   &verifiedAt,
		UpdatedByID:      &actorID,
		UpdatedAt:        now,
	}); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update worker compliance")
	}

	if err := appendAudit(ctx, q, auditEntry{
		companyID: worker.CompanyID,
		actorID:   actorID,
		activity:  models.ActivitySnapshotCreated,
		workerID:  worker.ID,
		metadata: map[string]interface{}{
			"snapshotId":     snapshot.ID,
			"snapshotHash":   hash,
			"status":         status,
			"source":         source,
			"failureReasons": reasons,
		},
		at: now,
	}); err != nil {
		return nil, err
	}

	return &sealedSnapshot{snapshot: snapshot, payload: payload, token: token.Token}, nil
}

// syncCertificationStatuses writes recomputed statuses back to the cached
// column. Transitions into EXPIRED append CERT_EXPIRED; other changes are silent.
func syncCertificationStatuses(ctx context.Context, q repository.ComplianceQueries, facts *workerFacts, actor Actor, now time.Time) ([]dto.CertificationStatusChange, error) {
	changes := make([]dto.CertificationStatusChange, 0)
	for _, c := range facts.certs {
		cert := c.Certification
		if cert.Status == c.Status {
			continue
		}
		if err := q.UpdateCertificationStatus(ctx, cert.ID, c.Status, now); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update certification status")
		}
		changes = append(changes, dto.CertificationStatusChange{
			CertificationID: cert.ID,
			Label:           cert.Label(),
			From:            cert.Status,
			To:              c.Status,
		})
		if c.Status != models.CertificationStatusExpired {
			continue
		}
		if err := appendAudit(ctx, q, auditEntry{
			companyID:       facts.worker.CompanyID,
			actorID:         actorOrSystem(actor),
			activity:        models.ActivityCertExpired,
			workerID:        facts.worker.ID,
			certificationID: cert.ID,
			metadata: map[string]interface{}{
				"label":     cert.Label(),
				"from":      cert.Status,
				"expiresAt": cert.ExpiresAt,
			},
			at: now,
		}); err != nil {
			return nil, err
		}
	}
	return changes, nil
}

func countExpired(changes []dto.CertificationStatusChange) int {
	n := 0
	for _, change := range changes {
		if change.To == models.CertificationStatusExpired {
			n++
		}
	}
	return n
}
