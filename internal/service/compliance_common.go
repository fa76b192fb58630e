package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/noah-isme/compliance-api/internal/compliance"
	"github.com/noah-isme/compliance-api/internal/models"
	"github.com/noah-isme/compliance-api/internal/repository"
	appErrors "github.com/noah-isme/compliance-api/pkg/errors"
	"github.com/noah-isme/compliance-api/pkg/middleware/requestid"
)

// SystemActorID is recorded on audit rows written by scheduled jobs.
const SystemActorID = "system"

type complianceStore interface {
	WithinTx(ctx context.Context, fn func(q repository.ComplianceQueries) error) error
	Read(ctx context.Context, fn func(q repository.ComplianceQueries) error) error
}

// Actor identifies who is calling. An empty CompanyID means unscoped (jobs).
type Actor struct {
	UserID    string
	CompanyID string
	Role      models.UserRole
}

// ActorFromClaims builds an Actor from validated access token claims.
func ActorFromClaims(claims *models.JWTClaims) Actor {
	if claims == nil {
		return Actor{}
	}
	return Actor{UserID: claims.UserID, CompanyID: claims.CompanyID, Role: claims.Role}
}

// Policy carries the tunable compliance rules.
type Policy struct {
	SnapshotFreshness    time.Duration
	ExpiringWindow       time.Duration
	OverrideMinReasonLen int
	VerifyBaseURL        string
}

func (p Policy) withDefaults() Policy {
	if p.SnapshotFreshness <= 0 {
		p.SnapshotFreshness = compliance.DefaultFreshness
	}
	if p.ExpiringWindow <= 0 {
		p.ExpiringWindow = compliance.DefaultExpiringWindow
	}
	if p.OverrideMinReasonLen <= 0 {
		p.OverrideMinReasonLen = 10
	}
	return p
}

func (p Policy) verifyURL(token string) string {
	if p.VerifyBaseURL == "" || token == "" {
		return ""
	}
	return p.VerifyBaseURL + "/" + token
}

type workerFacts struct {
	worker *models.Worker
	certs  []compliance.EvaluatedCertification
}

// loadWorkerFacts reads the worker and recomputes certification statuses.
// Workers outside the actor's company are reported as not found.
func loadWorkerFacts(ctx context.Context, q repository.ComplianceQueries, workerID string, actor Actor, lock bool, now time.Time) (*workerFacts, error) {
	var (
		worker *models.Worker
		err    error
	)
	if lock {
		worker, err = q.GetWorkerForUpdate(ctx, workerID)
	} else {
		worker, err = q.GetWorker(ctx, workerID)
	}
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrWorkerNotFound, "worker not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load worker")
	}
	if actor.CompanyID != "" && worker.CompanyID != actor.CompanyID {
		return nil, appErrors.Clone(appErrors.ErrWorkerNotFound, "worker not found")
	}

	certs, err := q.ListCertificationsByWorker(ctx, workerID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load certifications")
	}
	proofs, err := q.ListProofsByWorker(ctx, workerID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load proof artifacts")
	}

	return &workerFacts{worker: worker, certs: compliance.Evaluate(certs, proofs, now)}, nil
}

type auditEntry struct {
	companyID       string
	actorID         string
	activity        models.ActivityType
	workerID        string
	certificationID string
	metadata        interface{}
	at              time.Time
}

// appendAudit writes one audit row, tagging it with the request id when present.
func appendAudit(ctx context.Context, q repository.ComplianceQueries, entry auditEntry) error {
	metadata := []byte("{}")
	if entry.metadata != nil {
		encoded, err := json.Marshal(entry.metadata)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode audit metadata")
		}
		metadata = encoded
	}
	activity := &models.AuditActivity{
		CompanyID: entry.companyID,
		ActorID:   entry.actorID,
		Type:      entry.activity,
		Metadata:  metadata,
		CreatedAt: entry.at,
	}
	if entry.workerID != "" {
		activity.RelatedEmployeeID = stringPtr(entry.workerID)
	}
	if entry.certificationID != "" {
		activity.RelatedCertificationID = stringPtr(entry.certificationID)
	}
	if reqID := requestid.FromContext(ctx); reqID != "" {
		activity.RequestID = stringPtr(reqID)
	}
	if err := q.InsertAuditActivity(ctx, activity); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to append audit activity")
	}
	return nil
}

func stringPtr(v string) *string {
	return &v
}

func actorOrSystem(actor Actor) string {
	if actor.UserID == "" {
		return SystemActorID
	}
	return actor.UserID
}
