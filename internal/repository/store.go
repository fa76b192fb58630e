package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/compliance-api/internal/models"
)

// ComplianceQueries is the full persistence surface used by the compliance
// services. One implementation runs against the pool, another inside a transaction.
type ComplianceQueries interface {
	GetWorker(ctx context.Context, id string) (*models.Worker, error)
	GetWorkerForUpdate(ctx context.Context, id string) (*models.Worker, error)
	ListActiveWorkerIDs(ctx context.Context, companyID string) ([]string, error)
	UpdateWorkerCompliance(ctx context.Context, update models.WorkerComplianceUpdate) error

	GetCompany(ctx context.Context, id string) (*models.Company, error)
	ListCompanies(ctx context.Context) ([]models.Company, error)

	ListCertificationsByWorker(ctx context.Context, workerID string) ([]models.Certification, error)
	ListProofsByWorker(ctx context.Context, workerID string) ([]models.ProofArtifact, error)
	UpdateCertificationStatus(ctx context.Context, id string, status models.CertificationStatus, at time.Time) error
	ListExpiringCertifications(ctx context.Context, companyID string, before time.Time) ([]models.ExpiringCertification, error)

	ListCompanyDocumentCategories(ctx context.Context, companyID string) ([]models.DocumentCategory, error)
	ListCompanyDocuments(ctx context.Context, companyID string) ([]models.CompanyDocument, error)
	InsertCompanyDocument(ctx context.Context, doc *models.CompanyDocument) error

	InsertSnapshot(ctx context.Context, snapshot *models.Snapshot) error
	GetSnapshot(ctx context.Context, id string) (*models.Snapshot, error)
	LatestSnapshotAt(ctx context.Context, workerID string) (*time.Time, error)
	ListSnapshotsByWorker(ctx context.Context, workerID string, limit, offset int) ([]models.Snapshot, int, error)

	GetVerificationTokenByWorker(ctx context.Context, workerID string) (*models.VerificationToken, error)
	GetVerificationToken(ctx context.Context, token string) (*models.VerificationToken, error)
	InsertVerificationToken(ctx context.Context, token *models.VerificationToken) error
	PointVerificationToken(ctx context.Context, workerID, snapshotID string, at time.Time) error

	InsertAuditActivity(ctx context.Context, activity *models.AuditActivity) error
	ListAuditActivities(ctx context.Context, filter models.AuditActivityFilter) ([]models.AuditActivity, error)

	GetWorkOrder(ctx context.Context, id string) (*models.WorkOrder, error)
	GetActiveAssignment(ctx context.Context, workOrderID, workerID string) (*models.Assignment, error)
	GetAssignment(ctx context.Context, id string) (*models.Assignment, error)
	InsertAssignment(ctx context.Context, assignment *models.Assignment) error
	MarkAssignmentUnassigned(ctx context.Context, id, actorID string, at time.Time) error
	ListAssignmentsByWorkOrder(ctx context.Context, workOrderID string) ([]models.Assignment, error)

	InsertNotificationLog(ctx context.Context, log *models.NotificationLog) error
	GetNotificationLog(ctx context.Context, id string) (*models.NotificationLog, error)
	UpdateNotificationLog(ctx context.Context, update NotificationLogUpdate) error
}

// Queries executes SQL against either the pool or an open transaction.
type Queries struct {
	db sqlx.ExtContext
}

var _ ComplianceQueries = (*Queries)(nil)

// NewQueries binds queries to any sqlx executor.
func NewQueries(db sqlx.ExtContext) *Queries {
	return &Queries{db: db}
}

// Store owns the connection pool and the transaction boundary.
type Store struct {
	db *sqlx.DB
}

// NewStore constructs a Store.
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Read runs fn against the pool without a transaction.
func (s *Store) Read(ctx context.Context, fn func(q ComplianceQueries) error) error {
	return fn(NewQueries(s.db))
}

// WithinTx runs fn inside one transaction, committing only when fn returns nil.
func (s *Store) WithinTx(ctx context.Context, fn func(q ComplianceQueries) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(NewQueries(tx)); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
