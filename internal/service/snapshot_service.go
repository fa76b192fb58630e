package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/compliance-api/internal/compliance"
	"github.com/noah-isme/compliance-api/internal/dto"
	"github.com/noah-isme/compliance-api/internal/models"
	"github.com/noah-isme/compliance-api/internal/repository"
	appErrors "github.com/noah-isme/compliance-api/pkg/errors"
	"github.com/noah-isme/compliance-api/pkg/export"
)

type certificateRenderer interface {
	RenderCertificate(cert export.Certificate) ([]byte, error)
}

// SnapshotService seals and serves immutable compliance snapshots.
type SnapshotService struct {
	store     complianceStore
	policy    Policy
	cache     *CacheService
	metrics   *MetricsService
	pdf       certificateRenderer
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// SnapshotServiceOption configures the service.
type SnapshotServiceOption func(*SnapshotService)

// WithSnapshotCache enables the sealed snapshot cache.
func WithSnapshotCache(cache *CacheService) SnapshotServiceOption {
	return func(s *SnapshotService) { s.cache = cache }
}

// WithSnapshotMetrics records snapshot counters.
func WithSnapshotMetrics(metrics *MetricsService) SnapshotServiceOption {
	return func(s *SnapshotService) { s.metrics = metrics }
}

// WithSnapshotClock overrides the time source.
func WithSnapshotClock(now func() time.Time) SnapshotServiceOption {
	return func(s *SnapshotService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithCertificateRenderer overrides the PDF renderer.
func WithCertificateRenderer(renderer certificateRenderer) SnapshotServiceOption {
	return func(s *SnapshotService) {
		if renderer != nil {
			s.pdf = renderer
		}
	}
}

// NewSnapshotService constructs the service with defaults.
func NewSnapshotService(store complianceStore, policy Policy, validate *validator.Validate, logger *zap.Logger, opts ...SnapshotServiceOption) *SnapshotService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	svc := &SnapshotService{
		store:     store,
		policy:    policy.withDefaults(),
		pdf:       export.NewPDFExporter(),
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// CreateSnapshot recomputes the worker's compliance and seals it. The snapshot
// insert, token repoint, worker cache update and audit entry commit together.
func (s *SnapshotService) CreateSnapshot(ctx context.Context, workerID string, actor Actor, req dto.CreateSnapshotRequest) (*dto.CreateSnapshotResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid snapshot payload")
	}
	source := models.SnapshotSourceManual
	if req.Source != "" {
		source = models.SnapshotSource(req.Source)
	}
	if !source.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown snapshot source")
	}

	now := s.now()
	var (
		sealed  *sealedSnapshot
		expired int
	)
	err := s.store.WithinTx(ctx, func(q repository.ComplianceQueries) error {
		facts, err := loadWorkerFacts(ctx, q, workerID, actor, true, now)
		if err != nil {
			return err
		}
		changes, err := syncCertificationStatuses(ctx, q, facts, actor, now)
		if err != nil {
			return err
		}
		expired = countExpired(changes)
		sealed, err = sealSnapshot(ctx, q, s.policy, facts, source, actor, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordCertificationExpired(expired)
	s.metrics.RecordSnapshot(string(source), string(sealed.snapshot.Status))
	s.cache.PutSnapshot(ctx, sealed.snapshot)
	s.logger.Info("snapshot sealed",
		zap.String("worker_id", workerID),
		zap.String("snapshot_id", sealed.snapshot.ID),
		zap.String("status", string(sealed.snapshot.Status)),
		zap.String("source", string(source)),
	)

	return &dto.CreateSnapshotResponse{
		Snapshot: dto.SnapshotResponse{
			Snapshot:  *sealed.snapshot,
			Payload:   sealed.payload,
			HashValid: true,
		},
		Token:     sealed.token,
		VerifyURL: s.policy.verifyURL(sealed.token),
	}, nil
}

// GetSnapshot returns any committed snapshot by id within the actor's company.
func (s *SnapshotService) GetSnapshot(ctx context.Context, id string, actor Actor) (*dto.SnapshotResponse, error) {
	snapshot, err := s.loadSnapshot(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.CompanyID != "" && snapshot.CompanyID != actor.CompanyID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "snapshot not found")
	}
	return s.toResponse(snapshot)
}

// ListSnapshots pages a worker's snapshot history newest first.
func (s *SnapshotService) ListSnapshots(ctx context.Context, workerID string, actor Actor, query dto.ListSnapshotsQuery) ([]dto.SnapshotResponse, int, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid pagination")
	}
	var (
		snapshots []models.Snapshot
		total     int
	)
	err := s.store.Read(ctx, func(q repository.ComplianceQueries) error {
		worker, err := q.GetWorker(ctx, workerID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrWorkerNotFound, "worker not found")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load worker")
		}
		if actor.CompanyID != "" && worker.CompanyID != actor.CompanyID {
			return appErrors.Clone(appErrors.ErrWorkerNotFound, "worker not found")
		}
		snapshots, total, err = q.ListSnapshotsByWorker(ctx, workerID, query.Limit, query.Offset)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list snapshots")
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	out := make([]dto.SnapshotResponse, 0, len(snapshots))
	for i := range snapshots {
		resp, err := s.toResponse(&snapshots[i])
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *resp)
	}
	return out, total, nil
}

// RenderCertificate prints a snapshot as PDF using only its sealed payload.
func (s *SnapshotService) RenderCertificate(ctx context.Context, id string, actor Actor) ([]byte, string, error) {
	resp, err := s.GetSnapshot(ctx, id, actor)
	if err != nil {
		return nil, "", err
	}
	if !resp.HashValid {
		return nil, "", appErrors.Clone(appErrors.ErrConflict, "snapshot payload failed integrity check")
	}

	var token string
	err = s.store.Read(ctx, func(q repository.ComplianceQueries) error {
		t, err := q.GetVerificationTokenByWorker(ctx, resp.WorkerID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load verification token")
		}
		token = t.Token
		return nil
	})
	if err != nil {
		return nil, "", err
	}

	body, err := s.pdf.RenderCertificate(certificateFromPayload(resp, s.policy.verifyURL(token)))
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render certificate")
	}
	return body, CertificateFilename(resp.ID), nil
}

func (s *SnapshotService) loadSnapshot(ctx context.Context, id string) (*models.Snapshot, error) {
	if cached, ok := s.cache.GetSnapshot(ctx, id); ok {
		return cached, nil
	}
	var snapshot *models.Snapshot
	err := s.store.Read(ctx, func(q repository.ComplianceQueries) error {
		var err error
		snapshot, err = q.GetSnapshot(ctx, id)
		return err
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "snapshot not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load snapshot")
	}
	s.cache.PutSnapshot(ctx, snapshot)
	return snapshot, nil
}

func (s *SnapshotService) toResponse(snapshot *models.Snapshot) (*dto.SnapshotResponse, error) {
	hashValid := compliance.VerifyHash(snapshot.Payload, snapshot.SnapshotHash)
	payload, err := compliance.DecodePayload(snapshot.Payload)
	if err != nil {
		s.logger.Error("stored snapshot payload unreadable", zap.String("snapshot_id", snapshot.ID), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "stored snapshot payload unreadable")
	}
	if !hashValid {
		s.logger.Error("snapshot hash mismatch", zap.String("snapshot_id", snapshot.ID))
	}
	return &dto.SnapshotResponse{Snapshot: *snapshot, Payload: payload, HashValid: hashValid}, nil
}

func certificateFromPayload(resp *dto.SnapshotResponse, verifyURL string) export.Certificate {
	p := resp.Payload
	jobTitle := ""
	if p.Worker.JobTitle != nil {
		jobTitle = *p.Worker.JobTitle
	}
	certs := export.Dataset{Headers: []string{"Certification", "Required", "Issued", "Expires", "Status", "Proofs"}}
	for _, c := range p.Certifications {
		required := "No"
		if c.Required {
			required = "Yes"
		}
		certs.Append(c.Name, required, derefString(c.IssueDate), derefString(c.ExpiresAt), string(c.Status), fmt.Sprintf("%d", len(c.ProofDigests)))
	}
	reasons := make([]string, 0, len(p.FailureReasons))
	for _, r := range p.FailureReasons {
		reasons = append(reasons, r.Label)
	}
	return export.Certificate{
		CompanyName:    p.Company.Name,
		WorkerName:     fullName(p.Worker.FirstName, p.Worker.LastName),
		JobTitle:       jobTitle,
		Status:         string(p.Worker.Status),
		SnapshotID:     resp.ID,
		SnapshotHash:   resp.SnapshotHash,
		SealedAt:       p.GeneratedAt,
		VerifyURL:      verifyURL,
		Certifications: certs,
		FailureReasons: reasons,
	}
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func fullName(first, last string) string {
	return models.Worker{FirstName: first, LastName: last}.FullName()
}

// CertificateFilename names the PDF rendered for a snapshot.
func CertificateFilename(snapshotID string) string {
	return fmt.Sprintf("compliance-%s.pdf", snapshotID)
}
