package service

import (
	"context"
	"fmt"
	"math"
	"strings"
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

type datasetRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type tableRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ComplianceService refreshes cached statuses and answers live compliance questions.
type ComplianceService struct {
	store     complianceStore
	policy    Policy
	metrics   *MetricsService
	csv       datasetRenderer
	pdf       tableRenderer
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// ComplianceServiceOption configures the service.
type ComplianceServiceOption func(*ComplianceService)

// WithComplianceMetrics records refresh counters.
func WithComplianceMetrics(metrics *MetricsService) ComplianceServiceOption {
	return func(s *ComplianceService) { s.metrics = metrics }
}

// WithComplianceClock overrides the time source.
func WithComplianceClock(now func() time.Time) ComplianceServiceOption {
	return func(s *ComplianceService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewComplianceService constructs the service.
func NewComplianceService(store complianceStore, policy Policy, validate *validator.Validate, logger *zap.Logger, opts ...ComplianceServiceOption) *ComplianceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	svc := &ComplianceService{
		store:     store,
		policy:    policy.withDefaults(),
		csv:       export.NewCSVExporter(),
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

// RefreshWorkerStatus recomputes every certification and the worker
// aggregate, persisting the cached columns.
func (s *ComplianceService) RefreshWorkerStatus(ctx context.Context, workerID string, actor Actor) (*dto.RefreshResult, error) {
	now := s.now()
	var result *dto.RefreshResult
	err := s.store.WithinTx(ctx, func(q repository.ComplianceQueries) error {
		facts, err := loadWorkerFacts(ctx, q, workerID, actor, true, now)
		if err != nil {
			return err
		}
		changes, err := syncCertificationStatuses(ctx, q, facts, actor, now)
		if err != nil {
			return err
		}
		status := compliance.DeriveWorkerStatus(facts.certs)
		actorID := actorOrSystem(actor)
		if err := q.UpdateWorkerCompliance(ctx, models.WorkerComplianceUpdate{
			WorkerID:         workerID,
			ComplianceStatus: status,
			UpdatedByID:      &actorID,
			UpdatedAt:        now,
		}); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update worker compliance")
		}
		result = &dto.RefreshResult{
			WorkerID:       workerID,
			PreviousStatus: facts.worker.ComplianceStatus,
			Status:         status,
			Changes:        changes,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.RecordCertificationExpired(countExpired(result.Changes))
	return result, nil
}

// GetWorkerComplianceSummary computes live status and gaps without writing anything.
func (s *ComplianceService) GetWorkerComplianceSummary(ctx context.Context, workerID string, actor Actor) (*dto.WorkerComplianceSummary, error) {
	now := s.now()
	var facts *workerFacts
	err := s.store.Read(ctx, func(q repository.ComplianceQueries) error {
		var err error
		facts, err = loadWorkerFacts(ctx, q, workerID, actor, false, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	gaps := compliance.ComputeGaps(facts.certs, now, s.policy.ExpiringWindow)
	return &dto.WorkerComplianceSummary{
		WorkerID:       workerID,
		Active:         facts.worker.Active,
		Status:         compliance.DeriveWorkerStatus(facts.certs),
		Missing:        gaps.Missing,
		Expiring:       gaps.Expiring,
		Advisory:       gaps.Advisory,
		Blocking:       gaps.Blocking() || !facts.worker.Active,
		LastVerifiedAt: facts.worker.LastVerifiedAt,
	}, nil
}

// ListExpiringCertifications lists certifications in the actor's company that
// expire within the window, including ones already expired.
func (s *ComplianceService) ListExpiringCertifications(ctx context.Context, actor Actor, query dto.ExpiringCertificationsQuery) ([]dto.ExpiringCertification, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid expiring query")
	}
	if actor.CompanyID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "company scope is required")
	}
	return s.listExpiring(ctx, actor.CompanyID, query.WindowDays)
}

// ExportExpiringCertifications renders the expiring listing as CSV or PDF.
func (s *ComplianceService) ExportExpiringCertifications(ctx context.Context, actor Actor, query dto.ExpiringCertificationsQuery) ([]byte, string, string, error) {
	rows, err := s.ListExpiringCertifications(ctx, actor, query)
	if err != nil {
		return nil, "", "", err
	}

	data := export.Dataset{Headers: []string{"Worker", "Certification", "Required", "Expires", "Days Remaining", "Status"}}
	for _, row := range rows {
		required := "no"
		if row.Required {
			required = "yes"
		}
		data.Append(row.WorkerName, row.Label, required, row.ExpiresAt.Format("2006-01-02"), fmt.Sprintf("%d", row.DaysRemaining), string(row.Status))
	}

	stamp := s.now().Format("20060102")
	switch strings.ToLower(query.Format) {
	case "pdf":
		body, err := s.pdf.Render(data, "Expiring certifications")
		if err != nil {
			return nil, "", "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
		}
		return body, "expiring-certifications-" + stamp + ".pdf", "application/pdf", nil
	default:
		body, err := s.csv.Render(data)
		if err != nil {
			return nil, "", "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
		}
		return body, "expiring-certifications-" + stamp + ".csv", "text/csv", nil
	}
}

func (s *ComplianceService) listExpiring(ctx context.Context, companyID string, windowDays int) ([]dto.ExpiringCertification, error) {
	now := s.now()
	window := s.policy.ExpiringWindow
	if windowDays > 0 {
		window = time.Duration(windowDays) * 24 * time.Hour
	}

	var rows []models.ExpiringCertification
	err := s.store.Read(ctx, func(q repository.ComplianceQueries) error {
		var err error
		rows, err = q.ListExpiringCertifications(ctx, companyID, now.Add(window))
		return err
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list expiring certifications")
	}

	out := make([]dto.ExpiringCertification, 0, len(rows))
	for _, row := range rows {
		if row.ExpiresAt == nil {
			continue
		}
		out = append(out, dto.ExpiringCertification{
			CertificationID: row.ID,
			WorkerID:        row.WorkerID,
			WorkerName:      fullName(row.WorkerFirstName, row.WorkerLastName),
			Label:           row.Label(),
			Required:        row.Required,
			ExpiresAt:       *row.ExpiresAt,
			DaysRemaining:   int(math.Floor(row.ExpiresAt.Sub(now).Hours() / 24)),
			Status:          compliance.DeriveCertificationStatus(row.Certification, row.ProofCount, now),
		})
	}
	return out, nil
}

// SweepActiveWorkers refreshes every active worker. One worker failing does
// not stop the sweep.
func (s *ComplianceService) SweepActiveWorkers(ctx context.Context) (dto.SweepResult, error) {
	start := time.Now()
	defer func() { s.metrics.ObserveSweep(time.Since(start)) }()

	var ids []string
	err := s.store.Read(ctx, func(q repository.ComplianceQueries) error {
		var err error
		ids, err = q.ListActiveWorkerIDs(ctx, "")
		return err
	})
	if err != nil {
		return dto.SweepResult{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list active workers")
	}

	result := dto.SweepResult{Workers: len(ids)}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		refresh, err := s.RefreshWorkerStatus(ctx, id, Actor{UserID: SystemActorID})
		if err != nil {
			result.Failed++
			s.logger.Warn("sweep refresh failed", zap.String("worker_id", id), zap.Error(err))
			continue
		}
		if len(refresh.Changes) > 0 || refresh.PreviousStatus != refresh.Status {
			result.Changed++
		}
	}
	s.logger.Info("compliance sweep finished",
		zap.Int("workers", result.Workers),
		zap.Int("changed", result.Changed),
		zap.Int("failed", result.Failed),
		zap.Duration("elapsed", time.Since(start)),
	)
	return result, nil
}

// ExpiringDigest is one company's count of lapsed and soon-lapsing certifications.
type ExpiringDigest struct {
	CompanyID   string
	CompanyName string
	Expired     int
	Expiring    int
}

// ExpiringDigests summarises expiring certifications per company for the daily job.
func (s *ComplianceService) ExpiringDigests(ctx context.Context) ([]ExpiringDigest, error) {
	var companies []models.Company
	err := s.store.Read(ctx, func(q repository.ComplianceQueries) error {
		var err error
		companies, err = q.ListCompanies(ctx)
		return err
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list companies")
	}

	digests := make([]ExpiringDigest, 0, len(companies))
	for _, company := range companies {
		rows, err := s.listExpiring(ctx, company.ID, 0)
		if err != nil {
			return nil, err
		}
		digest := ExpiringDigest{CompanyID: company.ID, CompanyName: company.Name}
		for _, row := range rows {
			if row.Status == models.CertificationStatusExpired {
				digest.Expired++
			} else {
				digest.Expiring++
			}
		}
		digests = append(digests, digest)
	}
	return digests, nil
}

// ListAuditActivities reads the audit trail for the actor's company.
func (s *ComplianceService) ListAuditActivities(ctx context.Context, actor Actor, query dto.AuditActivityQuery) ([]models.AuditActivity, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid audit query")
	}
	filter := models.AuditActivityFilter{
		CompanyID:  actor.CompanyID,
		EmployeeID: query.WorkerID,
		Limit:      query.Limit,
		Offset:     query.Offset,
	}
	if query.Type != "" {
		for _, t := range strings.Split(query.Type, ",") {
			if t = strings.TrimSpace(t); t != "" {
				filter.Types = append(filter.Types, models.ActivityType(strings.ToUpper(t)))
			}
		}
	}

	var activities []models.AuditActivity
	err := s.store.Read(ctx, func(q repository.ComplianceQueries) error {
		var err error
		activities, err = q.ListAuditActivities(ctx, filter)
		return err
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list audit activities")
	}
	return activities, nil
}
