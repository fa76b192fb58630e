package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/compliance-api/internal/compliance"
	"github.com/noah-isme/compliance-api/internal/dto"
	"github.com/noah-isme/compliance-api/internal/models"
	"github.com/noah-isme/compliance-api/internal/repository"
	appErrors "github.com/noah-isme/compliance-api/pkg/errors"
)

type assignmentNotifier interface {
	NotifyAssignment(ctx context.Context, notice AssignmentNotice) error
}

// DispatchService gates worker assignment on live compliance state.
type DispatchService struct {
	store     complianceStore
	policy    Policy
	notifier  assignmentNotifier
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// DispatchServiceOption configures the service.
type DispatchServiceOption func(*DispatchService)

// WithDispatchNotifier sends assignment notifications after commit.
func WithDispatchNotifier(notifier assignmentNotifier) DispatchServiceOption {
	return func(s *DispatchService) { s.notifier = notifier }
}

// WithDispatchCache stores dispatch snapshots in the snapshot cache.
func WithDispatchCache(cache *CacheService) DispatchServiceOption {
	return func(s *DispatchService) { s.cache = cache }
}

// WithDispatchMetrics records gate outcomes.
func WithDispatchMetrics(metrics *MetricsService) DispatchServiceOption {
	return func(s *DispatchService) { s.metrics = metrics }
}

// WithDispatchClock overrides the time source.
func WithDispatchClock(now func() time.Time) DispatchServiceOption {
	return func(s *DispatchService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewDispatchService constructs the gate.
func NewDispatchService(store complianceStore, policy Policy, validate *validator.Validate, logger *zap.Logger, opts ...DispatchServiceOption) *DispatchService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	svc := &DispatchService{
		store:     store,
		policy:    policy.withDefaults(),
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

// blockedAttempt is captured inside the transaction so the rejection can be
// audited after rollback.
type blockedAttempt struct {
	companyID string
	workerID  string
	outcome   string
	metadata  map[string]interface{}
}

// AssignWorker evaluates the worker's live gaps and either records a clean
// assignment, records an acknowledged override, or rejects the request.
// Every accepted decision references a dispatch snapshot sealed in the same
// transaction.
func (s *DispatchService) AssignWorker(ctx context.Context, workOrderID string, actor Actor, req dto.AssignWorkerRequest) (*dto.AssignmentResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}

	now := s.now()
	var (
		assignment *models.Assignment
		gaps       compliance.GapSummary
		notice     AssignmentNotice
		sealed     *sealedSnapshot
		blocked    *blockedAttempt
		outcome    string
		expired    int
	)

	err := s.store.WithinTx(ctx, func(q repository.ComplianceQueries) error {
		order, err := q.GetWorkOrder(ctx, workOrderID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "work order not found")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load work order")
		}
		if actor.CompanyID != "" && order.CompanyID != actor.CompanyID {
			return appErrors.Clone(appErrors.ErrNotFound, "work order not found")
		}

		facts, err := loadWorkerFacts(ctx, q, req.WorkerID, Actor{UserID: actor.UserID, CompanyID: order.CompanyID, Role: actor.Role}, true, now)
		if err != nil {
			return err
		}
		worker := facts.worker

		if !worker.Active {
			blocked = &blockedAttempt{
				companyID: order.CompanyID,
				workerID:  worker.ID,
				outcome:   DispatchOutcomeInactive,
				metadata:  map[string]interface{}{"workOrderId": order.ID, "reason": "worker inactive"},
			}
			return appErrors.Clone(appErrors.ErrWorkerInactive, "worker is inactive and cannot be dispatched")
		}

		if _, err := q.GetActiveAssignment(ctx, order.ID, worker.ID); err == nil {
			return appErrors.Clone(appErrors.ErrConflict, "worker is already assigned to this work order")
		} else if !errors.Is(err, sql.ErrNoRows) {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing assignment")
		}

		gaps = compliance.ComputeGaps(facts.certs, now, s.policy.ExpiringWindow)
		status := compliance.DeriveWorkerStatus(facts.certs)
		details := dto.ComplianceBlockedDetails{
			WorkerID: worker.ID,
			Status:   status,
			Missing:  gaps.Missing,
			Expiring: gaps.Expiring,
		}

		override := false
		if gaps.Blocking() {
			if !req.ForceOverride {
				blocked = &blockedAttempt{
					companyID: order.CompanyID,
					workerID:  worker.ID,
					outcome:   DispatchOutcomeBlocked,
					metadata:  map[string]interface{}{"workOrderId": order.ID, "gaps": gaps},
				}
				return appErrors.WithDetails(appErrors.ErrComplianceBlocked, details)
			}
			if !validOverrideReason(req.OverrideReason, s.policy.OverrideMinReasonLen) {
				details.MinimumReasonChars = s.policy.OverrideMinReasonLen
				blocked = &blockedAttempt{
					companyID: order.CompanyID,
					workerID:  worker.ID,
					outcome:   DispatchOutcomeReasonRequired,
					metadata:  map[string]interface{}{"workOrderId": order.ID, "gaps": gaps, "reason": "override reason too short"},
				}
				return appErrors.WithDetails(appErrors.ErrOverrideReasonRequired, details)
			}
			override = true
		}

		changes, err := syncCertificationStatuses(ctx, q, facts, actor, now)
		if err != nil {
			return err
		}
		expired = countExpired(changes)

		sealed, err = sealSnapshot(ctx, q, s.policy, facts, models.SnapshotSourceDispatch, actor, now)
		if err != nil {
			return err
		}

		gapJSON, err := json.Marshal(gaps)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode gap summary")
		}

		actorID := actorOrSystem(actor)
		assignment = &models.Assignment{
			WorkOrderID:            order.ID,
			WorkerID:               worker.ID,
			ComplianceStatus:       status,
			GapSummary:             gapJSON,
			ComplianceSnapshotHash: stringPtr(sealed.snapshot.SnapshotHash),
			AssignedByID:           actorID,
			AssignedAt:             now,
		}
		activity := models.ActivityAssignmentCreated
		outcome = DispatchOutcomeClean
		if override {
			overrideAt := now
			assignment.OverrideAcknowledged = true
			assignment.OverrideReason = stringPtr(*req.OverrideReason)
			assignment.OverrideActorID = stringPtr(actorID)
			assignment.OverrideAt = &overrideAt
			activity = models.ActivityComplianceOverride
			outcome = DispatchOutcomeOverride
		}
		if err := q.InsertAssignment(ctx, assignment); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record assignment")
		}

		metadata := map[string]interface{}{
			"assignmentId":     assignment.ID,
			"workOrderId":      order.ID,
			"complianceStatus": status,
			"snapshotId":       sealed.snapshot.ID,
			"snapshotHash":     sealed.snapshot.SnapshotHash,
			"gaps":             gaps,
		}
		if override {
			metadata["overrideReason"] = *assignment.OverrideReason
		}
		if err := appendAudit(ctx, q, auditEntry{
			companyID: order.CompanyID,
			actorID:   actorID,
			activity:  activity,
			workerID:  worker.ID,
			metadata:  metadata,
			at:        now,
		}); err != nil {
			return err
		}

		notice = AssignmentNotice{
			Assignment: *assignment,
			WorkOrder:  *order,
			Worker:     *worker,
			Gaps:       gaps,
			SnapshotID: sealed.snapshot.ID,
		}
		return nil
	})
	if err != nil {
		if blocked != nil {
			s.recordBlocked(ctx, actor, blocked, now)
		}
		return nil, err
	}

	s.metrics.RecordDispatchDecision(outcome)
	s.metrics.RecordCertificationExpired(expired)
	s.metrics.RecordSnapshot(string(models.SnapshotSourceDispatch), string(sealed.snapshot.Status))
	s.cache.PutSnapshot(ctx, sealed.snapshot)
	s.logger.Info("worker dispatched",
		zap.String("assignment_id", assignment.ID),
		zap.String("work_order_id", workOrderID),
		zap.String("worker_id", assignment.WorkerID),
		zap.String("outcome", outcome),
	)

	if s.notifier != nil {
		if err := s.notifier.NotifyAssignment(ctx, notice); err != nil {
			s.logger.Warn("assignment notification not queued",
				zap.String("assignment_id", assignment.ID),
				zap.Error(err),
			)
		}
	}

	return &dto.AssignmentResponse{Assignment: *assignment, GapSummary: gaps}, nil
}

// recordBlocked writes ASSIGNMENT_BLOCKED outside the rolled back transaction.
func (s *DispatchService) recordBlocked(ctx context.Context, actor Actor, attempt *blockedAttempt, now time.Time) {
	s.metrics.RecordDispatchDecision(attempt.outcome)
	attempt.metadata["outcome"] = attempt.outcome
	err := s.store.WithinTx(ctx, func(q repository.ComplianceQueries) error {
		return appendAudit(ctx, q, auditEntry{
			companyID: attempt.companyID,
			actorID:   actorOrSystem(actor),
			activity:  models.ActivityAssignmentBlocked,
			workerID:  attempt.workerID,
			metadata:  attempt.metadata,
			at:        now,
		})
	})
	if err != nil {
		s.logger.Error("failed to audit blocked assignment", zap.String("worker_id", attempt.workerID), zap.Error(err))
	}
}

// UnassignWorker soft-removes an active assignment.
func (s *DispatchService) UnassignWorker(ctx context.Context, assignmentID string, actor Actor) (*dto.AssignmentResponse, error) {
	now := s.now()
	var assignment *models.Assignment
	err := s.store.WithinTx(ctx, func(q repository.ComplianceQueries) error {
		current, order, err := s.loadAssignment(ctx, q, assignmentID, actor)
		if err != nil {
			return err
		}
		if !current.Active() {
			return appErrors.Clone(appErrors.ErrConflict, "worker is already unassigned")
		}

		actorID := actorOrSystem(actor)
		if err := q.MarkAssignmentUnassigned(ctx, current.ID, actorID, now); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrConflict, "worker is already unassigned")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to unassign worker")
		}
		if err := appendAudit(ctx, q, auditEntry{
			companyID: order.CompanyID,
			actorID:   actorID,
			activity:  models.ActivityWorkerUnassigned,
			workerID:  current.WorkerID,
			metadata: map[string]interface{}{
				"assignmentId": current.ID,
				"workOrderId":  order.ID,
			},
			at: now,
		}); err != nil {
			return err
		}

		current.UnassignedAt = &now
		current.UnassignedByID = stringPtr(actorID)
		assignment = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("worker unassigned", zap.String("assignment_id", assignmentID), zap.String("worker_id", assignment.WorkerID))
	return toAssignmentResponse(assignment)
}

// ListAssignments returns every assignment on a work order, including removed ones.
func (s *DispatchService) ListAssignments(ctx context.Context, workOrderID string, actor Actor) ([]dto.AssignmentResponse, error) {
	var assignments []models.Assignment
	err := s.store.Read(ctx, func(q repository.ComplianceQueries) error {
		order, err := q.GetWorkOrder(ctx, workOrderID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "work order not found")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load work order")
		}
		if actor.CompanyID != "" && order.CompanyID != actor.CompanyID {
			return appErrors.Clone(appErrors.ErrNotFound, "work order not found")
		}
		assignments, err = q.ListAssignmentsByWorkOrder(ctx, workOrderID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assignments")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]dto.AssignmentResponse, 0, len(assignments))
	for i := range assignments {
		resp, err := toAssignmentResponse(&assignments[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *resp)
	}
	return out, nil
}

func (s *DispatchService) loadAssignment(ctx context.Context, q repository.ComplianceQueries, id string, actor Actor) (*models.Assignment, *models.WorkOrder, error) {
	assignment, err := q.GetAssignment(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}
	order, err := q.GetWorkOrder(ctx, assignment.WorkOrderID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load work order")
	}
	if actor.CompanyID != "" && order.CompanyID != actor.CompanyID {
		return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
	}
	return assignment, order, nil
}

func toAssignmentResponse(assignment *models.Assignment) (*dto.AssignmentResponse, error) {
	resp := &dto.AssignmentResponse{
		Assignment: *assignment,
		GapSummary: compliance.GapSummary{Missing: []compliance.GapItem{}, Expiring: []compliance.GapItem{}, Advisory: []compliance.GapItem{}},
	}
	if len(assignment.GapSummary) > 0 {
		if err := json.Unmarshal(assignment.GapSummary, &resp.GapSummary); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to decode gap summary")
		}
	}
	return resp, nil
}

// validOverrideReason counts characters after trimming surrounding whitespace.
func validOverrideReason(reason *string, minLen int) bool {
	if reason == nil {
		return false
	}
	return utf8.RuneCountInString(strings.TrimSpace(*reason)) >= minLen
}
