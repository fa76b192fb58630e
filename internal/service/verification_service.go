package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/compliance-api/internal/compliance"
	"github.com/noah-isme/compliance-api/internal/dto"
	"github.com/noah-isme/compliance-api/internal/models"
	"github.com/noah-isme/compliance-api/internal/repository"
	appErrors "github.com/noah-isme/compliance-api/pkg/errors"
)

const tokenBytes = 32

// VerificationService resolves public verification tokens and provisions them at onboarding.
type VerificationService struct {
	store    complianceStore
	policy   Policy
	cache    *CacheService
	metrics  *MetricsService
	logger   *zap.Logger
	now      func() time.Time
	newToken func() (string, error)
}

// VerificationServiceOption configures the service.
type VerificationServiceOption func(*VerificationService)

// WithVerificationCache serves sealed snapshots from cache when possible.
func WithVerificationCache(cache *CacheService) VerificationServiceOption {
	return func(s *VerificationService) { s.cache = cache }
}

// WithVerificationMetrics records lookup counters.
func WithVerificationMetrics(metrics *MetricsService) VerificationServiceOption {
	return func(s *VerificationService) { s.metrics = metrics }
}

// WithVerificationClock overrides the time source.
func WithVerificationClock(now func() time.Time) VerificationServiceOption {
	return func(s *VerificationService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithTokenGenerator overrides token generation.
func WithTokenGenerator(gen func() (string, error)) VerificationServiceOption {
	return func(s *VerificationService) {
		if gen != nil {
			s.newToken = gen
		}
	}
}

// NewVerificationService constructs the service.
func NewVerificationService(store complianceStore, policy Policy, logger *zap.Logger, opts ...VerificationServiceOption) *VerificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &VerificationService{
		store:    store,
		policy:   policy.withDefaults(),
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
		newToken: generateVerificationToken,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// ResolveToken returns the sealed record the token currently points at. It
// never recomputes status; everything returned comes from the stored payload.
func (s *VerificationService) ResolveToken(ctx context.Context, token string) (*dto.VerificationResponse, error) {
	if token == "" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "verification record not found")
	}

	var pointer *models.VerificationToken
	err := s.store.Read(ctx, func(q repository.ComplianceQueries) error {
		var err error
		pointer, err = q.GetVerificationToken(ctx, token)
		return err
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.metrics.RecordVerification("not_found")
			return nil, appErrors.Clone(appErrors.ErrNotFound, "verification record not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve token")
	}
	if pointer.SnapshotID == nil {
		s.metrics.RecordVerification("not_found")
		return nil, appErrors.Clone(appErrors.ErrNotFound, "verification record not found")
	}

	snapshot, err := s.loadSnapshot(ctx, *pointer.SnapshotID)
	if err != nil {
		return nil, err
	}
	if snapshot.WorkerID != pointer.WorkerID {
		s.logger.Error("verification token points at another worker's snapshot",
			zap.String("worker_id", pointer.WorkerID), zap.String("snapshot_id", snapshot.ID))
		return nil, appErrors.Clone(appErrors.ErrNotFound, "verification record not found")
	}

	payload, err := compliance.DecodePayload(snapshot.Payload)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "stored snapshot payload unreadable")
	}
	hashValid := compliance.VerifyHash(snapshot.Payload, snapshot.SnapshotHash)
	if hashValid {
		s.metrics.RecordVerification("resolved")
	} else {
		s.metrics.RecordVerification("hash_mismatch")
		s.logger.Error("snapshot hash mismatch on public lookup", zap.String("snapshot_id", snapshot.ID))
	}

	return &dto.VerificationResponse{
		SnapshotID:     snapshot.ID,
		SnapshotHash:   snapshot.SnapshotHash,
		HashValid:      hashValid,
		Status:         payload.Worker.Status,
		Source:         snapshot.Source,
		SealedAt:       payload.GeneratedAt.UTC().Format(time.RFC3339),
		Worker:         payload.Worker,
		Company:        payload.Company,
		Certifications: payload.Certifications,
		FailureReasons: payload.FailureReasons,
	}, nil
}

// ProvisionToken creates the worker's one verification token. Calling it for a
// worker that already has one fails instead of rotating the value.
func (s *VerificationService) ProvisionToken(ctx context.Context, workerID string, actor Actor) (*dto.ProvisionTokenResponse, error) {
	value, err := s.newToken()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate token")
	}
	now := s.now()

	err = s.store.WithinTx(ctx, func(q repository.ComplianceQueries) error {
		worker, err := q.GetWorkerForUpdate(ctx, workerID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrWorkerNotFound, "worker not found")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load worker")
		}
		if actor.CompanyID != "" && worker.CompanyID != actor.CompanyID {
			return appErrors.Clone(appErrors.ErrWorkerNotFound, "worker not found")
		}

		if _, err := q.GetVerificationTokenByWorker(ctx, workerID); err == nil {
			return appErrors.Clone(appErrors.ErrTokenAlreadyProvisioned, "worker already has a verification token")
		} else if !errors.Is(err, sql.ErrNoRows) {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load verification token")
		}

		if err := q.InsertVerificationToken(ctx, &models.VerificationToken{
			WorkerID:  workerID,
			Token:     value,
			CreatedAt: now,
			UpdatedAt: now,
		}); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to provision token")
		}

		return appendAudit(ctx, q, auditEntry{
			companyID: worker.CompanyID,
			actorID:   actorOrSystem(actor),
			activity:  models.ActivityTokenProvisioned,
			workerID:  workerID,
			at:        now,
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("verification token provisioned", zap.String("worker_id", workerID))
	return &dto.ProvisionTokenResponse{WorkerID: workerID, Token: value, VerifyURL: s.policy.verifyURL(value)}, nil
}

func (s *VerificationService) loadSnapshot(ctx context.Context, id string) (*models.Snapshot, error) {
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
			return nil, appErrors.Clone(appErrors.ErrNotFound, "verification record not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load snapshot")
	}
	s.cache.PutSnapshot(ctx, snapshot)
	return snapshot, nil
}

func generateVerificationToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
