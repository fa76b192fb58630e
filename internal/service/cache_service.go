package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/compliance-api/internal/models"
	appErrors "github.com/noah-isme/compliance-api/pkg/errors"
)

// CacheRepository abstracts persistence for cached payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// CacheService caches sealed snapshots by id. Snapshots never change once
// written, so entries are never invalidated; only the TTL bounds memory.
// Token pointers are never cached.
type CacheService struct {
	repo       CacheRepository
	metrics    *MetricsService
	defaultTTL time.Duration
	logger     *zap.Logger
	enabled    bool
}

type cachedSnapshot struct {
	Snapshot models.Snapshot `json:"snapshot"`
	Payload  []byte          `json:"payload"`
}

// NewCacheService constructs a cache service.
func NewCacheService(repo CacheRepository, metrics *MetricsService, defaultTTL time.Duration, logger *zap.Logger, enabled bool) *CacheService {
	if defaultTTL <= 0 {
		defaultTTL = time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{repo: repo, metrics: metrics, defaultTTL: defaultTTL, logger: logger, enabled: enabled}
}

// Enabled indicates whether caching is active.
func (s *CacheService) Enabled() bool {
	return s != nil && s.enabled && s.repo != nil
}

func snapshotCacheKey(id string) string {
	return "snapshot:" + id
}

// GetSnapshot returns a cached snapshot. Errors degrade to a miss.
func (s *CacheService) GetSnapshot(ctx context.Context, id string) (*models.Snapshot, bool) {
	if !s.Enabled() {
		return nil, false
	}
	var entry cachedSnapshot
	if err := s.repo.Get(ctx, snapshotCacheKey(id), &entry); err != nil {
		s.metrics.RecordCacheOperation(false)
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("snapshot cache get failed", zap.String("snapshot_id", id), zap.Error(err))
		}
		return nil, false
	}
	s.metrics.RecordCacheOperation(true)
	snapshot := entry.Snapshot
	snapshot.Payload = entry.Payload
	return &snapshot, true
}

// PutSnapshot stores a committed snapshot. Failures are logged only.
func (s *CacheService) PutSnapshot(ctx context.Context, snapshot *models.Snapshot) {
	if !s.Enabled() || snapshot == nil {
		return
	}
	start := time.Now()
	err := s.repo.Set(ctx, snapshotCacheKey(snapshot.ID), cachedSnapshot{Snapshot: *snapshot, Payload: snapshot.Payload}, s.defaultTTL)
	s.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil {
		s.logger.Warn("snapshot cache set failed", zap.String("snapshot_id", snapshot.ID), zap.Error(err))
	}
}
