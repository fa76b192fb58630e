package service

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/compliance-api/internal/compliance"
	"github.com/noah-isme/compliance-api/internal/dto"
	"github.com/noah-isme/compliance-api/internal/models"
	appErrors "github.com/noah-isme/compliance-api/pkg/errors"
)

func newSnapshotService(f *complianceFixture) *SnapshotService {
	return NewSnapshotService(f.store, f.policy, nil, nil, WithSnapshotClock(f.clock()))
}

func failureTypes(reasons []compliance.FailureReason) []compliance.FailureType {
	out := make([]compliance.FailureType, 0, len(reasons))
	for _, r := range reasons {
		out = append(out, r.Type)
	}
	return out
}

func TestCreateSnapshotPass(t *testing.T) {
	f := newComplianceFixture(t)
	f.addCert("osha-30", true, 200*day, 1)
	svc := newSnapshotService(f)

	resp, err := svc.CreateSnapshot(context.Background(), "w-1", f.actor, dto.CreateSnapshotRequest{})
	require.NoError(t, err)

	snap := resp.Snapshot
	assert.Equal(t, models.ComplianceStatusPass, snap.Status)
	assert.Equal(t, models.SnapshotSourceManual, snap.Source)
	assert.True(t, snap.HashValid)
	assert.Empty(t, snap.Payload.FailureReasons)
	assert.Equal(t, compliance.PayloadSchemaVersion, snap.Payload.SchemaVersion)
	assert.Equal(t, "tok-w1", resp.Token)
	assert.Equal(t, "https://verify.example.com/v/tok-w1", resp.VerifyURL)

	stored := f.snapshots()
	require.Len(t, stored, 1)
	assert.Equal(t, compliance.Hash(stored[0].Payload), stored[0].SnapshotHash)
	assert.Equal(t, stored[0].SnapshotHash, snap.SnapshotHash)
	assert.Equal(t, stored[0].ID, *f.token("w-1").SnapshotID)

	worker := f.worker("w-1")
	assert.Equal(t, models.ComplianceStatusPass, worker.ComplianceStatus)
	require.NotNil(t, worker.ComplianceHash)
	assert.Equal(t, stored[0].SnapshotHash, *worker.ComplianceHash)
	require.NotNil(t, worker.LastVerifiedAt)
	assert.True(t, worker.LastVerifiedAt.Equal(complianceNow))
	assert.Equal(t, []models.ActivityType{models.ActivitySnapshotCreated}, f.store.auditTypes())
}

func TestCreateSnapshotExpiredCertificationFails(t *testing.T) {
	f := newComplianceFixture(t)
	f.addCert("osha-30", true, -1*day, 0)
	svc := newSnapshotService(f)

	resp, err := svc.CreateSnapshot(context.Background(), "w-1", f.actor, dto.CreateSnapshotRequest{Source: "inspection"})
	require.NoError(t, err)

	assert.Equal(t, models.ComplianceStatusFail, resp.Snapshot.Status)
	assert.Equal(t, models.SnapshotSourceInspection, resp.Snapshot.Source)
	assert.Equal(t, []compliance.FailureType{
		compliance.FailureExpiredCertification,
		compliance.FailureMissingProof,
	}, failureTypes(resp.Snapshot.Payload.FailureReasons))
	require.Len(t, resp.Snapshot.Payload.Certifications, 1)
	assert.Equal(t, models.CertificationStatusExpired, resp.Snapshot.Payload.Certifications[0].Status)

	var cached models.CertificationStatus
	f.store.snapshot(func(s *memoryState) { cached = s.certs["osha-30"].Status })
	assert.Equal(t, models.CertificationStatusExpired, cached)

	_, err = svc.CreateSnapshot(context.Background(), "w-1", f.actor, dto.CreateSnapshotRequest{})
	require.NoError(t, err)

	expiredAudits := 0
	for _, a := range f.store.auditTypes() {
		if a == models.ActivityCertExpired {
			expiredAudits++
		}
	}
	assert.Equal(t, 1, expiredAudits)
}

func TestCreateSnapshotMissingCompanyDocuments(t *testing.T) {
	f := newComplianceFixture(t)
	f.store.snapshot(func(s *memoryState) { s.documents = nil })
	f.store.seedDocuments("c-1", models.DocumentCategoryGeneralLiability)
	f.addCert("osha-30", true, 200*day, 1)
	svc := newSnapshotService(f)

	resp, err := svc.CreateSnapshot(context.Background(), "w-1", f.actor, dto.CreateSnapshotRequest{})
	require.NoError(t, err)
	assert.Equal(t, models.ComplianceStatusFail, resp.Snapshot.Status)
	assert.Equal(t, []compliance.FailureType{
		compliance.FailureMissingCompanyDocument,
		compliance.FailureMissingCompanyDocument,
		compliance.FailureMissingCompanyDocument,
	}, failureTypes(resp.Snapshot.Payload.FailureReasons))
}

func TestCreateSnapshotStaleOnlyIsIncomplete(t *testing.T) {
	f := newComplianceFixture(t)
	f.addCert("osha-30", true, 200*day, 1)
	f.store.snapshot(func(s *memoryState) {
		s.snapshots = append(s.snapshots, models.Snapshot{
			ID:        "snap-old",
			WorkerID:  "w-1",
			CompanyID: "c-1",
			Status:    models.ComplianceStatusPass,
			CreatedAt: complianceNow.Add(-45 * day),
		})
	})
	svc := newSnapshotService(f)

	resp, err := svc.CreateSnapshot(context.Background(), "w-1", f.actor, dto.CreateSnapshotRequest{})
	require.NoError(t, err)
	assert.Equal(t, models.ComplianceStatusIncomplete, resp.Snapshot.Status)
	assert.Equal(t, []compliance.FailureType{compliance.FailureSnapshotStale}, failureTypes(resp.Snapshot.Payload.FailureReasons))

	again, err := svc.CreateSnapshot(context.Background(), "w-1", f.actor, dto.CreateSnapshotRequest{})
	require.NoError(t, err)
	assert.Equal(t, models.ComplianceStatusPass, again.Snapshot.Status)
}

func TestCreateSnapshotIsDeterministic(t *testing.T) {
	f := newComplianceFixture(t)
	f.addCert("osha-30", true, 200*day, 2)
	svc := newSnapshotService(f)

	first, err := svc.CreateSnapshot(context.Background(), "w-1", f.actor, dto.CreateSnapshotRequest{})
	require.NoError(t, err)
	second, err := svc.CreateSnapshot(context.Background(), "w-1", f.actor, dto.CreateSnapshotRequest{})
	require.NoError(t, err)

	assert.NotEqual(t, first.Snapshot.ID, second.Snapshot.ID)
	assert.Equal(t, first.Snapshot.SnapshotHash, second.Snapshot.SnapshotHash)
	assert.Equal(t, second.Snapshot.ID, *f.token("w-1").SnapshotID)
}

func TestCreateSnapshotWithoutTokenFails(t *testing.T) {
	f := newComplianceFixture(t)
	f.store.seedWorker(models.Worker{ID: "w-2", CompanyID: "c-1", FirstName: "Lee", Active: true})
	svc := newSnapshotService(f)

	_, err := svc.CreateSnapshot(context.Background(), "w-2", f.actor, dto.CreateSnapshotRequest{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrMissingVerificationToken))
	assert.Empty(t, f.snapshots())
	assert.Empty(t, f.store.auditTypes())
}

func TestCreateSnapshotRollsBackOnPartialFailure(t *testing.T) {
	f := newComplianceFixture(t)
	f.addCert("osha-30", true, 200*day, 1)
	f.store.failOn["UpdateWorkerCompliance"] = errors.New("disk full")
	svc := newSnapshotService(f)

	_, err := svc.CreateSnapshot(context.Background(), "w-1", f.actor, dto.CreateSnapshotRequest{})
	require.Error(t, err)
	assert.Empty(t, f.snapshots())
	assert.Nil(t, f.token("w-1").SnapshotID)
	assert.Nil(t, f.worker("w-1").ComplianceHash)
	assert.Empty(t, f.store.auditTypes())
}

func TestCreateSnapshotRejectsUnknownSource(t *testing.T) {
	f := newComplianceFixture(t)
	svc := newSnapshotService(f)

	_, err := svc.CreateSnapshot(context.Background(), "w-1", f.actor, dto.CreateSnapshotRequest{Source: "cron"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestCreateSnapshotOtherCompanyWorker(t *testing.T) {
	f := newComplianceFixture(t)
	svc := newSnapshotService(f)

	_, err := svc.CreateSnapshot(context.Background(), "w-1", Actor{UserID: "u-x", CompanyID: "c-2"}, dto.CreateSnapshotRequest{})
	assert.True(t, errors.Is(err, appErrors.ErrWorkerNotFound))
}

func TestGetSnapshotDetectsTampering(t *testing.T) {
	f := newComplianceFixture(t)
	f.addCert("osha-30", true, 200*day, 1)
	svc := newSnapshotService(f)

	created, err := svc.CreateSnapshot(context.Background(), "w-1", f.actor, dto.CreateSnapshotRequest{})
	require.NoError(t, err)

	got, err := svc.GetSnapshot(context.Background(), created.Snapshot.ID, f.actor)
	require.NoError(t, err)
	assert.True(t, got.HashValid)

	body, filename, err := svc.RenderCertificate(context.Background(), created.Snapshot.ID, f.actor)
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(body[:4]))
	assert.Equal(t, "compliance-"+created.Snapshot.ID+".pdf", filename)

	f.store.snapshot(func(s *memoryState) {
		s.snapshots[0].Payload = bytes.Replace(s.snapshots[0].Payload, []byte(`"PASS"`), []byte(`"FAIL"`), 1)
	})

	got, err = svc.GetSnapshot(context.Background(), created.Snapshot.ID, f.actor)
	require.NoError(t, err)
	assert.False(t, got.HashValid)

	_, _, err = svc.RenderCertificate(context.Background(), created.Snapshot.ID, f.actor)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrConflict))

	_, err = svc.GetSnapshot(context.Background(), created.Snapshot.ID, Actor{CompanyID: "c-2"})
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestListSnapshotsNewestFirst(t *testing.T) {
	f := newComplianceFixture(t)
	f.addCert("osha-30", true, 200*day, 1)
	svc := newSnapshotService(f)

	first, err := svc.CreateSnapshot(context.Background(), "w-1", f.actor, dto.CreateSnapshotRequest{})
	require.NoError(t, err)
	second, err := svc.CreateSnapshot(context.Background(), "w-1", f.actor, dto.CreateSnapshotRequest{Source: "print"})
	require.NoError(t, err)

	items, total, err := svc.ListSnapshots(context.Background(), "w-1", f.actor, dto.ListSnapshotsQuery{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, items, 2)
	assert.Equal(t, second.Snapshot.ID, items[0].ID)
	assert.Equal(t, first.Snapshot.ID, items[1].ID)
	assert.True(t, items[1].HashValid)
}
