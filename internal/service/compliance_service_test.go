package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/compliance-api/internal/dto"
	"github.com/noah-isme/compliance-api/internal/models"
	appErrors "github.com/noah-isme/compliance-api/pkg/errors"
)

func newComplianceService(f *complianceFixture) *ComplianceService {
	return NewComplianceService(f.store, f.policy, nil, nil, WithComplianceClock(f.clock()))
}

func TestRefreshWorkerStatusSyncsCaches(t *testing.T) {
	f := newComplianceFixture(t)
	f.addCert("osha-30", true, -2*day, 1)
	f.addCert("first-aid", false, 100*day, 1)
	svc := newComplianceService(f)

	result, err := svc.RefreshWorkerStatus(context.Background(), "w-1", f.actor)
	require.NoError(t, err)
	assert.Equal(t, models.ComplianceStatusIncomplete, result.PreviousStatus)
	assert.Equal(t, models.ComplianceStatusFail, result.Status)
	require.Len(t, result.Changes, 2)

	assert.Equal(t, models.ComplianceStatusFail, f.worker("w-1").ComplianceStatus)
	assert.Nil(t, f.worker("w-1").ComplianceHash)
	assert.Equal(t, []models.ActivityType{models.ActivityCertExpired}, f.store.auditTypes())

	again, err := svc.RefreshWorkerStatus(context.Background(), "w-1", f.actor)
	require.NoError(t, err)
	assert.Empty(t, again.Changes)
	assert.Len(t, f.store.auditTypes(), 1)
}

func TestWorkerComplianceSummary(t *testing.T) {
	f := newComplianceFixture(t)
	f.addCert("osha-30", true, 5*day, 1)
	f.addCert("forklift", true, 200*day, 0)
	svc := newComplianceService(f)

	summary, err := svc.GetWorkerComplianceSummary(context.Background(), "w-1", f.actor)
	require.NoError(t, err)
	assert.Equal(t, models.ComplianceStatusFail, summary.Status)
	require.Len(t, summary.Missing, 1)
	assert.Equal(t, "forklift", summary.Missing[0].CertificationID)
	assert.Empty(t, summary.Expiring)
	require.Len(t, summary.Advisory, 1)
	assert.Equal(t, "osha-30", summary.Advisory[0].CertificationID)
	assert.True(t, summary.Blocking)
	assert.Empty(t, f.store.auditTypes())
}

func TestWorkerComplianceSummaryNoCertifications(t *testing.T) {
	f := newComplianceFixture(t)
	svc := newComplianceService(f)

	summary, err := svc.GetWorkerComplianceSummary(context.Background(), "w-1", f.actor)
	require.NoError(t, err)
	assert.Equal(t, models.ComplianceStatusPass, summary.Status)
	assert.False(t, summary.Blocking)
	assert.NotNil(t, summary.Missing)
	assert.NotNil(t, summary.Expiring)
}

func TestListExpiringCertifications(t *testing.T) {
	f := newComplianceFixture(t)
	f.addCert("osha-30", true, 10*day, 1)
	f.addCert("hazmat", true, -3*day, 1)
	f.addCert("forklift", true, 90*day, 1)
	svc := newComplianceService(f)

	rows, err := svc.ListExpiringCertifications(context.Background(), f.actor, dto.ExpiringCertificationsQuery{WindowDays: 30})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "hazmat", rows[0].CertificationID)
	assert.Equal(t, models.CertificationStatusExpired, rows[0].Status)
	assert.Equal(t, -3, rows[0].DaysRemaining)
	assert.Equal(t, "osha-30", rows[1].CertificationID)
	assert.Equal(t, 10, rows[1].DaysRemaining)
	assert.Equal(t, "Dana Reyes", rows[1].WorkerName)

	_, err = svc.ListExpiringCertifications(context.Background(), Actor{UserID: "job"}, dto.ExpiringCertificationsQuery{})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = svc.ListExpiringCertifications(context.Background(), f.actor, dto.ExpiringCertificationsQuery{WindowDays: 999})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestExportExpiringCertificationsCSV(t *testing.T) {
	f := newComplianceFixture(t)
	f.addCert("osha-30", true, 10*day, 1)
	svc := newComplianceService(f)

	body, filename, contentType, err := svc.ExportExpiringCertifications(context.Background(), f.actor, dto.ExpiringCertificationsQuery{Format: "csv"})
	require.NoError(t, err)
	assert.Equal(t, "expiring-certifications-20240615.csv", filename)
	assert.Equal(t, "text/csv", contentType)
	lines := strings.Split(strings.TrimSpace(string(body)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "Worker,Certification,Required,Expires,Days Remaining,Status", lines[0])
	assert.Equal(t, "Dana Reyes,osha-30,yes,2024-06-25,10,PASS", lines[1])

	pdf, filename, contentType, err := svc.ExportExpiringCertifications(context.Background(), f.actor, dto.ExpiringCertificationsQuery{Format: "pdf"})
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", contentType)
	assert.True(t, strings.HasSuffix(filename, ".pdf"))
	assert.Equal(t, "%PDF", string(pdf[:4]))
}

func TestSweepActiveWorkers(t *testing.T) {
	f := newComplianceFixture(t)
	f.addCert("osha-30", true, -1*day, 1)
	f.store.seedWorker(models.Worker{ID: "w-2", CompanyID: "c-1", FirstName: "Lee", Active: true, ComplianceStatus: models.ComplianceStatusPass})
	f.store.seedWorker(models.Worker{ID: "w-3", CompanyID: "c-1", FirstName: "Ola", Active: false})
	svc := newComplianceService(f)

	result, err := svc.SweepActiveWorkers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Workers)
	assert.Equal(t, 1, result.Changed)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, models.ComplianceStatusFail, f.worker("w-1").ComplianceStatus)

	var actor string
	f.store.snapshot(func(s *memoryState) { actor = s.audits[0].ActorID })
	assert.Equal(t, SystemActorID, actor)
}

func TestExpiringDigests(t *testing.T) {
	f := newComplianceFixture(t)
	f.addCert("osha-30", true, 10*day, 1)
	f.addCert("hazmat", true, -3*day, 1)
	f.store.seedCompany("c-2", "Quiet Co")
	svc := newComplianceService(f)

	digests, err := svc.ExpiringDigests(context.Background())
	require.NoError(t, err)
	require.Len(t, digests, 2)
	assert.Equal(t, ExpiringDigest{CompanyID: "c-1", CompanyName: "Acme Field Services", Expired: 1, Expiring: 1}, digests[0])
	assert.Equal(t, ExpiringDigest{CompanyID: "c-2", CompanyName: "Quiet Co"}, digests[1])
}

func TestListAuditActivitiesFiltersByType(t *testing.T) {
	f := newComplianceFixture(t)
	f.addCert("osha-30", true, -1*day, 1)
	_, err := newSnapshotService(f).CreateSnapshot(context.Background(), "w-1", f.actor, dto.CreateSnapshotRequest{})
	require.NoError(t, err)
	svc := newComplianceService(f)

	all, err := svc.ListAuditActivities(context.Background(), f.actor, dto.AuditActivityQuery{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	only, err := svc.ListAuditActivities(context.Background(), f.actor, dto.AuditActivityQuery{Type: "snapshot_created", WorkerID: "w-1"})
	require.NoError(t, err)
	require.Len(t, only, 1)
	assert.Equal(t, models.ActivitySnapshotCreated, only[0].Type)
	assert.JSONEq(t, `"manual"`, extractJSONField(t, only[0].Metadata, "source"))

	other, err := svc.ListAuditActivities(context.Background(), Actor{CompanyID: "c-2"}, dto.AuditActivityQuery{})
	require.NoError(t, err)
	assert.Empty(t, other)
}

func extractJSONField(t *testing.T, raw []byte, key string) string {
	t.Helper()
	var fields map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &fields))
	return string(fields[key])
}
