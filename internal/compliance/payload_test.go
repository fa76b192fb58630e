package compliance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/compliance-api/internal/models"
)

func samplePayloadInput(generatedAt time.Time) PayloadInput {
	preset := "OSHA_10"
	certs := Evaluate([]models.Certification{
		{ID: "c-2", Name: "Forklift", Required: false, ExpiresAt: timePtr(fixedNow.Add(48 * time.Hour))},
		{ID: "c-1", PresetKey: &preset, Required: true, IssueDate: timePtr(fixedNow.Add(-400 * 24 * time.Hour))},
	}, []models.ProofArtifact{
		{ID: "p-2", CertificationID: "c-1", Digest: "sha256:bbb"},
		{ID: "p-1", CertificationID: "c-1", Digest: "sha256:aaa"},
	}, fixedNow)
	reasons := EvaluateFailures(FailureInput{
		Worker:           models.Worker{ID: "w-1", Active: true},
		Certifications:   certs,
		CompanyDocuments: models.MandatoryDocumentCategories,
		Now:              fixedNow,
	})
	return PayloadInput{
		Company:        models.Company{ID: "co-1", Name: "Acme Field Services"},
		Worker:         models.Worker{ID: "w-1", FirstName: "Dana", LastName: "Reyes", Active: true},
		Certifications: certs,
		FailureReasons: reasons,
		Status:         OverallStatus(reasons),
		GeneratedAt:    generatedAt,
	}
}

func TestBuildPayloadIsCanonical(t *testing.T) {
	p := BuildPayload(samplePayloadInput(fixedNow))

	assert.Equal(t, PayloadSchemaVersion, p.SchemaVersion)
	require.Len(t, p.Certifications, 2)
	assert.Equal(t, "c-1", p.Certifications[0].ID)
	assert.Equal(t, "OSHA_10", p.Certifications[0].Category)
	assert.Equal(t, []string{"sha256:aaa", "sha256:bbb"}, p.Certifications[0].ProofDigests)
	assert.Equal(t, []string{}, p.Certifications[1].ProofDigests)
	require.NotNil(t, p.Certifications[1].ExpiresAt)
	assert.Equal(t, "2024-06-17", *p.Certifications[1].ExpiresAt)
	assert.Equal(t, models.ComplianceStatusFail, p.Worker.Status)
}

func TestSealIsDeterministicApartFromGeneratedAt(t *testing.T) {
	first := BuildPayload(samplePayloadInput(fixedNow))
	second := BuildPayload(samplePayloadInput(fixedNow.Add(time.Second)))

	rawA, hashA, err := Seal(first)
	require.NoError(t, err)
	rawB, hashB, err := Seal(second)
	require.NoError(t, err)
	assert.NotEqual(t, hashA, hashB)

	second.GeneratedAt = first.GeneratedAt
	rawC, hashC, err := Seal(second)
	require.NoError(t, err)
	assert.Equal(t, rawA, rawC)
	assert.Equal(t, hashA, hashC)
	assert.NotEqual(t, rawA, rawB)
}

func TestVerifyHashDetectsTampering(t *testing.T) {
	raw, hash, err := Seal(BuildPayload(samplePayloadInput(fixedNow)))
	require.NoError(t, err)
	assert.True(t, VerifyHash(raw, hash))

	tampered := append([]byte(nil), raw...)
	tampered[len(tampered)-2] = ' '
	assert.False(t, VerifyHash(tampered, hash))
}

func TestDecodePayloadRoundTripAndVersion(t *testing.T) {
	original := BuildPayload(samplePayloadInput(fixedNow))
	raw, _, err := Seal(original)
	require.NoError(t, err)

	decoded, err := DecodePayload(raw)
	require.NoError(t, err)
	assert.Equal(t, original.Worker, decoded.Worker)
	assert.True(t, original.GeneratedAt.Equal(decoded.GeneratedAt))

	_, err = DecodePayload([]byte(`{"schemaVersion":2}`))
	assert.Error(t, err)
}

func TestProofDigestFallback(t *testing.T) {
	digest := ProofDigest(models.ProofArtifact{ID: "p-1", FileKey: "proofs/p-1.jpg"})
	assert.Contains(t, digest, "ref:")
	assert.Equal(t, digest, ProofDigest(models.ProofArtifact{ID: "p-1", FileKey: "proofs/p-1.jpg"}))
}
