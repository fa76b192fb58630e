// Package compliance holds the pure rules that turn certification facts into
// statuses, failure reasons, gap summaries and sealed snapshot payloads.
// Nothing in this package performs I/O.
package compliance

import (
	"sort"
	"time"

	"github.com/noah-isme/compliance-api/internal/models"
)

// DeriveCertificationStatus applies expiry before completeness: an expired
// certification is EXPIRED even when proof is attached.
func DeriveCertificationStatus(cert models.Certification, proofCount int, now time.Time) models.CertificationStatus {
	if cert.ExpiresAt != nil && cert.ExpiresAt.Before(now) {
		return models.CertificationStatusExpired
	}
	if proofCount == 0 {
		return models.CertificationStatusIncomplete
	}
	return models.CertificationStatusPass
}

// EvaluatedCertification is a certification with its recomputed status and proof.
type EvaluatedCertification struct {
	Certification models.Certification
	Proofs        []models.ProofArtifact
	Status        models.CertificationStatus
}

// Evaluate recomputes every certification's status from source facts,
// ignoring the stored Status column. Output is ordered by certification ID.
func Evaluate(certs []models.Certification, proofs []models.ProofArtifact, now time.Time) []EvaluatedCertification {
	byCert := make(map[string][]models.ProofArtifact, len(certs))
	for _, proof := range proofs {
		byCert[proof.CertificationID] = append(byCert[proof.CertificationID], proof)
	}
	out := make([]EvaluatedCertification, 0, len(certs))
	for _, cert := range certs {
		attached := byCert[cert.ID]
		out = append(out, EvaluatedCertification{
			Certification: cert,
			Proofs:        attached,
			Status:        DeriveCertificationStatus(cert, len(attached), now),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Certification.ID < out[j].Certification.ID
	})
	return out
}

// DeriveWorkerStatus: any required certification not PASS fails the worker;
// all PASS passes; anything else is INCOMPLETE.
func DeriveWorkerStatus(certs []EvaluatedCertification) models.ComplianceStatus {
	allPass := true
	for _, c := range certs {
		if c.Status == models.CertificationStatusPass {
			continue
		}
		if c.Certification.Required {
			return models.ComplianceStatusFail
		}
		allPass = false
	}
	if allPass {
		return models.ComplianceStatusPass
	}
	return models.ComplianceStatusIncomplete
}
