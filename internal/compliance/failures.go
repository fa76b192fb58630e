package compliance

import (
	"fmt"
	"time"

	"github.com/noah-isme/compliance-api/internal/models"
)

// FailureType classifies why a snapshot is not clean.
type FailureType string

const (
	FailureMissingCertification   FailureType = "MISSING_CERTIFICATION"
	FailureExpiredCertification   FailureType = "EXPIRED_CERTIFICATION"
	FailureMissingProof           FailureType = "MISSING_PROOF"
	FailureEmployeeInactive       FailureType = "EMPLOYEE_INACTIVE"
	FailureMissingCompanyDocument FailureType = "MISSING_COMPANY_DOCUMENT"
	FailureSnapshotStale          FailureType = "SNAPSHOT_STALE"
)

// DefaultFreshness is how long a snapshot stays current before the next one is flagged stale.
const DefaultFreshness = 30 * 24 * time.Hour

// FailureReason is one entry of a snapshot's failure list.
type FailureReason struct {
	Type     FailureType `json:"type"`
	EntityID *string     `json:"entityId,omitempty"`
	Label    string      `json:"label"`
}

// FailureInput gathers the facts failure evaluation depends on.
type FailureInput struct {
	Worker             models.Worker
	Certifications     []EvaluatedCertification
	CompanyDocuments   []models.DocumentCategory
	PriorSnapshotAt    *time.Time
	Now                time.Time
	FreshnessWindow    time.Duration
	MandatoryDocuments []models.DocumentCategory
}

// EvaluateFailures lists failure reasons in a stable order: worker, then
// certifications by ID, then company documents in taxonomy order, then staleness.
func EvaluateFailures(in FailureInput) []FailureReason {
	reasons := make([]FailureReason, 0)

	if !in.Worker.Active {
		reasons = append(reasons, FailureReason{
			Type:     FailureEmployeeInactive,
			EntityID: stringPtr(in.Worker.ID),
			Label:    fmt.Sprintf("%s is marked inactive", in.Worker.FullName()),
		})
	}

	for _, c := range in.Certifications {
		cert := c.Certification
		if cert.Required {
			switch c.Status {
			case models.CertificationStatusExpired:
				reasons = append(reasons, FailureReason{
					Type:     FailureExpiredCertification,
					EntityID: stringPtr(cert.ID),
					Label:    fmt.Sprintf("%s expired", cert.Label()),
				})
			case models.CertificationStatusIncomplete:
				reasons = append(reasons, FailureReason{
					Type:     FailureMissingCertification,
					EntityID: stringPtr(cert.ID),
					Label:    fmt.Sprintf("%s is incomplete", cert.Label()),
				})
			}
		}
		if len(c.Proofs) == 0 {
			reasons = append(reasons, FailureReason{
				Type:     FailureMissingProof,
				EntityID: stringPtr(cert.ID),
				Label:    fmt.Sprintf("%s has no proof attached", cert.Label()),
			})
		}
	}

	mandatory := in.MandatoryDocuments
	if mandatory == nil {
		mandatory = models.MandatoryDocumentCategories
	}
	onFile := make(map[models.DocumentCategory]struct{}, len(in.CompanyDocuments))
	for _, category := range in.CompanyDocuments {
		onFile[category] = struct{}{}
	}
	for _, category := range mandatory {
		if _, ok := onFile[category]; ok {
			continue
		}
		reasons = append(reasons, FailureReason{
			Type:     FailureMissingCompanyDocument,
			EntityID: stringPtr(string(category)),
			Label:    fmt.Sprintf("Company %s not on file", category.Label()),
		})
	}

	window := in.FreshnessWindow
	if window <= 0 {
		window = DefaultFreshness
	}
	if in.PriorSnapshotAt != nil && in.Now.Sub(*in.PriorSnapshotAt) > window {
		reasons = append(reasons, FailureReason{
			Type:  FailureSnapshotStale,
			Label: fmt.Sprintf("Previous snapshot from %s is older than %d days", in.PriorSnapshotAt.UTC().Format("2006-01-02"), int(window.Hours()/24)),
		})
	}

	return reasons
}

// OverallStatus: no failures is PASS; staleness alone is INCOMPLETE (a nag,
// never a block); anything else is FAIL.
func OverallStatus(reasons []FailureReason) models.ComplianceStatus {
	if len(reasons) == 0 {
		return models.ComplianceStatusPass
	}
	for _, r := range reasons {
		if r.Type != FailureSnapshotStale {
			return models.ComplianceStatusFail
		}
	}
	return models.ComplianceStatusIncomplete
}

func stringPtr(v string) *string {
	return &v
}
